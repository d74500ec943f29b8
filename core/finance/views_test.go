package finance

import (
	"testing"
	"time"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"10", "10.00"},
		{"12.5", "12.50"},
		{"12.345", "12.35"},
	}
	for _, tt := range tests {
		if got := FormatAmount(dec(tt.in)); got != tt.want {
			t.Errorf("FormatAmount(%s) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestWeekNumber(t *testing.T) {
	// Wed 2021-03-03; its week starts Mon 2021-03-01
	anchor := time.Date(2021, 3, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		{name: "same day", t: anchor, want: 1},
		{name: "sunday of the same week", t: time.Date(2021, 3, 7, 23, 0, 0, 0, time.UTC), want: 1},
		{name: "next monday", t: time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC), want: 2},
		{name: "five weeks on", t: anchor.AddDate(0, 0, 35), want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekNumber(tt.t, anchor); got != tt.want {
				t.Errorf("got %d; want %d", got, tt.want)
			}
		})
	}
}

func TestNewTeacherLogView(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	log := testLog("log1", "t1", start,
		LogCharge{StudentID: "s2", ParentID: "p2", Cost: dec("12.5")},
		LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")},
	)
	names := map[string]string{"s1": "Asha", "s2": "Biko"}
	chargeStatuses := map[string]PaidStatus{"s1": PaidStatusPaid, "s2": PaidStatusUnpaid}

	view := NewTeacherLogView(log, PaidStatusUnpaid, chargeStatuses, names, start)

	if view.TotalCost != "22.50" {
		t.Errorf("TotalCost = %q; want %q", view.TotalCost, "22.50")
	}
	if view.Duration != "1.0h" {
		t.Errorf("Duration = %q; want %q", view.Duration, "1.0h")
	}
	if view.WeekNumber != 1 {
		t.Errorf("WeekNumber = %d; want 1", view.WeekNumber)
	}
	if len(view.Charges) != 2 {
		t.Fatalf("got %d charges; want 2", len(view.Charges))
	}
	// charges are ordered by student ID
	if view.Charges[0].StudentName != "Asha" || view.Charges[1].StudentName != "Biko" {
		t.Errorf("charge order = [%s, %s]; want [Asha, Biko]", view.Charges[0].StudentName, view.Charges[1].StudentName)
	}
	if view.Charges[0].PaidStatus != PaidStatusPaid || view.Charges[1].PaidStatus != PaidStatusUnpaid {
		t.Error("per-charge statuses not carried into the view")
	}
}

func TestNewParentLogViewShowsOwnShareOnly(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	log := testLog("log1", "t1", start,
		LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")},
		LogCharge{StudentID: "s2", ParentID: "p2", Cost: dec("40")},
	)
	names := map[string]string{"t1": "Mr. Otieno", "s1": "Asha", "s2": "Biko"}

	view := NewParentLogView(log, "p1", PaidStatusPaid, names, start)
	if view.Cost != "10.00" {
		t.Errorf("Cost = %q; want own share %q", view.Cost, "10.00")
	}
	if view.TeacherName != "Mr. Otieno" {
		t.Errorf("TeacherName = %q", view.TeacherName)
	}
	if len(view.AttendeeNames) != 2 {
		t.Errorf("attendees still list the whole group; got %v", view.AttendeeNames)
	}
}
