package finance

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

func TestReconcileCharges(t *testing.T) {
	tests := []struct {
		name    string
		amounts []decimal.Decimal
		credit  decimal.Decimal
		want    []PaidStatus
	}{
		{
			name:   "no charges",
			credit: dec("100"),
			want:   []PaidStatus{},
		},
		{
			name:    "no credit",
			amounts: decs("10", "20"),
			credit:  decimal.Zero,
			want:    []PaidStatus{PaidStatusUnpaid, PaidStatusUnpaid},
		},
		{
			name:    "all covered",
			amounts: decs("10", "20", "15"),
			credit:  dec("45"),
			want:    []PaidStatus{PaidStatusPaid, PaidStatusPaid, PaidStatusPaid},
		},
		{
			// an uncovered charge does not consume credit; the cheaper
			// charge after it is still paid in full
			name:    "skipped charge keeps credit intact",
			amounts: decs("10", "20", "15"),
			credit:  dec("25"),
			want:    []PaidStatus{PaidStatusPaid, PaidStatusUnpaid, PaidStatusPaid},
		},
		{
			name:    "no partial payment",
			amounts: decs("30"),
			credit:  dec("29.99"),
			want:    []PaidStatus{PaidStatusUnpaid},
		},
		{
			name:    "zero-amount charge always paid",
			amounts: decs("0", "50"),
			credit:  decimal.Zero,
			want:    []PaidStatus{PaidStatusPaid, PaidStatusUnpaid},
		},
		{
			name:    "exact cover",
			amounts: decs("12.50", "12.50"),
			credit:  dec("25"),
			want:    []PaidStatus{PaidStatusPaid, PaidStatusPaid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileCharges(tt.amounts, tt.credit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d statuses; want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("charge %d = %s; want %s", i, got[i], tt.want[i])
				}
			}

			// total of PAID amounts never exceeds the credit
			var paid decimal.Decimal
			for i, status := range got {
				if status == PaidStatusPaid {
					paid = paid.Add(tt.amounts[i])
				}
			}
			if paid.GreaterThan(tt.credit) {
				t.Errorf("paid total %s exceeds credit %s", paid, tt.credit)
			}
		})
	}
}

func testLog(id, teacherID string, start time.Time, charges ...LogCharge) TuitionLog {
	return TuitionLog{
		ID:         id,
		TeacherID:  teacherID,
		Subject:    "Math",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Status:     LogStatusActive,
		CreateType: CreateTypeCustom,
		Charges:    charges,
		CreatedAt:  start,
	}
}

func TestParentLedger(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	logs := []TuitionLog{
		testLog("log1", "t1", start, LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")}),
		testLog("log2", "t1", start.Add(24*time.Hour),
			LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")},
			LogCharge{StudentID: "s2", ParentID: "p1", Cost: dec("10")},
		),
		testLog("log3", "t1", start.Add(48*time.Hour), LogCharge{StudentID: "s3", ParentID: "p2", Cost: dec("99")}),
		testLog("log4", "t1", start.Add(72*time.Hour), LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("15")}),
	}

	// p1 totals per log: 10, 20, (skipped), 15
	ledger := ParentLedger(logs, "p1", dec("25"))
	if len(ledger) != 3 {
		t.Fatalf("got %d entries; want 3", len(ledger))
	}
	for id, want := range map[string]PaidStatus{
		"log1": PaidStatusPaid,
		"log2": PaidStatusUnpaid,
		"log4": PaidStatusPaid,
	} {
		if got := ledger[id]; got != want {
			t.Errorf("%s = %s; want %s", id, got, want)
		}
	}
	if _, ok := ledger["log3"]; ok {
		t.Error("log3 does not charge p1; want it skipped")
	}

	if got := UnpaidCount(ledger); got != 1 {
		t.Errorf("UnpaidCount() = %d; want 1", got)
	}
}

func TestTeacherLedger(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	logs := []TuitionLog{
		// group lesson charging two parents
		testLog("log1", "t1", start,
			LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")},
			LogCharge{StudentID: "s2", ParentID: "p2", Cost: dec("10")},
		),
		testLog("log2", "t1", start.Add(24*time.Hour), LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("20")}),
		testLog("log3", "t1", start.Add(48*time.Hour), LogCharge{StudentID: "s2", ParentID: "p2", Cost: dec("5")}),
	}
	paid := map[string]decimal.Decimal{
		"p1": dec("10"), // covers only the first charge
		"p2": dec("15"), // covers both of p2's charges
	}

	statuses, chargeStatuses := TeacherLedger(logs, paid)

	for id, want := range map[string]PaidStatus{
		"log1": PaidStatusPaid,
		"log2": PaidStatusUnpaid,
		"log3": PaidStatusPaid,
	} {
		if got := statuses[id]; got != want {
			t.Errorf("log %s = %s; want %s", id, got, want)
		}
	}

	if got := chargeStatuses["log1"]["s1"]; got != PaidStatusPaid {
		t.Errorf("log1/s1 = %s; want %s", got, PaidStatusPaid)
	}
	if got := chargeStatuses["log2"]["s1"]; got != PaidStatusUnpaid {
		t.Errorf("log2/s1 = %s; want %s", got, PaidStatusUnpaid)
	}

	// the input map must not be drained by the allocation
	if !paid["p1"].Equal(dec("10")) {
		t.Errorf("paidByParent mutated: p1 = %s", paid["p1"])
	}
}

func TestTeacherLedgerWalletsAreIndependent(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	var logs []TuitionLog
	for i := 0; i < 3; i++ {
		logs = append(logs, testLog(
			fmt.Sprintf("log%d", i),
			"t1",
			start.Add(time.Duration(i)*24*time.Hour),
			LogCharge{StudentID: "s1", ParentID: "p1", Cost: dec("10")},
			LogCharge{StudentID: "s2", ParentID: "p2", Cost: dec("10")},
		))
	}

	// p2 never paid; p1's wallet must still cover all of p1's charges
	statuses, chargeStatuses := TeacherLedger(logs, map[string]decimal.Decimal{"p1": dec("30")})

	for _, log := range logs {
		if got := statuses[log.ID]; got != PaidStatusUnpaid {
			t.Errorf("log %s = %s; want %s", log.ID, got, PaidStatusUnpaid)
		}
		if got := chargeStatuses[log.ID]["s1"]; got != PaidStatusPaid {
			t.Errorf("%s/s1 = %s; want %s", log.ID, got, PaidStatusPaid)
		}
		if got := chargeStatuses[log.ID]["s2"]; got != PaidStatusUnpaid {
			t.Errorf("%s/s2 = %s; want %s", log.ID, got, PaidStatusUnpaid)
		}
	}
}

func TestTeacherLedgerNoCharges(t *testing.T) {
	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	logs := []TuitionLog{testLog("log1", "t1", start)}

	statuses, _ := TeacherLedger(logs, nil)
	if got := statuses["log1"]; got != PaidStatusUnpaid {
		t.Errorf("chargeless log = %s; want %s", got, PaidStatusUnpaid)
	}
}
