package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// API views. Each role gets its own shape, produced by a total mapping
// function: parents never see other parents' charge breakdowns, students
// never see money. Decimals render as 2-digit strings, times as RFC3339 UTC.

type (
	// ChargeView is one charge line in a teacher's log view.
	ChargeView struct {
		StudentID   string     `json:"student_id"`
		StudentName string     `json:"student_name"`
		Cost        string     `json:"cost"`
		PaidStatus  PaidStatus `json:"paid_status"`
	}

	TeacherLogView struct {
		ID            string       `json:"id"`
		Subject       string       `json:"subject"`
		StartTime     string       `json:"start_time"`
		EndTime       string       `json:"end_time"`
		Duration      string       `json:"duration"`
		WeekNumber    int          `json:"week_number"`
		CreateType    CreateType   `json:"create_type"`
		PaidStatus    PaidStatus   `json:"paid_status"`
		TotalCost     string       `json:"total_cost"`
		AttendeeNames []string     `json:"attendee_names"`
		Charges       []ChargeView `json:"charges"`
	}

	ParentLogView struct {
		ID            string     `json:"id"`
		Subject       string     `json:"subject"`
		TeacherName   string     `json:"teacher_name"`
		StartTime     string     `json:"start_time"`
		EndTime       string     `json:"end_time"`
		Duration      string     `json:"duration"`
		WeekNumber    int        `json:"week_number"`
		Cost          string     `json:"cost"` // this parent's share only
		PaidStatus    PaidStatus `json:"paid_status"`
		AttendeeNames []string   `json:"attendee_names"`
	}

	StudentLogView struct {
		ID            string   `json:"id"`
		Subject       string   `json:"subject"`
		TeacherName   string   `json:"teacher_name"`
		StartTime     string   `json:"start_time"`
		EndTime       string   `json:"end_time"`
		Duration      string   `json:"duration"`
		AttendeeNames []string `json:"attendee_names"`
	}

	// PaymentView serves both teacher and parent readers; Counterparty is
	// the parent's name for teachers and the teacher's name for parents.
	PaymentView struct {
		ID           string `json:"id"`
		Counterparty string `json:"counterparty"`
		Amount       string `json:"amount"`
		Currency     string `json:"currency,omitempty"`
		PaymentDate  string `json:"payment_date"`
		Notes        string `json:"notes,omitempty"`
	}

	ParentSummaryView struct {
		TotalDue      string `json:"total_due"`
		CreditBalance string `json:"credit_balance"`
		UnpaidCount   int    `json:"unpaid_count"`
	}

	TeacherSummaryView struct {
		TotalOwed        string `json:"total_owed"`
		TotalCreditHeld  string `json:"total_credit_held"`
		LessonsThisMonth int    `json:"lessons_this_month"`
		UnpaidLessons    int    `json:"unpaid_lessons_count"`
	}
)

// NewTeacherLogView maps a log for its teacher. statuses and chargeStatuses
// come from TeacherLedger; names maps user IDs to display names; weekAnchor
// is the start of the week of the earliest ACTIVE log.
func NewTeacherLogView(
	log TuitionLog,
	status PaidStatus,
	chargeStatuses map[string]PaidStatus,
	names map[string]string,
	weekAnchor time.Time,
) TeacherLogView {
	charges := make([]ChargeView, 0, len(log.Charges))
	for _, c := range sortedCharges(log.Charges) {
		charges = append(charges, ChargeView{
			StudentID:   c.StudentID,
			StudentName: names[c.StudentID],
			Cost:        FormatAmount(c.Cost),
			PaidStatus:  chargeStatuses[c.StudentID],
		})
	}
	return TeacherLogView{
		ID:            log.ID,
		Subject:       log.Subject,
		StartTime:     FormatTime(log.StartTime),
		EndTime:       FormatTime(log.EndTime),
		Duration:      FormatDuration(log.Duration()),
		WeekNumber:    WeekNumber(log.StartTime, weekAnchor),
		CreateType:    log.CreateType,
		PaidStatus:    status,
		TotalCost:     FormatAmount(log.TotalCost()),
		AttendeeNames: attendeeNames(log, names),
		Charges:       charges,
	}
}

// NewParentLogView maps a log for one of its paying parents.
func NewParentLogView(
	log TuitionLog,
	parentID string,
	status PaidStatus,
	names map[string]string,
	weekAnchor time.Time,
) ParentLogView {
	return ParentLogView{
		ID:            log.ID,
		Subject:       log.Subject,
		TeacherName:   names[log.TeacherID],
		StartTime:     FormatTime(log.StartTime),
		EndTime:       FormatTime(log.EndTime),
		Duration:      FormatDuration(log.Duration()),
		WeekNumber:    WeekNumber(log.StartTime, weekAnchor),
		Cost:          FormatAmount(log.ParentCost(parentID)),
		PaidStatus:    status,
		AttendeeNames: attendeeNames(log, names),
	}
}

// NewStudentLogView maps a log for an attending student. No money.
func NewStudentLogView(log TuitionLog, names map[string]string) StudentLogView {
	return StudentLogView{
		ID:            log.ID,
		Subject:       log.Subject,
		TeacherName:   names[log.TeacherID],
		StartTime:     FormatTime(log.StartTime),
		EndTime:       FormatTime(log.EndTime),
		Duration:      FormatDuration(log.Duration()),
		AttendeeNames: attendeeNames(log, names),
	}
}

// NewPaymentView maps a payment for either side of it.
func NewPaymentView(p PaymentLog, counterpartyName, currency string) PaymentView {
	return PaymentView{
		ID:           p.ID,
		Counterparty: counterpartyName,
		Amount:       FormatAmount(p.AmountPaid),
		Currency:     currency,
		PaymentDate:  FormatTime(p.PaymentDate),
		Notes:        p.Notes,
	}
}

func NewParentSummaryView(s ParentSummary) ParentSummaryView {
	return ParentSummaryView{
		TotalDue:      FormatAmount(s.TotalDue),
		CreditBalance: FormatAmount(s.CreditBalance),
		UnpaidCount:   s.UnpaidCount,
	}
}

func NewTeacherSummaryView(s TeacherSummary) TeacherSummaryView {
	return TeacherSummaryView{
		TotalOwed:        FormatAmount(s.TotalOwed),
		TotalCreditHeld:  FormatAmount(s.TotalCreditHeld),
		LessonsThisMonth: s.LessonsThisMonth,
		UnpaidLessons:    s.UnpaidLessons,
	}
}

// FormatAmount renders a decimal with exactly 2 fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatTime renders a time as RFC3339 UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDuration renders a duration as fractional hours, e.g. "1.5h".
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fh", d.Hours())
}

// WeekNumber is 1-based, relative to the week (starting Monday) of anchor.
// Returns 0 for a zero anchor.
func WeekNumber(t, anchor time.Time) int {
	if anchor.IsZero() {
		return 0
	}
	return int(t.Sub(WeekStart(anchor)).Hours()/(24*7)) + 1
}

// WeekStart truncates t to the Monday 00:00 UTC of its week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -weekday)
}

func attendeeNames(log TuitionLog, names map[string]string) []string {
	out := make([]string, 0, len(log.Charges))
	for _, id := range log.StudentIDs() {
		out = append(out, names[id])
	}
	return out
}
