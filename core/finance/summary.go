package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParentSummary is a parent's position across all (or a subset of) teachers.
// TotalDue and CreditBalance are mutually exclusive per teacher: a parent
// either owes a teacher or holds credit with them, never both.
type ParentSummary struct {
	TotalDue      decimal.Decimal `json:"-"`
	CreditBalance decimal.Decimal `json:"-"`
	UnpaidCount   int             `json:"unpaid_count"`
}

// TeacherSummary is a teacher's position across all (or a subset of) parents.
type TeacherSummary struct {
	TotalOwed        decimal.Decimal `json:"-"`
	TotalCreditHeld  decimal.Decimal `json:"-"`
	LessonsThisMonth int             `json:"lessons_this_month"`
	UnpaidLessons    int             `json:"unpaid_lessons_count"`
}

// SummarizeBalances folds per-counterparty charge and payment totals into a
// (due, credit) pair. For each counterparty, balance = paid - charged;
// negative balances accumulate into due, positive ones into credit. Both
// results are always >= 0.
func SummarizeBalances(charged, paid map[string]decimal.Decimal) (due, credit decimal.Decimal) {
	due, credit = decimal.Zero, decimal.Zero

	seen := make(map[string]bool, len(charged)+len(paid))
	for id := range charged {
		seen[id] = true
	}
	for id := range paid {
		seen[id] = true
	}

	for id := range seen {
		balance := paid[id].Sub(charged[id])
		switch {
		case balance.IsNegative():
			due = due.Add(balance.Neg())
		case balance.IsPositive():
			credit = credit.Add(balance)
		}
	}
	return due, credit
}

// MonthWindow returns the half-open interval [first of month, first of next
// month) containing now, computed in loc and returned as UTC instants.
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 1, 0).UTC()
}

// CountLessonsBetween counts logs whose start time falls in [from, to).
func CountLessonsBetween(logs []TuitionLog, from, to time.Time) int {
	var n int
	for _, log := range logs {
		if !log.StartTime.Before(from) && log.StartTime.Before(to) {
			n++
		}
	}
	return n
}

// chargeTotalsBy sums ACTIVE log charges grouped by the given key func.
func chargeTotalsBy(logs []TuitionLog, key func(LogCharge) string) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, log := range logs {
		for _, c := range log.Charges {
			k := key(c)
			totals[k] = totals[k].Add(c.Cost)
		}
	}
	return totals
}

// paymentTotalsBy sums ACTIVE payments grouped by the given key func.
func paymentTotalsBy(payments []PaymentLog, key func(PaymentLog) string) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, p := range payments {
		k := key(p)
		totals[k] = totals[k].Add(p.AmountPaid)
	}
	return totals
}
