package finance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ReconcileCharges allocates a payer's total credit across charge amounts,
// oldest first. A charge is PAID iff the remaining credit covers its full
// amount, in which case the amount is deducted; an UNPAID charge leaves the
// remaining credit untouched so that a later, cheaper charge can still be
// covered. There are no partial payments.
//
// The returned slice is parallel to amounts. Callers must pass amounts in
// (start_time, id) ascending order; the allocation is deterministic for a
// given order.
func ReconcileCharges(amounts []decimal.Decimal, credit decimal.Decimal) []PaidStatus {
	statuses := make([]PaidStatus, len(amounts))
	remaining := credit
	for i, amount := range amounts {
		if remaining.GreaterThanOrEqual(amount) {
			statuses[i] = PaidStatusPaid
			remaining = remaining.Sub(amount)
		} else {
			statuses[i] = PaidStatusUnpaid
		}
	}
	return statuses
}

// ParentLedger computes the paid status of each log from one parent's point
// of view: the amount of a log is the sum of that parent's charges on it.
// Logs must be ACTIVE and ordered by (start_time, id) ascending; totalPaid is
// the parent's total ACTIVE payments to the logs' teacher.
//
// Returns log ID -> status. Logs not charging the parent are skipped.
func ParentLedger(logs []TuitionLog, parentID string, totalPaid decimal.Decimal) map[string]PaidStatus {
	ids := make([]string, 0, len(logs))
	amounts := make([]decimal.Decimal, 0, len(logs))
	for _, log := range logs {
		if !hasParent(log, parentID) {
			continue
		}
		ids = append(ids, log.ID)
		amounts = append(amounts, log.ParentCost(parentID))
	}

	statuses := ReconcileCharges(amounts, totalPaid)
	ledger := make(map[string]PaidStatus, len(ids))
	for i, id := range ids {
		ledger[id] = statuses[i]
	}
	return ledger
}

// TeacherLedger computes paid statuses across all of a teacher's logs,
// tracking an independent credit wallet per parent. paidByParent maps
// parent ID -> total ACTIVE payments received from that parent.
//
// Returns per-log statuses and per-charge statuses (log ID -> student ID ->
// status). A log is PAID iff it has at least one charge and all its charges
// are PAID.
func TeacherLedger(logs []TuitionLog, paidByParent map[string]decimal.Decimal) (map[string]PaidStatus, map[string]map[string]PaidStatus) {
	wallets := make(map[string]decimal.Decimal, len(paidByParent))
	for parentID, paid := range paidByParent {
		wallets[parentID] = paid
	}

	logStatuses := make(map[string]PaidStatus, len(logs))
	chargeStatuses := make(map[string]map[string]PaidStatus, len(logs))

	for _, log := range logs {
		perCharge := make(map[string]PaidStatus, len(log.Charges))
		allPaid := len(log.Charges) > 0

		for _, charge := range sortedCharges(log.Charges) {
			wallet := wallets[charge.ParentID]
			if wallet.GreaterThanOrEqual(charge.Cost) {
				perCharge[charge.StudentID] = PaidStatusPaid
				wallets[charge.ParentID] = wallet.Sub(charge.Cost)
			} else {
				perCharge[charge.StudentID] = PaidStatusUnpaid
				allPaid = false
			}
		}

		chargeStatuses[log.ID] = perCharge
		if allPaid {
			logStatuses[log.ID] = PaidStatusPaid
		} else {
			logStatuses[log.ID] = PaidStatusUnpaid
		}
	}
	return logStatuses, chargeStatuses
}

// UnpaidCount counts UNPAID entries in a ledger.
func UnpaidCount(ledger map[string]PaidStatus) int {
	var n int
	for _, status := range ledger {
		if status == PaidStatusUnpaid {
			n++
		}
	}
	return n
}

func hasParent(log TuitionLog, parentID string) bool {
	for _, c := range log.Charges {
		if c.ParentID == parentID {
			return true
		}
	}
	return false
}

// sortedCharges orders a log's charges by student ID so per-charge allocation
// within one log is deterministic.
func sortedCharges(charges []LogCharge) []LogCharge {
	out := make([]LogCharge, len(charges))
	copy(out, charges)
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
