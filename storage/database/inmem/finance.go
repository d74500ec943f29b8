package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/finance"
)

type financeRepository struct {
	db *DB
}

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateTuitionLog(ctx context.Context, log finance.TuitionLog) (finance.TuitionLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.tuitionLogs[log.ID] = &log
	return log, nil
}

func (repo *financeRepository) GetTuitionLog(ctx context.Context, id string) (finance.TuitionLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if log, ok := repo.db.tuitionLogs[id]; ok {
		return *log, nil
	}
	return finance.TuitionLog{}, finance.ErrNotFound
}

func (repo *financeRepository) FilterTuitionLogs(ctx context.Context, filter finance.LogFilter) ([]finance.TuitionLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var out []finance.TuitionLog
	for _, log := range repo.db.tuitionLogs {
		if matchTuitionLog(*log, filter) {
			out = append(out, *log)
		}
	}
	// (start_time, id) ascending; the reconciler depends on this order
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (repo *financeRepository) VoidTuitionLog(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	log, ok := repo.db.tuitionLogs[id]
	if !ok {
		return finance.ErrNotFound
	}
	log.Status = finance.LogStatusVoid
	return nil
}

func (repo *financeRepository) CorrectTuitionLog(ctx context.Context, oldID string, replacement finance.TuitionLog) (finance.TuitionLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	old, ok := repo.db.tuitionLogs[oldID]
	if !ok {
		return finance.TuitionLog{}, finance.ErrNotFound
	}
	old.Status = finance.LogStatusVoid
	repo.db.tuitionLogs[replacement.ID] = &replacement
	return replacement, nil
}

func (repo *financeRepository) CreatePaymentLog(ctx context.Context, log finance.PaymentLog) (finance.PaymentLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.paymentLogs[log.ID] = &log
	return log, nil
}

func (repo *financeRepository) GetPaymentLog(ctx context.Context, id string) (finance.PaymentLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if log, ok := repo.db.paymentLogs[id]; ok {
		return *log, nil
	}
	return finance.PaymentLog{}, finance.ErrNotFound
}

func (repo *financeRepository) FilterPaymentLogs(ctx context.Context, filter finance.PaymentFilter) ([]finance.PaymentLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var out []finance.PaymentLog
	for _, log := range repo.db.paymentLogs {
		if matchPaymentLog(*log, filter) {
			out = append(out, *log)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaymentDate.Before(out[j].PaymentDate)
	})
	return out, nil
}

func (repo *financeRepository) VoidPaymentLog(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	log, ok := repo.db.paymentLogs[id]
	if !ok {
		return finance.ErrNotFound
	}
	log.Status = finance.LogStatusVoid
	return nil
}

func (repo *financeRepository) CorrectPaymentLog(ctx context.Context, oldID string, replacement finance.PaymentLog) (finance.PaymentLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	old, ok := repo.db.paymentLogs[oldID]
	if !ok {
		return finance.PaymentLog{}, finance.ErrNotFound
	}
	old.Status = finance.LogStatusVoid
	repo.db.paymentLogs[replacement.ID] = &replacement
	return replacement, nil
}

func matchTuitionLog(log finance.TuitionLog, filter finance.LogFilter) bool {
	if filter.TeacherID != "" && log.TeacherID != filter.TeacherID {
		return false
	}
	if filter.Status != "" && log.Status != filter.Status {
		return false
	}
	if filter.ParentID != "" {
		var found bool
		for _, c := range log.Charges {
			if c.ParentID == filter.ParentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.StudentID != "" {
		var found bool
		for _, c := range log.Charges {
			if c.StudentID == filter.StudentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !filter.From.IsZero() && log.StartTime.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !log.StartTime.Before(filter.To) {
		return false
	}
	return true
}

func matchPaymentLog(log finance.PaymentLog, filter finance.PaymentFilter) bool {
	if filter.TeacherID != "" && log.TeacherID != filter.TeacherID {
		return false
	}
	if filter.ParentID != "" && log.ParentID != filter.ParentID {
		return false
	}
	if filter.Status != "" && log.Status != filter.Status {
		return false
	}
	return true
}
