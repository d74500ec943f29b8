package finance

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
)

// LogStatus is the lifecycle state of a ledger record.
// ACTIVE records participate in reconciliation; VOID is terminal.
type LogStatus string

const (
	LogStatusActive LogStatus = "ACTIVE"
	LogStatusVoid   LogStatus = "VOID"
)

// CreateType records whether a tuition log was snapshot from a tuition
// template or entered ad hoc.
type CreateType string

const (
	CreateTypeScheduled CreateType = "SCHEDULED"
	CreateTypeCustom    CreateType = "CUSTOM"
)

// PaidStatus is never stored; it is recomputed on every read.
type PaidStatus string

const (
	PaidStatusPaid   PaidStatus = "PAID"
	PaidStatusUnpaid PaidStatus = "UNPAID"
)

// LogCharge is one student's share of a tuition log, billed to their parent.
// Amounts are fixed at log creation and never change afterwards.
type LogCharge struct {
	StudentID string          `json:"student_id"`
	ParentID  string          `json:"parent_id"`
	Cost      decimal.Decimal `json:"cost"`
}

// TuitionLog is a delivered (or planned) lesson with its per-student charges.
// Immutable once created, except for the ACTIVE -> VOID transition.
type TuitionLog struct {
	ID              string      `json:"id"`
	TeacherID       string      `json:"teacher_id"`
	TuitionID       string      `json:"tuition_id,omitempty"` // empty for CUSTOM logs
	Subject         string      `json:"subject"`
	LessonIndex     int         `json:"lesson_index"`
	StartTime       time.Time   `json:"start_time"` // UTC
	EndTime         time.Time   `json:"end_time"`   // UTC
	Status          LogStatus   `json:"status"`
	CreateType      CreateType  `json:"create_type"`
	CorrectedFromID string      `json:"corrected_from_id,omitempty"`
	Charges         []LogCharge `json:"charges"`
	CreatedAt       time.Time   `json:"created_at"`
}

func (l TuitionLog) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, c := range l.Charges {
		total = total.Add(c.Cost)
	}
	return total
}

// ParentCost sums the charges billed to one parent on this log.
func (l TuitionLog) ParentCost(parentID string) decimal.Decimal {
	total := decimal.Zero
	for _, c := range l.Charges {
		if c.ParentID == parentID {
			total = total.Add(c.Cost)
		}
	}
	return total
}

func (l TuitionLog) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}

// StudentIDs returns the students charged on this log, sorted.
func (l TuitionLog) StudentIDs() []string {
	ids := make([]string, 0, len(l.Charges))
	for _, c := range l.Charges {
		ids = append(ids, c.StudentID)
	}
	sort.Strings(ids)
	return ids
}

// PaymentLog is a credit from a parent to a teacher.
// Immutable once created, except for the ACTIVE -> VOID transition.
type PaymentLog struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parent_id"`
	TeacherID       string          `json:"teacher_id"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	PaymentDate     time.Time       `json:"payment_date"` // UTC
	Status          LogStatus       `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CorrectedFromID string          `json:"corrected_from_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewLogCharge is one charge line of a NewTuitionLog.
type NewLogCharge struct {
	StudentID string          `json:"student_id" validate:"required"`
	ParentID  string          `json:"parent_id" validate:"required"`
	Cost      decimal.Decimal `json:"cost"`
}

// NewTuitionLog contains information needed to create a TuitionLog.
// SCHEDULED logs take their charges from the tuition template; CUSTOM logs
// must carry explicit charges.
type NewTuitionLog struct {
	TuitionID   string         `json:"tuition_id"`
	Subject     string         `json:"subject"`
	LessonIndex int            `json:"lesson_index" validate:"min=0"`
	StartTime   time.Time      `json:"start_time" validate:"required"`
	EndTime     time.Time      `json:"end_time" validate:"required,gtfield=StartTime"`
	CreateType  CreateType     `json:"create_type" validate:"required,oneof=SCHEDULED CUSTOM"`
	Charges     []NewLogCharge `json:"charges" validate:"dive"`
}

func (nl *NewTuitionLog) Validate(validate *validator.Validate) error {
	nl.Subject = core.CleanString(nl.Subject)
	if err := validate.Struct(nl); err != nil {
		return err
	}
	switch nl.CreateType {
	case CreateTypeScheduled:
		if nl.TuitionID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "tuition_id", Error: "required for scheduled logs"})
		}
	case CreateTypeCustom:
		if len(nl.Charges) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "charges", Error: "required for custom logs"})
		}
	}
	for _, c := range nl.Charges {
		if c.Cost.IsNegative() {
			return core.NewValidationError(nil, core.FieldError{Field: "charges", Error: "cost cannot be negative"})
		}
	}
	return nil
}

// NewPaymentLog contains information needed to record a PaymentLog.
type NewPaymentLog struct {
	ParentID    string          `json:"parent_id" validate:"required"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Notes       string          `json:"notes"`
}

func (np *NewPaymentLog) Validate(validate *validator.Validate) error {
	np.Notes = core.CleanString(np.Notes)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.AmountPaid.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount_paid", Error: "must be positive"})
	}
	return nil
}

// LogFilter narrows tuition log queries. Zero fields are ignored.
type LogFilter struct {
	TeacherID string    `query:"teacher_id"`
	ParentID  string    `query:"parent_id"`
	StudentID string    `query:"student_id"`
	Status    LogStatus `query:"status"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

// PaymentFilter narrows payment log queries. Zero fields are ignored.
type PaymentFilter struct {
	TeacherID string    `query:"teacher_id"`
	ParentID  string    `query:"parent_id"`
	Status    LogStatus `query:"status"`
}

// Repository abstracts ledger persistence.
//
// FilterTuitionLogs and FilterPaymentLogs return records ordered by
// (start_time, id) and (payment_date, id) ascending; the reconciler depends
// on that total order.
//
// CorrectTuitionLog and CorrectPaymentLog run the void and the insert of the
// replacement inside a single transaction; on any failure neither change is
// applied.
type Repository interface {
	CreateTuitionLog(ctx context.Context, log TuitionLog) (TuitionLog, error)
	GetTuitionLog(ctx context.Context, id string) (TuitionLog, error)
	FilterTuitionLogs(ctx context.Context, filter LogFilter) ([]TuitionLog, error)
	VoidTuitionLog(ctx context.Context, id string) error
	CorrectTuitionLog(ctx context.Context, oldID string, replacement TuitionLog) (TuitionLog, error)

	CreatePaymentLog(ctx context.Context, log PaymentLog) (PaymentLog, error)
	GetPaymentLog(ctx context.Context, id string) (PaymentLog, error)
	FilterPaymentLogs(ctx context.Context, filter PaymentFilter) ([]PaymentLog, error)
	VoidPaymentLog(ctx context.Context, id string) error
	CorrectPaymentLog(ctx context.Context, oldID string, replacement PaymentLog) (PaymentLog, error)
}
