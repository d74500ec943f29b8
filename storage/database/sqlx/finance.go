package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/finance"
)

const tuitionLogColumns = "id, teacher_id, tuition_id, subject, lesson_index, start_time, end_time, status, create_type, corrected_from_id, created_at"

type financeRepository struct {
	db *sqlx.DB
}

func NewFinanceRepository(db *sqlx.DB) finance.Repository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateTuitionLog(ctx context.Context, log finance.TuitionLog) (finance.TuitionLog, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return finance.TuitionLog{}, err
	}
	defer tx.Rollback()

	if err = insertTuitionLog(ctx, tx, log); err != nil {
		return finance.TuitionLog{}, err
	}
	if err = tx.Commit(); err != nil {
		return finance.TuitionLog{}, err
	}
	return log, nil
}

func insertTuitionLog(ctx context.Context, tx core.DBExecutor, log finance.TuitionLog) error {
	query := `
INSERT INTO tuition_logs (id, teacher_id, tuition_id, subject, lesson_index, start_time, end_time, status, create_type, corrected_from_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := tx.ExecContext(ctx, query,
		log.ID, log.TeacherID, nullStr(log.TuitionID), log.Subject, log.LessonIndex,
		log.StartTime, log.EndTime, log.Status, log.CreateType, nullStr(log.CorrectedFromID), log.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, c := range log.Charges {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tuition_log_charges (log_id, student_id, parent_id, cost) VALUES ($1, $2, $3, $4)`,
			log.ID, c.StudentID, c.ParentID, c.Cost,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (repo *financeRepository) GetTuitionLog(ctx context.Context, id string) (finance.TuitionLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM tuition_logs WHERE id = $1`, tuitionLogColumns)
	log, err := scanTuitionLog(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return finance.TuitionLog{}, err
	}
	charges, err := repo.loadCharges(ctx, id)
	if err != nil {
		return finance.TuitionLog{}, err
	}
	log.Charges = charges[id]
	return log, nil
}

func (repo *financeRepository) FilterTuitionLogs(ctx context.Context, filter finance.LogFilter) ([]finance.TuitionLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TeacherID != "" {
		conds = append(conds, "l.teacher_id = "+arg(filter.TeacherID))
	}
	if filter.Status != "" {
		conds = append(conds, "l.status = "+arg(filter.Status))
	}
	if filter.ParentID != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM tuition_log_charges c WHERE c.log_id = l.id AND c.parent_id = "+arg(filter.ParentID)+")")
	}
	if filter.StudentID != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM tuition_log_charges c WHERE c.log_id = l.id AND c.student_id = "+arg(filter.StudentID)+")")
	}
	if !filter.From.IsZero() {
		conds = append(conds, "l.start_time >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "l.start_time < "+arg(filter.To))
	}

	query := fmt.Sprintf(`SELECT %s FROM tuition_logs l`, prefixColumns("l", tuitionLogColumns))
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// the reconciler depends on this total order
	query += " ORDER BY l.start_time ASC, l.id ASC"

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		logs []finance.TuitionLog
		ids  []string
	)
	for rows.Next() {
		log, err := scanTuitionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
		ids = append(ids, log.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	charges, err := repo.loadCharges(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		logs[i].Charges = charges[logs[i].ID]
	}
	return logs, nil
}

func (repo *financeRepository) VoidTuitionLog(ctx context.Context, id string) error {
	return voidRecord(ctx, repo.db, "tuition_logs", id, finance.ErrNotFound)
}

// CorrectTuitionLog voids the old record and inserts the replacement in one
// transaction; a failure of either step rolls back both.
func (repo *financeRepository) CorrectTuitionLog(ctx context.Context, oldID string, replacement finance.TuitionLog) (finance.TuitionLog, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return finance.TuitionLog{}, err
	}
	defer tx.Rollback()

	if err = voidRecord(ctx, tx, "tuition_logs", oldID, finance.ErrNotFound); err != nil {
		return finance.TuitionLog{}, err
	}
	if err = insertTuitionLog(ctx, tx, replacement); err != nil {
		return finance.TuitionLog{}, err
	}
	if err = tx.Commit(); err != nil {
		return finance.TuitionLog{}, err
	}
	return replacement, nil
}

const paymentLogColumns = "id, parent_id, teacher_id, amount_paid, payment_date, status, notes, corrected_from_id, created_at"

func (repo *financeRepository) CreatePaymentLog(ctx context.Context, log finance.PaymentLog) (finance.PaymentLog, error) {
	if err := insertPaymentLog(ctx, repo.db, log); err != nil {
		return finance.PaymentLog{}, err
	}
	return log, nil
}

func insertPaymentLog(ctx context.Context, tx core.DBExecutor, log finance.PaymentLog) error {
	query := `
INSERT INTO payment_logs (id, parent_id, teacher_id, amount_paid, payment_date, status, notes, corrected_from_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := tx.ExecContext(ctx, query,
		log.ID, log.ParentID, log.TeacherID, log.AmountPaid, log.PaymentDate,
		log.Status, log.Notes, nullStr(log.CorrectedFromID), log.CreatedAt,
	)
	return err
}

func (repo *financeRepository) GetPaymentLog(ctx context.Context, id string) (finance.PaymentLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_logs WHERE id = $1`, paymentLogColumns)
	return scanPaymentLog(repo.db.QueryRowContext(ctx, query, id))
}

func (repo *financeRepository) FilterPaymentLogs(ctx context.Context, filter finance.PaymentFilter) ([]finance.PaymentLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TeacherID != "" {
		conds = append(conds, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = "+arg(filter.ParentID))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}

	query := fmt.Sprintf(`SELECT %s FROM payment_logs`, paymentLogColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY payment_date ASC, id ASC"

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []finance.PaymentLog
	for rows.Next() {
		log, err := scanPaymentLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (repo *financeRepository) VoidPaymentLog(ctx context.Context, id string) error {
	return voidRecord(ctx, repo.db, "payment_logs", id, finance.ErrNotFound)
}

func (repo *financeRepository) CorrectPaymentLog(ctx context.Context, oldID string, replacement finance.PaymentLog) (finance.PaymentLog, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return finance.PaymentLog{}, err
	}
	defer tx.Rollback()

	if err = voidRecord(ctx, tx, "payment_logs", oldID, finance.ErrNotFound); err != nil {
		return finance.PaymentLog{}, err
	}
	if err = insertPaymentLog(ctx, tx, replacement); err != nil {
		return finance.PaymentLog{}, err
	}
	if err = tx.Commit(); err != nil {
		return finance.PaymentLog{}, err
	}
	return replacement, nil
}

// loadCharges fetches charges for the given log IDs, keyed by log ID and
// ordered by student ID within each log.
func (repo *financeRepository) loadCharges(ctx context.Context, logIDs ...string) (map[string][]finance.LogCharge, error) {
	charges := make(map[string][]finance.LogCharge, len(logIDs))
	if len(logIDs) == 0 {
		return charges, nil
	}

	query, args, err := sqlx.In(`
SELECT log_id, student_id, parent_id, cost
FROM tuition_log_charges
WHERE log_id IN (?)
ORDER BY log_id, student_id`, logIDs)
	if err != nil {
		return nil, err
	}
	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			logID string
			c     finance.LogCharge
			cost  string
		)
		if err := rows.Scan(&logID, &c.StudentID, &c.ParentID, &cost); err != nil {
			return nil, err
		}
		if c.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, errors.Wrap(err, "decoding charge cost")
		}
		charges[logID] = append(charges[logID], c)
	}
	return charges, rows.Err()
}

func scanTuitionLog(row interface{ Scan(...interface{}) error }) (finance.TuitionLog, error) {
	var (
		log           finance.TuitionLog
		tuitionID     sql.NullString
		correctedFrom sql.NullString
	)
	err := row.Scan(
		&log.ID, &log.TeacherID, &tuitionID, &log.Subject, &log.LessonIndex,
		&log.StartTime, &log.EndTime, &log.Status, &log.CreateType, &correctedFrom, &log.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return finance.TuitionLog{}, finance.ErrNotFound
		}
		return finance.TuitionLog{}, err
	}
	log.TuitionID = tuitionID.String
	log.CorrectedFromID = correctedFrom.String
	return log, nil
}

func scanPaymentLog(row interface{ Scan(...interface{}) error }) (finance.PaymentLog, error) {
	var (
		log           finance.PaymentLog
		amount        string
		correctedFrom sql.NullString
	)
	err := row.Scan(
		&log.ID, &log.ParentID, &log.TeacherID, &amount, &log.PaymentDate,
		&log.Status, &log.Notes, &correctedFrom, &log.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return finance.PaymentLog{}, finance.ErrNotFound
		}
		return finance.PaymentLog{}, err
	}
	if log.AmountPaid, err = decimal.NewFromString(amount); err != nil {
		return finance.PaymentLog{}, errors.Wrap(err, "decoding amount_paid")
	}
	log.CorrectedFromID = correctedFrom.String
	return log, nil
}

// voidRecord flips an ACTIVE record to VOID. Voiding a VOID record is a
// no-op at this layer; services enforce the state machine.
func voidRecord(ctx context.Context, tx core.DBExecutor, table, id string, notFound error) error {
	query := fmt.Sprintf(`UPDATE %s SET status = 'VOID' WHERE id = $1`, table)
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
