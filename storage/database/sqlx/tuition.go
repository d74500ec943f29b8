package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/tuition"
)

const tuitionColumns = "id, teacher_id, subject, lesson_index, student_ids, duration_mins, meeting_provider, meeting_join_url, meeting_external_id, created_at"

type tuitionRepository struct {
	db *sqlx.DB
}

func NewTuitionRepository(db *sqlx.DB) tuition.Repository {
	return &tuitionRepository{db: db}
}

func (repo *tuitionRepository) GetTuition(ctx context.Context, id string) (tuition.Tuition, error) {
	query := fmt.Sprintf(`SELECT %s FROM tuitions WHERE id = $1`, tuitionColumns)
	tut, err := scanTuition(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return tuition.Tuition{}, err
	}
	charges, err := repo.loadTemplateCharges(ctx, id)
	if err != nil {
		return tuition.Tuition{}, err
	}
	tut.Charges = charges[id]
	return tut, nil
}

func (repo *tuitionRepository) FilterTuitions(ctx context.Context, filter tuition.Filter) ([]tuition.Tuition, error) {
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
	if filter.StudentID != "" {
		conds = append(conds, arg(filter.StudentID)+" = ANY(student_ids)")
	}
	if filter.Subject != "" {
		conds = append(conds, "subject = "+arg(filter.Subject))
	}

	query := fmt.Sprintf(`SELECT %s FROM tuitions`, tuitionColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		tuts []tuition.Tuition
		ids  []string
	)
	for rows.Next() {
		tut, err := scanTuition(rows)
		if err != nil {
			return nil, err
		}
		tuts = append(tuts, tut)
		ids = append(ids, tut.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	charges, err := repo.loadTemplateCharges(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range tuts {
		tuts[i].Charges = charges[tuts[i].ID]
	}
	return tuts, nil
}

// ReplaceAll swaps the whole tuition set in one transaction. Regeneration is
// rare and the set is small, so truncate-and-insert beats a diff.
func (repo *tuitionRepository) ReplaceAll(ctx context.Context, tuts []tuition.Tuition) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tuitions`); err != nil {
		return err
	}

	insertTuition := `
INSERT INTO tuitions (id, teacher_id, subject, lesson_index, student_ids, duration_mins, meeting_provider, meeting_join_url, meeting_external_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`
	insertCharge := `
INSERT INTO tuition_template_charges (tuition_id, student_id, parent_id, cost_per_hour)
VALUES ($1, $2, $3, $4)`

	for _, tut := range tuts {
		_, err = tx.ExecContext(ctx, insertTuition,
			tut.ID, tut.TeacherID, tut.Subject, tut.LessonIndex, pq.Array(tut.StudentIDs),
			tut.DurationMins, tut.Meeting.Provider, tut.Meeting.URL, tut.Meeting.ExternalID, tut.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, c := range tut.Charges {
			if _, err = tx.ExecContext(ctx, insertCharge, tut.ID, c.StudentID, c.ParentID, c.CostPerHour); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (repo *tuitionRepository) UpdateMeetingLink(ctx context.Context, id string, link tuition.MeetingLink) error {
	query := `
UPDATE tuitions
SET meeting_provider = $2, meeting_join_url = $3, meeting_external_id = $4, updated_at = $5
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id, link.Provider, link.URL, link.ExternalID, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tuition.ErrNotFound
	}
	return nil
}

func (repo *tuitionRepository) loadTemplateCharges(ctx context.Context, ids ...string) (map[string][]tuition.TemplateCharge, error) {
	charges := make(map[string][]tuition.TemplateCharge, len(ids))
	if len(ids) == 0 {
		return charges, nil
	}

	query, args, err := sqlx.In(`
SELECT tuition_id, student_id, parent_id, cost_per_hour
FROM tuition_template_charges
WHERE tuition_id IN (?)
ORDER BY tuition_id, student_id`, ids)
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
			tuitionID string
			c         tuition.TemplateCharge
			cost      string
		)
		if err := rows.Scan(&tuitionID, &c.StudentID, &c.ParentID, &cost); err != nil {
			return nil, err
		}
		if c.CostPerHour, err = decimal.NewFromString(cost); err != nil {
			return nil, errors.Wrap(err, "decoding cost_per_hour")
		}
		charges[tuitionID] = append(charges[tuitionID], c)
	}
	return charges, rows.Err()
}

func scanTuition(row interface{ Scan(...interface{}) error }) (tuition.Tuition, error) {
	var (
		tut        tuition.Tuition
		studentIDs pq.StringArray
	)
	err := row.Scan(
		&tut.ID, &tut.TeacherID, &tut.Subject, &tut.LessonIndex, &studentIDs, &tut.DurationMins,
		&tut.Meeting.Provider, &tut.Meeting.URL, &tut.Meeting.ExternalID, &tut.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return tuition.Tuition{}, tuition.ErrNotFound
		}
		return tuition.Tuition{}, err
	}
	tut.StudentIDs = studentIDs
	return tut, nil
}
