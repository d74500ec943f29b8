package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/darasa/core/notes"
)

const noteColumns = "id, teacher_id, student_id, name, subject, note_type, description, url, created_at"

type notesRepository struct {
	db *sqlx.DB
}

func NewNotesRepository(db *sqlx.DB) notes.Repository {
	return &notesRepository{db: db}
}

func (repo *notesRepository) CreateNote(ctx context.Context, note notes.Note) (notes.Note, error) {
	query := `
INSERT INTO notes (id, teacher_id, student_id, name, subject, note_type, description, url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, query,
		note.ID, note.TeacherID, note.StudentID, note.Name, note.Subject,
		note.Type, note.Description, note.URL, note.CreatedAt,
	)
	return note, err
}

func (repo *notesRepository) GetNote(ctx context.Context, id string) (notes.Note, error) {
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE id = $1`, noteColumns)
	return scanNote(repo.db.QueryRowContext(ctx, query, id))
}

func (repo *notesRepository) FilterNotes(ctx context.Context, filter notes.Filter) ([]notes.Note, error) {
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
		conds = append(conds, "student_id = "+arg(filter.StudentID))
	}
	if len(filter.StudentIDs) > 0 {
		conds = append(conds, "student_id = ANY("+arg(pq.Array(filter.StudentIDs))+")")
	}
	if filter.Subject != "" {
		conds = append(conds, "subject = "+arg(filter.Subject))
	}

	query := fmt.Sprintf(`SELECT %s FROM notes`, noteColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notes.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, note)
	}
	return out, rows.Err()
}

func (repo *notesRepository) UpdateNote(ctx context.Context, note notes.Note) (notes.Note, error) {
	query := `
UPDATE notes
SET name = $2, subject = $3, note_type = $4, description = $5, url = $6
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query,
		note.ID, note.Name, note.Subject, note.Type, note.Description, note.URL,
	)
	if err != nil {
		return notes.Note{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notes.Note{}, notes.ErrNotFound
	}
	return note, nil
}

func (repo *notesRepository) DeleteNote(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notes.ErrNotFound
	}
	return nil
}

func scanNote(row interface{ Scan(...interface{}) error }) (notes.Note, error) {
	var note notes.Note
	err := row.Scan(
		&note.ID, &note.TeacherID, &note.StudentID, &note.Name, &note.Subject,
		&note.Type, &note.Description, &note.URL, &note.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return notes.Note{}, notes.ErrNotFound
		}
		return notes.Note{}, err
	}
	return note, nil
}
