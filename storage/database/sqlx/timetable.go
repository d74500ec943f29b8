package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core/timetable"
)

const runColumns = "id, status, solution, notes, created_at"

type timetableRepository struct {
	db *sqlx.DB
}

func NewTimetableRepository(db *sqlx.DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) CreateRun(ctx context.Context, run timetable.Run) (timetable.Run, error) {
	solution := []byte(run.Solution)
	if len(solution) == 0 {
		solution = []byte("null")
	}
	query := `INSERT INTO timetable_runs (id, status, solution, notes, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := repo.db.ExecContext(ctx, query, run.ID, run.Status, solution, run.Notes, run.CreatedAt)
	return run, err
}

func (repo *timetableRepository) GetRun(ctx context.Context, id string) (timetable.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_runs WHERE id = $1`, runColumns)
	return scanRun(repo.db.QueryRowContext(ctx, query, id))
}

func (repo *timetableRepository) QueryRuns(ctx context.Context) ([]timetable.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_runs ORDER BY created_at DESC, id DESC`, runColumns)
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []timetable.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (repo *timetableRepository) LatestRun(ctx context.Context, statuses ...timetable.RunStatus) (timetable.Run, error) {
	if len(statuses) == 0 {
		return timetable.Run{}, timetable.ErrNotFound
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}
	query := fmt.Sprintf(
		`SELECT %s FROM timetable_runs WHERE status IN (%s) ORDER BY created_at DESC, id DESC LIMIT 1`,
		runColumns, strings.Join(placeholders, ", "),
	)
	return scanRun(repo.db.QueryRowContext(ctx, query, args...))
}

func scanRun(row interface{ Scan(...interface{}) error }) (timetable.Run, error) {
	var (
		run      timetable.Run
		solution []byte
	)
	err := row.Scan(&run.ID, &run.Status, &solution, &run.Notes, &run.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return timetable.Run{}, timetable.ErrNotFound
		}
		return timetable.Run{}, err
	}
	run.Solution = solution
	return run, nil
}
