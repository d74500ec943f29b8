package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/timetable"
)

type timetableRepository struct {
	db *DB
}

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) query() []timetable.Run {
	runs := make([]timetable.Run, 0, len(repo.db.runs))
	for _, r := range repo.db.runs {
		runs = append(runs, *r)
	}
	// created_at descending, ID as tiebreak
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

func (repo *timetableRepository) CreateRun(ctx context.Context, run timetable.Run) (timetable.Run, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.runs[run.ID] = &run
	return run, nil
}

func (repo *timetableRepository) GetRun(ctx context.Context, id string) (timetable.Run, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if run, ok := repo.db.runs[id]; ok {
		return *run, nil
	}
	return timetable.Run{}, timetable.ErrNotFound
}

func (repo *timetableRepository) QueryRuns(ctx context.Context) ([]timetable.Run, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *timetableRepository) LatestRun(ctx context.Context, statuses ...timetable.RunStatus) (timetable.Run, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, run := range repo.query() {
		for _, status := range statuses {
			if run.Status == status {
				return run, nil
			}
		}
	}
	return timetable.Run{}, timetable.ErrNotFound
}
