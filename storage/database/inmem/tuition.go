package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/tuition"
)

type tuitionRepository struct {
	db *DB
}

func NewTuitionRepository(db *DB) tuition.Repository {
	return &tuitionRepository{db: db}
}

func (repo *tuitionRepository) GetTuition(ctx context.Context, id string) (tuition.Tuition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tut, ok := repo.db.tuitions[id]; ok {
		return *tut, nil
	}
	return tuition.Tuition{}, tuition.ErrNotFound
}

func (repo *tuitionRepository) FilterTuitions(ctx context.Context, filter tuition.Filter) ([]tuition.Tuition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var out []tuition.Tuition
	for _, tut := range repo.db.tuitions {
		if filter.TeacherID != "" && tut.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && !tut.HasStudent(filter.StudentID) {
			continue
		}
		if filter.Subject != "" && tut.Subject != filter.Subject {
			continue
		}
		out = append(out, *tut)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (repo *tuitionRepository) ReplaceAll(ctx context.Context, tuts []tuition.Tuition) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.tuitions = make(map[string]*tuition.Tuition, len(tuts))
	for i := range tuts {
		tut := tuts[i]
		repo.db.tuitions[tut.ID] = &tut
	}
	return nil
}

func (repo *tuitionRepository) UpdateMeetingLink(ctx context.Context, id string, link tuition.MeetingLink) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tut, ok := repo.db.tuitions[id]
	if !ok {
		return tuition.ErrNotFound
	}
	tut.Meeting = link
	return nil
}
