package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/notes"
)

type notesRepository struct {
	db *DB
}

func NewNotesRepository(db *DB) notes.Repository {
	return &notesRepository{db: db}
}

func (repo *notesRepository) CreateNote(ctx context.Context, note notes.Note) (notes.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.notes[note.ID] = &note
	return note, nil
}

func (repo *notesRepository) GetNote(ctx context.Context, id string) (notes.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if note, ok := repo.db.notes[id]; ok {
		return *note, nil
	}
	return notes.Note{}, notes.ErrNotFound
}

func (repo *notesRepository) FilterNotes(ctx context.Context, filter notes.Filter) ([]notes.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var out []notes.Note
	for _, note := range repo.db.notes {
		if filter.TeacherID != "" && note.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && note.StudentID != filter.StudentID {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsString(filter.StudentIDs, note.StudentID) {
			continue
		}
		if filter.Subject != "" && note.Subject != filter.Subject {
			continue
		}
		out = append(out, *note)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (repo *notesRepository) UpdateNote(ctx context.Context, note notes.Note) (notes.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notes[note.ID]; !ok {
		return notes.Note{}, notes.ErrNotFound
	}
	repo.db.notes[note.ID] = &note
	return note, nil
}

func (repo *notesRepository) DeleteNote(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notes[id]; !ok {
		return notes.ErrNotFound
	}
	delete(repo.db.notes, id)
	return nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
