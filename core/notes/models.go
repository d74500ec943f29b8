package notes

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("note not found")

// Type classifies what a note links to.
type Type string

const (
	TypeStudyNotes Type = "STUDY_NOTES"
	TypeHomework   Type = "HOMEWORK"
)

type (
	// Note is a study resource a teacher shares with one student.
	// Visible to the owning teacher, the student and the student's parent.
	Note struct {
		ID          string    `json:"id"`
		TeacherID   string    `json:"teacher_id"`
		StudentID   string    `json:"student_id"`
		Name        string    `json:"name"`
		Subject     string    `json:"subject"`
		Type        Type      `json:"note_type"`
		Description string    `json:"description,omitempty"`
		URL         string    `json:"url,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// NewNote contains information needed to create a Note.
	NewNote struct {
		StudentID   string `json:"student_id" validate:"required"`
		Name        string `json:"name" validate:"required,max=255"`
		Subject     string `json:"subject" validate:"required"`
		Type        Type   `json:"note_type" validate:"required,oneof=STUDY_NOTES HOMEWORK"`
		Description string `json:"description"`
		URL         string `json:"url" validate:"omitempty,url"`
	}

	// UpdateNote carries a partial update; nil fields are left untouched.
	UpdateNote struct {
		Name        *string `json:"name" validate:"omitempty,max=255"`
		Subject     *string `json:"subject"`
		Type        *Type   `json:"note_type" validate:"omitempty,oneof=STUDY_NOTES HOMEWORK"`
		Description *string `json:"description"`
		URL         *string `json:"url" validate:"omitempty,url"`
	}

	// Filter narrows note queries. Zero fields are ignored.
	Filter struct {
		TeacherID  string `query:"teacher_id"`
		StudentID  string `query:"student_id"`
		StudentIDs []string
		Subject    string `query:"subject"`
	}

	// Repository abstracts note persistence.
	// FilterNotes returns notes ordered by created_at descending.
	Repository interface {
		CreateNote(ctx context.Context, note Note) (Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
		FilterNotes(ctx context.Context, filter Filter) ([]Note, error)
		UpdateNote(ctx context.Context, note Note) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}
)

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Name = core.CleanString(nn.Name)
	nn.Subject = core.CleanString(nn.Subject)
	nn.Description = core.CleanString(nn.Description)
	return validate.Struct(nn)
}

func (un *UpdateNote) Validate(validate *validator.Validate) error {
	if un.Name != nil {
		*un.Name = core.CleanString(*un.Name)
	}
	if un.Subject != nil {
		*un.Subject = core.CleanString(*un.Subject)
	}
	if un.Description != nil {
		*un.Description = core.CleanString(*un.Description)
	}
	if err := validate.Struct(un); err != nil {
		return err
	}
	if un.IsEmpty() {
		return core.NewValidationError(errors.New("no fields provided to update"))
	}
	if un.Name != nil && *un.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "cannot be blank"})
	}
	return nil
}

func (un UpdateNote) IsEmpty() bool {
	return un.Name == nil && un.Subject == nil && un.Type == nil && un.Description == nil && un.URL == nil
}

// Apply copies the set fields onto note.
func (un UpdateNote) Apply(note Note) Note {
	if un.Name != nil {
		note.Name = *un.Name
	}
	if un.Subject != nil {
		note.Subject = *un.Subject
	}
	if un.Type != nil {
		note.Type = *un.Type
	}
	if un.Description != nil {
		note.Description = *un.Description
	}
	if un.URL != nil {
		note.URL = *un.URL
	}
	return note
}
