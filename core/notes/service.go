package notes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var ErrForbidden = errors.New("permission denied")

type Service struct {
	repo   Repository
	users  user.Service
	logger core.Logger
	conf   *core.Config
}

func NewService(repo Repository, usrSvc user.Service, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:   repo,
		users:  usrSvc,
		logger: logger,
		conf:   conf,
	}
}

// Create records a note against a student. Teachers only; the owning
// teacher is always the actor, never taken from the payload.
func (svc *Service) Create(ctx context.Context, actor user.User, nn NewNote) (Note, error) {
	if !actor.IsTeacher() {
		return Note{}, ErrForbidden
	}
	if !svc.conf.IsKnownSubject(nn.Subject) {
		return Note{}, core.NewValidationError(nil, core.FieldError{Field: "subject", Error: "unknown subject"})
	}

	student, err := svc.users.GetByID(ctx, nn.StudentID)
	if err != nil {
		return Note{}, errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return Note{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "not a student account"})
	}

	note := Note{
		ID:          uuid.New().String(),
		TeacherID:   actor.ID,
		StudentID:   nn.StudentID,
		Name:        nn.Name,
		Subject:     nn.Subject,
		Type:        nn.Type,
		Description: nn.Description,
		URL:         nn.URL,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateNote(ctx, note)
}

// Get returns one note if the actor may read it. Hidden notes surface as
// not found so their existence is not leaked.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Note, error) {
	note, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	ok, err := svc.canRead(ctx, actor, note)
	if err != nil {
		return Note{}, err
	}
	if !ok {
		return Note{}, ErrNotFound
	}
	return note, nil
}

// List returns the notes visible to the actor, newest first.
func (svc *Service) List(ctx context.Context, actor user.User, filter Filter) ([]Note, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	case actor.IsParent():
		children, err := svc.users.ChildrenOf(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "finding children")
		}
		if len(children) == 0 {
			return nil, nil
		}
		filter.StudentIDs = make([]string, 0, len(children))
		for _, child := range children {
			filter.StudentIDs = append(filter.StudentIDs, child.UserID)
		}
	default:
		return nil, ErrForbidden
	}
	return svc.repo.FilterNotes(ctx, filter)
}

// Update applies a partial update. Owning teacher or admin only.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, un UpdateNote) (Note, error) {
	note, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if !actor.IsAdmin() && note.TeacherID != actor.ID {
		return Note{}, ErrForbidden
	}
	if un.Subject != nil && !svc.conf.IsKnownSubject(*un.Subject) {
		return Note{}, core.NewValidationError(nil, core.FieldError{Field: "subject", Error: "unknown subject"})
	}
	return svc.repo.UpdateNote(ctx, un.Apply(note))
}

// Delete removes a note. Owning teacher or admin only.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	note, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && note.TeacherID != actor.ID {
		svc.logger.Warn("blocked note delete", map[string]interface{}{"note": note.ID, "user": actor.ID})
		return ErrForbidden
	}
	return svc.repo.DeleteNote(ctx, id)
}

func (svc *Service) canRead(ctx context.Context, actor user.User, note Note) (bool, error) {
	if actor.IsAdmin() || note.TeacherID == actor.ID || note.StudentID == actor.ID {
		return true, nil
	}
	if actor.IsParent() {
		children, err := svc.users.ChildrenOf(ctx, actor.ID)
		if err != nil {
			return false, errors.Wrap(err, "finding children")
		}
		for _, child := range children {
			if child.UserID == note.StudentID {
				return true, nil
			}
		}
	}
	return false, nil
}
