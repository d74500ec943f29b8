package tuition

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var ErrForbidden = errors.New("permission denied")

type (
	// MeetingRequest describes the meeting to schedule for a tuition.
	MeetingRequest struct {
		Topic        string
		DurationMins int
	}

	// MeetingService is implemented by video meeting providers.
	MeetingService interface {
		Schedule(ctx context.Context, req MeetingRequest) (MeetingLink, error)
		Cancel(ctx context.Context, link MeetingLink) error
	}

	Service struct {
		repo        Repository
		users       user.Service
		meetingSvcs map[string]MeetingService // by provider name
		logger      core.Logger
	}
)

func NewService(repo Repository, usrSvc user.Service, meetingSvcs map[string]MeetingService, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		users:       usrSvc,
		meetingSvcs: meetingSvcs,
		logger:      logger,
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Tuition, error) {
	return svc.repo.GetTuition(ctx, id)
}

// List returns the tuitions visible to the actor.
func (svc *Service) List(ctx context.Context, actor user.User, filter Filter) ([]Tuition, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	case actor.IsParent():
		return svc.listForParent(ctx, actor.ID, filter)
	default:
		return nil, ErrForbidden
	}
	return svc.repo.FilterTuitions(ctx, filter)
}

func (svc *Service) listForParent(ctx context.Context, parentID string, filter Filter) ([]Tuition, error) {
	children, err := svc.users.ChildrenOf(ctx, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "finding children")
	}

	seen := make(map[string]bool)
	var out []Tuition
	for _, child := range children {
		f := filter
		f.StudentID = child.UserID
		tuts, err := svc.repo.FilterTuitions(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, t := range tuts {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// RegenerateAll rebuilds the tuition set from the current student profiles.
// Tuitions whose identity is unchanged keep their ID, so meeting links
// attached before regeneration are carried over.
func (svc *Service) RegenerateAll(ctx context.Context) ([]Tuition, error) {
	profiles, err := svc.users.QueryStudentProfiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}

	existing, err := svc.repo.FilterTuitions(ctx, Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying tuitions")
	}
	links := make(map[string]MeetingLink, len(existing))
	for _, t := range existing {
		if !t.Meeting.IsZero() {
			links[t.ID] = t.Meeting
		}
	}

	tuts := Generate(profiles, time.Now())
	for i, t := range tuts {
		if link, ok := links[t.ID]; ok {
			tuts[i].Meeting = link
		}
	}

	if err := svc.repo.ReplaceAll(ctx, tuts); err != nil {
		return nil, errors.Wrap(err, "replacing tuitions")
	}
	svc.logger.Info("tuitions regenerated", map[string]interface{}{"count": len(tuts)})
	return tuts, nil
}

// AttachMeeting schedules a meeting with the given provider and stores the
// resulting link on the tuition.
func (svc *Service) AttachMeeting(ctx context.Context, actor user.User, id, provider string) (Tuition, error) {
	tut, err := svc.repo.GetTuition(ctx, id)
	if err != nil {
		return Tuition{}, err
	}
	if !actor.IsAdmin() && tut.TeacherID != actor.ID {
		return Tuition{}, ErrForbidden
	}

	meetingSvc, ok := svc.meetingSvcs[provider]
	if !ok {
		return Tuition{}, core.NewValidationError(nil, core.FieldError{Field: "provider", Error: "unknown meeting provider"})
	}

	link, err := meetingSvc.Schedule(ctx, MeetingRequest{
		Topic:        tut.Subject,
		DurationMins: tut.DurationMins,
	})
	if err != nil {
		return Tuition{}, errors.Wrap(err, "scheduling meeting")
	}
	if err := svc.repo.UpdateMeetingLink(ctx, tut.ID, link); err != nil {
		return Tuition{}, errors.Wrap(err, "saving meeting link")
	}
	tut.Meeting = link
	return tut, nil
}

// DetachMeeting cancels the tuition's meeting with its provider and clears
// the stored link.
func (svc *Service) DetachMeeting(ctx context.Context, actor user.User, id string) error {
	tut, err := svc.repo.GetTuition(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && tut.TeacherID != actor.ID {
		return ErrForbidden
	}
	if tut.Meeting.IsZero() {
		return nil
	}

	if meetingSvc, ok := svc.meetingSvcs[tut.Meeting.Provider]; ok {
		if err := meetingSvc.Cancel(ctx, tut.Meeting); err != nil {
			svc.logger.Warn("cancelling meeting", err, map[string]interface{}{"tuition": tut.ID})
		}
	}
	return svc.repo.UpdateMeetingLink(ctx, tut.ID, MeetingLink{})
}
