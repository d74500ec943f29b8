package timetable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

var ErrForbidden = errors.New("permission denied")

type (
	// ScheduledLesson pairs a solver slot with its tuition template. This is
	// what teachers log SCHEDULED lessons from.
	ScheduledLesson struct {
		TuitionID   string              `json:"tuition_id"`
		Subject     string              `json:"subject"`
		LessonIndex int                 `json:"lesson_index"`
		TeacherID   string              `json:"teacher_id"`
		StudentIDs  []string            `json:"student_ids"`
		StartTime   time.Time           `json:"start_time"`
		EndTime     time.Time           `json:"end_time"`
		Meeting     tuition.MeetingLink `json:"meeting"`
	}

	// TuitionSource lists the current tuition templates.
	TuitionSource interface {
		List(ctx context.Context, actor user.User, filter tuition.Filter) ([]tuition.Tuition, error)
	}

	Service struct {
		repo     Repository
		tuitions TuitionSource
		logger   core.Logger
	}
)

func NewService(repo Repository, tuitions TuitionSource, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		tuitions: tuitions,
		logger:   logger,
	}
}

// RecordRun stores a solver (or manual) timetable. Admins only.
func (svc *Service) RecordRun(ctx context.Context, actor user.User, nr NewRun) (Run, error) {
	if !actor.IsAdmin() {
		return Run{}, ErrForbidden
	}
	run := Run{
		ID:        uuid.New().String(),
		Status:    nr.Status,
		Solution:  nr.Solution,
		Notes:     nr.Notes,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateRun(ctx, run)
}

func (svc *Service) Runs(ctx context.Context, actor user.User) ([]Run, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return svc.repo.QueryRuns(ctx)
}

// LatestTimetable returns the most recent usable run. MANUAL overrides and
// solver successes both qualify; FAILED runs never do.
func (svc *Service) LatestTimetable(ctx context.Context) (Run, error) {
	return svc.repo.LatestRun(ctx, RunStatusSuccess, RunStatusManual)
}

// ScheduledLessons joins the latest timetable's slots with the actor's
// visible tuition templates. Slots referencing a tuition the actor cannot
// see are dropped; slots referencing no known tuition are logged and dropped.
func (svc *Service) ScheduledLessons(ctx context.Context, actor user.User) ([]ScheduledLesson, error) {
	run, err := svc.LatestTimetable(ctx)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return []ScheduledLesson{}, nil
		}
		return nil, err
	}
	entries, err := run.Entries()
	if err != nil {
		return nil, err
	}

	tuts, err := svc.tuitions.List(ctx, actor, tuition.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing tuitions")
	}
	byID := make(map[string]tuition.Tuition, len(tuts))
	for _, t := range tuts {
		byID[t.ID] = t
	}

	lessons := make([]ScheduledLesson, 0, len(entries))
	for _, e := range entries {
		tut, ok := byID[e.TuitionID]
		if !ok {
			if actor.IsAdmin() {
				svc.logger.Warn("timetable slot references unknown tuition", map[string]interface{}{"run": run.ID, "tuition": e.TuitionID})
			}
			continue
		}
		lessons = append(lessons, ScheduledLesson{
			TuitionID:   tut.ID,
			Subject:     tut.Subject,
			LessonIndex: tut.LessonIndex,
			TeacherID:   tut.TeacherID,
			StudentIDs:  tut.StudentIDs,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Meeting:     tut.Meeting,
		})
	}
	return lessons, nil
}
