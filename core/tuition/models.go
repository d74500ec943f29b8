package tuition

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/user"
)

var ErrNotFound = errors.New("tuition not found")

type (
	// TemplateCharge is one student's hourly rate within a tuition template.
	TemplateCharge struct {
		StudentID   string          `json:"student_id"`
		ParentID    string          `json:"parent_id"`
		CostPerHour decimal.Decimal `json:"cost_per_hour"`
	}

	// MeetingLink points to an external video meeting for a tuition.
	// The zero value means no meeting is attached.
	MeetingLink struct {
		Provider   string `json:"provider,omitempty"` // "zoom" or "gcal"
		URL        string `json:"url,omitempty"`
		ExternalID string `json:"external_id,omitempty"`
	}

	// Tuition is a recurring lesson slot derived from student profiles.
	// Its ID is a pure function of (subject, lesson index, teacher, students)
	// so regeneration yields the same IDs and attached meeting links survive.
	Tuition struct {
		ID           string           `json:"id"`
		TeacherID    string           `json:"teacher_id"`
		Subject      string           `json:"subject"`
		LessonIndex  int              `json:"lesson_index"` // 1-based within the week
		StudentIDs   []string         `json:"student_ids"`  // sorted
		Charges      []TemplateCharge `json:"charges,omitempty"`
		DurationMins int              `json:"duration_mins"`
		Meeting      MeetingLink      `json:"meeting"`
		CreatedAt    time.Time        `json:"created_at"`
	}

	// Filter narrows tuition queries. Zero fields are ignored.
	Filter struct {
		TeacherID string `query:"teacher_id"`
		StudentID string `query:"student_id"`
		Subject   string `query:"subject"`
	}

	// Repository abstracts tuition persistence.
	//
	// ReplaceAll upserts the given set and removes every tuition not in it,
	// inside a single transaction.
	Repository interface {
		GetTuition(ctx context.Context, id string) (Tuition, error)
		FilterTuitions(ctx context.Context, filter Filter) ([]Tuition, error)
		ReplaceAll(ctx context.Context, tuts []Tuition) error
		UpdateMeetingLink(ctx context.Context, id string, link MeetingLink) error
	}
)

func (m MeetingLink) IsZero() bool { return m == MeetingLink{} }

func (t Tuition) HasStudent(id string) bool {
	for _, sid := range t.StudentIDs {
		if sid == id {
			return true
		}
	}
	return false
}

func (t Tuition) Duration() time.Duration {
	return time.Duration(t.DurationMins) * time.Minute
}

// ViewFor returns a copy of t shaped for the viewer: the owning teacher and
// admins see the full charge list, parents only the charges billed to them,
// everyone else none.
func (t Tuition) ViewFor(viewer user.User) Tuition {
	if viewer.IsAdmin() || t.TeacherID == viewer.ID {
		return t
	}
	out := t
	out.Charges = nil
	if viewer.IsParent() {
		for _, c := range t.Charges {
			if c.ParentID == viewer.ID {
				out.Charges = append(out.Charges, c)
			}
		}
	}
	return out
}
