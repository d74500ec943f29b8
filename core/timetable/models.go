package timetable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("timetable run not found")

type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusManual  RunStatus = "MANUAL"
)

type (
	// Run is one timetable produced by the external solver, or a MANUAL
	// timetable entered by hand. The solution blob is stored as-is.
	Run struct {
		ID        string          `json:"id"`
		Status    RunStatus       `json:"status"`
		Solution  json.RawMessage `json:"solution,omitempty"`
		Notes     string          `json:"notes,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// SolutionEntry is one scheduled slot inside a run's solution blob.
	// Solver-specific fields beyond these three are ignored.
	SolutionEntry struct {
		TuitionID string    `json:"id"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	}

	// NewRun contains information needed to record a Run.
	NewRun struct {
		Status   RunStatus       `json:"status" validate:"required,oneof=SUCCESS FAILED MANUAL"`
		Solution json.RawMessage `json:"solution"`
		Notes    string          `json:"notes"`
	}

	Repository interface {
		CreateRun(ctx context.Context, run Run) (Run, error)
		GetRun(ctx context.Context, id string) (Run, error)
		// QueryRuns returns runs ordered by created_at descending.
		QueryRuns(ctx context.Context) ([]Run, error)
		// LatestRun returns the most recent run with one of the given
		// statuses, or ErrNotFound.
		LatestRun(ctx context.Context, statuses ...RunStatus) (Run, error)
	}
)

func (nr *NewRun) Validate(validate *validator.Validate) error {
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if nr.Status != RunStatusFailed {
		var entries []SolutionEntry
		if err := json.Unmarshal(nr.Solution, &entries); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "solution", Error: "must be a JSON array of scheduled slots"})
		}
	}
	return nil
}

// Entries decodes the scheduled slots out of the run's solution blob.
func (r Run) Entries() ([]SolutionEntry, error) {
	if len(r.Solution) == 0 {
		return nil, nil
	}
	var entries []SolutionEntry
	if err := json.Unmarshal(r.Solution, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding solution")
	}
	return entries, nil
}
