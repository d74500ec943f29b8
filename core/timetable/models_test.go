package timetable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestNewRunValidate(t *testing.T) {
	validate := validator.New()
	solution := json.RawMessage(`[{"id": "t1", "start_time": "2021-03-01T10:00:00Z", "end_time": "2021-03-01T11:00:00Z"}]`)

	tests := []struct {
		name    string
		run     NewRun
		wantErr bool
	}{
		{name: "success with solution", run: NewRun{Status: RunStatusSuccess, Solution: solution}},
		{name: "manual with solution", run: NewRun{Status: RunStatusManual, Solution: solution}},
		{name: "failed without solution", run: NewRun{Status: RunStatusFailed, Notes: "solver timeout"}},
		{name: "empty solution array", run: NewRun{Status: RunStatusSuccess, Solution: json.RawMessage(`[]`)}},
		{name: "missing status", run: NewRun{Solution: solution}, wantErr: true},
		{name: "unknown status", run: NewRun{Status: "LOL", Solution: solution}, wantErr: true},
		{name: "success without solution", run: NewRun{Status: RunStatusSuccess}, wantErr: true},
		{name: "solution not an array", run: NewRun{Status: RunStatusSuccess, Solution: json.RawMessage(`{"id": "t1"}`)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunEntries(t *testing.T) {
	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)

	run := Run{
		Status: RunStatusSuccess,
		// solver payloads may carry extra fields; they are ignored
		Solution: json.RawMessage(`[
			{"id": "t1", "start_time": "2021-03-01T10:00:00Z", "end_time": "2021-03-01T11:00:00Z", "room": "A2"},
			{"id": "t2", "start_time": "2021-03-01T11:00:00Z", "end_time": "2021-03-01T12:00:00Z"}
		]`),
	}
	entries, err := run.Entries()
	if err != nil {
		t.Fatalf("Entries() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %v; want 2", len(entries))
	}
	if entries[0].TuitionID != "t1" || !entries[0].StartTime.Equal(start) {
		t.Errorf("entries[0] = %+v", entries[0])
	}

	if entries, err = (Run{Status: RunStatusFailed}).Entries(); err != nil || entries != nil {
		t.Errorf("empty solution: entries = %v, err = %v", entries, err)
	}

	if _, err = (Run{Solution: json.RawMessage(`lol`)}).Entries(); err == nil {
		t.Error("garbage solution: expected an error")
	}
}
