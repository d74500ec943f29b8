package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/timetable"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

func Test_timetableApi_runsAndLessons(t *testing.T) {
	app := setup(t)

	admin := app.createUser(t, "admin", []string{user.RoleAdmin})
	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	student := app.createUser(t, "student", []string{user.RoleStudent})

	if _, err := app.usrSvc.UpsertStudentProfile(context.Background(), user.NewStudentProfile{
		UserID:          student.ID,
		ParentID:        parent.ID,
		CostPerHour:     decimal.RequireFromString("20"),
		MinDurationMins: 45,
		MaxDurationMins: 60,
		Subjects: []user.SubjectDecl{
			{Name: "Math", TeacherID: teacher.ID, LessonsPerWeek: 1},
		},
	}); err != nil {
		t.Fatalf("UpsertStudentProfile() failed: %v", err)
	}

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	req, rec := newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", adminToken)
	app.server.ServeHTTP(rec, req)
	var tuts []tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &tuts); err != nil {
		t.Fatalf("unmarshalling tuitions: %v", err)
	}
	if len(tuts) != 1 {
		t.Fatalf("len(tuts) = %v; want 1", len(tuts))
	}

	// no usable timetable yet
	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/runs/latest", adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("latest run code = %v; want %v", rec.Code, http.StatusNotFound)
	}

	// recording runs is admin-only
	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	solution := marchallObj(t, []timetable.SolutionEntry{
		{TuitionID: tuts[0].ID, StartTime: start, EndTime: start.Add(time.Hour)},
	})
	newRun := echo.Map{"status": "SUCCESS", "solution": json.RawMessage(solution)}

	req, rec = newAuthRequest(http.MethodPost, "/v1/timetable/runs", teacherToken, marchallObj(t, newRun))
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/timetable/runs", adminToken, marchallObj(t, newRun))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record run failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	// a SUCCESS run without entries for hidden tuitions: students see theirs
	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/lessons", studentToken)
	app.server.ServeHTTP(rec, req)
	var lessons []timetable.ScheduledLesson
	if err := json.Unmarshal(rec.Body.Bytes(), &lessons); err != nil {
		t.Fatalf("unmarshalling lessons: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("len(lessons) = %v; want 1", len(lessons))
	}
	if !lessons[0].StartTime.Equal(start) {
		t.Errorf("StartTime = %v; want %v", lessons[0].StartTime, start)
	}

	// a later FAILED run does not replace the usable timetable
	failedRun := echo.Map{"status": "FAILED", "notes": "solver timeout"}
	req, rec = newAuthRequest(http.MethodPost, "/v1/timetable/runs", adminToken, marchallObj(t, failedRun))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record failed run! code = %v; body %v", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/lessons", studentToken)
	app.server.ServeHTTP(rec, req)
	lessons = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &lessons); err != nil {
		t.Fatalf("unmarshalling lessons: %v", err)
	}
	if len(lessons) != 1 {
		t.Errorf("len(lessons) = %v; want 1", len(lessons))
	}

	// listing runs is admin-only
	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/runs", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("runs code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/runs", adminToken)
	app.server.ServeHTTP(rec, req)
	var runs []timetable.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("unmarshalling runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %v; want 2", len(runs))
	}

	// the latest usable run skips the FAILED one
	req, rec = newAuthRequest(http.MethodGet, "/v1/timetable/runs/latest", adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest run failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var latest timetable.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &latest); err != nil {
		t.Fatalf("unmarshalling latest run: %v", err)
	}
	if latest.Status != timetable.RunStatusSuccess {
		t.Errorf("latest Status = %v; want %v", latest.Status, timetable.RunStatusSuccess)
	}
}
