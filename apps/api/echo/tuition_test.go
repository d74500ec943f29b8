package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

func Test_tuitionApi_regenerateAndMeetings(t *testing.T) {
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
		MaxDurationMins: 90,
		Subjects: []user.SubjectDecl{
			{Name: "Math", TeacherID: teacher.ID, LessonsPerWeek: 2},
		},
	}); err != nil {
		t.Fatalf("UpsertStudentProfile() failed: %v", err)
	}

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	// regeneration is admin-only
	req, rec := newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", teacherToken)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var tuts []tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &tuts); err != nil {
		t.Fatalf("unmarshalling tuitions: %v", err)
	}
	if len(tuts) != 2 { // 2 lessons per week
		t.Fatalf("len(tuts) = %v; want 2", len(tuts))
	}

	// regeneration is idempotent
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", adminToken)
	app.server.ServeHTTP(rec, req)
	var again []tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("unmarshalling tuitions: %v", err)
	}
	for i := range tuts {
		if tuts[i].ID != again[i].ID {
			t.Errorf("regeneration changed ID %v -> %v", tuts[i].ID, again[i].ID)
		}
	}

	// students see their own tuitions
	req, rec = newAuthRequest(http.MethodGet, "/v1/tuitions", studentToken)
	app.server.ServeHTTP(rec, req)
	var visible []tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &visible); err != nil {
		t.Fatalf("unmarshalling tuitions: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("len(visible) = %v; want 2", len(visible))
	}

	// teacher attaches a meeting link
	tut := tuts[0]
	body := marchallObj(t, AttachMeetingRequest{Provider: "zoom"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuitions/"+tut.ID+"/meeting", teacherToken, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("attach failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var withMeeting tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &withMeeting); err != nil {
		t.Fatalf("unmarshalling tuition: %v", err)
	}
	if withMeeting.Meeting.URL == "" {
		t.Error("Meeting.URL is empty")
	}

	// links survive regeneration
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", adminToken)
	app.server.ServeHTTP(rec, req)
	req, rec = newAuthRequest(http.MethodGet, "/v1/tuitions/"+tut.ID, teacherToken)
	app.server.ServeHTTP(rec, req)
	var kept tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &kept); err != nil {
		t.Fatalf("unmarshalling tuition: %v", err)
	}
	if kept.Meeting.URL != withMeeting.Meeting.URL {
		t.Errorf("Meeting.URL = %v; want %v", kept.Meeting.URL, withMeeting.Meeting.URL)
	}

	// unknown provider is a validation error
	body = marchallObj(t, AttachMeetingRequest{Provider: "teams"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuitions/"+tut.ID+"/meeting", teacherToken, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	// detach cancels the meeting
	req, rec = newAuthRequest(http.MethodDelete, "/v1/tuitions/"+tut.ID+"/meeting", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("detach code = %v; want %v", rec.Code, http.StatusNoContent)
	}
}

func Test_tuitionApi_chargesShapedByRole(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent1 := app.createUser(t, "parent1", []string{user.RoleParent})
	parent2 := app.createUser(t, "parent2", []string{user.RoleParent})
	student1 := app.createUser(t, "student1", []string{user.RoleStudent})
	student2 := app.createUser(t, "student2", []string{user.RoleStudent})

	links := []struct{ student, parent user.User }{{student1, parent1}, {student2, parent2}}
	for _, link := range links {
		if _, err := app.usrSvc.UpsertStudentProfile(context.Background(), user.NewStudentProfile{
			UserID:          link.student.ID,
			ParentID:        link.parent.ID,
			CostPerHour:     decimal.RequireFromString("20"),
			MinDurationMins: 45,
			MaxDurationMins: 90,
		}); err != nil {
			t.Fatalf("UpsertStudentProfile() failed: %v", err)
		}
	}

	tut := tuition.Tuition{
		ID:          uuid.New().String(),
		TeacherID:   teacher.ID,
		Subject:     "Math",
		LessonIndex: 1,
		StudentIDs:  []string{student1.ID, student2.ID},
		Charges: []tuition.TemplateCharge{
			{StudentID: student1.ID, ParentID: parent1.ID, CostPerHour: decimal.RequireFromString("20")},
			{StudentID: student2.ID, ParentID: parent2.ID, CostPerHour: decimal.RequireFromString("35")},
		},
		DurationMins: 60,
		CreatedAt:    time.Now().UTC(),
	}
	if err := app.tutRepo.ReplaceAll(context.Background(), []tuition.Tuition{tut}); err != nil {
		t.Fatalf("ReplaceAll() failed: %v", err)
	}
	path := "/v1/tuitions/" + tut.ID

	// the owning teacher sees every charge
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, teacher))
	app.server.ServeHTTP(rec, req)
	var tGot tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &tGot); err != nil {
		t.Fatalf("unmarshalling tuition: %v", err)
	}
	if len(tGot.Charges) != 2 {
		t.Errorf("len(Charges) = %v; want 2", len(tGot.Charges))
	}

	// a parent sees only their own child's rate
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, parent1))
	app.server.ServeHTTP(rec, req)
	var pGot tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &pGot); err != nil {
		t.Fatalf("unmarshalling tuition: %v", err)
	}
	if len(pGot.Charges) != 1 || pGot.Charges[0].ParentID != parent1.ID {
		t.Errorf("Charges = %+v; want only parent1's", pGot.Charges)
	}

	// attending students see no rates at all
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, student1))
	app.server.ServeHTTP(rec, req)
	var sBody map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &sBody); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if _, ok := sBody["charges"]; ok {
		t.Errorf("student view leaks charges: %v", rec.Body.String())
	}
}
