package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/finance"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

func Test_financeApi_tuitionLogFlow(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	student := app.createUser(t, "student", []string{user.RoleStudent})

	teacherToken := getToken(t, teacher)
	parentToken := getToken(t, parent)
	studentToken := getToken(t, student)

	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	newLog := echo.Map{
		"subject":     "Math",
		"start_time":  start,
		"end_time":    start.Add(time.Hour),
		"create_type": "CUSTOM",
		"charges": []echo.Map{
			{"student_id": student.ID, "parent_id": parent.ID, "cost": "30"},
		},
	}

	// students cannot create logs
	req, rec := newAuthRequest(http.MethodPost, "/v1/tuition-logs", studentToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

	// auth required
	req, rec = newRequest(http.MethodPost, "/v1/tuition-logs", marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	// teacher creates a log
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs", teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var created finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created log: %v", err)
	}
	if created.Status != finance.LogStatusActive {
		t.Errorf("Status = %v; want %v", created.Status, finance.LogStatusActive)
	}

	// no payment yet: parent sees it UNPAID with their share only
	req, rec = newAuthRequest(http.MethodGet, "/v1/tuition-logs", parentToken)
	app.server.ServeHTTP(rec, req)
	var parentViews []finance.ParentLogView
	if err := json.Unmarshal(rec.Body.Bytes(), &parentViews); err != nil {
		t.Fatalf("unmarshalling parent views: %v", err)
	}
	if len(parentViews) != 1 {
		t.Fatalf("len(parentViews) = %v; want 1", len(parentViews))
	}
	if parentViews[0].PaidStatus != finance.PaidStatusUnpaid {
		t.Errorf("PaidStatus = %v; want %v", parentViews[0].PaidStatus, finance.PaidStatusUnpaid)
	}
	if parentViews[0].Cost != "30.00" {
		t.Errorf("Cost = %v; want 30.00", parentViews[0].Cost)
	}

	// students see lessons without money
	req, rec = newAuthRequest(http.MethodGet, "/v1/tuition-logs", studentToken)
	app.server.ServeHTTP(rec, req)
	var raw []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshalling student views: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len(studentViews) = %v; want 1", len(raw))
	}
	for _, key := range []string{"cost", "total_cost", "paid_status", "charges"} {
		if _, ok := raw[0][key]; ok {
			t.Errorf("student view leaks %q", key)
		}
	}

	// teacher records a covering payment; log flips to PAID
	payment := echo.Map{"parent_id": parent.ID, "amount_paid": "30", "payment_date": start}
	req, rec = newAuthRequest(http.MethodPost, "/v1/payment-logs", teacherToken, marchallObj(t, payment))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/tuition-logs", parentToken)
	app.server.ServeHTTP(rec, req)
	parentViews = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &parentViews); err != nil {
		t.Fatalf("unmarshalling parent views: %v", err)
	}
	if parentViews[0].PaidStatus != finance.PaidStatusPaid {
		t.Errorf("PaidStatus = %v; want %v", parentViews[0].PaidStatus, finance.PaidStatusPaid)
	}

	// settled on both sides
	req, rec = newAuthRequest(http.MethodGet, "/v1/summary", parentToken)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, finance.ParentSummaryView{TotalDue: "0.00", CreditBalance: "0.00"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/summary", teacherToken)
	app.server.ServeHTTP(rec, req)
	var teacherSummary finance.TeacherSummaryView
	if err := json.Unmarshal(rec.Body.Bytes(), &teacherSummary); err != nil {
		t.Fatalf("unmarshalling teacher summary: %v", err)
	}
	if teacherSummary.TotalOwed != "0.00" {
		t.Errorf("TotalOwed = %v; want 0.00", teacherSummary.TotalOwed)
	}
	if teacherSummary.UnpaidLessons != 0 {
		t.Errorf("UnpaidLessons = %v; want 0", teacherSummary.UnpaidLessons)
	}
}

func Test_financeApi_scheduledLog(t *testing.T) {
	app := setup(t)

	admin := app.createUser(t, "admin", []string{user.RoleAdmin})
	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	intruder := app.createUser(t, "intruder", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	student := app.createUser(t, "student", []string{user.RoleStudent})

	if _, err := app.usrSvc.UpsertStudentProfile(context.Background(), user.NewStudentProfile{
		UserID:          student.ID,
		ParentID:        parent.ID,
		CostPerHour:     decimal.RequireFromString("20"),
		MinDurationMins: 45,
		MaxDurationMins: 90,
		Subjects: []user.SubjectDecl{
			{Name: "Math", TeacherID: teacher.ID, LessonsPerWeek: 1},
		},
	}); err != nil {
		t.Fatalf("UpsertStudentProfile() failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/tuitions/regenerate", getToken(t, admin))
	app.server.ServeHTTP(rec, req)
	var tuts []tuition.Tuition
	if err := json.Unmarshal(rec.Body.Bytes(), &tuts); err != nil {
		t.Fatalf("unmarshalling tuitions: %v", err)
	}
	if len(tuts) != 1 {
		t.Fatalf("len(tuts) = %v; want 1", len(tuts))
	}

	// 90 minutes at 20/h snapshots a 30.00 charge
	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	newLog := echo.Map{
		"tuition_id":  tuts[0].ID,
		"start_time":  start,
		"end_time":    start.Add(90 * time.Minute),
		"create_type": "SCHEDULED",
	}

	// only the template's teacher may log against it
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs", getToken(t, intruder), marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("intruder create code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs", getToken(t, teacher), marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var created finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created log: %v", err)
	}
	if created.Subject != "Math" || created.TuitionID != tuts[0].ID {
		t.Errorf("log = %+v", created)
	}
	if len(created.Charges) != 1 {
		t.Fatalf("len(Charges) = %v; want 1", len(created.Charges))
	}
	charge := created.Charges[0]
	if charge.StudentID != student.ID || charge.ParentID != parent.ID {
		t.Errorf("charge = %+v", charge)
	}
	if !charge.Cost.Equal(decimal.RequireFromString("30")) {
		t.Errorf("Cost = %v; want 30", charge.Cost)
	}
}

func Test_financeApi_retrieveShapedByRole(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent1 := app.createUser(t, "parent1", []string{user.RoleParent})
	parent2 := app.createUser(t, "parent2", []string{user.RoleParent})
	student1 := app.createUser(t, "student1", []string{user.RoleStudent})
	student2 := app.createUser(t, "student2", []string{user.RoleStudent})

	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	newLog := echo.Map{
		"subject":     "Math",
		"start_time":  start,
		"end_time":    start.Add(time.Hour),
		"create_type": "CUSTOM",
		"charges": []echo.Map{
			{"student_id": student1.ID, "parent_id": parent1.ID, "cost": "30"},
			{"student_id": student2.ID, "parent_id": parent2.ID, "cost": "55"},
		},
	}
	req, rec := newAuthRequest(http.MethodPost, "/v1/tuition-logs", getToken(t, teacher), marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var created finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created log: %v", err)
	}
	path := "/v1/tuition-logs/" + created.ID

	// teacher gets the full breakdown
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, teacher))
	app.server.ServeHTTP(rec, req)
	var tView finance.TeacherLogView
	if err := json.Unmarshal(rec.Body.Bytes(), &tView); err != nil {
		t.Fatalf("unmarshalling TeacherLogView: %v", err)
	}
	if len(tView.Charges) != 2 || tView.TotalCost != "85.00" {
		t.Errorf("teacher view = %+v", tView)
	}

	// a parent sees only their own share, never the other parent's charges
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, parent1))
	app.server.ServeHTTP(rec, req)
	var pBody map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &pBody); err != nil {
		t.Fatalf("unmarshalling parent body: %v", err)
	}
	if pBody["cost"] != "30.00" {
		t.Errorf("cost = %v; want 30.00", pBody["cost"])
	}
	for _, key := range []string{"charges", "total_cost"} {
		if _, ok := pBody[key]; ok {
			t.Errorf("parent view leaks %q", key)
		}
	}
	body := rec.Body.String()
	if strings.Contains(body, "55.00") || strings.Contains(body, parent2.ID) {
		t.Errorf("parent view leaks the other parent's charge: %v", body)
	}

	// students see no money at all
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, student1))
	app.server.ServeHTTP(rec, req)
	var sBody map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &sBody); err != nil {
		t.Fatalf("unmarshalling student body: %v", err)
	}
	for _, key := range []string{"cost", "total_cost", "charges", "paid_status"} {
		if _, ok := sBody[key]; ok {
			t.Errorf("student view leaks %q", key)
		}
	}
}

func Test_financeApi_voidAndCorrect(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	other := app.createUser(t, "other", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	student := app.createUser(t, "student", []string{user.RoleStudent})

	teacherToken := getToken(t, teacher)
	otherToken := getToken(t, other)

	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	newLog := echo.Map{
		"subject":     "Math",
		"start_time":  start,
		"end_time":    start.Add(time.Hour),
		"create_type": "CUSTOM",
		"charges": []echo.Map{
			{"student_id": student.ID, "parent_id": parent.ID, "cost": "30"},
		},
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/tuition-logs", teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	var created finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created log: %v", err)
	}

	// other teachers cannot touch it
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs/"+created.ID+"/void", otherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign void code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	// correction voids the old log and links the replacement
	newLog["end_time"] = start.Add(90 * time.Minute)
	req, rec = newAuthRequest(http.MethodPut, "/v1/tuition-logs/"+created.ID, teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correct failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var corrected finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &corrected); err != nil {
		t.Fatalf("unmarshalling corrected log: %v", err)
	}
	if corrected.CorrectedFromID != created.ID {
		t.Errorf("CorrectedFromID = %v; want %v", corrected.CorrectedFromID, created.ID)
	}

	// the old log is now VOID; voiding it again conflicts
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs/"+created.ID+"/void", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("double void code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// the replacement can be voided once
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs/"+corrected.ID+"/void", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("void code = %v; want %v", rec.Code, http.StatusNoContent)
	}
}

func Test_financeApi_summaryAdminDispatch(t *testing.T) {
	app := setup(t)

	admin := app.createUser(t, "admin", []string{user.RoleAdmin})
	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	adminToken := getToken(t, admin)

	// admin must pick a side
	req, rec := newAuthRequest(http.MethodGet, "/v1/summary", adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no-param summary code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/summary?teacher_id="+teacher.ID, adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("teacher summary code = %v; body %v", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/summary?parent_id="+parent.ID, adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("parent summary code = %v; body %v", rec.Code, rec.Body.String())
	}
}

func Test_financeApi_customLogSubjectChecked(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent := app.createUser(t, "parent", []string{user.RoleParent})
	student := app.createUser(t, "student", []string{user.RoleStudent})
	teacherToken := getToken(t, teacher)

	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	newLog := echo.Map{
		"subject":     "Alchemy",
		"start_time":  start,
		"end_time":    start.Add(time.Hour),
		"create_type": "CUSTOM",
		"charges": []echo.Map{
			{"student_id": student.ID, "parent_id": parent.ID, "cost": "30"},
		},
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/tuition-logs", teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown subject code = %v; body %v", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unknown subject") {
		t.Errorf("body = %v", rec.Body.String())
	}

	newLog["subject"] = "Math"
	req, rec = newAuthRequest(http.MethodPost, "/v1/tuition-logs", teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	// corrections go through the same check
	var created finance.TuitionLog
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created log: %v", err)
	}
	newLog["subject"] = "Alchemy"
	req, rec = newAuthRequest(http.MethodPut, "/v1/tuition-logs/"+created.ID, teacherToken, marchallObj(t, newLog))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("correct with unknown subject code = %v; body %v", rec.Code, rec.Body.String())
	}
}

func Test_financeApi_paymentsCarryParentCurrency(t *testing.T) {
	app := setup(t)

	teacher := app.createUser(t, "teacher", []string{user.RoleTeacher})
	parent1 := app.createUser(t, "parent1", []string{user.RoleParent})
	parent2 := app.createUser(t, "parent2", []string{user.RoleParent})
	teacherToken := getToken(t, teacher)

	ctx := context.Background()
	parent1.Currency = "EUR"
	if _, err := app.usrRepo.UpdateUser(ctx, parent1, nil); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}
	parent2.Currency = "KES"
	if _, err := app.usrRepo.UpdateUser(ctx, parent2, nil); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}

	when := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, p := range []user.User{parent1, parent2, parent1} {
		payment := echo.Map{"parent_id": p.ID, "amount_paid": "10", "payment_date": when}
		req, rec := newAuthRequest(http.MethodPost, "/v1/payment-logs", teacherToken, marchallObj(t, payment))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("payment failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/payment-logs", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var views []finance.PaymentView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshalling payment views: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("len(views) = %v; want 3", len(views))
	}
	byParent := map[string]string{parent1.Username: "EUR", parent2.Username: "KES"}
	for _, v := range views {
		if want := byParent[v.Counterparty]; v.Currency != want {
			t.Errorf("Currency for %s = %q; want %q", v.Counterparty, v.Currency, want)
		}
	}
}
