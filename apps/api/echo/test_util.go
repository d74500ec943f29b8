package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/finance"
	"github.com/trezcool/darasa/core/notes"
	"github.com/trezcool/darasa/core/timetable"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	meetingsvc "github.com/trezcool/darasa/services/meeting"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server  Server
	conf    *core.Config
	usrSvc  user.Service
	usrRepo user.Repository
	finRepo finance.Repository
	tutRepo tuition.Repository
	ttbRepo timetable.Repository
	ntsRepo notes.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Darasa",
		SecretKey: "secret",
		Subjects:  []string{"Math", "Physics"},
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	ConfigureAuth(conf)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	finRepo := inmemdb.NewFinanceRepository(db)
	tutRepo := inmemdb.NewTuitionRepository(db)
	ttbRepo := inmemdb.NewTimetableRepository(db)
	ntsRepo := inmemdb.NewNotesRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, logger, conf)
	tutSvc := tuition.NewService(tutRepo, usrSvc, map[string]tuition.MeetingService{
		meetingsvc.Zoom: meetingsvc.NewDummyService(meetingsvc.Zoom),
	}, logger)
	finSvc := finance.NewService(finRepo, usrSvc, tutSvc, logger, conf)
	ttbSvc := timetable.NewService(ttbRepo, tutSvc, logger)
	ntsSvc := notes.NewService(ntsRepo, usrSvc, logger, conf)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		FinanceSvc:     finSvc,
		TuitionSvc:     tutSvc,
		TimetableSvc:   ttbSvc,
		NotesSvc:       ntsSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testApp{
		server:  server,
		conf:    conf,
		usrSvc:  usrSvc,
		usrRepo: usrRepo,
		finRepo: finRepo,
		tutRepo: tutRepo,
		ttbRepo: ttbRepo,
		ntsRepo: ntsRepo,
	}
}

func (app *testApp) createUser(t *testing.T, name string, roles []string) user.User {
	t.Helper()

	usr := user.User{
		ID:       uuid.New().String(),
		Name:     name,
		Username: name,
		Email:    name + "@darasa.test",
		IsActive: true,
		Roles:    roles,
	}
	if err := usr.SetPassword("T35t@pa55w0rd"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := app.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
