package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/virtualtutor/apps/api/echo"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/session"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
	cachesvc "github.com/trezcool/virtualtutor/services/cache"
	emailsvc "github.com/trezcool/virtualtutor/services/email"
	"github.com/trezcool/virtualtutor/services/engine"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
	inmemdb "github.com/trezcool/virtualtutor/storage/database/inmem"
)

const (
	testPassword = "s3cure-Passw0rd"
	previewPNG   = "\x89PNG\r\n\x1a\nfake"
)

var (
	errCredentials        = httpErr{Error: "Could not validate credentials"}
	errStudentCredentials = httpErr{Error: "Could not validate student credentials"}
)

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

// fakeEngine stands in for the avatar engine gateway.
type fakeEngine struct {
	*httptest.Server

	mu         sync.Mutex
	status     int  // answered by every endpoint when set
	dropStream bool // abort the chat stream after its first chunk
	created    []string
	started    []string
	deleted    []string
	forwarded  []string // webrtc paths received
}

func newFakeEngine(t *testing.T) *fakeEngine {
	fe := new(fakeEngine)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/avatar/create", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := r.FormValue("name")
		fe.record(&fe.created, name)
		writeJSON(w, map[string]string{
			"status":      "success",
			"message":     fmt.Sprintf("Avatar '%s' created successfully", name),
			"avatar_name": name,
			"image_path":  "/previews/" + name + ".png",
		})
	})
	mux.HandleFunc("/api/avatar/start", func(w http.ResponseWriter, r *http.Request) {
		fe.record(&fe.started, r.FormValue("avatar_name"))
		writeJSON(w, map[string]string{"status": "success"})
	})
	mux.HandleFunc("/api/avatar/delete", func(w http.ResponseWriter, r *http.Request) {
		fe.record(&fe.deleted, r.URL.Query().Get("avatar_name"))
		writeJSON(w, map[string]string{"status": "success"})
	})
	mux.HandleFunc("/api/avatar/preview/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, previewPNG)
	})
	mux.HandleFunc("/api/avatar/webrtc/", func(w http.ResponseWriter, r *http.Request) {
		fe.record(&fe.forwarded, r.URL.Path)
		writeJSON(w, map[string]string{"sdp": "answer", "type": "answer"})
	})
	mux.HandleFunc("/api/chat/completion", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, map[string]interface{}{"response": "echo: " + fmt.Sprint(req["message"]), "model": "test-model"})
	})
	mux.HandleFunc("/api/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		fe.mu.Lock()
		drop := fe.dropStream
		fe.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Hel", "lo"} {
			_, _ = fmt.Fprintf(w, "data: {\"chunk\": %q}\n\n", chunk)
			w.(http.Flusher).Flush()
			if drop {
				panic(http.ErrAbortHandler)
			}
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})

	fe.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fe.mu.Lock()
		status := fe.status
		fe.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"detail": "engine failure"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fe.Close)
	return fe
}

func (fe *fakeEngine) record(to *[]string, v string) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	*to = append(*to, v)
}

func (fe *fakeEngine) fail(status int) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.status = status
}

func (fe *fakeEngine) calls(of *[]string) []string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]string(nil), (*of)...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type testApp struct {
	*Server

	conf       *core.Config
	engine     *fakeEngine
	mailer     *emailsvc.ConsoleServiceMock
	adminSvc   *admin.Service
	tutorSvc   *tutor.Service
	studentSvc *student.Service
	sessionSvc *session.Service
	avatarSvc  *avatar.Service
}

func newTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

func setup(t *testing.T) *testApp {
	fe := newFakeEngine(t)

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Server.LoginRateLimit = 1000
	conf.Engine.BaseURL = fe.URL
	conf.Engine.MaxVideoSize = 2 << 20
	conf.Engine.MaxAudioSize = 1 << 20

	logger := logsvc.NewNop()
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := inmemdb.Open()

	// set up services
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	engineClient := engine.NewClient(conf)
	tutorSvc := tutor.NewService(inmemdb.NewTutorRepository(db))
	app := &testApp{
		conf:       conf,
		engine:     fe,
		mailer:     mailer,
		adminSvc:   admin.NewService(inmemdb.NewAdminRepository(db)),
		tutorSvc:   tutorSvc,
		studentSvc: student.NewService(inmemdb.NewStudentRepository(db), mailer),
		sessionSvc: session.NewService(inmemdb.NewSessionRepository(db), conf),
		avatarSvc:  avatar.NewService(inmemdb.NewAvatarRepository(db), tutorSvc, engineClient, conf, logger),
	}

	// set up server
	app.Server = NewServer(Deps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		AdminSvc:     app.adminSvc,
		TutorSvc:     app.tutorSvc,
		StudentSvc:   app.studentSvc,
		SessionSvc:   app.sessionSvc,
		AvatarSvc:    app.avatarSvc,
		Engine:       engineClient,
		LoginLimiter: cachesvc.NewMemoryRateLimiterStore(conf.Server.LoginRateLimit, conf.Server.LoginRateWindow),
	})
	return app
}

// Fixtures

func (app *testApp) createAdmin(t *testing.T, email string) admin.Admin {
	adm, err := app.adminSvc.Create(context.Background(), email, testPassword)
	require.NoError(t, err)
	return adm
}

func (app *testApp) createTutor(t *testing.T, adm admin.Admin, name string) tutor.Tutor {
	tut, err := app.tutorSvc.Create(context.Background(), adm.ID, tutor.NewTutor{Name: name, TargetLanguage: "en"})
	require.NoError(t, err)
	return tut
}

func (app *testApp) createStudent(t *testing.T, tut tutor.Tutor, email string, active bool) student.Student {
	stu, err := app.studentSvc.Create(context.Background(), tut, student.NewStudent{
		Email:    email,
		Name:     "Student " + strings.Split(email, "@")[0],
		IsActive: &active,
		Password: testPassword,
	})
	require.NoError(t, err)
	return stu
}

func (app *testApp) createAvatar(t *testing.T, adm admin.Admin, tut tutor.Tutor, name string) avatar.Avatar {
	a, _, err := app.avatarSvc.Create(context.Background(), adm.ID, tut.ID, avatar.NewAvatar{
		Name:        name,
		AvatarModel: avatar.DefaultAvatarModel,
		TTSModel:    avatar.DefaultTTSModel,
		Face:        avatar.File{Filename: "face.mp4", ContentType: "video/mp4", Size: 4, Content: strings.NewReader("face")},
	})
	require.NoError(t, err)
	return a
}

func (app *testApp) startAvatar(t *testing.T, a avatar.Avatar) avatar.Avatar {
	a, err := app.avatarSvc.Start(context.Background(), a, "")
	require.NoError(t, err)
	return a
}

func getToken(t *testing.T, conf *core.Config, id int, role string) string {
	token, err := GenerateToken(conf, NewClaims(conf, id, role))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (app *testApp) adminToken(t *testing.T, adm admin.Admin) string {
	return getToken(t, app.conf, adm.ID, RoleAdmin)
}

func (app *testApp) studentToken(t *testing.T, stu student.Student) string {
	return getToken(t, app.conf, stu.ID, RoleStudent)
}

// Requests

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

func newFormRequest(method, path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req, rec := newAuthRequest(method, path, token, []byte(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, rec
}

type formFile struct {
	field, filename string
	content         []byte
}

func newMultipartRequest(t *testing.T, path, token string, fields url.Values, files ...formFile) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, rec := newAuthRequest(http.MethodPost, path, token, body.Bytes())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
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
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q failed: %v", rec.Body.String(), err)
	}
}
