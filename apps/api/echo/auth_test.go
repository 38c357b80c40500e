package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/virtualtutor/apps/api/echo"
	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/student"
	cachesvc "github.com/trezcool/virtualtutor/services/cache"
	"github.com/trezcool/virtualtutor/services/engine"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
)

func Test_authApi_adminLogin(t *testing.T) {
	app := setup(t)
	app.createAdmin(t, "admin@test.cd")

	errLogin := marchallObj(t, httpErr{Error: "Incorrect email or password"})

	tests := []httpTest{
		{name: "Required fields", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{
			"username": "this field is required",
			"password": "this field is required",
		})},
		{name: "Unknown email", body: marchallObj(t, LoginRequest{Username: "nobody@test.cd", Password: testPassword}), wantCode: http.StatusBadRequest, wantData: errLogin},
		{name: "Wrong password", body: marchallObj(t, LoginRequest{Username: "admin@test.cd", Password: "wrong-one"}), wantCode: http.StatusBadRequest, wantData: errLogin},
		{name: "Success (case insensitive email)", body: marchallObj(t, LoginRequest{Username: " ADMIN@test.cd ", Password: testPassword}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				decode(t, rec, &resp)
				assert.Equal(t, "bearer", resp.TokenType)
				assert.NotEmpty(t, resp.AccessToken)
			}
		})
	}
}

func Test_authApi_adminLogin_passwordGrantForm(t *testing.T) {
	app := setup(t)
	app.createAdmin(t, "admin@test.cd")

	req, rec := newFormRequest(http.MethodPost, "/api/auth/login", "", url.Values{
		"grant_type": {"password"},
		"username":   {"admin@test.cd"},
		"password":   {testPassword},
	})
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	decode(t, rec, &resp)

	// the issued token opens admin routes
	req, rec = newAuthRequest(http.MethodGet, "/api/tutors", resp.AccessToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
}

func Test_authApi_studentLogin(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	tut := app.createTutor(t, adm, "English")
	app.createStudent(t, tut, "alice@test.cd", true)
	app.createStudent(t, tut, "bob@test.cd", false)

	tests := []httpTest{
		{name: "Wrong password", body: marchallObj(t, LoginRequest{Username: "alice@test.cd", Password: "nope-nope"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Incorrect email or password"})},
		{name: "Admins are not students", body: marchallObj(t, LoginRequest{Username: "admin@test.cd", Password: testPassword}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Incorrect email or password"})},
		{name: "Inactive student", body: marchallObj(t, LoginRequest{Username: "bob@test.cd", Password: testPassword}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Student account is inactive"})},
		{name: "Success", body: marchallObj(t, LoginRequest{Username: "alice@test.cd", Password: testPassword}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/student/auth/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authenticator_roles(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	tut := app.createTutor(t, adm, "English")
	alice := app.createStudent(t, tut, "alice@test.cd", true)
	bob := app.createStudent(t, tut, "bob@test.cd", true)

	bobToken := app.studentToken(t, bob)
	inactive := false
	_, err := app.studentSvc.Update(context.Background(), bob, student.UpdateStudent{IsActive: &inactive})
	require.NoError(t, err)

	expiredConf := *app.conf
	expiredConf.Server.JWTExpirationDelta = -time.Hour
	expired := getToken(t, &expiredConf, adm.ID, RoleAdmin)

	tests := []httpTest{
		{name: "Admin: no token", path: "/api/tutors", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errCredentials)},
		{name: "Admin: garbage token", path: "/api/tutors", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errCredentials)},
		{name: "Admin: expired token", path: "/api/tutors", token: expired, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errCredentials)},
		{name: "Admin: student token", path: "/api/tutors", token: app.studentToken(t, alice), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errCredentials)},
		{name: "Admin: unknown admin", path: "/api/tutors", token: getToken(t, app.conf, 999, RoleAdmin), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errCredentials)},
		{name: "Student: no token", path: "/api/student/sessions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errStudentCredentials)},
		{name: "Student: admin token", path: "/api/student/sessions", token: app.adminToken(t, adm), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errStudentCredentials)},
		{name: "Student: deactivated", path: "/api/student/sessions", token: bobToken, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errStudentCredentials)},
		{name: "Student: ok", path: "/api/student/sessions", token: app.studentToken(t, alice), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func Test_authApi_rateLimited(t *testing.T) {
	app := setup(t)
	app.conf.Server.LoginRateLimit = 2

	validate, translator := validator.New(), newTranslator()
	core.InitValidators(validate, translator)

	limited := NewServer(Deps{
		Conf:         app.conf,
		Logger:       logsvc.NewNop(),
		Validate:     validate,
		Translator:   translator,
		AdminSvc:     app.adminSvc,
		TutorSvc:     app.tutorSvc,
		StudentSvc:   app.studentSvc,
		SessionSvc:   app.sessionSvc,
		AvatarSvc:    app.avatarSvc,
		Engine:       engine.NewClient(app.conf),
		LoginLimiter: cachesvc.NewMemoryRateLimiterStore(app.conf.Server.LoginRateLimit, app.conf.Server.LoginRateWindow),
	})

	body := marchallObj(t, LoginRequest{Username: "nobody@test.cd", Password: testPassword})
	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		limited.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
	limited.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusTooManyRequests,
		wantData: marchallObj(t, httpErr{Error: web.ErrTooManyRequests.Message.(string)}),
	}, rec)
}
