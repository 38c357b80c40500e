package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtualtutor/core/avatar"
)

func Test_publicApi_info(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	t1 := app.createTutor(t, adm, "English")
	t2 := app.createTutor(t, adm, "Spanish")
	app.createAvatar(t, adm, t1, "emma")

	tests := []httpTest{
		{name: "With avatar", path: fmt.Sprintf("/api/tutors/%d/info", t1.ID), wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{
			"id": t1.ID, "name": "English", "description": nil, "target_language": "en",
			"has_avatar": true, "avatar_status": avatar.StatusActive,
		})},
		{name: "Without avatar", path: fmt.Sprintf("/api/tutors/%d/info", t2.ID), wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{
			"id": t2.ID, "name": "Spanish", "description": nil, "target_language": "en",
			"has_avatar": false, "avatar_status": nil,
		})},
		{name: "Unknown tutor", path: "/api/tutors/999/info", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Tutor not found"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_publicApi_chat(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	tut := app.createTutor(t, adm, "English")
	path := fmt.Sprintf("/api/tutors/%d/chat", tut.ID)
	body := []byte(`{"message": "Bonjour", "conversation_history": []}`)

	t.Run("Forwarded", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"response": "echo: Bonjour", "model": "test-model"}`)}, rec)
	})

	t.Run("Unknown tutor", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/tutors/999/chat", body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Engine failure", func(t *testing.T) {
		app.engine.fail(http.StatusInternalServerError)
		defer app.engine.fail(0)

		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Engine down", func(t *testing.T) {
		down := setup(t)
		down.engine.Close()
		dAdm := down.createAdmin(t, "admin@test.cd")
		dTut := down.createTutor(t, dAdm, "English")

		req, rec := newRequest(http.MethodPost, fmt.Sprintf("/api/tutors/%d/chat", dTut.ID), body)
		down.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to communicate with Avatar Service")
	})
}

func Test_publicApi_chatStream(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	tut := app.createTutor(t, adm, "English")
	path := fmt.Sprintf("/api/tutors/%d/chat/stream", tut.ID)
	body := []byte(`{"message": "Hi"}`)

	t.Run("Relayed", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "data: {\"chunk\": \"Hel\"}\n\ndata: {\"chunk\": \"lo\"}\n\ndata: [DONE]\n\n", rec.Body.String())
		assert.True(t, rec.Flushed)
	})

	t.Run("Engine failure", func(t *testing.T) {
		app.engine.fail(http.StatusInternalServerError)
		defer app.engine.fail(0)

		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marchallObj(t, httpErr{Error: `Avatar Service error: {"detail": "engine failure"}`}),
		}, rec)
	})

	t.Run("Dropped mid-stream", func(t *testing.T) {
		app.engine.mu.Lock()
		app.engine.dropStream = true
		app.engine.mu.Unlock()
		defer func() {
			app.engine.mu.Lock()
			app.engine.dropStream = false
			app.engine.mu.Unlock()
		}()

		req, rec := newRequest(http.MethodPost, path, body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "data: {\"chunk\": \"Hel\"}\n\n", rec.Body.String())
	})

	t.Run("Engine down", func(t *testing.T) {
		down := setup(t)
		down.engine.Close()
		dAdm := down.createAdmin(t, "admin@test.cd")
		dTut := down.createTutor(t, dAdm, "English")

		req, rec := newRequest(http.MethodPost, fmt.Sprintf("/api/tutors/%d/chat/stream", dTut.ID), body)
		down.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "application/json; charset=UTF-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Failed to communicate with Avatar Service")
	})
}

func Test_publicApi_preview(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	t1 := app.createTutor(t, adm, "English")
	t2 := app.createTutor(t, adm, "Spanish")
	app.createAvatar(t, adm, t1, "emma")

	t.Run("Preview", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/tutors/%d/avatar/preview", t1.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, previewPNG, rec.Body.String())
	})

	t.Run("No avatar", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/tutors/%d/avatar/preview", t2.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Avatar not found for this tutor"})}, rec)
	})

	t.Run("Engine failure", func(t *testing.T) {
		app.engine.fail(http.StatusNotFound)
		defer app.engine.fail(0)

		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/tutors/%d/avatar/preview", t1.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "Failed to get avatar preview"})}, rec)
	})
}

func Test_publicApi_health(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	tut := app.createTutor(t, adm, "English")
	app.startAvatar(t, app.createAvatar(t, adm, tut, "emma"))

	path := fmt.Sprintf("/api/tutors/%d/health", tut.ID)
	want := func(healthy bool) []byte {
		return marchallObj(t, map[string]interface{}{
			"status": "ok", "tutor_id": tut.ID, "tutor_name": "English",
			"has_avatar": true, "avatar_status": avatar.StatusRunning, "avatar_running": true,
			"avatar_service_healthy": healthy,
		})
	}

	req, rec := newRequest(http.MethodGet, path)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: want(true)}, rec)

	app.engine.fail(http.StatusServiceUnavailable)
	req, rec = newRequest(http.MethodGet, path)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: want(false)}, rec)
}

func Test_publicApi_webrtc(t *testing.T) {
	app := setup(t)
	adm := app.createAdmin(t, "admin@test.cd")
	idle := app.createTutor(t, adm, "English")
	running := app.createTutor(t, adm, "Spanish")
	bare := app.createTutor(t, adm, "German")
	app.createAvatar(t, adm, idle, "emma")
	app.startAvatar(t, app.createAvatar(t, adm, running, "sofia"))

	offer := []byte(`{"sdp": "offer", "type": "offer"}`)
	path := func(tutorID int) string { return fmt.Sprintf("/api/tutors/%d/webrtc/offer", tutorID) }

	tests := []httpTest{
		{name: "Unknown tutor", path: path(999), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Tutor not found"})},
		{name: "No avatar", path: path(bare.ID), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Avatar not found for this tutor"})},
		{name: "Avatar not running", path: path(idle.ID), wantCode: http.StatusServiceUnavailable, wantData: marchallObj(t, httpErr{Error: "Avatar is not running. Please ask admin to start it."})},
		{name: "Proxied", path: path(running.ID), wantCode: http.StatusOK, wantData: []byte(`{"sdp": "answer", "type": "answer"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, tt.path, offer)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	forwarded := app.engine.calls(&app.engine.forwarded)
	require.Len(t, forwarded, 1)
	assert.Equal(t, "/api/avatar/webrtc/offer", forwarded[0])
	assert.False(t, strings.Contains(forwarded[0], "tutors"))

	t.Run("Engine down", func(t *testing.T) {
		app.engine.Close()

		req, rec := newRequest(http.MethodPost, path(running.ID), offer)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), `{"error":"WebRTC proxy error: `), rec.Body.String())
	})
}
