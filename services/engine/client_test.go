package engine_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtualtutor/core"
	. "github.com/trezcool/virtualtutor/services/engine"
)

func TestClient_Stream(t *testing.T) {
	gap := 100 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		for i := 0; i < 6; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(gap):
			}
			_, _ = fmt.Fprintf(w, "data: {\"chunk\": \"%d\"}\n\n", i)
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	// the whole answer takes twice the timeout
	cl := NewClient(&core.Config{Engine: core.EngineConfig{BaseURL: srv.URL, StreamTimeout: 3 * gap}})
	stream, err := cl.Stream(context.Background(), strings.NewReader(`{"message": "Hi"}`))
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), `data: {"chunk": "0"}`), string(body))
	assert.True(t, strings.HasSuffix(string(body), "data: {\"chunk\": \"5\"}\n\ndata: [DONE]\n\n"), string(body))
}
