package web_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/virtualtutor/apps/shared/web"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
)

func TestProxyErrorHandler(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	target, err := url.Parse(down.URL)
	require.NoError(t, err)
	down.Close()

	e := echo.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(ErrorHandlerOptions{Logger: logsvc.NewNop()})
	e.Any("/webrtc/*", echo.NotFoundHandler, middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer:     middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: target}}),
		ErrorHandler: ProxyErrorHandler("WebRTC proxy error"),
	}))

	req := httptest.NewRequest(http.MethodPost, "/webrtc/offer", strings.NewReader(`{"sdp": "offer"}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `{"error":"WebRTC proxy error: `), rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "could not forward")
}

func TestProxyErrorHandler_noCause(t *testing.T) {
	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := ProxyErrorHandler("WebRTC proxy error")(ctx, echo.NewHTTPError(http.StatusBadGateway, "remote unreachable"))
	herr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, herr.Code)
	assert.Equal(t, "WebRTC proxy error: remote unreachable", herr.Message)
	assert.Nil(t, herr.Internal)
}
