package engineapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
)

var (
	errFaceRequired      = echo.NewHTTPError(http.StatusBadRequest, "prompt_face file is required")
	errReferenceRequired = echo.NewHTTPError(http.StatusBadRequest, "reference_audio file is required")
	errAvatarsUnhealthy  = echo.NewHTTPError(http.StatusServiceUnavailable, "One or more avatar services are unavailable")
	errOllamaUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, "Ollama service is not available")
	errRAGDisabled       = echo.NewHTTPError(http.StatusServiceUnavailable, "RAG service is not enabled")
	errTTSUnavailable    = echo.NewHTTPError(http.StatusServiceUnavailable, "TTS service is unavailable")
)

// failed reports err as a 500 prefixed by what failed.
// Upstream failures are summed up as the error handler would render them.
func failed(what string, err error) error {
	detail := err.Error()
	if uErr, ok := core.IsUpstream(err); ok {
		detail = web.UpstreamMessage(uErr)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, what+": "+detail).WithInternal(err)
}
