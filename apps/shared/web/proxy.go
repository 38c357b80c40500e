package web

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ProxyErrorHandler reports a failed middleware.Proxy forward as a 502 whose message starts with prefix.
func ProxyErrorHandler(prefix string) func(echo.Context, error) error {
	return func(_ echo.Context, err error) error {
		cause := err
		if herr, ok := err.(*echo.HTTPError); ok {
			if herr.Internal == nil {
				return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("%s: %v", prefix, herr.Message))
			}
			cause = herr.Internal
		}
		return echo.NewHTTPError(http.StatusBadGateway, prefix+": "+cause.Error()).WithInternal(cause)
	}
}
