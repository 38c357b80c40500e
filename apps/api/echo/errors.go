package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	errCredentials        = echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	errStudentCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Could not validate student credentials")
	errLoginFailed        = echo.NewHTTPError(http.StatusBadRequest, "Incorrect email or password")
	errStudentInactive    = echo.NewHTTPError(http.StatusBadRequest, "Student account is inactive")
	errSessionInactive    = echo.NewHTTPError(http.StatusBadRequest, "Student account is not active.")

	errTutorNotFound      = echo.NewHTTPError(http.StatusNotFound, "Tutor not found")
	errTutorNotOwned      = echo.NewHTTPError(http.StatusNotFound, "Tutor not found or not owned by current admin")
	errTutorIDRequired    = echo.NewHTTPError(http.StatusBadRequest, "tutor_id is required")
	errStudentNotFound    = echo.NewHTTPError(http.StatusNotFound, "Student not found")
	errSessionNotFound    = echo.NewHTTPError(http.StatusNotFound, "Session not found")
	errAvatarNotOwned     = echo.NewHTTPError(http.StatusNotFound, "Avatar not found or access denied")
	errTutorHasNoAvatar   = echo.NewHTTPError(http.StatusNotFound, "Avatar not found for this tutor")
	errAvatarNotRunning   = echo.NewHTTPError(http.StatusServiceUnavailable, "Avatar is not running. Please ask admin to start it.")
	errFaceRequired       = echo.NewHTTPError(http.StatusBadRequest, "prompt_face file is required")
	errAvatarTimeout      = echo.NewHTTPError(http.StatusGatewayTimeout, "Avatar creation timeout. This process can take 2-5 minutes. Please try again or check status later.")
	errPreviewUnavailable = echo.NewHTTPError(http.StatusBadGateway, "Failed to get avatar preview")
)

func errHttpTutorForbidden(id int) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("Tutor %d not found or you don't have permission", id))
}

func errHttpAvatarExists(name string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("Avatar with name '%s' already exists", name))
}

func errHttpFileTooLarge(kind string, max int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("%s file too large. Maximum size: %dMB", kind, max/1024/1024))
}
