package web

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
)

// PrincipalFunc returns who is making the request, for error reports.
type PrincipalFunc func(ctx echo.Context) core.Person

// UpstreamMessageFunc renders the message of an upstream failure.
type UpstreamMessageFunc func(uErr *core.UpstreamError) string

// UpstreamMessage is the default UpstreamMessageFunc.
func UpstreamMessage(uErr *core.UpstreamError) string {
	switch {
	case uErr.Code != 0:
		return uErr.Service + " error: " + uErr.Msg
	case uErr.Timeout:
		return uErr.Service + " timeout"
	default:
		return "Failed to communicate with " + uErr.Service + ": " + uErr.Error()
	}
}

type ErrorHandlerOptions struct {
	Logger          core.Logger
	Translator      ut.Translator
	SignalShutdown  func()
	Principal       PrincipalFunc
	UpstreamMessage UpstreamMessageFunc
}

// NewHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// SignalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func NewHTTPErrorHandler(opts ErrorHandlerOptions) echo.HTTPErrorHandler {
	upstreamMessage := opts.UpstreamMessage
	if upstreamMessage == nil {
		upstreamMessage = UpstreamMessage
	}

	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
			if code == http.StatusUnauthorized {
				ctx.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(opts.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if uErr, ok := core.IsUpstream(err); ok {
				code = http.StatusBadGateway
				if uErr.Timeout {
					code = http.StatusGatewayTimeout
				}
				message = upstreamMessage(uErr)
				opts.Logger.Warn(uErr.Service+" call failed", err)
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.Person
			if opts.Principal != nil {
				person = opts.Principal(ctx)
			}
			opts.Logger.Error(msg, errors.Wrap(err, msg), person)

			// shutting down...
			if core.IsShutdown(err) && opts.SignalShutdown != nil {
				opts.SignalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				opts.Logger.Error("sending error response", err)
			}
		}
	}
}
