package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/dig"

	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/session"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
	"github.com/trezcool/virtualtutor/services/engine"
)

type (
	Deps struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		AdminSvc   *admin.Service
		TutorSvc   *tutor.Service
		StudentSvc *student.Service
		SessionSvc *session.Service
		AvatarSvc  *avatar.Service
		Engine     *engine.Client

		LoginLimiter middleware.RateLimiterStore
	}

	Server struct {
		*web.Server
		deps Deps
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		Server: web.NewServer(web.Options{
			Address:        deps.Conf.Server.Host,
			Debug:          deps.Conf.Debug,
			TestMode:       deps.Conf.TestMode,
			DisableReqLogs: deps.Conf.TestMode,
			CORSOrigins:    deps.Conf.Server.CORSOrigins,
			Logger:         deps.Logger,
		}),
		deps: deps,
	}
	s.App.Server.ReadTimeout = deps.Conf.Server.ReadTimeout
	s.App.Server.WriteTimeout = deps.Conf.Server.WriteTimeout
	s.setup()
	return s
}

func (s *Server) setup() {
	deps := s.deps
	auth := newAuthenticator(deps.Conf, deps.AdminSvc, deps.StudentSvc)

	s.App.HTTPErrorHandler = web.NewHTTPErrorHandler(web.ErrorHandlerOptions{
		Logger:         deps.Logger,
		Translator:     deps.Translator,
		SignalShutdown: s.SignalShutdown,
		Principal:      auth.principal,
	})

	s.App.GET("/", home)
	s.App.GET("/health", health)

	api := s.App.Group("/api")
	limiter := web.RateLimiter(deps.LoginLimiter)

	registerAuthAPI(api, limiter, auth, deps.AdminSvc, deps.StudentSvc, deps.Validate)
	registerTutorAPI(api, auth, deps.TutorSvc, deps.AvatarSvc, deps.Validate, deps.Translator)
	registerStudentAPI(api, auth, deps.TutorSvc, deps.StudentSvc, deps.Validate)
	registerSessionAPI(api, auth, deps.TutorSvc, deps.SessionSvc, deps.Validate)
	registerAvatarAPI(api, auth, deps.AvatarSvc, deps.Validate)
	registerPublicAPI(api, deps.Conf, deps.Logger, deps.TutorSvc, deps.AvatarSvc, deps.Engine)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Virtual Tutor API", "docs": "/health"})
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
