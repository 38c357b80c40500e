package engineapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/chat"
	"github.com/trezcool/virtualtutor/core/speech"
	"github.com/trezcool/virtualtutor/services/lipsync"
)

const serviceID = "avatar-ai-engine"

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Lipsync   *lipsync.Client
		ChatSvc   *chat.Service
		SpeechSvc *speech.Service
	}

	Server struct {
		*web.Server
		deps Deps
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		Server: web.NewServer(web.Options{
			Address:        deps.Conf.Gateway.Host,
			Debug:          deps.Conf.Debug,
			TestMode:       deps.Conf.TestMode,
			DisableReqLogs: deps.Conf.TestMode,
			CORSOrigins:    []string{"*"},
			Logger:         deps.Logger,
		}),
		deps: deps,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	deps := s.deps

	s.App.HTTPErrorHandler = web.NewHTTPErrorHandler(web.ErrorHandlerOptions{
		Logger:         deps.Logger,
		Translator:     deps.Translator,
		SignalShutdown: s.SignalShutdown,
	})

	s.App.GET("/", s.home)
	s.App.GET("/health", s.health)

	api := s.App.Group("/api")
	registerAvatarAPI(api, deps.Conf, deps.Logger, deps.Lipsync, deps.SpeechSvc, deps.Validate)
	registerChatAPI(api, deps.Conf, deps.ChatSvc, deps.Validate)
	registerTTSAPI(api, deps.Conf, deps.SpeechSvc, deps.Validate)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"service":     "Avatar AI Engine",
		"description": "Serverless AI Inference Service",
		"endpoints": echo.Map{
			"llm":    "/api/chat/*",
			"avatar": "/api/avatar/*",
			"tts":    "/api/tts/*",
			"health": "/health",
		},
	})
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: serviceID, Version: s.deps.Conf.Gateway.Version})
}
