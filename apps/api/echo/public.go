package echoapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/tutor"
	"github.com/trezcool/virtualtutor/services/engine"
)

const streamBufferSize = 4096

type publicApi struct {
	logger    core.Logger
	tutorSvc  *tutor.Service
	avatarSvc *avatar.Service
	engine    *engine.Client
}

func registerPublicAPI(
	g *echo.Group,
	conf *core.Config,
	logger core.Logger,
	tutorSvc *tutor.Service,
	avatarSvc *avatar.Service,
	engineClient *engine.Client,
) {
	api := publicApi{
		logger:    logger,
		tutorSvc:  tutorSvc,
		avatarSvc: avatarSvc,
		engine:    engineClient,
	}

	tg := g.Group("/tutors/:id", api.tutorMiddleware)
	tg.GET("/info", api.info)
	tg.POST("/chat", api.chat)
	tg.POST("/chat/stream", api.chatStream)
	tg.GET("/avatar/preview", api.preview)
	tg.GET("/health", api.health)
	tg.Any("/webrtc/*", echo.NotFoundHandler, api.runningAvatarMiddleware, newWebRTCProxy(conf, logger))
}

// newWebRTCProxy reverse-proxies `/api/tutors/:id/webrtc/*` to the engine's avatar WebRTC endpoints.
func newWebRTCProxy(conf *core.Config, logger core.Logger) echo.MiddlewareFunc {
	target, err := url.Parse(conf.Engine.BaseURL)
	if err != nil {
		logger.Fatal("parsing engine base URL", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = conf.Engine.WebRTCTimeout

	return middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer:     middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: target}}),
		Rewrite:      map[string]string{"/api/tutors/*/webrtc/*": "/api/avatar/webrtc/$2"},
		Transport:    transport,
		ErrorHandler: web.ProxyErrorHandler("WebRTC proxy error"),
	})
}

// tutorMiddleware loads the `:id` tutor.
func (api *publicApi) tutorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			return errTutorNotFound
		}
		t, err := api.tutorSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == tutor.ErrNotFound {
				return errTutorNotFound
			}
			return errors.Wrap(err, "getting tutor")
		}
		ctx.Set(tutorContextKey, t)
		return next(ctx)
	}
}

// tutorAvatar returns the avatar of the context tutor, if it has one.
func (api *publicApi) tutorAvatar(ctx echo.Context) (avatar.Avatar, bool, error) {
	a, err := api.avatarSvc.GetByTutor(ctx.Request().Context(), getContextTutor(ctx).ID)
	if err != nil {
		if errors.Cause(err) == avatar.ErrNotFound {
			return avatar.Avatar{}, false, nil
		}
		return avatar.Avatar{}, false, errors.Wrap(err, "getting tutor avatar")
	}
	return a, true, nil
}

func (api *publicApi) runningAvatarMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a, ok, err := api.tutorAvatar(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errTutorHasNoAvatar
		}
		if !a.IsRunning() {
			return errAvatarNotRunning
		}
		return next(ctx)
	}
}

// badGateway reports any failure of the engine as a 502.
func badGateway(err error) error {
	if uErr, ok := core.IsUpstream(err); ok {
		return echo.NewHTTPError(http.StatusBadGateway, web.UpstreamMessage(uErr)).WithInternal(err)
	}
	return err
}

type TutorInfoResponse struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	Description    null.String `json:"description"`
	TargetLanguage string      `json:"target_language"`
	HasAvatar      bool        `json:"has_avatar"`
	AvatarStatus   null.String `json:"avatar_status"`
}

type TutorHealthResponse struct {
	Status               string      `json:"status"`
	TutorID              int         `json:"tutor_id"`
	TutorName            string      `json:"tutor_name"`
	HasAvatar            bool        `json:"has_avatar"`
	AvatarStatus         null.String `json:"avatar_status"`
	AvatarRunning        bool        `json:"avatar_running"`
	AvatarServiceHealthy bool        `json:"avatar_service_healthy"`
}

// Handlers

func (api *publicApi) info(ctx echo.Context) error {
	t := getContextTutor(ctx)
	a, ok, err := api.tutorAvatar(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TutorInfoResponse{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		TargetLanguage: t.TargetLanguage,
		HasAvatar:      ok,
		AvatarStatus:   null.NewString(a.Status, ok),
	})
}

func (api *publicApi) chat(ctx echo.Context) error {
	body, err := api.engine.Chat(ctx.Request().Context(), ctx.Request().Body)
	if err != nil {
		return badGateway(err)
	}
	return ctx.JSONBlob(http.StatusOK, body)
}

// chatStream relays the engine's SSE stream, flushing every chunk as soon as it is read.
func (api *publicApi) chatStream(ctx echo.Context) error {
	stream, err := api.engine.Stream(ctx.Request().Context(), ctx.Request().Body)
	if err != nil {
		return badGateway(err)
	}
	defer stream.Close()

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	buf := make([]byte, streamBufferSize)
	for {
		n, rErr := stream.Read(buf)
		if n > 0 {
			if _, wErr := resp.Write(buf[:n]); wErr != nil {
				return nil // client went away
			}
			resp.Flush()
		}
		if rErr != nil {
			if rErr != io.EOF {
				api.logger.Warn("chat stream interrupted", rErr, map[string]interface{}{"tutor_id": getContextTutor(ctx).ID})
			}
			return nil
		}
	}
}

func (api *publicApi) preview(ctx echo.Context) error {
	a, ok, err := api.tutorAvatar(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errTutorHasNoAvatar
	}
	img, err := api.engine.Preview(ctx.Request().Context(), a.Name)
	if err != nil {
		return errPreviewUnavailable.WithInternal(err)
	}
	return ctx.Blob(http.StatusOK, "image/png", img)
}

func (api *publicApi) health(ctx echo.Context) error {
	t := getContextTutor(ctx)
	a, ok, err := api.tutorAvatar(ctx)
	if err != nil {
		return err
	}
	healthy := api.engine.Health(ctx.Request().Context()) == nil
	return ctx.JSON(http.StatusOK, TutorHealthResponse{
		Status:               "ok",
		TutorID:              t.ID,
		TutorName:            t.Name,
		HasAvatar:            ok,
		AvatarStatus:         null.NewString(a.Status, ok),
		AvatarRunning:        ok && a.IsRunning(),
		AvatarServiceHealthy: healthy,
	})
}
