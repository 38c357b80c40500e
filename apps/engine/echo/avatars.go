package engineapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/apps/shared/web"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/speech"
	"github.com/trezcool/virtualtutor/services/lipsync"
)

type avatarApi struct {
	logger   core.Logger
	lipsync  *lipsync.Client
	speech   *speech.Service
	validate *validator.Validate
}

func registerAvatarAPI(
	g *echo.Group,
	conf *core.Config,
	logger core.Logger,
	lipsyncClient *lipsync.Client,
	speechSvc *speech.Service,
	validate *validator.Validate,
) {
	api := avatarApi{
		logger:   logger,
		lipsync:  lipsyncClient,
		speech:   speechSvc,
		validate: validate,
	}

	ag := g.Group("/avatar")
	ag.GET("/list", api.query)
	ag.POST("/create", api.create)
	ag.POST("/start", api.start)
	ag.GET("/preview/:name", api.preview)
	ag.DELETE("/delete", api.destroy)
	ag.GET("/tts-models", api.ttsModels)
	ag.GET("/avatar-models", api.avatarModels)
	ag.GET("/health", api.health)
	ag.Any("/webrtc/*", echo.NotFoundHandler, dropHostHeaders, newLipsyncProxy(conf, logger))
}

// dropHostHeaders lets the proxied request carry the lip-sync service's host and its own length.
func dropHostHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		req.Host = ""
		req.Header.Del(echo.HeaderContentLength)
		return next(ctx)
	}
}

// newLipsyncProxy reverse-proxies `/api/avatar/webrtc/*` to the lip-sync service's root.
func newLipsyncProxy(conf *core.Config, logger core.Logger) echo.MiddlewareFunc {
	target, err := url.Parse(conf.Gateway.LipsyncURL)
	if err != nil {
		logger.Fatal("parsing lip-sync service URL", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = conf.Gateway.OperationTimeout

	return middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer:     middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: target}}),
		Rewrite:      map[string]string{"/api/avatar/webrtc/*": "/$1"},
		Transport:    transport,
		ErrorHandler: web.ProxyErrorHandler("WebRTC proxy error"),
	})
}

type AvatarListResponse struct {
	Avatars []string `json:"avatars"`
	Total   int      `json:"total"`
}

type StartAvatarRequest struct {
	AvatarName string `form:"avatar_name" validate:"required,notblank"`
	RefFile    string `form:"ref_file"`
}

type StartAvatarResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	EngineURL string `json:"engine_url"`
}

type DeleteAvatarRequest struct {
	AvatarName string `form:"avatar_name" query:"avatar_name" validate:"required,notblank"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ModelsResponse struct {
	Models interface{} `json:"models"`
}

type AvatarHealthResponse struct {
	LipsyncService bool `json:"lipsync_service"`
	TTSService     bool `json:"tts_service"`
	AllHealthy     bool `json:"all_healthy"`
}

var avatarModels = []ModelInfo{
	{ID: "MuseTalk", Name: "MuseTalk", Description: "High-quality lip-sync model"},
	{ID: "wav2lip", Name: "Wav2Lip", Description: "Fast lip-sync model"},
	{ID: "ultralight", Name: "UltraLight", Description: "Lightweight model"},
}

// Handlers

func (api *avatarApi) query(ctx echo.Context) error {
	names, err := api.lipsync.ListAvatars(ctx.Request().Context())
	if err != nil {
		api.logger.Warn("listing avatars", err)
		names = []string{}
	}
	return ctx.JSON(http.StatusOK, AvatarListResponse{Avatars: names, Total: len(names)})
}

func (api *avatarApi) create(ctx echo.Context) error {
	var na avatar.NewAvatar
	if err := ctx.Bind(&na); err != nil {
		return errors.Wrap(err, "binding to NewAvatar")
	}
	if err := na.Validate(api.validate); err != nil {
		return err
	}

	var files uploads
	defer files.Close()
	face, err := files.open(ctx, "prompt_face")
	if err != nil {
		return err
	}
	if face == nil {
		return errFaceRequired
	}
	na.Face = avatar.File{Filename: face.header.Filename, ContentType: face.contentType(), Size: face.header.Size, Content: face.file}
	voice, err := files.open(ctx, "prompt_voice")
	if err != nil {
		return err
	}
	if voice != nil {
		na.Voice = &avatar.File{Filename: voice.header.Filename, ContentType: voice.contentType(), Size: voice.header.Size, Content: voice.file}
	}

	res, err := api.lipsync.CreateAvatar(ctx.Request().Context(), na)
	if err != nil {
		return failed("Avatar creation failed", err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *avatarApi) start(ctx echo.Context) error {
	var data StartAvatarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartAvatarRequest")
	}
	data.AvatarName, data.RefFile = core.CleanString(data.AvatarName), core.CleanString(data.RefFile)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.lipsync.StartAvatar(ctx.Request().Context(), data.AvatarName, data.RefFile); err != nil {
		return failed("Avatar start failed", err)
	}
	return ctx.JSON(http.StatusOK, StartAvatarResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Avatar '%s' started successfully", data.AvatarName),
		EngineURL: api.lipsync.BaseURL(),
	})
}

func (api *avatarApi) preview(ctx echo.Context) error {
	img, err := api.lipsync.Preview(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return failed("Failed to get preview", err)
	}
	return ctx.Blob(http.StatusOK, "image/png", img)
}

func (api *avatarApi) destroy(ctx echo.Context) error {
	var data DeleteAvatarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteAvatarRequest")
	}
	data.AvatarName = core.CleanString(data.AvatarName)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.lipsync.DeleteAvatar(ctx.Request().Context(), data.AvatarName); err != nil {
		return failed("Failed to delete avatar", err)
	}
	return ctx.JSON(http.StatusOK, StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Avatar '%s' deleted successfully", data.AvatarName),
	})
}

func (api *avatarApi) ttsModels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ModelsResponse{Models: api.speech.Models(ctx.Request().Context())})
}

func (api *avatarApi) avatarModels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ModelsResponse{Models: avatarModels})
}

func (api *avatarApi) health(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	res := AvatarHealthResponse{
		LipsyncService: api.lipsync.Health(reqCtx) == nil,
		TTSService:     api.speech.Health(reqCtx) == nil,
	}
	res.AllHealthy = res.LipsyncService && res.TTSService
	if !res.AllHealthy {
		return errAvatarsUnhealthy
	}
	return ctx.JSON(http.StatusOK, res)
}
