package engineapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/speech"
)

type ttsApi struct {
	svc        *speech.Service
	validate   *validator.Validate
	serviceURL string
}

func registerTTSAPI(g *echo.Group, conf *core.Config, svc *speech.Service, validate *validator.Validate) {
	api := ttsApi{
		svc:        svc,
		validate:   validate,
		serviceURL: conf.Gateway.TTSURL,
	}

	tg := g.Group("/tts")
	tg.POST("/synthesize", api.synthesize)
	tg.POST("/synthesize-json", api.synthesizeJSON)
	tg.POST("/clone", api.clone)
	tg.GET("/voices", api.voices)
	tg.GET("/engines", api.engines)
	tg.GET("/health", api.health)
}

type TTSHealthResponse struct {
	Status     string   `json:"status"`
	ServiceURL string   `json:"service_url"`
	Engines    []string `json:"engines"`
}

func wav(ctx echo.Context, filename string, audio []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, "audio/wav", audio)
}

func reference(u *upload) *speech.Reference {
	return &speech.Reference{Filename: u.header.Filename, ContentType: u.contentType(), Content: u.file}
}

func (api *ttsApi) synthesize(ctx echo.Context) error {
	req := speech.NewRequest()
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to speech.Request")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	var files uploads
	defer files.Close()
	ref, err := files.open(ctx, "reference_audio")
	if err != nil {
		return err
	}
	if ref != nil {
		req.Reference = reference(ref)
	}

	audio, err := api.svc.Synthesize(ctx.Request().Context(), req)
	if err != nil {
		return failed("Speech synthesis failed", err)
	}
	return wav(ctx, "speech.wav", audio)
}

func (api *ttsApi) synthesizeJSON(ctx echo.Context) error {
	req := speech.NewRequest()
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to speech.Request")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	audio, err := api.svc.Synthesize(ctx.Request().Context(), req)
	if err != nil {
		return failed("Speech synthesis failed", err)
	}
	return wav(ctx, "speech.wav", audio)
}

func (api *ttsApi) clone(ctx echo.Context) error {
	var req speech.CloneRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to speech.CloneRequest")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	var files uploads
	defer files.Close()
	ref, err := files.open(ctx, "reference_audio")
	if err != nil {
		return err
	}
	if ref == nil {
		return errReferenceRequired
	}
	req.Reference = *reference(ref)

	audio, err := api.svc.Clone(ctx.Request().Context(), req)
	if err != nil {
		return failed("Voice cloning failed", err)
	}
	return wav(ctx, "cloned_speech.wav", audio)
}

func (api *ttsApi) voices(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Voices(ctx.Request().Context(), core.CleanString(ctx.QueryParam("engine"))))
}

func (api *ttsApi) engines(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Engines(ctx.Request().Context()))
}

func (api *ttsApi) health(ctx echo.Context) error {
	if err := api.svc.Health(ctx.Request().Context()); err != nil {
		return errTTSUnavailable.WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, TTSHealthResponse{Status: "healthy", ServiceURL: api.serviceURL, Engines: speech.Engines})
}
