package engineapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/chat"
)

const sseDone = "data: [DONE]\n\n"

type chatApi struct {
	svc      *chat.Service
	validate *validator.Validate
	conf     core.LLMConfig
}

func registerChatAPI(g *echo.Group, conf *core.Config, svc *chat.Service, validate *validator.Validate) {
	api := chatApi{
		svc:      svc,
		validate: validate,
		conf:     conf.LLM,
	}

	cg := g.Group("/chat")
	cg.POST("/completion", api.completion)
	cg.POST("/stream", api.stream)
	cg.POST("/rag", api.rag)
	cg.GET("/models", api.models)
	cg.GET("/health", api.health)
}

type ModelListResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

type ChatHealthResponse struct {
	Status       string `json:"status"`
	OllamaURL    string `json:"ollama_url"`
	DefaultModel string `json:"default_model"`
}

func (api *chatApi) bindRequest(ctx echo.Context) (chat.Request, error) {
	req := chat.Request{Stream: true}
	if err := ctx.Bind(&req); err != nil {
		return req, errors.Wrap(err, "binding to chat.Request")
	}
	return req, req.Validate(api.validate)
}

func (api *chatApi) completion(ctx echo.Context) error {
	req, err := api.bindRequest(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Complete(ctx.Request().Context(), req)
	if err != nil {
		return failed("Chat error", err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// sseFrame renders a `data:` frame holding {key: value}.
func sseFrame(key, value string) string {
	b, _ := json.Marshal(value)
	return fmt.Sprintf("data: {%q: %s}\n\n", key, b)
}

func (api *chatApi) stream(ctx echo.Context) error {
	req, err := api.bindRequest(ctx)
	if err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	err = api.svc.Stream(ctx.Request().Context(), req, func(chunk string) error {
		if _, err := res.Write([]byte(sseFrame("chunk", chunk))); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		_, _ = res.Write([]byte(sseFrame("error", errors.Cause(err).Error())))
	} else {
		_, _ = res.Write([]byte(sseDone))
	}
	res.Flush()
	return nil
}

func (api *chatApi) rag(ctx echo.Context) error {
	var req chat.RAGRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to chat.RAGRequest")
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}
	res, err := api.svc.CompleteRAG(ctx.Request().Context(), req)
	if err != nil {
		if errors.Cause(err) == chat.ErrRAGDisabled {
			return errRAGDisabled
		}
		return failed("RAG chat error", err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *chatApi) models(ctx echo.Context) error {
	models, def := api.svc.Models(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, ModelListResponse{Models: models, Default: def})
}

func (api *chatApi) health(ctx echo.Context) error {
	if err := api.svc.Healthy(ctx.Request().Context()); err != nil {
		return errOllamaUnavailable.WithInternal(err)
	}
	return ctx.JSON(http.StatusOK, ChatHealthResponse{Status: "healthy", OllamaURL: api.conf.OllamaURL, DefaultModel: api.conf.DefaultModel})
}
