package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/tutor"
)

const avatarContextKey = "avatar"

type avatarApi struct {
	svc      *avatar.Service
	validate *validator.Validate
	limits   core.EngineConfig
}

func registerAvatarAPI(
	g *echo.Group,
	auth *authenticator,
	svc *avatar.Service,
	validate *validator.Validate,
) {
	api := avatarApi{
		svc:      svc,
		validate: validate,
		limits:   auth.conf.Engine,
	}

	ag := g.Group("/admin/avatars", auth.adminOnly()...)
	ag.POST("/create", api.create)
	ag.GET("/list", api.query)

	// detail endpoints
	dg := ag.Group("/:id", api.ownedAvatarMiddleware)
	dg.POST("/start", api.start)
	dg.DELETE("", api.destroy)
	dg.GET("/info", api.retrieve)
}

type ownedAvatar struct {
	avatar avatar.Avatar
	tutor  tutor.Tutor
}

// ownedAvatarMiddleware loads the `:id` avatar, whose tutor must belong to the context admin.
func (api *avatarApi) ownedAvatarMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			return errAvatarNotOwned
		}
		a, t, err := api.svc.GetOwned(ctx.Request().Context(), getContextAdmin(ctx).ID, id)
		if err != nil {
			if errors.Cause(err) == avatar.ErrNotFound {
				return errAvatarNotOwned
			}
			return errors.Wrap(err, "getting avatar")
		}
		ctx.Set(avatarContextKey, ownedAvatar{avatar: a, tutor: t})
		return next(ctx)
	}
}

func getContextAvatar(ctx echo.Context) ownedAvatar {
	oa, _ := ctx.Get(avatarContextKey).(ownedAvatar)
	return oa
}

// CreateAvatarRequest is the multipart form creating an Avatar for an existing tutor.
type CreateAvatarRequest struct {
	TutorID int `form:"tutor_id"`
	avatar.NewAvatar
}

type CreateAvatarResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AvatarID  int    `json:"avatar_id"`
	Name      string `json:"avatar_name"`
	TutorID   int    `json:"tutor_id"`
	ImagePath string `json:"image_path"`
}

type AvatarListResponse struct {
	Avatars []avatar.Info `json:"avatars"`
	Total   int           `json:"total"`
}

type StartAvatarResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	EngineURL string `json:"engine_url"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handlers

func (api *avatarApi) create(ctx echo.Context) error {
	var data CreateAvatarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateAvatarRequest")
	}
	if data.TutorID == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "tutor_id", Error: "this field is required"})
	}
	na := data.NewAvatar
	if err := na.Validate(api.validate); err != nil {
		return err
	}

	var files uploads
	defer files.Close()
	if err := files.openPrompts(ctx, &na); err != nil {
		return err
	}

	a, _, err := api.svc.Create(ctx.Request().Context(), getContextAdmin(ctx).ID, data.TutorID, na)
	if err != nil {
		if errors.Cause(err) == tutor.ErrNotFound {
			return errHttpTutorForbidden(data.TutorID)
		}
		return avatarCreateError(err, na.Name, api.limits)
	}

	return ctx.JSON(http.StatusCreated, CreateAvatarResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Avatar '%s' created successfully", a.Name),
		AvatarID:  a.ID,
		Name:      a.Name,
		TutorID:   a.TutorID,
		ImagePath: a.PreviewImagePath.String,
	})
}

func (api *avatarApi) query(ctx echo.Context) error {
	infos, err := api.svc.QueryByAdmin(ctx.Request().Context(), getContextAdmin(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying avatars")
	}
	return ctx.JSON(http.StatusOK, AvatarListResponse{Avatars: infos, Total: len(infos)})
}

func (api *avatarApi) start(ctx echo.Context) error {
	oa := getContextAvatar(ctx)
	a, err := api.svc.Start(ctx.Request().Context(), oa.avatar, ctx.FormValue("ref_file"))
	if err != nil {
		return errors.Wrap(err, "starting avatar")
	}
	return ctx.JSON(http.StatusOK, StartAvatarResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Avatar '%s' started successfully", a.Name),
		EngineURL: a.EngineURL.String,
	})
}

func (api *avatarApi) destroy(ctx echo.Context) error {
	oa := getContextAvatar(ctx)
	if err := api.svc.Delete(ctx.Request().Context(), oa.avatar); err != nil {
		return errors.Wrap(err, "deleting avatar")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Avatar '%s' deleted successfully", oa.avatar.Name),
	})
}

func (api *avatarApi) retrieve(ctx echo.Context) error {
	oa := getContextAvatar(ctx)
	return ctx.JSON(http.StatusOK, avatar.NewInfo(oa.avatar, oa.tutor.Name))
}
