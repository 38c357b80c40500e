package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/tutor"
)

type tutorApi struct {
	tutorSvc   *tutor.Service
	avatarSvc  *avatar.Service
	validate   *validator.Validate
	translator ut.Translator
	limits     core.EngineConfig
}

func registerTutorAPI(
	g *echo.Group,
	auth *authenticator,
	tutorSvc *tutor.Service,
	avatarSvc *avatar.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := tutorApi{
		tutorSvc:   tutorSvc,
		avatarSvc:  avatarSvc,
		validate:   validate,
		translator: translator,
		limits:     auth.conf.Engine,
	}

	tg := g.Group("/tutors", auth.adminOnly()...)
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.POST("/create-with-avatar", api.createWithAvatar)
	tg.DELETE("/:id", api.destroy)
}

// CreateWithAvatarRequest is the multipart form creating a Tutor along with its Avatar.
type CreateWithAvatarRequest struct {
	Name           string `form:"name"`
	Description    string `form:"description"`
	TargetLanguage string `form:"target_language"`
	AvatarName     string `form:"avatar_name"`
	AvatarModel    string `form:"avatar_model"`
	TTSModel       string `form:"tts_model"`
	Timbre         string `form:"timbre"`
	AvatarBlur     bool   `form:"avatar_blur"`
	SupportClone   bool   `form:"support_clone"`
	RefText        string `form:"ref_text"`
}

func (r CreateWithAvatarRequest) split() (tutor.NewTutor, avatar.NewAvatar) {
	nt := tutor.NewTutor{Name: r.Name, Description: r.Description, TargetLanguage: r.TargetLanguage}
	na := avatar.NewAvatar{
		Name:         r.AvatarName,
		AvatarModel:  r.AvatarModel,
		TTSModel:     r.TTSModel,
		Timbre:       r.Timbre,
		AvatarBlur:   r.AvatarBlur,
		SupportClone: r.SupportClone,
		RefText:      r.RefText,
		Description:  r.Description,
	}
	return nt, na
}

type avatarSummary struct {
	ID               int         `json:"id"`
	Name             string      `json:"name"`
	AvatarModel      string      `json:"avatar_model"`
	TTSModel         string      `json:"tts_model"`
	Status           string      `json:"status"`
	PreviewImagePath null.String `json:"preview_image_path"`
}

type CreateWithAvatarResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Tutor   tutor.Tutor   `json:"tutor"`
	Avatar  avatarSummary `json:"avatar"`
}

// Handlers

func (api *tutorApi) create(ctx echo.Context) error {
	var data tutor.NewTutor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTutor")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.tutorSvc.Create(ctx.Request().Context(), getContextAdmin(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating tutor")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *tutorApi) query(ctx echo.Context) error {
	tutors, err := api.tutorSvc.QueryByAdmin(ctx.Request().Context(), getContextAdmin(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying tutors")
	}
	if tutors == nil {
		tutors = []tutor.Tutor{}
	}
	return ctx.JSON(http.StatusOK, tutors)
}

func (api *tutorApi) createWithAvatar(ctx echo.Context) error {
	var data CreateWithAvatarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateWithAvatarRequest")
	}
	nt, na := data.split()
	if err := nt.Validate(api.validate); err != nil {
		return err
	}
	if err := na.Validate(api.validate); err != nil {
		return avatarNameField(err, api.translator)
	}

	var files uploads
	defer files.Close()
	if err := files.openPrompts(ctx, &na); err != nil {
		return err
	}

	t, a, err := api.avatarSvc.CreateWithTutor(ctx.Request().Context(), getContextAdmin(ctx).ID, nt, na)
	if err != nil {
		return avatarCreateError(err, na.Name, api.limits)
	}

	return ctx.JSON(http.StatusCreated, CreateWithAvatarResponse{
		Status:  "success",
		Message: fmt.Sprintf("Tutor '%s' with avatar '%s' created successfully", t.Name, a.Name),
		Tutor:   t,
		Avatar: avatarSummary{
			ID:               a.ID,
			Name:             a.Name,
			AvatarModel:      a.AvatarModel,
			TTSModel:         a.TTSModel,
			Status:           a.Status,
			PreviewImagePath: a.PreviewImagePath,
		},
	})
}

func (api *tutorApi) destroy(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errTutorNotFound
	}
	rctx := ctx.Request().Context()
	t, err := api.tutorSvc.GetOwned(rctx, getContextAdmin(ctx).ID, id)
	if err != nil {
		if errors.Cause(err) == tutor.ErrNotFound {
			return errTutorNotFound
		}
		return errors.Wrap(err, "getting tutor")
	}
	if err = api.tutorSvc.Delete(rctx, t.ID); err != nil {
		return errors.Wrap(err, "deleting tutor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// avatarNameField reports the avatar "name" field errors under the "avatar_name" form field.
func avatarNameField(err error, translator ut.Translator) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	var flds []core.FieldError
	for _, vErr := range vErrs {
		field := vErr.Field()
		if field == "name" {
			field = "avatar_name"
		}
		flds = append(flds, core.FieldError{Field: field, Error: vErr.Translate(translator)})
	}
	return core.NewValidationError(nil, flds...)
}
