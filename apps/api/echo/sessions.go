package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/session"
	"github.com/trezcool/virtualtutor/core/tutor"
)

const sessionContextKey = "session"

type sessionApi struct {
	tutorSvc   *tutor.Service
	sessionSvc *session.Service
	validate   *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	auth *authenticator,
	tutorSvc *tutor.Service,
	sessionSvc *session.Service,
	validate *validator.Validate,
) {
	api := sessionApi{
		tutorSvc:   tutorSvc,
		sessionSvc: sessionSvc,
		validate:   validate,
	}

	sg := g.Group("/student/sessions", auth.studentOnly()...)
	sg.POST("", api.create)
	sg.GET("", api.query)

	// detail endpoints
	dg := sg.Group("/:id", api.ownedSessionMiddleware)
	dg.GET("", api.retrieve)
	dg.GET("/messages", api.queryMessages)
	dg.POST("/messages", api.createMessage)
	dg.POST("/end", api.end)
}

// ownedSessionMiddleware loads the `:id` session, which must belong to the context student.
func (api *sessionApi) ownedSessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			return errSessionNotFound
		}
		s, err := api.sessionSvc.GetForStudent(ctx.Request().Context(), getContextStudent(ctx).ID, id)
		if err != nil {
			if errors.Cause(err) == session.ErrNotFound {
				return errSessionNotFound
			}
			return errors.Wrap(err, "getting session")
		}
		ctx.Set(sessionContextKey, s)
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) session.Session {
	s, _ := ctx.Get(sessionContextKey).(session.Session)
	return s
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	stu := getContextStudent(ctx)
	if !stu.IsActive {
		return errSessionInactive
	}
	t, err := api.tutorSvc.GetByID(rctx, stu.TutorID)
	if err != nil {
		return errors.Wrap(err, "getting student tutor")
	}

	s, err := api.sessionSvc.Start(rctx, stu, t)
	if err != nil {
		if errors.Cause(err) == session.ErrStudentInactive {
			return errSessionInactive
		}
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *sessionApi) query(ctx echo.Context) error {
	sessions, err := api.sessionSvc.QueryByStudent(ctx.Request().Context(), getContextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	s, err := api.sessionSvc.GetWithMessages(ctx.Request().Context(), getContextSession(ctx))
	if err != nil {
		return errors.Wrap(err, "getting session messages")
	}
	if s.Messages == nil {
		s.Messages = []session.Message{}
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) queryMessages(ctx echo.Context) error {
	msgs, err := api.sessionSvc.QueryMessages(ctx.Request().Context(), getContextSession(ctx))
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []session.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *sessionApi) createMessage(ctx echo.Context) error {
	var data session.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.sessionSvc.PostMessage(ctx.Request().Context(), getContextSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *sessionApi) end(ctx echo.Context) error {
	s, err := api.sessionSvc.End(ctx.Request().Context(), getContextSession(ctx))
	if err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.JSON(http.StatusOK, s)
}
