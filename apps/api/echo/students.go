package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
)

const tutorContextKey = "tutor"

type studentApi struct {
	tutorSvc   *tutor.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	auth *authenticator,
	tutorSvc *tutor.Service,
	studentSvc *student.Service,
	validate *validator.Validate,
) {
	api := studentApi{
		tutorSvc:   tutorSvc,
		studentSvc: studentSvc,
		validate:   validate,
	}

	sg := g.Group("/admin/students", append(auth.adminOnly(), api.ownedTutorMiddleware)...)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.PATCH("/:student_id", api.update)
}

// ownedTutorMiddleware loads the tutor of the `tutor_id` query param, which must belong to the context admin.
func (api *studentApi) ownedTutorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		param := ctx.QueryParam("tutor_id")
		if param == "" {
			return errTutorIDRequired
		}
		id, err := strconv.Atoi(param)
		if err != nil {
			return errTutorNotOwned
		}
		t, err := api.tutorSvc.GetOwned(ctx.Request().Context(), getContextAdmin(ctx).ID, id)
		if err != nil {
			if errors.Cause(err) == tutor.ErrNotFound {
				return errTutorNotOwned
			}
			return errors.Wrap(err, "getting tutor")
		}
		ctx.Set(tutorContextKey, t)
		return next(ctx)
	}
}

func getContextTutor(ctx echo.Context) tutor.Tutor {
	t, _ := ctx.Get(tutorContextKey).(tutor.Tutor)
	return t
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.studentSvc.Create(ctx.Request().Context(), getContextTutor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, stu)
}

func (api *studentApi) query(ctx echo.Context) error {
	students, err := api.studentSvc.QueryByTutor(ctx.Request().Context(), getContextTutor(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) update(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("student_id"))
	if err != nil {
		return errStudentNotFound
	}
	rctx := ctx.Request().Context()
	stu, err := api.studentSvc.GetForTutor(rctx, getContextTutor(ctx).ID, id)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errStudentNotFound
		}
		return errors.Wrap(err, "getting student")
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	stu, err = api.studentSvc.Update(rctx, stu, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}
