package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/student"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

const (
	tokenContextKey   = "token"
	adminContextKey   = "admin"
	studentContextKey = "student"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ID returns the numeric subject of the claims.
func (c Claims) ID() (int, error) {
	return strconv.Atoi(c.Subject)
}

type authenticator struct {
	conf       *core.Config
	signingKey []byte
	adminSvc   *admin.Service
	studentSvc *student.Service
}

func newAuthenticator(conf *core.Config, adminSvc *admin.Service, studentSvc *student.Service) *authenticator {
	return &authenticator{
		conf:       conf,
		signingKey: []byte(conf.SecretKey),
		adminSvc:   adminSvc,
		studentSvc: studentSvc,
	}
}

// NewClaims returns the claims of a token issued for subject id acting as role.
func NewClaims(conf *core.Config, id int, role string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(id),
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwt returns the bearer token middleware answering failures with failErr.
func (a *authenticator) jwt(failErr *echo.HTTPError) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    a.signingKey,
		SigningMethod: echojwt.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
		ErrorHandler: func(_ echo.Context, err error) error {
			return failErr.WithInternal(err)
		},
	})
}

func getContextClaims(ctx echo.Context) (Claims, bool) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, true
		}
	}
	return Claims{}, false
}

// adminOnly resolves the admin of the bearer token; see getContextAdmin.
func (a *authenticator) adminOnly() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{a.jwt(errCredentials), a.loadAdmin}
}

func (a *authenticator) loadAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, ok := getContextClaims(ctx)
		if !ok || claims.Role != RoleAdmin {
			return errCredentials
		}
		id, err := claims.ID()
		if err != nil {
			return errCredentials
		}
		adm, err := a.adminSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == admin.ErrNotFound {
				return errCredentials
			}
			return errors.Wrap(err, "getting admin by id")
		}
		ctx.Set(adminContextKey, adm)
		return next(ctx)
	}
}

// studentOnly resolves the active student of the bearer token; see getContextStudent.
func (a *authenticator) studentOnly() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{a.jwt(errStudentCredentials), a.loadStudent}
}

func (a *authenticator) loadStudent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, ok := getContextClaims(ctx)
		if !ok || claims.Role != RoleStudent {
			return errStudentCredentials
		}
		id, err := claims.ID()
		if err != nil {
			return errStudentCredentials
		}
		stu, err := a.studentSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return errStudentCredentials
			}
			return errors.Wrap(err, "getting student by id")
		}
		if !stu.IsActive {
			return errStudentCredentials
		}
		ctx.Set(studentContextKey, stu)
		return next(ctx)
	}
}

func getContextAdmin(ctx echo.Context) admin.Admin {
	adm, _ := ctx.Get(adminContextKey).(admin.Admin)
	return adm
}

func getContextStudent(ctx echo.Context) student.Student {
	stu, _ := ctx.Get(studentContextKey).(student.Student)
	return stu
}

// principal reports the authenticated user of the request, if any.
func (a *authenticator) principal(ctx echo.Context) core.Person {
	if adm, ok := ctx.Get(adminContextKey).(admin.Admin); ok {
		return core.Person{ID: strconv.Itoa(adm.ID), Role: RoleAdmin, Email: adm.Email}
	}
	if stu, ok := ctx.Get(studentContextKey).(student.Student); ok {
		return core.Person{ID: strconv.Itoa(stu.ID), Role: RoleStudent, Email: stu.Email}
	}
	if claims, ok := getContextClaims(ctx); ok {
		return core.Person{ID: claims.Subject, Role: claims.Role}
	}
	return core.Person{}
}

// Handlers

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	r.Username = core.CleanString(r.Username, true /* lower */)
	return validate.Struct(r)
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type authApi struct {
	auth       *authenticator
	adminSvc   *admin.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	limiter echo.MiddlewareFunc,
	auth *authenticator,
	adminSvc *admin.Service,
	studentSvc *student.Service,
	validate *validator.Validate,
) {
	api := authApi{
		auth:       auth,
		adminSvc:   adminSvc,
		studentSvc: studentSvc,
		validate:   validate,
	}

	g.POST("/auth/login", api.adminLogin, limiter)
	g.POST("/student/auth/login", api.studentLogin, limiter)
}

func (api *authApi) bindLogin(ctx echo.Context) (LoginRequest, error) {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to LoginRequest")
	}
	return data, data.Validate(api.validate)
}

func (api *authApi) token(ctx echo.Context, id int, role string) error {
	token, err := GenerateToken(api.auth.conf, NewClaims(api.auth.conf, id, role))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{AccessToken: token, TokenType: "bearer"})
}

func (api *authApi) adminLogin(ctx echo.Context) error {
	data, err := api.bindLogin(ctx)
	if err != nil {
		return err
	}
	adm, err := api.adminSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == admin.ErrInvalidCredentials {
			return errLoginFailed
		}
		return errors.Wrap(err, "authenticating admin")
	}
	return api.token(ctx, adm.ID, RoleAdmin)
}

func (api *authApi) studentLogin(ctx echo.Context) error {
	data, err := api.bindLogin(ctx)
	if err != nil {
		return err
	}
	stu, err := api.studentSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case student.ErrInvalidCredentials:
			return errLoginFailed
		case student.ErrInactive:
			return errStudentInactive
		}
		return errors.Wrap(err, "authenticating student")
	}
	return api.token(ctx, stu.ID, RoleStudent)
}
