package dig_container

import (
	"context"
	"database/sql"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/virtualtutor/apps/api/echo"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/core/session"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
	cachesvc "github.com/trezcool/virtualtutor/services/cache"
	emailsvc "github.com/trezcool/virtualtutor/services/email"
	"github.com/trezcool/virtualtutor/services/engine"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
	"github.com/trezcool/virtualtutor/storage/database"
	sqlxrepos "github.com/trezcool/virtualtutor/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New(conf, "API", conf.Server.Host)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New(conf, "DB", conf.Server.Host)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sql.DB {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db
}

func newSqlxDB(db *sql.DB, conf *core.Config) *sqlx.DB {
	return sqlxrepos.NewDB(db, conf.Database.Engine)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newLoginLimiter shares the login attempts counters through redis when configured; in memory otherwise.
func newLoginLimiter(conf *core.Config, logger core.Logger) middleware.RateLimiterStore {
	limit, window := conf.Server.LoginRateLimit, conf.Server.LoginRateWindow
	if conf.Redis.Addr == "" {
		return cachesvc.NewMemoryRateLimiterStore(limit, window)
	}
	client, err := cachesvc.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory login rate limiting", err)
		return cachesvc.NewMemoryRateLimiterStore(limit, window)
	}
	return cachesvc.NewRedisRateLimiterStore(client, logger, "api:login", limit, window)
}

func newAvatarService(repo avatar.Repository, tutors *tutor.Service, eng *engine.Client, conf *core.Config, logger core.Logger) *avatar.Service {
	return avatar.NewService(repo, tutors, eng, conf, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newSqlxDB))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newLoginLimiter))

	must(c.Provide(sqlxrepos.NewAdminRepository))
	must(c.Provide(sqlxrepos.NewTutorRepository))
	must(c.Provide(sqlxrepos.NewStudentRepository))
	must(c.Provide(sqlxrepos.NewSessionRepository))
	must(c.Provide(sqlxrepos.NewAvatarRepository))

	must(c.Provide(engine.NewClient))
	must(c.Provide(admin.NewService))
	must(c.Provide(tutor.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(newAvatarService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
