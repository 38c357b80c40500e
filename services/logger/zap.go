package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/virtualtutor/core"
)

// NewZapLogger builds the named zap logger of an app: colored development output in debug mode, JSON otherwise.
func NewZapLogger(conf *core.Config, name string) *zap.Logger {
	var config zap.Config
	if conf.Debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	if conf.TestMode {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	config.OutputPaths = []string{"stdout"}

	logger, err := config.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger.Named(name)
}

// New returns the core.Logger of an app named name (API, DB, ENGINE, ...).
func New(conf *core.Config, name, host string) *RollbarLogger {
	logger := NewRollbarLogger(NewZapLogger(conf, name), conf, host)
	logger.Enable(!conf.Debug)
	return logger
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{zl: zap.NewNop().Sugar()}
}
