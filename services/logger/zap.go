package logsvc

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

// ZapLogger writes structured events through zap.
type ZapLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

// NewZap builds a JSON production logger, or a console logger when debug is set.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	var zc zap.Config
	if conf.Debug {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.InitialFields = map[string]interface{}{"app": conf.AppName, "env": conf.Env, "build": conf.Build}
	return zc.Build()
}

// Sync flushes buffered entries.
func (l ZapLogger) Sync() error {
	return l.zl.Sync()
}

// expected fmt: error, map[string]interface{}, exam.Actor; anything else is attached positionally.
func fields(args []interface{}) []zap.Field {
	fs := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			fs = append(fs, zap.Error(a))
		case exam.Actor:
			fs = append(fs, zap.String("actor", a.String()), zap.String("school", a.SchoolID))
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fs = append(fs, zap.Any(k, a[k]))
			}
		default:
			fs = append(fs, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return fs
}

func (l ZapLogger) Debug(msg string, args ...interface{}) {
	l.zl.Debug(msg, fields(args)...)
}

func (l ZapLogger) Info(msg string, args ...interface{}) {
	l.zl.Info(msg, fields(args)...)
}

func (l ZapLogger) Warn(msg string, args ...interface{}) {
	l.zl.Warn(msg, fields(args)...)
}

func (l ZapLogger) Error(msg string, args ...interface{}) {
	l.zl.Error(msg, fields(args)...)
}

func (l ZapLogger) Fatal(msg string, args ...interface{}) {
	l.zl.Fatal(msg, fields(args)...)
}

// Tee fans every event out to several loggers.
type Tee []core.Logger

var _ core.Logger = Tee(nil)

func (t Tee) Debug(msg string, args ...interface{}) {
	for _, l := range t {
		l.Debug(msg, args...)
	}
}

func (t Tee) Info(msg string, args ...interface{}) {
	for _, l := range t {
		l.Info(msg, args...)
	}
}

func (t Tee) Warn(msg string, args ...interface{}) {
	for _, l := range t {
		l.Warn(msg, args...)
	}
}

func (t Tee) Error(msg string, args ...interface{}) {
	for _, l := range t {
		l.Error(msg, args...)
	}
}

// Fatal only lets the last logger exit the process.
func (t Tee) Fatal(msg string, args ...interface{}) {
	for i, l := range t {
		if i == len(t)-1 {
			l.Fatal(msg, args...)
			return
		}
		l.Error(msg, args...)
	}
}
