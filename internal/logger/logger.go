package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log *zap.Logger
	mu  sync.Mutex
)

// Init builds the global logger. Production uses JSON on stdout, everything
// else uses the colored development console encoder.
func Init(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic(err)
	}

	mu.Lock()
	log = l.With(zap.String("service", "payment"))
	mu.Unlock()
}

// L returns the global logger, initializing it from APP_ENV on first use.
func L() *zap.Logger {
	mu.Lock()
	l := log
	mu.Unlock()

	if l == nil {
		Init(os.Getenv("APP_ENV"))
		mu.Lock()
		l = log
		mu.Unlock()
	}
	return l
}

// Sync flushes logs.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}
