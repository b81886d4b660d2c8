package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogMaxSize    = 50
	defaultLogMaxBackups = 5
	defaultLogMaxAge     = 14
)

type LogConfig struct {
	// Path is a log file. Empty logs to stderr.
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

func (c LogConfig) WithDefaults() LogConfig {
	cpy := c
	if cpy.Level == "" {
		cpy.Level = defaultLogLevel
	}
	if cpy.MaxSize == 0 {
		cpy.MaxSize = defaultLogMaxSize
	}
	if cpy.MaxBackups == 0 {
		cpy.MaxBackups = defaultLogMaxBackups
	}
	if cpy.MaxAge == 0 {
		cpy.MaxAge = defaultLogMaxAge
	}
	return cpy
}

// CreateLogger builds the process logger. debug forces debug level and the
// development encoder.
func (c *Config) CreateLogger(debug bool) (
	*zap.Logger,
	io.Closer,
	error,
) {
	lc := LogConfig{}.WithDefaults()
	if c.Log != nil {
		lc = c.Log.WithDefaults()
	}
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(lc.Level)))
	if err != nil {
		return nil, nil, errors.Wrap(err, "create logger")
	}
	if debug {
		level = zapcore.DebugLevel
	}

	if lc.Path != "" {
		logger, closer, err := newRotatingFileLogger(debug, level, lc)
		return logger, closer, errors.Wrap(err, "create logger")
	}

	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "create logger")
	}
	return logger, io.NopCloser(nil), nil
}

func newRotatingFileLogger(debug bool, level zapcore.Level, lc LogConfig) (
	*zap.Logger,
	io.Closer,
	error,
) {
	if err := os.MkdirAll(filepath.Dir(lc.Path), 0o755); err != nil {
		return nil, nil, err
	}
	rot := &lumberjack.Logger{
		Filename:   lc.Path,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
		Compress:   lc.Compress,
	}

	encCfg := zap.NewProductionEncoderConfig()
	if debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	enc := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewCore(enc, zapcore.AddSync(rot), level)
	return zap.New(core, zap.AddCaller()), rot, nil
}
