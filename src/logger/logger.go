package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jiaming2012/optionprisma/src/config"
)

// Setup configures the standard logrus logger. The returned closer releases the
// log file, if any.
func Setup(cfg config.LoggingConfig, telemetryEnabled bool) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: Setup: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logger: Setup: unknown format %q", cfg.Format)
	}

	out, closer := newOutput(cfg)
	log.SetOutput(out)

	if telemetryEnabled {
		log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
			log.InfoLevel,
		)))
	}

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newOutput(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nopCloser{}
	case "stderr":
		return os.Stderr, nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	return file, file
}
