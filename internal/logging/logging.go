// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/config"
)

// Setup installs the global logger from cfg. The returned closer releases the
// rotating file, if one was opened.
func Setup(cfg config.LoggingConfig, production bool) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if !production || cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rl, err := newRotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		out = zerolog.MultiLevelWriter(out, rl)
		closer = rl
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func newRotatingFile(cfg config.LoggingConfig) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	opts := []rotatelogs.Option{rotatelogs.WithLinkName(cfg.File)}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}
	if cfg.RotationTime > 0 {
		opts = append(opts, rotatelogs.WithRotationTime(cfg.RotationTime))
	}

	rl, err := rotatelogs.New(cfg.File+".%Y%m%d", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return rl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
