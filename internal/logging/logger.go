package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file written beneath Options.Dir.
const FileName = "podcast_service.log"

// Structured field keys shared by every component.
const (
	FieldFeed      = "feed"
	FieldEpisodeID = "episode_id"
	FieldTitle     = "title"
	FieldSeq       = "seq"
	FieldRemoteID  = "remote_id"
	FieldRunID     = "run_id"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	Dir         string
	OutputPaths []string
}

// New constructs a zap logger. Format is "console" (default) or "json". When
// Dir is set the logger also writes to Dir/podcast_service.log.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if trimmed := strings.TrimSpace(opts.Level); trimmed != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(trimmed))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	var cfg zap.Config
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputs = append(append([]string{}, outputs...), filepath.Join(opts.Dir, FileName))
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = level > zapcore.DebugLevel
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
