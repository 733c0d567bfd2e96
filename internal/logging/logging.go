// Package logging builds the zap logger used across prltutor.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/prltutor/internal/config"
)

// New returns a production logger when cfg.Env is "production" and a
// development logger otherwise. When cfg.LogFile is set, output goes to that
// file instead of stderr.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Production() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("PRLTUTOR_LOG_LEVEL: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		zc.OutputPaths = []string{cfg.LogFile}
		zc.ErrorOutputPaths = []string{cfg.LogFile}
	}

	return zc.Build()
}

// ForTUI is New with output forced into a file, since the terminal belongs
// to the interface. fallback is used when cfg.LogFile is empty.
func ForTUI(cfg *config.Config, fallback string) (*zap.Logger, error) {
	c := *cfg
	if c.LogFile == "" {
		c.LogFile = fallback
	}
	return New(&c)
}
