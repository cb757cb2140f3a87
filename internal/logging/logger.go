// Package logging adapts core.Logger to go.uber.org/zap, the structured
// logger the rest of the pack reaches for.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Swind/go-task-runner/core"
)

// New builds a zap.Logger configured for development or production use.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ZapAdapter adapts a *zap.Logger to core.Logger, so core.Pool and
// crawl.Orchestrator can be handed a production logger without
// depending on zap directly.
type ZapAdapter struct {
	logger *zap.Logger
}

var _ core.Logger = (*ZapAdapter)(nil)

// Wrap returns a core.Logger backed by logger.
func Wrap(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger}
}

func toZapFields(fields []core.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

func (a *ZapAdapter) Debug(msg string, fields ...core.Field) {
	a.logger.Debug(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Info(msg string, fields ...core.Field) {
	a.logger.Info(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Warn(msg string, fields ...core.Field) {
	a.logger.Warn(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Error(msg string, fields ...core.Field) {
	a.logger.Error(msg, toZapFields(fields)...)
}
