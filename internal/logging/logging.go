// Package logging constructs the single zap logger that cmd/netbot builds at
// startup and hands to the Supervisor, which shares it, read-only, with
// every event loop (spec.md §5: "shared
// resources ... read-only after startup"). The teacher's own common/log
// package ties logging to its config-registry framework (common.RegisterConfig);
// zap fills the same ambient role without that coupling.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netbot-proxy/netbot/internal/xerrors"
)

// New builds a production-style zap logger at the given minimum level.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

// LogError records err at the severity it carries (mapping xerrors.Severity
// onto zap's levels), with msg as the human-readable summary.
func LogError(log *zap.Logger, msg string, err error) {
	fields := []zap.Field{zap.Error(err)}
	switch xerrors.GetSeverity(err) {
	case xerrors.SeverityDebug:
		log.Debug(msg, fields...)
	case xerrors.SeverityWarning:
		log.Warn(msg, fields...)
	case xerrors.SeverityError:
		log.Error(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}
