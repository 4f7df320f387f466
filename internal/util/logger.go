// internal/util/logger.go
package util

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
)

// SetupLogger builds the process logger at the given level and installs it
// as the controller-runtime logger. The returned func flushes buffered logs.
func SetupLogger(level string, development bool) (logr.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zapLog, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	ctrl.SetLogger(zapr.NewLogger(zapLog))
	return NewLogger("cephfs-exporter"), func() { _ = zapLog.Sync() }, nil
}

// NewLogger creates a new logger with the given name
func NewLogger(name string) logr.Logger {
	return ctrl.Log.WithName(name)
}
