// Package log wraps go.uber.org/zap the way the teacher distinguished
// sc.logf (always-on) from sc.vlogf (gated by a verbose flag): New picks
// zap.NewDevelopment when verbose is requested and zap.NewProduction
// otherwise, and OrNop turns a nil logger into a no-op one so callers need
// no nil pointer check at every call site.
package log

import "go.uber.org/zap"

// New builds a *zap.Logger appropriate for verbose, falling back to a no-op
// logger if zap construction itself fails (it practically never does for
// the default configs, but a logging failure must never be fatal to the
// server it's attached to).
func New(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// OrNop returns logger unchanged, or a no-op logger if logger is nil, so
// every component can log unconditionally instead of nil-checking.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
