package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts slog to the cron.Logger interface.
type CronLogger struct {
	log *slog.Logger
}

var _ cron.Logger = CronLogger{}

// NewCron returns a cron logger tagged with the component name.
func NewCron(base *slog.Logger, component string) CronLogger {
	if base == nil {
		base = slog.Default()
	}
	return CronLogger{log: base.With("component", component)}
}

// Info logs routine scheduler events at debug level; cron is chatty.
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered job panics.
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err}, keysAndValues...)
	l.log.Error(msg, args...)
}
