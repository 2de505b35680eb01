package pionengine

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pion/logging"
)

// loggerFactory routes the logs of every pion subsystem to a logr logger.
type loggerFactory struct {
	logger logr.Logger
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return leveledLogger{logger: f.logger.WithName(scope)}
}

type leveledLogger struct {
	logger logr.Logger
}

func (l leveledLogger) Trace(msg string) { l.logger.V(2).Info(msg) }
func (l leveledLogger) Tracef(format string, args ...interface{}) {
	l.logger.V(2).Info(fmt.Sprintf(format, args...))
}

func (l leveledLogger) Debug(msg string) { l.logger.V(1).Info(msg) }
func (l leveledLogger) Debugf(format string, args ...interface{}) {
	l.logger.V(1).Info(fmt.Sprintf(format, args...))
}

func (l leveledLogger) Info(msg string) { l.logger.Info(msg) }
func (l leveledLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l leveledLogger) Warn(msg string) { l.logger.Info(msg, "warn", true) }
func (l leveledLogger) Warnf(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), "warn", true)
}

func (l leveledLogger) Error(msg string) { l.logger.Error(nil, msg) }
func (l leveledLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(nil, fmt.Sprintf(format, args...))
}
