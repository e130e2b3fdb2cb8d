package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// LogrusAdapter routes watermill logs through logrus.
type LogrusAdapter struct {
	log logrus.FieldLogger
}

// NewLogrusAdapter wraps log as a watermill.LoggerAdapter.
func NewLogrusAdapter(log logrus.FieldLogger) watermill.LoggerAdapter {
	return &LogrusAdapter{log: log}
}

func (a *LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.entry(fields).WithError(err).Error(msg)
}

func (a *LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.entry(fields).Info(msg)
}

func (a *LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.entry(fields).Debug(msg)
}

func (a *LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.entry(fields).Debug(msg)
}

func (a *LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogrusAdapter{log: a.entry(fields)}
}

func (a *LogrusAdapter) entry(fields watermill.LogFields) logrus.FieldLogger {
	if len(fields) == 0 {
		return a.log
	}
	return a.log.WithFields(logrus.Fields(fields))
}
