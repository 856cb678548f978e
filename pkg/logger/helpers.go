package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one API request outcome at a level matching the status.
func LogRequest(l Logger, method, url string, status int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"method":   method,
		"url":      url,
		"status":   status,
		"duration": elapsed,
	}

	switch {
	case status >= 500:
		l.ErrorWithFields("request failed with server error", fields)
	case status >= 400:
		l.WarnWithFields("request rejected", fields)
	default:
		l.DebugWithFields("request completed", fields)
	}
}

// LogAsset records one saved or failed asset.
func LogAsset(l Logger, itemID, kind, path string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"item_id": itemID,
		"asset":   kind,
		"path":    path,
	})
	if err != nil {
		entry.WithError(err).Error("asset save failed")
		return
	}
	entry.Debug("asset saved")
}

// LogRunStart and LogRunStop bracket an export run.
func LogRunStart(l Logger, runID, kind string, fields map[string]interface{}) {
	l.WithField("run_id", runID).WithField("kind", kind).InfoWithFields("export started", fields)
}

func LogRunStop(l Logger, runID, reason string, elapsed time.Duration) {
	l.WithFields(map[string]interface{}{
		"run_id":  runID,
		"reason":  reason,
		"elapsed": elapsed,
	}).Info("export finished")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                  {}
func (n nopLogger) Info(string)                                   {}
func (n nopLogger) Warn(string)                                   {}
func (n nopLogger) Error(string)                                  {}
func (n nopLogger) WithField(string, interface{}) Logger          { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger      { return n }
func (n nopLogger) WithError(error) Logger                        { return n }
func (n nopLogger) WithContext(context.Context) Logger            { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n nopLogger) GetZerolog() *zerolog.Logger                   { return nil }
