package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an upstream HTTP request
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogStrategyAttempt logs the start of a retrieval attempt
func LogStrategyAttempt(l Logger, identifier, strategy, account string) {
	fields := map[string]interface{}{
		"identifier": identifier,
		"strategy":   strategy,
	}
	if account != "" {
		fields["account"] = account
	}
	l.InfoWithFields("Trying strategy", fields)
}

// LogStrategyFailure logs a failed retrieval attempt with its classified type
func LogStrategyFailure(l Logger, identifier, strategy, account string, errorType string, err error) {
	fields := map[string]interface{}{
		"identifier": identifier,
		"strategy":   strategy,
		"error_type": errorType,
	}
	if account != "" {
		fields["account"] = account
	}
	l.WithError(err).WarnWithFields("Strategy failed", fields)
}

// LogDownload logs the final outcome of a download
func LogDownload(l Logger, identifier, platform, strategy string, files int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"identifier":  identifier,
		"platform":    platform,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		l.WithError(err).ErrorWithFields("Download failed", fields)
		return
	}
	fields["strategy"] = strategy
	fields["files"] = files
	l.InfoWithFields("Download completed", fields)
}

// LogAccountQuarantined logs an account being blocked after repeated failures
func LogAccountQuarantined(l Logger, username string, failures int, until time.Time) {
	l.WithFields(map[string]interface{}{
		"account":       username,
		"failures":      failures,
		"blocked_until": until,
		"action":        "quarantined",
	}).Warn("Account blocked after repeated failures")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
