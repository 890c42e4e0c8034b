package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports severe ones and returns the message to show and whether retrying may help.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	appErr := Classify(err)

	attrs := []slog.Attr{
		slog.String("code", appErr.Code),
		slog.String("message", appErr.Message),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.Int("status", appErr.Status),
	}
	if cause := appErr.Unwrap(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	level := slog.LevelWarn
	if appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical {
		level = slog.LevelError
	}
	log.LogAttrs(ctx, level, "application error", attrs...)

	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.sendToSentry(ctx, err, appErr)
	}

	userMessage := appErr.UserMessage
	if userMessage == "" {
		userMessage = defaultUserMessage
	}

	return userMessage, appErr.Retryable
}

func (h *Handler) sendToSentry(ctx context.Context, err error, appErr *AppError) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if appErr.Code != "" {
			scope.SetTag("code", appErr.Code)
		}
		if appErr.Severity != "" {
			scope.SetTag("severity", string(appErr.Severity))
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		var target *AppError
		if errors.As(err, &target) && target.cause != nil {
			hub.CaptureException(target.cause)
			return
		}
		hub.CaptureException(err)
	})
}
