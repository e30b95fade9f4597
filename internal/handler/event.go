// Package handler is the Lambda entry point of the alarm reconciler.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/alarm"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/lifecycle"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/lambda-errors-alarm/internal/handler")

// Reconciler applies a lifecycle decision to the alarm backend.
type Reconciler interface {
	Apply(ctx context.Context, decision lifecycle.Decision) error
}

// EventHandler consumes CloudTrail lifecycle events delivered by EventBridge.
//
// The rule invoking it has no retries and a one-minute maximum event age, so
// a returned error would only be dropped by the platform. HandleRequest
// therefore logs every failure once and always reports success.
type EventHandler struct {
	reconciler  Reconciler
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewEventHandler creates a new EventHandler. A zero callTimeout leaves the
// invocation deadline as the only bound on the alarm service call.
func NewEventHandler(reconciler Reconciler, callTimeout time.Duration, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		reconciler:  reconciler,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// HandleRequest reconciles the alarm of the function named in event. It never
// returns an error.
func (h *EventHandler) HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	ctx, span := tracer.Start(ctx, "handler.reconcile")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			h.fail(ctx, span, "reconcile panicked", err, slog.String("eventID", event.ID))
		}
	}()

	detail, err := lifecycle.Parse(event.Detail)
	if err != nil {
		h.fail(ctx, span, "cannot parse lifecycle event", err, slog.String("eventID", event.ID))
		return nil
	}

	decision := lifecycle.Classify(detail)
	span.SetAttributes(
		attribute.String("lifecycle.event_name", detail.EventName),
		attribute.String("lifecycle.action", decision.Action.String()),
	)

	if decision.Action == lifecycle.ActionIgnore {
		h.logger.DebugContext(
			ctx,
			"ignoring lifecycle event",
			slog.String("eventID", detail.EventID),
			slog.String("eventName", detail.EventName),
			slog.String("errorCode", detail.ErrorCode),
			slog.String("reason", decision.Reason),
		)
		return nil
	}

	alarmName := alarm.Name(decision.FunctionName)
	span.SetAttributes(attribute.String("alarm.name", alarmName))

	callCtx, cancel := h.withCallTimeout(ctx)
	defer cancel()

	if err := h.reconciler.Apply(callCtx, decision); err != nil {
		h.fail(
			ctx,
			span,
			"cannot reconcile alarm",
			err,
			slog.String("eventID", detail.EventID),
			slog.String("action", decision.Action.String()),
			slog.String("functionName", decision.FunctionName),
			slog.String("alarmName", alarmName),
			slog.String("serviceErrorCode", serviceErrorCode(err)),
		)
		return nil
	}

	h.logger.DebugContext(
		ctx,
		"alarm reconciled",
		slog.String("eventID", detail.EventID),
		slog.String("action", decision.Action.String()),
		slog.String("functionName", decision.FunctionName),
		slog.String("alarmName", alarmName),
	)

	return nil
}

func (h *EventHandler) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.callTimeout)
}

// fail writes the single failure line of an invocation and marks the span.
func (h *EventHandler) fail(ctx context.Context, span trace.Span, msg string, err error, attrs ...slog.Attr) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	attrs = append(attrs, slog.String("error", err.Error()))
	h.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// serviceErrorCode extracts the AWS error code (e.g. ThrottlingException) from err.
func serviceErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
