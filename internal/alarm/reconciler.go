package alarm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/lifecycle"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/lambda-errors-alarm/internal/alarm")

// Service is the alarm backend the Reconciler drives.
// Implementations must treat a repeated put as a replacement and leave state
// unchanged on a repeated delete. Duplicate or reordered events rely on it.
type Service interface {
	PutAlarm(ctx context.Context, spec *Spec) error
	DeleteAlarms(ctx context.Context, names ...string) error
}

// Reconciler turns lifecycle decisions into alarm service calls.
// It keeps no state between calls and never retries.
type Reconciler struct {
	service Service
	actions Actions
}

// NewReconciler creates a new Reconciler instance.
func NewReconciler(service Service, actions Actions) *Reconciler {
	return &Reconciler{
		service: service,
		actions: actions,
	}
}

// EnsureAlarm creates or replaces the error alarm of functionName.
func (r *Reconciler) EnsureAlarm(ctx context.Context, functionName string) error {
	spec := NewSpec(functionName, r.actions)

	ctx, span := tracer.Start(ctx, "alarm.ensure")
	defer span.End()
	span.SetAttributes(
		attribute.String("alarm.name", spec.Name),
		attribute.String("faas.name", functionName),
	)

	return r.service.PutAlarm(ctx, spec)
}

// RemoveAlarm deletes the error alarm of functionName.
func (r *Reconciler) RemoveAlarm(ctx context.Context, functionName string) error {
	name := Name(functionName)

	ctx, span := tracer.Start(ctx, "alarm.remove")
	defer span.End()
	span.SetAttributes(
		attribute.String("alarm.name", name),
		attribute.String("faas.name", functionName),
	)

	return r.service.DeleteAlarms(ctx, name)
}

// Apply carries out a decision. Ignored decisions make no calls.
func (r *Reconciler) Apply(ctx context.Context, decision lifecycle.Decision) error {
	switch decision.Action {
	case lifecycle.ActionEnsure:
		return r.EnsureAlarm(ctx, decision.FunctionName)
	case lifecycle.ActionRemove:
		return r.RemoveAlarm(ctx, decision.FunctionName)
	case lifecycle.ActionIgnore:
		return nil
	default:
		return fmt.Errorf("unknown action: %d", decision.Action)
	}
}
