package execution

import (
	"context"

	"coupdegrace/server/logging"
)

const (
	// EventStarted is emitted when an execution do-after is accepted by the scheduler.
	EventStarted logging.EventType = "execution.started"
	// EventRejected is emitted when the scheduler refuses to start the do-after.
	EventRejected logging.EventType = "execution.rejected"
	// EventInterrupted is emitted when a pending execution is cancelled by a break condition.
	EventInterrupted logging.EventType = "execution.interrupted"
	// EventLapsed is emitted when the do-after completes but the target is no longer eligible.
	EventLapsed logging.EventType = "execution.lapsed"
	// EventCompleted is emitted after the lethal effect resolved.
	EventCompleted logging.EventType = "execution.completed"
)

// StartedPayload describes an accepted execution attempt.
type StartedPayload struct {
	Implement      string `json:"implement"`
	Kind           string `json:"kind"`
	DoAfterID      string `json:"doAfterId"`
	DurationMillis int64  `json:"durationMillis"`
}

// RejectedPayload names the implement whose do-after the scheduler refused.
type RejectedPayload struct {
	Implement string `json:"implement"`
}

// InterruptedPayload identifies the do-after that was cancelled.
type InterruptedPayload struct {
	Implement string `json:"implement"`
	DoAfterID string `json:"doAfterId"`
}

// LapsedPayload identifies an attempt that went stale while pending.
type LapsedPayload struct {
	Implement string `json:"implement"`
	DoAfterID string `json:"doAfterId"`
}

// CompletedPayload captures how the execution resolved.
type CompletedPayload struct {
	Implement string `json:"implement"`
	Kind      string `json:"kind"`
	Clumsy    bool   `json:"clumsy,omitempty"`
	Landed    bool   `json:"landed"`
}

func Started(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload StartedPayload) {
	publish(ctx, pub, EventStarted, logging.SeverityInfo, actor, target, payload)
}

func Rejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload RejectedPayload) {
	publish(ctx, pub, EventRejected, logging.SeverityDebug, actor, target, payload)
}

func Interrupted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload InterruptedPayload) {
	publish(ctx, pub, EventInterrupted, logging.SeverityInfo, actor, target, payload)
}

func Lapsed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload LapsedPayload) {
	publish(ctx, pub, EventLapsed, logging.SeverityInfo, actor, target, payload)
}

// Completed is published at warn severity: executions are high-impact
// actions that admins audit.
func Completed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, target logging.EntityRef, payload CompletedPayload) {
	publish(ctx, pub, EventCompleted, logging.SeverityWarn, actor, target, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, actor logging.EntityRef, target logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: severity,
		Category: logging.CategoryExecution,
		Payload:  payload,
	})
}
