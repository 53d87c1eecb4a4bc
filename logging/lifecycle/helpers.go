package lifecycle

import (
	"context"

	"coupdegrace/server/logging"
)

const (
	// EventMobStateChanged is emitted when damage or healing moves a mob
	// between alive, critical and dead.
	EventMobStateChanged logging.EventType = "lifecycle.mob_state_changed"
	// EventRestrained is emitted when an entity is restrained or released.
	EventRestrained logging.EventType = "lifecycle.restrained"
)

const category = "lifecycle"

// MobStatePayload records the transition.
type MobStatePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RestrainedPayload reports the new restraint state.
type RestrainedPayload struct {
	Restrained bool `json:"restrained"`
}

// MobStateChanged publishes a mob state transition for actor.
func MobStateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MobStatePayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.To == "dead" {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMobStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: category,
		Payload:  payload,
	})
}

// Restrained publishes that actor restrained or released target.
func Restrained(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload RestrainedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRestrained,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: category,
		Payload:  payload,
	})
}
