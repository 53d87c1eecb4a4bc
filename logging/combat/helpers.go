package combat

import (
	"context"

	"coupdegrace/server/logging"
)

const (
	// EventDamage is emitted when an attack deals damage to a target.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a target's mob state becomes dead.
	EventDefeat logging.EventType = "combat.defeat"
	// EventShot is emitted for every projectile fired, hit or miss.
	EventShot logging.EventType = "combat.shot"
)

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Weapon      string             `json:"weapon,omitempty"`
	Amount      float64            `json:"amount"`
	ByType      map[string]float64 `json:"byType,omitempty"`
	TotalDamage float64            `json:"totalDamage"`
	Execution   bool               `json:"execution,omitempty"`
}

// DefeatPayload describes the context for a fatal blow.
type DefeatPayload struct {
	Weapon string `json:"weapon,omitempty"`
}

// ShotPayload captures where a projectile landed.
type ShotPayload struct {
	Weapon string  `json:"weapon"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Hit    string  `json:"hit,omitempty"`
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDamage,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// Defeat publishes a combat defeat event for the eliminated actor.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DefeatPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDefeat,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// Shot publishes where a projectile landed and what it hit, if anything.
func Shot(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ShotPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShot,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
