package world

import (
	"context"
	"math"

	"coupdegrace/server/internal/damage"
	"coupdegrace/server/logging"
	"coupdegrace/server/logging/lifecycle"
)

// DamageResult reports what ApplyDamage changed.
type DamageResult struct {
	Applied  damage.Spec
	Total    float64
	Previous MobState
	State    MobState
}

// Killed reports whether this damage moved the mob into the dead state.
func (r DamageResult) Killed() bool {
	return r.Previous != MobStateDead && r.State == MobStateDead
}

// ApplyDamage adds delta to the target's accumulated damage, clamping each
// type at zero, and re-evaluates its mob state. Non-finite amounts are
// rejected. origin names the entity responsible, if any.
func (w *World) ApplyDamage(targetID string, delta damage.Spec, origin string) (DamageResult, bool) {
	entity, ok := w.Entity(targetID)
	if !ok || entity.Damageable == nil {
		return DamageResult{}, false
	}
	for _, amount := range delta {
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			return DamageResult{}, false
		}
	}
	if delta.IsZero() {
		return DamageResult{}, false
	}

	previous := MobStateAlive
	if entity.Mob != nil {
		previous = entity.Mob.State
	}

	before := entity.Damageable.Damage.Clone()
	entity.Damageable.Damage = entity.Damageable.Damage.Add(delta).ClampNonNegative()
	applied := entity.Damageable.Damage.Sub(before)

	if entity.Mob != nil {
		w.updateMobState(entity)
	}

	result := DamageResult{
		Applied:  applied,
		Total:    entity.Damageable.Damage.Total(),
		Previous: previous,
		State:    previous,
	}
	if entity.Mob != nil {
		result.State = entity.Mob.State
	}
	if applied.Total() > damage.Epsilon {
		w.notifyDamaged(targetID, applied, origin)
	}
	return result, true
}

// Heal removes damage; it never brings a dead mob back.
func (w *World) Heal(targetID string, amount damage.Spec) (DamageResult, bool) {
	return w.ApplyDamage(targetID, amount.Scale(-1), "")
}

func (w *World) updateMobState(entity *Entity) {
	mob := entity.Mob
	if mob.State == MobStateDead {
		return
	}
	total := 0.0
	if entity.Damageable != nil {
		total = entity.Damageable.Damage.Total()
	}
	previous := mob.State
	switch {
	case mob.Thresholds.Dead > 0 && total >= mob.Thresholds.Dead:
		mob.State = MobStateDead
	case mob.Thresholds.Critical > 0 && total >= mob.Thresholds.Critical:
		mob.State = MobStateCritical
	default:
		mob.State = MobStateAlive
	}
	if mob.State != previous {
		lifecycle.MobStateChanged(context.Background(), w.publisher, w.tick, w.ref(entity.ID), lifecycle.MobStatePayload{
			From: previous.String(),
			To:   mob.State.String(),
		})
	}
}

func (w *World) ref(id string) logging.EntityRef {
	entity, ok := w.entities[id]
	switch {
	case !ok:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
	case entity.Mob != nil:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindMob}
	default:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindImplement}
	}
}

func (w *World) HasDamageable(id string) bool {
	entity, ok := w.Entity(id)
	return ok && entity.Damageable != nil
}

func (w *World) HasMobState(id string) bool {
	entity, ok := w.Entity(id)
	return ok && entity.Mob != nil
}

func (w *World) MobState(id string) (MobState, bool) {
	entity, ok := w.Entity(id)
	if !ok || entity.Mob == nil {
		return MobStateAlive, false
	}
	return entity.Mob.State, true
}

// IsDead is false for entities without a mob state.
func (w *World) IsDead(id string) bool {
	state, ok := w.MobState(id)
	return ok && state == MobStateDead
}

// TotalDamage sums the damage an entity has taken.
func (w *World) TotalDamage(id string) float64 {
	entity, ok := w.Entity(id)
	if !ok || entity.Damageable == nil {
		return 0
	}
	return entity.Damageable.Damage.Total()
}
