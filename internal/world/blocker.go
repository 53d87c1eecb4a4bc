package world

import (
	"context"

	"coupdegrace/server/logging/lifecycle"
)

// CanInteract reports whether the entity may act on the world. Mobs that are
// not alive, restrained or stunned cannot; entities without a mob state have
// nothing blocking them.
func (w *World) CanInteract(id string) bool {
	entity, ok := w.Entity(id)
	if !ok {
		return false
	}
	if entity.Restrained || entity.Stunned {
		return false
	}
	if entity.Mob != nil && entity.Mob.State != MobStateAlive {
		return false
	}
	return true
}

// CanAttack reports whether actor may attack target: the actor must be able
// to interact and the target must be within the actor's reach.
func (w *World) CanAttack(actorID, targetID string) bool {
	if !w.CanInteract(actorID) {
		return false
	}
	return w.within(actorID, targetID, w.Reach(actorID))
}

// Reach is how far the actor can strike: the range of the melee weapon in its
// active hand when one is set, the interaction range otherwise.
func (w *World) Reach(actorID string) float64 {
	if held, ok := w.ActiveHandItem(actorID); ok {
		if item, ok := w.entities[held]; ok && item.Melee != nil && item.Melee.Range > 0 {
			return item.Melee.Range
		}
	}
	return w.config.InteractionRange
}

// InRange reports whether both entities exist and are within interaction range.
func (w *World) InRange(actorID, targetID string) bool {
	return w.within(actorID, targetID, w.config.InteractionRange)
}

func (w *World) within(actorID, targetID string, distance float64) bool {
	actor, ok := w.Position(actorID)
	if !ok {
		return false
	}
	target, ok := w.Position(targetID)
	if !ok {
		return false
	}
	return actor.DistanceTo(target) <= distance
}

// Restrain cuffs or releases target on behalf of actor. The actor must be
// able to interact and stand within interaction range; only mobs other than
// the actor can be restrained.
func (w *World) Restrain(actorID, targetID string, restrained bool) bool {
	if actorID == targetID || !w.CanInteract(actorID) || !w.InRange(actorID, targetID) {
		return false
	}
	target, ok := w.Entity(targetID)
	if !ok || target.Mob == nil {
		return false
	}
	if target.Restrained == restrained {
		return true
	}
	target.Restrained = restrained
	lifecycle.Restrained(context.Background(), w.publisher, w.tick, w.ref(actorID), w.ref(targetID), lifecycle.RestrainedPayload{
		Restrained: restrained,
	})
	return true
}

func (w *World) SetRestrained(id string, restrained bool) bool {
	entity, ok := w.Entity(id)
	if !ok {
		return false
	}
	entity.Restrained = restrained
	return true
}

func (w *World) SetStunned(id string, stunned bool) bool {
	entity, ok := w.Entity(id)
	if !ok {
		return false
	}
	entity.Stunned = stunned
	return true
}

// IsInCombatMode is false for entities without a combat mode.
func (w *World) IsInCombatMode(id string) bool {
	entity, ok := w.Entity(id)
	return ok && entity.CombatMode != nil && entity.CombatMode.Active
}

// SetInCombatMode toggles combat mode, ignoring entities without one.
func (w *World) SetInCombatMode(id string, active bool) {
	entity, ok := w.Entity(id)
	if !ok || entity.CombatMode == nil {
		return
	}
	entity.CombatMode.Active = active
}
