package combat

import (
	"coupdegrace/server/internal/damage"
	"coupdegrace/server/internal/world"
)

// World is the slice of world state the combat systems read and mutate.
// *world.World satisfies it.
type World interface {
	Entity(id string) (*world.Entity, bool)
	IsHolding(holderID, itemID string) bool
	IsInCombatMode(id string) bool
	CanAttack(actorID, targetID string) bool
	ApplyDamage(targetID string, delta damage.Spec, origin string) (world.DamageResult, bool)
	EntitiesNear(coords world.Coordinates, radius float64) []string
	Tick() uint64
}

// CombatModes reads and writes an entity's combat mode.
type CombatModes interface {
	IsInCombatMode(id string) bool
	SetInCombatMode(id string, active bool)
}

// Override forces actor's combat mode to active and returns a func that
// restores the previous value. Callers defer the restore so every exit path
// puts the flag back.
func Override(modes CombatModes, actorID string, active bool) func() {
	if modes == nil {
		return func() {}
	}
	previous := modes.IsInCombatMode(actorID)
	modes.SetInCombatMode(actorID, active)
	return func() {
		modes.SetInCombatMode(actorID, previous)
	}
}

func entityRefKind(entity *world.Entity) string {
	if entity == nil {
		return ""
	}
	if entity.Mob != nil {
		return "mob"
	}
	return "implement"
}
