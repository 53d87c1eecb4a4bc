package execution

import (
	"coupdegrace/server/internal/combat"
	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/world"
)

type MobStates interface {
	HasMobState(id string) bool
	IsDead(id string) bool
}

type Damageables interface {
	HasDamageable(id string) bool
}

type ActionBlocker interface {
	CanAttack(actorID, targetID string) bool
	CanInteract(id string) bool
}

type CombatModes interface {
	IsInCombatMode(id string) bool
	SetInCombatMode(id string, active bool)
}

type ClumsyRoller interface {
	TryRollClumsy(actorID string, chance float64, trait *world.Clumsy) bool
}

// Entities resolves components and positions.
type Entities interface {
	Entity(id string) (*world.Entity, bool)
	Position(id string) (world.Coordinates, bool)
}

// World bundles every world query and mutation the execution system makes.
// *world.World satisfies it.
type World interface {
	MobStates
	Damageables
	ActionBlocker
	CombatModes
	ClumsyRoller
	Entities
}

type MeleeAttacker interface {
	AttemptLightAttack(userID, weaponID, targetID string, ctx combat.AttackContext) bool
}

type Shooter interface {
	AttemptShoot(userID, gunID string, coords world.Coordinates) bool
}

type Scheduler interface {
	TryStart(args doafter.Args) (doafter.Token, bool)
}
