package world

import (
	"math"
	"time"

	"coupdegrace/server/internal/damage"
)

// Coordinates locate an entity on the map, in tiles.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset returns the coordinates shifted by dx, dy.
func (c Coordinates) Offset(dx, dy float64) Coordinates {
	return Coordinates{X: c.X + dx, Y: c.Y + dy}
}

// DistanceTo is the euclidean distance between two coordinates.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return math.Hypot(other.X-c.X, other.Y-c.Y)
}

// MobState is the life state of a mob.
type MobState int

const (
	MobStateAlive MobState = iota
	MobStateCritical
	MobStateDead
)

func (s MobState) String() string {
	switch s {
	case MobStateAlive:
		return "alive"
	case MobStateCritical:
		return "critical"
	case MobStateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Damageable lets an entity accumulate damage.
type Damageable struct {
	Damage damage.Spec
}

// MobThresholds are the total-damage values at which a mob changes state.
type MobThresholds struct {
	Critical float64 `json:"critical" yaml:"critical"`
	Dead     float64 `json:"dead" yaml:"dead"`
}

// Mob gives an entity a life state driven by its accumulated damage.
type Mob struct {
	State      MobState
	Thresholds MobThresholds
}

// CombatMode toggles whether an entity's clicks attack.
type CombatMode struct {
	Active bool
}

// Hands lets an entity hold one item in its active hand.
type Hands struct {
	Count  int
	Active string
}

// Clumsy marks an accident-prone entity.
type Clumsy struct{}

// MeleeWeapon lets an implement deal damage with light attacks.
type MeleeWeapon struct {
	Damage damage.Spec
	Range  float64
}

// Gun lets an implement fire projectiles. Ammo < 0 means unlimited.
type Gun struct {
	Damage    damage.Spec
	Ammo      int
	HitRadius float64
}

// ExecutionMarker makes an implement execution-capable. Executing is only
// true while an execution is resolving; it is never persisted.
type ExecutionMarker struct {
	DoAfterDuration time.Duration
	DamageModifier  float64
	Executing       bool
}

// Entity is a world object with optional components. A nil component means
// the entity does not have that capability.
type Entity struct {
	ID         string
	Prototype  string
	Name       string
	Position   Coordinates
	HeldBy     string
	Restrained bool
	Stunned    bool

	Damageable *Damageable
	Mob        *Mob
	CombatMode *CombatMode
	Hands      *Hands
	Clumsy     *Clumsy
	Melee      *MeleeWeapon
	Gun        *Gun
	Execution  *ExecutionMarker
}
