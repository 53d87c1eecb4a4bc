package combat

import (
	"coupdegrace/server/internal/damage"
	"coupdegrace/server/logging"
)

// AttackContext travels with a single attack through damage computation so
// hooks can tell what kind of attack they are modifying.
type AttackContext struct {
	// Execution marks the attack as the resolution of an execution.
	Execution bool
}

// MeleeDamageEvent is handed to every damage hook while the melee system
// computes the damage of one hit. Hooks add to Damage; BaseDamage is the
// weapon's unmodified damage.
type MeleeDamageEvent struct {
	Weapon     string
	User       string
	Target     string
	BaseDamage damage.Spec
	Damage     damage.Spec
	Context    AttackContext
}

// MeleeDamageHook adjusts the damage of a melee hit.
type MeleeDamageHook func(ev *MeleeDamageEvent)

type MeleeConfig struct {
	World     World
	Publisher logging.Publisher
}

// MeleeSystem resolves light attacks made with melee weapons.
type MeleeSystem struct {
	world    World
	recorder damageRecorder
	hooks    []MeleeDamageHook
}

func NewMeleeSystem(cfg MeleeConfig) *MeleeSystem {
	if cfg.World == nil {
		return nil
	}
	return &MeleeSystem{
		world:    cfg.World,
		recorder: damageRecorder{world: cfg.World, publisher: cfg.Publisher},
	}
}

// OnGetDamage registers a hook run once per computed hit, in registration order.
func (m *MeleeSystem) OnGetDamage(hook MeleeDamageHook) {
	if m == nil || hook == nil {
		return
	}
	m.hooks = append(m.hooks, hook)
}

// GetDamage computes the damage weapon would deal to target, running every
// registered hook exactly once.
func (m *MeleeSystem) GetDamage(userID, weaponID, targetID string, ctx AttackContext) (damage.Spec, bool) {
	if m == nil {
		return nil, false
	}
	weapon, ok := m.world.Entity(weaponID)
	if !ok || weapon.Melee == nil {
		return nil, false
	}
	ev := &MeleeDamageEvent{
		Weapon:     weaponID,
		User:       userID,
		Target:     targetID,
		BaseDamage: weapon.Melee.Damage.Clone(),
		Damage:     weapon.Melee.Damage.Clone(),
		Context:    ctx,
	}
	for _, hook := range m.hooks {
		hook(ev)
	}
	return ev.Damage.ClampNonNegative(), true
}

// AttemptLightAttack swings weapon at target. The user must be in combat
// mode, be holding the weapon (or be the weapon, for unarmed attacks) and be
// able to attack the target. It reports whether damage was dealt.
func (m *MeleeSystem) AttemptLightAttack(userID, weaponID, targetID string, ctx AttackContext) bool {
	if m == nil || userID == "" || targetID == "" {
		return false
	}
	if !m.world.IsInCombatMode(userID) {
		return false
	}
	if weaponID != userID && !m.world.IsHolding(userID, weaponID) {
		return false
	}
	if !m.world.CanAttack(userID, targetID) {
		return false
	}
	spec, ok := m.GetDamage(userID, weaponID, targetID, ctx)
	if !ok || spec.IsZero() {
		return false
	}
	result, ok := m.world.ApplyDamage(targetID, spec, userID)
	if !ok {
		return false
	}
	m.recorder.recordHit(userID, weaponID, targetID, result, ctx.Execution)
	return true
}
