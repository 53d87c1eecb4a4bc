package execution

import "coupdegrace/server/internal/combat"

// OnGetMeleeDamage scales the base damage of an executing weapon by its
// marker's damage modifier. Both the attack context and the marker must
// report an execution in progress. Register it with the melee system.
func (s *System) OnGetMeleeDamage(ev *combat.MeleeDamageEvent) {
	if s == nil || ev == nil || !ev.Context.Execution {
		return
	}
	marker, ok := s.marker(ev.Weapon)
	if !ok || !marker.Executing {
		return
	}
	bonus := ev.BaseDamage.Scale(marker.DamageModifier).Sub(ev.BaseDamage)
	ev.Damage = ev.Damage.Add(bonus)
}
