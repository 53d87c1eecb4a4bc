package execution

// CanExecute reports whether actor may execute target right now. The target
// must be a living, damageable mob that actor can attack and that can no
// longer act for itself.
func (s *System) CanExecute(target, actor string) bool {
	if s == nil || target == "" || actor == "" {
		return false
	}
	if actor == target {
		return false
	}
	if !s.world.HasDamageable(target) {
		return false
	}
	if !s.world.HasMobState(target) {
		return false
	}
	if s.world.IsDead(target) {
		return false
	}
	if !s.world.CanAttack(actor, target) {
		return false
	}
	return !s.world.CanInteract(target)
}
