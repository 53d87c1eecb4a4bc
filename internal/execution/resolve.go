package execution

import (
	"context"

	"coupdegrace/server/internal/combat"
	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/world"
	loggingexecution "coupdegrace/server/logging/execution"
)

// Resolve delivers the lethal effect. The actor is forced into combat mode
// and the marker flagged as executing for the duration of the call; both are
// restored on return. A marker that is already executing is refused, so
// resolution never nests for one implement.
func (s *System) Resolve(implement, target, actor string, marker *world.ExecutionMarker, ev *doafter.Event) bool {
	if s == nil || marker == nil || marker.Executing {
		return false
	}
	restore := combat.Override(s.world, actor, true)
	marker.Executing = true
	defer func() {
		restore()
		marker.Executing = false
	}()

	kind := s.implementKind(implement)
	clumsy := false
	landed := false
	switch kind {
	case kindMelee:
		if s.melee != nil {
			landed = s.melee.AttemptLightAttack(actor, implement, target, combat.AttackContext{Execution: true})
		}
	case kindRanged:
		clumsy = s.rollClumsy(actor)
		coords, _ := s.world.Position(target)
		if clumsy {
			coords = coords.Offset(1, 0)
		}
		if s.guns != nil {
			landed = s.guns.AttemptShoot(actor, implement, coords)
		}
		if ev != nil {
			ev.Handled = true
		}
	default:
		s.logger.Printf("execution: implement %s has neither a melee weapon nor a gun", implement)
	}

	s.notify(completeMessages(kind, clumsy), actor, target, implement, false, popup.SeverityMediumCaution)
	loggingexecution.Completed(context.Background(), s.publisher, s.ref(actor), s.ref(target), loggingexecution.CompletedPayload{
		Implement: implement,
		Kind:      kind.String(),
		Clumsy:    clumsy,
		Landed:    landed,
	})

	if ev != nil {
		ev.Handled = true
	}
	return true
}

func (s *System) rollClumsy(actor string) bool {
	entity, ok := s.world.Entity(actor)
	if !ok || entity.Clumsy == nil {
		return false
	}
	return s.world.TryRollClumsy(actor, ClumsyChance, entity.Clumsy)
}
