package combat

import (
	"context"

	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
	loggingcombat "coupdegrace/server/logging/combat"
)

type damageRecorder struct {
	world     World
	publisher logging.Publisher
}

func (r damageRecorder) entityRef(id string) logging.EntityRef {
	if id == "" {
		return logging.EntityRef{}
	}
	entity, ok := r.world.Entity(id)
	if !ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKind(entityRefKind(entity))}
}

// recordHit publishes damage telemetry and, when the hit was fatal, a defeat.
func (r damageRecorder) recordHit(userID, weaponID, targetID string, result world.DamageResult, execution bool) {
	if r.publisher == nil {
		return
	}
	user := r.entityRef(userID)
	target := r.entityRef(targetID)
	tick := r.world.Tick()

	loggingcombat.Damage(context.Background(), r.publisher, tick, user, target, loggingcombat.DamagePayload{
		Weapon:      weaponID,
		Amount:      result.Applied.Total(),
		ByType:      result.Applied,
		TotalDamage: result.Total,
		Execution:   execution,
	})
	if result.Killed() {
		loggingcombat.Defeat(context.Background(), r.publisher, tick, user, target, loggingcombat.DefeatPayload{Weapon: weaponID})
	}
}

func (r damageRecorder) recordShot(userID, gunID string, coords world.Coordinates, hit string) {
	if r.publisher == nil {
		return
	}
	loggingcombat.Shot(context.Background(), r.publisher, r.world.Tick(), r.entityRef(userID), loggingcombat.ShotPayload{
		Weapon: gunID,
		X:      coords.X,
		Y:      coords.Y,
		Hit:    hit,
	})
}
