package combat

import (
	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
)

// DefaultHitRadius is how close to the impact point an entity must be for a
// projectile to hit it.
const DefaultHitRadius = 0.5

type GunConfig struct {
	World     World
	Publisher logging.Publisher
}

// GunSystem fires projectiles from held guns.
type GunSystem struct {
	world    World
	recorder damageRecorder
}

func NewGunSystem(cfg GunConfig) *GunSystem {
	if cfg.World == nil {
		return nil
	}
	return &GunSystem{
		world:    cfg.World,
		recorder: damageRecorder{world: cfg.World, publisher: cfg.Publisher},
	}
}

// AttemptShoot fires gun at coords. The projectile lands at coords and hits
// the nearest damageable entity other than the shooter within the gun's hit
// radius. It reports whether a round was fired; a miss still counts.
func (g *GunSystem) AttemptShoot(userID, gunID string, coords world.Coordinates) bool {
	if g == nil || userID == "" {
		return false
	}
	gun, ok := g.world.Entity(gunID)
	if !ok || gun.Gun == nil {
		return false
	}
	if !g.world.IsHolding(userID, gunID) {
		return false
	}
	if gun.Gun.Ammo == 0 {
		return false
	}
	if gun.Gun.Ammo > 0 {
		gun.Gun.Ammo--
	}

	radius := gun.Gun.HitRadius
	if radius <= 0 {
		radius = DefaultHitRadius
	}

	hit := ""
	for _, id := range g.world.EntitiesNear(coords, radius) {
		if id == userID {
			continue
		}
		candidate, ok := g.world.Entity(id)
		if !ok || candidate.Damageable == nil {
			continue
		}
		hit = id
		break
	}
	g.recorder.recordShot(userID, gunID, coords, hit)
	if hit == "" {
		return true
	}
	if result, ok := g.world.ApplyDamage(hit, gun.Gun.Damage.Clone(), userID); ok {
		g.recorder.recordHit(userID, gunID, hit, result, false)
	}
	return true
}
