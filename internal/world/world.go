package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"coupdegrace/server/internal/damage"
	"coupdegrace/server/logging"
)

const (
	DefaultSeed             = "prototype"
	DefaultInteractionRange = 1.5
)

var (
	ErrDuplicateEntity = errors.New("world: duplicate entity id")
	ErrUnknownEntity   = errors.New("world: unknown entity")
)

type Config struct {
	Seed             string  `json:"seed"`
	InteractionRange float64 `json:"interactionRange"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.InteractionRange <= 0 {
		normalized.InteractionRange = DefaultInteractionRange
	}
	return normalized
}

// RNGFactory produces deterministic RNG instances for world subsystems.
type RNGFactory func(rootSeed, label string) *rand.Rand

// Deps bundles runtime dependencies required to construct a World instance.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
}

// Listener receives world mutations. The do-after scheduler subscribes to
// evaluate its break conditions.
type Listener struct {
	OnMoved        func(entityID string)
	OnDamaged      func(entityID string, delta damage.Spec, origin string)
	OnHandsChanged func(entityID string)
	OnDespawned    func(entityID string)
}

// World owns every entity. It is not safe for concurrent use: all calls are
// made from the simulation loop goroutine.
type World struct {
	config     Config
	publisher  logging.Publisher
	rngFactory RNGFactory
	clumsyRNG  *rand.Rand

	entities  map[string]*Entity
	nextID    uint64
	tick      uint64
	listeners []Listener
}

// New constructs a world with normalized configuration and seeded RNG.
func New(cfg Config, deps Deps) *World {
	normalized := cfg.normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	w := &World{
		config:     normalized,
		publisher:  publisher,
		rngFactory: factory,
		entities:   make(map[string]*Entity),
	}
	w.clumsyRNG = w.SubsystemRNG("clumsy")
	return w
}

func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// SubsystemRNG derives a deterministic RNG for the labelled subsystem.
func (w *World) SubsystemRNG(label string) *rand.Rand {
	return w.rngFactory(w.config.Seed, label)
}

func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

func (w *World) SetTick(tick uint64) {
	if w == nil {
		return
	}
	w.tick = tick
}

func (w *World) Subscribe(listener Listener) {
	if w == nil {
		return
	}
	w.listeners = append(w.listeners, listener)
}

// Spawn adds the entity, assigning an ID when none is set.
func (w *World) Spawn(entity Entity) (*Entity, error) {
	if w == nil {
		return nil, ErrUnknownEntity
	}
	if entity.ID == "" {
		w.nextID++
		prefix := entity.Prototype
		if prefix == "" {
			prefix = "entity"
		}
		entity.ID = fmt.Sprintf("%s-%d", prefix, w.nextID)
	}
	if _, exists := w.entities[entity.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, entity.ID)
	}
	if entity.Mob != nil && entity.Damageable == nil {
		entity.Damageable = &Damageable{}
	}
	stored := entity
	w.entities[stored.ID] = &stored
	if stored.Mob != nil {
		w.updateMobState(&stored)
	}
	return &stored, nil
}

// Despawn removes the entity, dropping anything it held.
func (w *World) Despawn(id string) bool {
	entity, ok := w.entities[id]
	if !ok {
		return false
	}
	if entity.Hands != nil && entity.Hands.Active != "" {
		w.Drop(id)
	}
	if entity.HeldBy != "" {
		if holder, ok := w.entities[entity.HeldBy]; ok && holder.Hands != nil && holder.Hands.Active == id {
			holder.Hands.Active = ""
			w.notifyHandsChanged(holder.ID)
		}
	}
	delete(w.entities, id)
	for _, l := range w.listeners {
		if l.OnDespawned != nil {
			l.OnDespawned(id)
		}
	}
	return true
}

func (w *World) Entity(id string) (*Entity, bool) {
	if w == nil {
		return nil, false
	}
	entity, ok := w.entities[id]
	return entity, ok
}

// Position reports where the entity is; held items share their holder's position.
func (w *World) Position(id string) (Coordinates, bool) {
	entity, ok := w.Entity(id)
	if !ok {
		return Coordinates{}, false
	}
	if entity.HeldBy != "" {
		if holder, ok := w.entities[entity.HeldBy]; ok {
			return holder.Position, true
		}
	}
	return entity.Position, true
}

// Move shifts the entity by dx, dy. Zero moves are not announced.
func (w *World) Move(id string, dx, dy float64) bool {
	entity, ok := w.Entity(id)
	if !ok || entity.HeldBy != "" {
		return false
	}
	if dx == 0 && dy == 0 {
		return true
	}
	entity.Position = entity.Position.Offset(dx, dy)
	w.notifyMoved(id)
	return true
}

// EntitiesNear lists entities within radius of coords, nearest first.
func (w *World) EntitiesNear(coords Coordinates, radius float64) []string {
	type candidate struct {
		id   string
		dist float64
	}
	var found []candidate
	for id, entity := range w.entities {
		if entity.HeldBy != "" {
			continue
		}
		if dist := entity.Position.DistanceTo(coords); dist <= radius {
			found = append(found, candidate{id: id, dist: dist})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist == found[j].dist {
			return found[i].id < found[j].id
		}
		return found[i].dist < found[j].dist
	})
	ids := make([]string, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.id)
	}
	return ids
}

func (w *World) notifyMoved(id string) {
	for _, l := range w.listeners {
		if l.OnMoved != nil {
			l.OnMoved(id)
		}
	}
}

func (w *World) notifyDamaged(id string, delta damage.Spec, origin string) {
	for _, l := range w.listeners {
		if l.OnDamaged != nil {
			l.OnDamaged(id, delta, origin)
		}
	}
}

func (w *World) notifyHandsChanged(id string) {
	for _, l := range w.listeners {
		if l.OnHandsChanged != nil {
			l.OnHandsChanged(id)
		}
	}
}
