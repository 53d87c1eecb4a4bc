// Package prototype loads entity prototypes from YAML and spawns them.
package prototype

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"coupdegrace/server/internal/damage"
	"coupdegrace/server/internal/world"
)

const (
	// DefaultDoAfterDuration is how long an execution takes when a prototype
	// does not say.
	DefaultDoAfterDuration = 5 * time.Second
	// DefaultDamageModifier multiplies the base damage of an executing melee hit.
	DefaultDamageModifier = 9.0
)

var (
	ErrUnknownPrototype = errors.New("prototype: unknown prototype")
	ErrInvalidPrototype = errors.New("prototype: invalid prototype")
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*$`)

//go:embed prototypes.yaml
var bundled []byte

// File is the document layout of a prototype file.
type File struct {
	Prototypes []Prototype `yaml:"prototypes" json:"prototypes" jsonschema:"required,description=Entity prototypes"`
}

type Prototype struct {
	ID         string         `yaml:"id" json:"id" jsonschema:"required,pattern=^[a-z0-9][a-z0-9-]*$,description=Identifier used to spawn the prototype"`
	Name       string         `yaml:"name,omitempty" json:"name,omitempty"`
	Mob        *MobSpec       `yaml:"mob,omitempty" json:"mob,omitempty" jsonschema:"description=Gives the entity a life state and damage thresholds"`
	Hands      int            `yaml:"hands,omitempty" json:"hands,omitempty" jsonschema:"minimum=0"`
	CombatMode bool           `yaml:"combatMode,omitempty" json:"combatMode,omitempty" jsonschema:"description=Entity can toggle combat mode"`
	Clumsy     bool           `yaml:"clumsy,omitempty" json:"clumsy,omitempty" jsonschema:"description=Entity is accident-prone"`
	Melee      *MeleeSpec     `yaml:"melee,omitempty" json:"melee,omitempty"`
	Gun        *GunSpec       `yaml:"gun,omitempty" json:"gun,omitempty"`
	Execution  *ExecutionSpec `yaml:"execution,omitempty" json:"execution,omitempty" jsonschema:"description=Makes the implement execution-capable"`
}

type MobSpec struct {
	Thresholds world.MobThresholds `yaml:"thresholds" json:"thresholds"`
}

type MeleeSpec struct {
	Damage map[string]float64 `yaml:"damage" json:"damage" jsonschema:"required"`
	Range  float64            `yaml:"range,omitempty" json:"range,omitempty" jsonschema:"description=Reach when held; omitted means the interaction range"`
}

type GunSpec struct {
	Damage    map[string]float64 `yaml:"damage" json:"damage" jsonschema:"required"`
	Ammo      *int               `yaml:"ammo,omitempty" json:"ammo,omitempty" jsonschema:"description=Rounds loaded; omitted or -1 means unlimited"`
	HitRadius float64            `yaml:"hitRadius,omitempty" json:"hitRadius,omitempty"`
}

type ExecutionSpec struct {
	DoAfterDuration string   `yaml:"doAfterDuration,omitempty" json:"doAfterDuration,omitempty" jsonschema:"description=Go duration string; defaults to 5s"`
	DamageModifier  *float64 `yaml:"damageModifier,omitempty" json:"damageModifier,omitempty" jsonschema:"minimum=0,description=Defaults to 9"`
}

// Catalog holds validated prototypes keyed by ID.
type Catalog struct {
	byID map[string]Prototype
}

// Parse decodes and validates a prototype document.
func Parse(data []byte) (*Catalog, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("prototype: decode: %w", err)
	}
	catalog := &Catalog{byID: make(map[string]Prototype, len(file.Prototypes))}
	for i, proto := range file.Prototypes {
		if err := proto.validate(); err != nil {
			return nil, fmt.Errorf("prototype %d (%q): %w", i, proto.ID, err)
		}
		if _, exists := catalog.byID[proto.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidPrototype, proto.ID)
		}
		catalog.byID[proto.ID] = proto
	}
	return catalog, nil
}

// Load reads and parses the prototype file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prototype: read %s: %w", path, err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Bundled returns the prototypes shipped with the server.
func Bundled() (*Catalog, error) {
	return Parse(bundled)
}

func (c *Catalog) Get(id string) (Prototype, bool) {
	if c == nil {
		return Prototype{}, false
	}
	proto, ok := c.byID[id]
	return proto, ok
}

// IDs lists every prototype ID in sorted order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spawn instantiates the named prototype at the given position.
func (c *Catalog) Spawn(w *world.World, name string, at world.Coordinates) (*world.Entity, error) {
	proto, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrototype, name)
	}
	entity := proto.Entity()
	entity.Position = at
	return w.Spawn(entity)
}

// Entity builds a fresh entity from the prototype. The ID is left empty for
// the world to assign.
func (p Prototype) Entity() world.Entity {
	entity := world.Entity{Prototype: p.ID, Name: p.Name}
	if entity.Name == "" {
		entity.Name = p.ID
	}
	if p.Mob != nil {
		entity.Mob = &world.Mob{Thresholds: p.Mob.Thresholds}
		entity.Damageable = &world.Damageable{}
	}
	if p.Hands > 0 {
		entity.Hands = &world.Hands{Count: p.Hands}
	}
	if p.CombatMode {
		entity.CombatMode = &world.CombatMode{}
	}
	if p.Clumsy {
		entity.Clumsy = &world.Clumsy{}
	}
	if p.Melee != nil {
		entity.Melee = &world.MeleeWeapon{Damage: damage.Spec(p.Melee.Damage).Clone(), Range: p.Melee.Range}
	}
	if p.Gun != nil {
		ammo := -1
		if p.Gun.Ammo != nil {
			ammo = *p.Gun.Ammo
		}
		entity.Gun = &world.Gun{Damage: damage.Spec(p.Gun.Damage).Clone(), Ammo: ammo, HitRadius: p.Gun.HitRadius}
	}
	if p.Execution != nil {
		entity.Execution = p.Execution.marker()
	}
	return entity
}

func (e ExecutionSpec) marker() *world.ExecutionMarker {
	marker := &world.ExecutionMarker{
		DoAfterDuration: DefaultDoAfterDuration,
		DamageModifier:  DefaultDamageModifier,
	}
	if e.DoAfterDuration != "" {
		// validated by Parse
		marker.DoAfterDuration, _ = time.ParseDuration(e.DoAfterDuration)
	}
	if e.DamageModifier != nil {
		marker.DamageModifier = *e.DamageModifier
	}
	return marker
}

func (p Prototype) validate() error {
	if !idPattern.MatchString(p.ID) {
		return fmt.Errorf("%w: id must match %s", ErrInvalidPrototype, idPattern)
	}
	if p.Hands < 0 {
		return fmt.Errorf("%w: hands must be >= 0", ErrInvalidPrototype)
	}
	if p.Mob != nil {
		t := p.Mob.Thresholds
		if t.Critical < 0 || t.Dead < 0 {
			return fmt.Errorf("%w: thresholds must be >= 0", ErrInvalidPrototype)
		}
		if t.Critical > 0 && t.Dead > 0 && t.Critical >= t.Dead {
			return fmt.Errorf("%w: critical threshold must be below dead threshold", ErrInvalidPrototype)
		}
	}
	if p.Melee != nil {
		if err := validateDamage("melee", p.Melee.Damage); err != nil {
			return err
		}
		if r := p.Melee.Range; r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: melee range must be a finite value >= 0", ErrInvalidPrototype)
		}
	}
	if p.Gun != nil {
		if err := validateDamage("gun", p.Gun.Damage); err != nil {
			return err
		}
		if p.Gun.Ammo != nil && *p.Gun.Ammo < -1 {
			return fmt.Errorf("%w: gun ammo must be >= -1", ErrInvalidPrototype)
		}
	}
	if p.Execution != nil {
		if d := p.Execution.DoAfterDuration; d != "" {
			parsed, err := time.ParseDuration(d)
			if err != nil {
				return fmt.Errorf("%w: execution doAfterDuration: %v", ErrInvalidPrototype, err)
			}
			if parsed < 0 {
				return fmt.Errorf("%w: execution doAfterDuration must be >= 0", ErrInvalidPrototype)
			}
		}
		if m := p.Execution.DamageModifier; m != nil && (*m < 0 || math.IsNaN(*m) || math.IsInf(*m, 0)) {
			return fmt.Errorf("%w: execution damageModifier must be a finite value >= 0", ErrInvalidPrototype)
		}
	}
	return nil
}

func validateDamage(component string, spec map[string]float64) error {
	if len(spec) == 0 {
		return fmt.Errorf("%w: %s damage is empty", ErrInvalidPrototype, component)
	}
	for typ, amount := range spec {
		if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			return fmt.Errorf("%w: %s damage %s must be a finite value >= 0", ErrInvalidPrototype, component, typ)
		}
	}
	return nil
}
