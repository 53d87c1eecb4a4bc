// Package execution lets an actor finish off an incapacitated target with a
// held implement after an interruptible delay.
package execution

import (
	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/telemetry"
	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
)

// ClumsyChance is the probability that an accident-prone actor fumbles a
// ranged execution.
const ClumsyChance = 1.0 / 3

type Config struct {
	World     World
	Melee     MeleeAttacker
	Guns      Shooter
	Scheduler Scheduler
	Popups    popup.Gateway
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

// System implements the execute verb. All methods run on the simulation loop.
type System struct {
	world     World
	melee     MeleeAttacker
	guns      Shooter
	scheduler Scheduler
	popups    popup.Gateway
	publisher logging.Publisher
	logger    telemetry.Logger
}

func NewSystem(cfg Config) *System {
	if cfg.World == nil {
		return nil
	}
	popups := cfg.Popups
	if popups == nil {
		popups = popup.Multi(nil)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &System{
		world:     cfg.World,
		melee:     cfg.Melee,
		guns:      cfg.Guns,
		scheduler: cfg.Scheduler,
		popups:    popups,
		publisher: publisher,
		logger:    logger,
	}
}

// implementKind is how an implement delivers the lethal effect.
type implementKind int

const (
	kindNone implementKind = iota
	kindMelee
	kindRanged
)

func (k implementKind) String() string {
	switch k {
	case kindMelee:
		return "melee"
	case kindRanged:
		return "ranged"
	default:
		return "none"
	}
}

// kindOf resolves the implement's capability. Melee wins over ranged.
func kindOf(implement *world.Entity) implementKind {
	switch {
	case implement == nil:
		return kindNone
	case implement.Melee != nil:
		return kindMelee
	case implement.Gun != nil:
		return kindRanged
	default:
		return kindNone
	}
}

func (s *System) implementKind(id string) implementKind {
	entity, _ := s.world.Entity(id)
	return kindOf(entity)
}

// marker returns the implement's execution marker.
func (s *System) marker(implement string) (*world.ExecutionMarker, bool) {
	entity, ok := s.world.Entity(implement)
	if !ok || entity.Execution == nil {
		return nil, false
	}
	return entity.Execution, true
}

func (s *System) ref(id string) logging.EntityRef {
	entity, ok := s.world.Entity(id)
	switch {
	case !ok:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
	case entity.Mob != nil:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindMob}
	default:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindImplement}
	}
}

func (s *System) notify(pair messagePair, actor, target, implement string, predicted bool, external popup.Severity) {
	args := popup.Args{Attacker: actor, Victim: target, Weapon: implement}
	internal := popup.Popup{Key: pair.internal, Args: args, Severity: popup.SeverityMedium}
	if predicted {
		s.popups.PopupPredicted(internal, actor)
	} else {
		s.popups.PopupConfirmed(internal, actor)
	}
	s.popups.PopupBroadcast(popup.Popup{Key: pair.external, Args: args, Severity: external}, actor)
}
