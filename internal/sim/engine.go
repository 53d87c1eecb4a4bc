package sim

import (
	"errors"
	"fmt"
	"time"

	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/verbs"
	"coupdegrace/server/internal/world"
)

var (
	// ErrMissingWorld indicates NewEngine was invoked without a world instance.
	ErrMissingWorld = errors.New("sim: world is nil")
	// ErrUnknownCommand is returned for command types the engine does not handle.
	ErrUnknownCommand = errors.New("sim: unknown command")
	// ErrRejected wraps commands the world refused.
	ErrRejected = errors.New("sim: command rejected")
)

// Spawner instantiates named prototypes. *prototype.Catalog satisfies it.
type Spawner interface {
	Spawn(w *world.World, name string, at world.Coordinates) (*world.Entity, error)
}

// Replier sends a direct reply to one entity's client.
type Replier interface {
	Send(entityID string, payload any) error
}

// EngineCore is what the loop drives once per tick.
type EngineCore interface {
	Deps() Deps
	Apply(cmds []Command) error
	Step(tick uint64, now time.Time)
}

type EngineConfig struct {
	World      *world.World
	Scheduler  *doafter.Scheduler
	Verbs      *verbs.Registry
	Prototypes Spawner
	Replies    Replier
	Deps       Deps
}

// Engine applies commands to the world and advances pending do-afters. It
// owns the world: nothing else mutates it while the loop runs.
type Engine struct {
	world      *world.World
	scheduler  *doafter.Scheduler
	verbs      *verbs.Registry
	prototypes Spawner
	replies    Replier
	deps       Deps
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.World == nil {
		return nil, ErrMissingWorld
	}
	return &Engine{
		world:      cfg.World,
		scheduler:  cfg.Scheduler,
		verbs:      cfg.Verbs,
		prototypes: cfg.Prototypes,
		replies:    cfg.Replies,
		deps:       cfg.Deps,
	}, nil
}

func (e *Engine) Deps() Deps {
	if e == nil {
		return Deps{}
	}
	return e.deps
}

// Apply runs every command in order. A failing command does not stop the
// ones after it; their errors are joined.
func (e *Engine) Apply(cmds []Command) error {
	if e == nil {
		return nil
	}
	var errs []error
	for _, cmd := range cmds {
		if err := e.apply(cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s from %q: %w", cmd.Type, cmd.ActorID, err))
		}
	}
	return errors.Join(errs...)
}

// Step stamps the tick on the world and completes due do-afters.
func (e *Engine) Step(tick uint64, now time.Time) {
	if e == nil {
		return
	}
	e.world.SetTick(tick)
	e.scheduler.Update(now)
}

func (e *Engine) apply(cmd Command) error {
	switch cmd.Type {
	case CommandMove:
		if cmd.Move == nil {
			return ErrRejected
		}
		return rejectUnless(e.world.Move(cmd.ActorID, cmd.Move.DX, cmd.Move.DY))
	case CommandPickUp:
		if cmd.PickUp == nil {
			return ErrRejected
		}
		return rejectUnless(e.world.PickUp(cmd.ActorID, cmd.PickUp.Item))
	case CommandDrop:
		_, ok := e.world.Drop(cmd.ActorID)
		return rejectUnless(ok)
	case CommandRestrain:
		if cmd.Restrain == nil {
			return ErrRejected
		}
		return rejectUnless(e.world.Restrain(cmd.ActorID, cmd.Restrain.Target, !cmd.Restrain.Release))
	case CommandVerb:
		if cmd.Verb == nil {
			return ErrRejected
		}
		args := e.verbs.Args(cmd.ActorID, cmd.Verb.Target)
		if _, ok := e.verbs.Invoke(args, cmd.Verb.Name); !ok {
			return fmt.Errorf("%w: verb %q unavailable on %q", ErrRejected, cmd.Verb.Name, cmd.Verb.Target)
		}
		return nil
	case CommandListVerbs:
		if cmd.Verb == nil {
			return ErrRejected
		}
		return e.replyVerbs(cmd.ActorID, cmd.Verb.Target)
	case CommandSpawn:
		if cmd.Spawn == nil || e.prototypes == nil {
			return ErrRejected
		}
		_, err := e.prototypes.Spawn(e.world, cmd.Spawn.Prototype, world.Coordinates{X: cmd.Spawn.X, Y: cmd.Spawn.Y})
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

type verbEntry struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	Message string `json:"message,omitempty"`
	Impact  string `json:"impact"`
}

type verbsMessage struct {
	Type   string      `json:"type"`
	Target string      `json:"target"`
	Verbs  []verbEntry `json:"verbs"`
}

func (e *Engine) replyVerbs(actorID, target string) error {
	if e.replies == nil {
		return nil
	}
	offered := e.verbs.Verbs(e.verbs.Args(actorID, target))
	msg := verbsMessage{Type: "verbs", Target: target, Verbs: make([]verbEntry, 0, len(offered))}
	for _, v := range offered {
		msg.Verbs = append(msg.Verbs, verbEntry{Name: v.Name, Text: v.Text, Message: v.Message, Impact: v.Impact.String()})
	}
	return e.replies.Send(actorID, msg)
}

func rejectUnless(ok bool) error {
	if ok {
		return nil
	}
	return ErrRejected
}
