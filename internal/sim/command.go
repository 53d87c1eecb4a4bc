package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandMove      CommandType = "Move"
	CommandVerb      CommandType = "Verb"
	CommandListVerbs CommandType = "ListVerbs"
	CommandPickUp    CommandType = "PickUp"
	CommandDrop      CommandType = "Drop"
	CommandSpawn     CommandType = "Spawn"
	CommandRestrain  CommandType = "Restrain"
)

// MoveCommand carries a movement delta.
type MoveCommand struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// VerbCommand names a verb to run on, or to list for, a target.
type VerbCommand struct {
	Target string `json:"target"`
	Name   string `json:"name,omitempty"`
}

// PickUpCommand names the item to pick up.
type PickUpCommand struct {
	Item string `json:"item"`
}

// SpawnCommand places a prototype instance in the world.
type SpawnCommand struct {
	Prototype string  `json:"prototype"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// RestrainCommand cuffs the target, or frees it when Release is set.
type RestrainCommand struct {
	Target  string `json:"target"`
	Release bool   `json:"release,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64           `json:"originTick"`
	ActorID    string           `json:"actorId"`
	Type       CommandType      `json:"type"`
	IssuedAt   time.Time        `json:"issuedAt"`
	Move       *MoveCommand     `json:"move,omitempty"`
	Verb       *VerbCommand     `json:"verb,omitempty"`
	PickUp     *PickUpCommand   `json:"pickUp,omitempty"`
	Spawn      *SpawnCommand    `json:"spawn,omitempty"`
	Restrain   *RestrainCommand `json:"restrain,omitempty"`
}
