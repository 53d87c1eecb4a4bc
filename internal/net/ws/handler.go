package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/sim"
	"coupdegrace/server/internal/telemetry"
)

// Sessions tracks which connection belongs to which entity. *popup.Hub
// satisfies it.
type Sessions interface {
	Subscribe(entityID string, conn popup.Conn)
	Unsubscribe(entityID string, conn popup.Conn)
	Send(entityID string, payload any) error
}

// Commands accepts commands for the next simulation tick. *sim.Loop
// satisfies it.
type Commands interface {
	Enqueue(cmd sim.Command) (bool, string)
}

type HandlerConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Now     func() time.Time
}

type Handler struct {
	sessions Sessions
	commands Commands
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	now      func() time.Time
	upgrader websocket.Upgrader
}

func NewHandler(sessions Sessions, commands Commands, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		sessions: sessions,
		commands: commands,
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      now,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	entityID := r.URL.Query().Get("entity")
	if entityID == "" {
		nethttp.Error(w, "missing entity", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", entityID, err)
		return
	}

	h.sessions.Subscribe(entityID, conn)
	defer h.sessions.Unsubscribe(entityID, conn)
	h.count("ws_sessions_opened_total")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", entityID, err)
			continue
		}

		cmd, ok := h.command(entityID, msg)
		if !ok {
			h.logger.Printf("unknown message type %q from %s", msg.Type, entityID)
			continue
		}
		if accepted, reason := h.commands.Enqueue(cmd); !accepted {
			reject := commandRejectMessage{
				Type:   "commandReject",
				Reason: reason,
				Retry:  reason == sim.CommandRejectQueueLimit,
			}
			if err := h.sessions.Send(entityID, reject); err != nil {
				return
			}
		}
	}
}

func (h *Handler) command(entityID string, msg clientMessage) (sim.Command, bool) {
	cmd := sim.Command{ActorID: entityID, IssuedAt: h.now()}
	switch msg.Type {
	case "move":
		cmd.Type = sim.CommandMove
		cmd.Move = &sim.MoveCommand{DX: msg.DX, DY: msg.DY}
	case "verbs":
		cmd.Type = sim.CommandListVerbs
		cmd.Verb = &sim.VerbCommand{Target: msg.Target}
	case "verb":
		if msg.Name == "" {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandVerb
		cmd.Verb = &sim.VerbCommand{Target: msg.Target, Name: msg.Name}
	case "pickup":
		cmd.Type = sim.CommandPickUp
		cmd.PickUp = &sim.PickUpCommand{Item: msg.Item}
	case "drop":
		cmd.Type = sim.CommandDrop
	case "restrain", "release":
		if msg.Target == "" {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandRestrain
		cmd.Restrain = &sim.RestrainCommand{Target: msg.Target, Release: msg.Type == "release"}
	case "spawn":
		if msg.Prototype == "" {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandSpawn
		cmd.Spawn = &sim.SpawnCommand{Prototype: msg.Prototype, X: msg.X, Y: msg.Y}
	default:
		return sim.Command{}, false
	}
	return cmd, true
}

func (h *Handler) count(key string) {
	if h.metrics != nil {
		h.metrics.Add(key, 1)
	}
}

type clientMessage struct {
	Type      string  `json:"type"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Target    string  `json:"target"`
	Name      string  `json:"name"`
	Item      string  `json:"item"`
	Prototype string  `json:"prototype"`
}

type commandRejectMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}
