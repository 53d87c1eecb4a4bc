package popup

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coupdegrace/server/internal/telemetry"
)

const writeWait = 5 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	conn Conn
	mu   sync.Mutex
}

type popupMessage struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Args      Args   `json:"args"`
	Severity  string `json:"severity"`
	Predicted bool   `json:"predicted"`
}

type HubConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Hub is a Gateway that writes popups to websocket subscribers, one per
// entity. Subscribe and Unsubscribe are called from connection goroutines;
// popups are sent from the simulation loop.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	logger      telemetry.Logger
	metrics     telemetry.Metrics
}

func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// Subscribe attaches conn to entityID, closing any connection it replaces.
func (h *Hub) Subscribe(entityID string, conn Conn) {
	if h == nil || entityID == "" || conn == nil {
		return
	}
	h.mu.Lock()
	existing, ok := h.subscribers[entityID]
	h.subscribers[entityID] = &subscriber{conn: conn}
	h.mu.Unlock()
	if ok {
		existing.conn.Close()
	}
}

// Unsubscribe detaches conn if it is still the entity's connection.
func (h *Hub) Unsubscribe(entityID string, conn Conn) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[entityID]; ok && sub.conn == conn {
		delete(h.subscribers, entityID)
	}
}

// Subscribers lists subscribed entities in sorted order.
func (h *Hub) Subscribers() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) PopupPredicted(p Popup, recipient string) {
	h.sendPopup(p, true, func(id string) bool { return id == recipient })
}

func (h *Hub) PopupConfirmed(p Popup, recipient string) {
	h.sendPopup(p, false, func(id string) bool { return id == recipient })
}

func (h *Hub) PopupBroadcast(p Popup, except string) {
	h.sendPopup(p, false, func(id string) bool { return id != except })
}

// Send writes an arbitrary JSON message to one entity's connection.
func (h *Hub) Send(entityID string, payload any) error {
	if h == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("popup: marshal message for %s: %w", entityID, err)
	}
	h.mu.Lock()
	sub, ok := h.subscribers[entityID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return h.write(entityID, sub, data)
}

func (h *Hub) sendPopup(p Popup, predicted bool, include func(id string) bool) {
	if h == nil {
		return
	}
	data, err := json.Marshal(popupMessage{
		Type:      "popup",
		Key:       p.Key,
		Args:      p.Args,
		Severity:  p.Severity.String(),
		Predicted: predicted,
	})
	if err != nil {
		h.logger.Printf("failed to marshal popup %s: %v", p.Key, err)
		return
	}

	h.mu.Lock()
	targets := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		if include(id) {
			targets[id] = sub
		}
	}
	h.mu.Unlock()

	for id, sub := range targets {
		if err := h.write(id, sub, data); err != nil {
			h.logger.Printf("failed to send popup %s to %s: %v", p.Key, id, err)
			continue
		}
		if h.metrics != nil {
			h.metrics.Add("popups_sent_total", 1)
		}
	}
}

func (h *Hub) write(entityID string, sub *subscriber, data []byte) error {
	sub.mu.Lock()
	err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err == nil {
		err = sub.conn.WriteMessage(websocket.TextMessage, data)
	}
	sub.mu.Unlock()
	if err != nil {
		h.Unsubscribe(entityID, sub.conn)
		sub.conn.Close()
		return fmt.Errorf("popup: write to %s: %w", entityID, err)
	}
	return nil
}
