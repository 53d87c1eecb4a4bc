package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"coupdegrace/server/internal/net/ws"
	"coupdegrace/server/internal/telemetry"
)

// Snapshotter exposes counters for /diagnostics. *telemetry.Counters
// satisfies it.
type Snapshotter interface {
	Snapshot() map[string]uint64
}

type HTTPHandlerConfig struct {
	Logger    telemetry.Logger
	Telemetry Snapshotter
	TickRate  int
	Seed      string
}

func NewHTTPHandler(socket *ws.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var counters map[string]uint64
		if cfg.Telemetry != nil {
			counters = cfg.Telemetry.Snapshot()
		}
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			TickRate   int               `json:"tickRate"`
			Seed       string            `json:"seed"`
			Telemetry  map[string]uint64 `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   cfg.TickRate,
			Seed:       cfg.Seed,
			Telemetry:  counters,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
			nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if socket != nil {
		mux.HandleFunc("/ws", socket.Handle)
	}

	return mux
}
