package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"coupdegrace/server/logging"
)

// Console prints one human-readable line per event.
type Console struct {
	logger *log.Logger
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{logger: log.New(w, "", log.LstdFlags)}
}

func (s *Console) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] tick=%d actor=%s severity=%s%s%s", event.Type, event.Tick, formatEntity(event.Actor), event.Severity, formatTargets(event.Targets), formatPayload(event.Payload))
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return " targets=" + strings.Join(parts, ",")
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return " payload=" + string(data)
}
