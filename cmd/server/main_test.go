package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"coupdegrace/server/internal/config"
)

func TestServeFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("COUPDEGRACE_ADDR", ":9000")
	t.Setenv("COUPDEGRACE_SEED", "from-env")

	var got config.Config
	cmd := newServeCmd(func(_ context.Context, settings config.Config) error {
		got = settings
		return nil
	})
	cmd.SetArgs([]string{"--addr", ":7000", "--tick-rate", "30"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if got.Addr != ":7000" || got.TickRate != 30 {
		t.Fatalf("expected flags to override, got addr=%q tick=%d", got.Addr, got.TickRate)
	}
	if got.Seed != "from-env" {
		t.Fatalf("expected unset flag to keep env seed, got %q", got.Seed)
	}
}

func TestServeRejectsInvalidFlag(t *testing.T) {
	called := false
	cmd := newServeCmd(func(context.Context, config.Config) error {
		called = true
		return nil
	})
	cmd.SetArgs([]string{"--tick-rate", "-1"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected negative tick rate to fail validation")
	}
	if called {
		t.Fatalf("expected run not to be called")
	}
}

func TestSchemaCommandWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "prototypes.schema.json")
	root := newRootCmd()
	root.SetArgs([]string{"schema", "--out", out})
	if err := root.Execute(); err != nil {
		t.Fatalf("schema returned error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid JSON schema: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}
}

func TestSchemaCommandRequiresOut(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"schema"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected missing --out to fail")
	}
}
