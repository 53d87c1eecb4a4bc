package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"coupdegrace/server/internal/app"
	"coupdegrace/server/internal/config"
	"coupdegrace/server/internal/prototype"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Coup de grace game server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(app.Run), newSchemaCmd())
	return root
}

type runFunc func(ctx context.Context, settings config.Config) error

func newServeCmd(run runFunc) *cobra.Command {
	var (
		addr       string
		tickRate   int
		seed       string
		prototypes string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				settings.Addr = addr
			}
			if flags.Changed("tick-rate") {
				settings.TickRate = tickRate
			}
			if flags.Changed("seed") {
				settings.Seed = seed
			}
			if flags.Changed("prototypes") {
				settings.Prototypes = prototypes
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides COUPDEGRACE_ADDR)")
	cmd.Flags().IntVar(&tickRate, "tick-rate", 0, "simulation ticks per second (overrides COUPDEGRACE_TICK_RATE)")
	cmd.Flags().StringVar(&seed, "seed", "", "world RNG seed (overrides COUPDEGRACE_SEED)")
	cmd.Flags().StringVar(&prototypes, "prototypes", "", "prototype YAML file (overrides COUPDEGRACE_PROTOTYPES)")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Write the JSON schema for prototype files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := prototype.Schema()
			if err != nil {
				return err
			}
			if err := writeSchema(outPath, data); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the JSON schema")
	cmd.MarkFlagRequired("out")
	return cmd
}

func writeSchema(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
