package sim

import (
	"coupdegrace/server/internal/telemetry"
	"coupdegrace/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}
