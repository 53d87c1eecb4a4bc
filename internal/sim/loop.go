package sim

import (
	"sync"
	"time"

	"coupdegrace/server/internal/telemetry"
	"coupdegrace/server/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	DefaultTickRate = 15
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult reports what a tick did and how long it took.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Commands     []Command
	Err          error
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tick    uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
}

// NewLoop wraps the engine with a ring-buffer queue and tick loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	deps := core.Deps()
	return &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. It is safe to call from any goroutine.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	warnLength := 0
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				warnLength = length
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if warnLength > 0 && l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(warnLength)
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	for i := range commands {
		commands[i].OriginTick = ctx.Tick
	}
	err := l.core.Apply(commands)
	if err != nil && l.logger != nil {
		l.logger.Printf("[sim] tick=%d rejected commands: %v", ctx.Tick, err)
	}
	l.core.Step(ctx.Tick, ctx.Now)
	if l.metrics != nil {
		l.metrics.Add("sim_ticks_total", 1)
		l.metrics.Add("sim_commands_applied_total", uint64(len(commands)))
	}
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Commands: commands,
		Err:      err,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now
			l.tick++

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if l.metrics != nil {
		l.metrics.Add("sim_commands_dropped_total", 1)
	}
	// Logged on powers of two.
	if count > 0 && count&(count-1) == 0 && l.logger != nil {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.config.PerActorLimit,
		)
	}
}

var _ EngineCore = (*Engine)(nil)
