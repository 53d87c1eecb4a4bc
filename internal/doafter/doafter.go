// Package doafter schedules delayed, interruptible actions ("do-afters").
//
// A do-after is registered with TryStart and either completes once its delay
// elapses or is cancelled when one of its break conditions fires. Break
// conditions are evaluated against world mutation events as they happen; the
// callback for every terminal transition is delivered from Update so that
// callbacks never run nested inside another world mutation.
package doafter

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"coupdegrace/server/internal/damage"
	"coupdegrace/server/internal/telemetry"
	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
)

const (
	metricStarted   = "doafter_started_total"
	metricCompleted = "doafter_completed_total"
	metricCancelled = "doafter_cancelled_total"
	metricRejected  = "doafter_rejected_total"
	metricPending   = "doafter_pending"
)

// Args describe a do-after request.
type Args struct {
	User   string
	Target string
	Used   string
	Delay  time.Duration

	BreakOnUserMove   bool
	BreakOnTargetMove bool
	BreakOnDamage     bool
	// NeedHand requires the user to keep holding Used (or, with no Used, to
	// have a hand at all) for the whole delay.
	NeedHand bool

	Callback func(*Event)
}

// Event is delivered to the callback exactly once per do-after.
type Event struct {
	ID        string
	Args      Args
	Cancelled bool
	// Handled is set by callbacks that consumed the event.
	Handled bool
}

// World is what the scheduler needs from the world. *world.World satisfies it.
type World interface {
	HasHands(id string) bool
	IsHolding(holderID, itemID string) bool
	Subscribe(listener world.Listener)
}

type Config struct {
	World   World
	Clock   logging.Clock
	Metrics telemetry.Metrics
	NewID   func() string
}

type status int

const (
	statusPending status = iota
	statusCancelled
	statusFinished
)

type doAfter struct {
	id      string
	args    Args
	started time.Time
	ends    time.Time
	status  status
}

// Scheduler owns every pending do-after. It is driven from the simulation
// loop and is not safe for concurrent use.
type Scheduler struct {
	world   World
	clock   logging.Clock
	metrics telemetry.Metrics
	newID   func() string

	active    map[string]*doAfter
	byUser    map[string]string
	cancelled []*doAfter
}

func New(cfg Config) *Scheduler {
	if cfg.World == nil {
		return nil
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	s := &Scheduler{
		world:   cfg.World,
		clock:   clock,
		metrics: cfg.Metrics,
		newID:   newID,
		active:  make(map[string]*doAfter),
		byUser:  make(map[string]string),
	}
	cfg.World.Subscribe(world.Listener{
		OnMoved:        s.onMoved,
		OnDamaged:      s.onDamaged,
		OnHandsChanged: s.onHandsChanged,
		OnDespawned:    s.onDespawned,
	})
	return s
}

// Token identifies a started do-after and lets the owner cancel it.
type Token struct {
	id        string
	scheduler *Scheduler
}

func (t Token) ID() string {
	return t.id
}

// Cancel cancels the do-after if it is still pending.
func (t Token) Cancel() bool {
	if t.scheduler == nil {
		return false
	}
	return t.scheduler.Cancel(t.id)
}

// TryStart registers a do-after. It refuses when the user already has one
// pending or when the hand requirement is not met at start.
func (s *Scheduler) TryStart(args Args) (Token, bool) {
	if s == nil || args.User == "" {
		return Token{}, false
	}
	if _, busy := s.byUser[args.User]; busy {
		s.add(metricRejected, 1)
		return Token{}, false
	}
	if args.NeedHand && !s.handSatisfied(args) {
		s.add(metricRejected, 1)
		return Token{}, false
	}
	delay := args.Delay
	if delay < 0 {
		delay = 0
	}
	now := s.clock.Now()
	da := &doAfter{
		id:      s.newID(),
		args:    args,
		started: now,
		ends:    now.Add(delay),
	}
	s.active[da.id] = da
	s.byUser[args.User] = da.id
	s.add(metricStarted, 1)
	s.storePending()
	return Token{id: da.id, scheduler: s}, true
}

// Cancel marks a pending do-after cancelled. The callback fires on the next Update.
func (s *Scheduler) Cancel(id string) bool {
	if s == nil {
		return false
	}
	da, ok := s.active[id]
	if !ok || da.status != statusPending {
		return false
	}
	s.cancel(da)
	return true
}

// Pending reports the do-after the user is currently busy with.
func (s *Scheduler) Pending(userID string) (string, bool) {
	if s == nil {
		return "", false
	}
	id, ok := s.byUser[userID]
	return id, ok
}

// Remaining reports how long until the do-after completes.
func (s *Scheduler) Remaining(id string, now time.Time) (time.Duration, bool) {
	if s == nil {
		return 0, false
	}
	da, ok := s.active[id]
	if !ok || da.status != statusPending {
		return 0, false
	}
	remaining := da.ends.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Update delivers cancellations, then completes every do-after whose delay
// has elapsed by now, earliest first.
func (s *Scheduler) Update(now time.Time) {
	if s == nil {
		return
	}
	cancelled := s.cancelled
	s.cancelled = nil
	for _, da := range cancelled {
		s.deliver(da)
	}

	var due []*doAfter
	for _, da := range s.active {
		if da.status == statusPending && !now.Before(da.ends) {
			due = append(due, da)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if da, db := due[i].ends, due[j].ends; !da.Equal(db) {
			return da.Before(db)
		}
		return due[i].id < due[j].id
	})
	for _, da := range due {
		if da.status != statusPending {
			continue
		}
		if da.args.NeedHand && !s.handSatisfied(da.args) {
			s.cancel(da)
			continue
		}
		da.status = statusFinished
		s.release(da)
		s.add(metricCompleted, 1)
		s.deliver(da)
	}

	// Cancellations raised by the completion callbacks above wait for the
	// next Update.
	s.storePending()
}

func (s *Scheduler) cancel(da *doAfter) {
	da.status = statusCancelled
	s.release(da)
	s.cancelled = append(s.cancelled, da)
	s.add(metricCancelled, 1)
}

func (s *Scheduler) release(da *doAfter) {
	delete(s.active, da.id)
	if s.byUser[da.args.User] == da.id {
		delete(s.byUser, da.args.User)
	}
}

func (s *Scheduler) deliver(da *doAfter) {
	if da.args.Callback == nil {
		return
	}
	da.args.Callback(&Event{
		ID:        da.id,
		Args:      da.args,
		Cancelled: da.status == statusCancelled,
	})
}

func (s *Scheduler) handSatisfied(args Args) bool {
	if args.Used != "" {
		return s.world.IsHolding(args.User, args.Used)
	}
	return s.world.HasHands(args.User)
}

func (s *Scheduler) onMoved(entityID string) {
	s.cancelWhere(func(args Args) bool {
		return (args.BreakOnUserMove && args.User == entityID) ||
			(args.BreakOnTargetMove && args.Target == entityID)
	})
}

func (s *Scheduler) onDamaged(entityID string, delta damage.Spec, _ string) {
	if delta.Total() <= damage.Epsilon {
		return
	}
	s.cancelWhere(func(args Args) bool {
		return args.BreakOnDamage && args.User == entityID
	})
}

func (s *Scheduler) onHandsChanged(entityID string) {
	s.cancelWhere(func(args Args) bool {
		return args.NeedHand && args.User == entityID && !s.handSatisfied(args)
	})
}

func (s *Scheduler) onDespawned(entityID string) {
	s.cancelWhere(func(args Args) bool {
		return args.User == entityID || args.Target == entityID || args.Used == entityID
	})
}

func (s *Scheduler) cancelWhere(match func(Args) bool) {
	var ids []string
	for id, da := range s.active {
		if da.status == statusPending && match(da.args) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.cancel(s.active[id])
	}
}

func (s *Scheduler) add(key string, delta uint64) {
	if s.metrics != nil {
		s.metrics.Add(key, delta)
	}
}

func (s *Scheduler) storePending() {
	if s.metrics != nil {
		s.metrics.Store(metricPending, uint64(len(s.active)))
	}
}
