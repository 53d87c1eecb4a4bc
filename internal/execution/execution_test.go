package execution

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"coupdegrace/server/internal/combat"
	"coupdegrace/server/internal/damage"
	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/verbs"
	"coupdegrace/server/internal/world"
	"coupdegrace/server/logging"
	loggingexecution "coupdegrace/server/logging/execution"
	"coupdegrace/server/logging/sinks"
)

const (
	attacker = "attacker"
	victim   = "victim"
	knife    = "knife"
	pistol   = "pistol"
	rock     = "rock"
)

var knifeDamage = damage.Spec{damage.TypeSlash: 10}

type fixture struct {
	world  *world.World
	melee  *combat.MeleeSystem
	sched  *doafter.Scheduler
	popups *popup.Recorder
	events *sinks.Memory
	system *System
	now    time.Time
}

type recordingShooter struct {
	shots []world.Coordinates
}

func (r *recordingShooter) AttemptShoot(_, _ string, coords world.Coordinates) bool {
	r.shots = append(r.shots, coords)
	return true
}

type recordingScheduler struct {
	started []doafter.Args
	accept  bool
}

func (r *recordingScheduler) TryStart(args doafter.Args) (doafter.Token, bool) {
	r.started = append(r.started, args)
	return doafter.Token{}, r.accept
}

// riggedWorld forces the clumsy roll outcome.
type riggedWorld struct {
	*world.World
	roll bool
}

func (r riggedWorld) TryRollClumsy(string, float64, *world.Clumsy) bool {
	return r.roll
}

func spawnAll(t *testing.T, w *world.World) {
	t.Helper()
	marker := func() *world.ExecutionMarker {
		return &world.ExecutionMarker{DoAfterDuration: 5 * time.Second, DamageModifier: 9}
	}
	for _, e := range []world.Entity{
		{
			ID:         attacker,
			Mob:        &world.Mob{Thresholds: world.MobThresholds{Critical: 100, Dead: 200}},
			CombatMode: &world.CombatMode{},
			Hands:      &world.Hands{Count: 2},
		},
		{
			ID:         victim,
			Position:   world.Coordinates{X: 1},
			Restrained: true,
			Mob:        &world.Mob{Thresholds: world.MobThresholds{Critical: 50, Dead: 80}},
		},
		{ID: knife, Melee: &world.MeleeWeapon{Damage: knifeDamage.Clone()}, Execution: marker()},
		{ID: pistol, Gun: &world.Gun{Damage: damage.Spec{damage.TypePiercing: 100}, Ammo: -1}, Execution: marker()},
		{ID: rock, Execution: marker()},
	} {
		if _, err := w.Spawn(e); err != nil {
			t.Fatalf("Spawn(%s) returned error: %v", e.ID, err)
		}
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		world:  world.New(world.Config{Seed: "execution-tests"}, world.Deps{}),
		popups: &popup.Recorder{},
		events: sinks.NewMemory(),
		now:    time.Unix(1_700_000_000, 0),
	}
	spawnAll(t, f.world)
	f.melee = combat.NewMeleeSystem(combat.MeleeConfig{World: f.world, Publisher: f.events})
	guns := combat.NewGunSystem(combat.GunConfig{World: f.world, Publisher: f.events})
	f.sched = doafter.New(doafter.Config{
		World: f.world,
		Clock: logging.ClockFunc(func() time.Time { return f.now }),
	})
	f.system = NewSystem(Config{
		World:     f.world,
		Melee:     f.melee,
		Guns:      guns,
		Scheduler: f.sched,
		Popups:    f.popups,
		Publisher: f.events,
	})
	f.melee.OnGetDamage(f.system.OnGetMeleeDamage)
	return f
}

func (f *fixture) hold(t *testing.T, item string) *world.ExecutionMarker {
	t.Helper()
	if !f.world.PickUp(attacker, item) {
		t.Fatalf("expected attacker to pick up %s", item)
	}
	entity, _ := f.world.Entity(item)
	return entity.Execution
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.sched.Update(f.now)
}

func deliveries(pair messagePair, predicted bool, external popup.Severity, weapon string) []popup.Delivery {
	args := popup.Args{Attacker: attacker, Victim: victim, Weapon: weapon}
	mode := popup.ModeConfirmed
	if predicted {
		mode = popup.ModePredicted
	}
	return []popup.Delivery{
		{Mode: mode, Popup: popup.Popup{Key: pair.internal, Args: args, Severity: popup.SeverityMedium}, Entity: attacker},
		{Mode: popup.ModeBroadcast, Popup: popup.Popup{Key: pair.external, Args: args, Severity: external}, Entity: attacker},
	}
}

func TestCanExecuteRequiresIncapacitatedLivingTarget(t *testing.T) {
	cases := []struct {
		name   string
		target string
		actor  string
		mutate func(w *world.World)
		want   bool
	}{
		{name: "eligible", target: victim, actor: attacker, want: true},
		{name: "self", target: attacker, actor: attacker, mutate: func(w *world.World) { w.SetStunned(attacker, true) }},
		{name: "no damageable", target: victim, actor: attacker, mutate: func(w *world.World) {
			e, _ := w.Entity(victim)
			e.Damageable = nil
		}},
		{name: "no mob state", target: victim, actor: attacker, mutate: func(w *world.World) {
			e, _ := w.Entity(victim)
			e.Mob = nil
		}},
		{name: "dead", target: victim, actor: attacker, mutate: func(w *world.World) {
			w.ApplyDamage(victim, damage.Spec{damage.TypeBlunt: 80}, "")
		}},
		{name: "actor cannot attack", target: victim, actor: attacker, mutate: func(w *world.World) { w.SetRestrained(attacker, true) }},
		{name: "out of reach", target: victim, actor: attacker, mutate: func(w *world.World) { w.Move(victim, 5, 0) }},
		{name: "within held weapon reach", target: victim, actor: attacker, mutate: func(w *world.World) {
			w.Spawn(world.Entity{ID: "spear", Melee: &world.MeleeWeapon{Damage: knifeDamage.Clone(), Range: 5}})
			w.PickUp(attacker, "spear")
			w.Move(victim, 2, 0)
		}, want: true},
		{name: "target can still interact", target: victim, actor: attacker, mutate: func(w *world.World) { w.SetRestrained(victim, false) }},
		{name: "critical target", target: victim, actor: attacker, mutate: func(w *world.World) {
			w.SetRestrained(victim, false)
			w.ApplyDamage(victim, damage.Spec{damage.TypeBlunt: 60}, "")
		}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.mutate != nil {
				tc.mutate(f.world)
			}
			if got := f.system.CanExecute(tc.target, tc.actor); got != tc.want {
				t.Fatalf("expected CanExecute=%v, got %v", tc.want, got)
			}
		})
	}
}

func TestVerbOfferedOnlyWithMarkedImplement(t *testing.T) {
	f := newFixture(t)
	registry := verbs.NewRegistry(f.world)
	registry.Register(f.system.Verbs)

	if got := registry.Verbs(registry.Args(attacker, victim)); len(got) != 0 {
		t.Fatalf("expected no verbs with empty hands, got %+v", got)
	}
	f.hold(t, knife)
	got := registry.Verbs(registry.Args(attacker, victim))
	if len(got) != 1 {
		t.Fatalf("expected one verb, got %+v", got)
	}
	if got[0].Name != VerbName || got[0].Text != "execution-verb-name" || got[0].Message != "execution-verb-message" || got[0].Impact != verbs.ImpactHigh {
		t.Fatalf("unexpected verb %+v", got[0])
	}
	f.world.SetRestrained(victim, false)
	if got := registry.Verbs(registry.Args(attacker, victim)); len(got) != 0 {
		t.Fatalf("expected no verb for a target that can interact, got %+v", got)
	}
}

// Invoking the verb announces the attempt to everyone nearby and schedules
// the do-after without dealing damage.
func TestStartingExecutionAnnouncesAndSchedules(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)
	scheduler := &recordingScheduler{accept: true}
	f.system.scheduler = scheduler

	registry := verbs.NewRegistry(f.world)
	registry.Register(f.system.Verbs)
	if _, ok := registry.Invoke(registry.Args(attacker, victim), VerbName); !ok {
		t.Fatalf("expected execute verb to be offered")
	}

	want := deliveries(messagePair{internal: msgMeleeInitialInternal, external: msgMeleeInitialExternal}, true, popup.SeverityMedium, knife)
	if diff := cmp.Diff(want, f.popups.Deliveries()); diff != "" {
		t.Fatalf("unexpected start popups (-want +got):\n%s", diff)
	}
	if len(scheduler.started) != 1 {
		t.Fatalf("expected one do-after request, got %d", len(scheduler.started))
	}
	args := scheduler.started[0]
	if args.Delay != marker.DoAfterDuration {
		t.Fatalf("expected delay %v, got %v", marker.DoAfterDuration, args.Delay)
	}
	if args.User != attacker || args.Target != victim || args.Used != knife {
		t.Fatalf("unexpected do-after participants %+v", args)
	}
	if !args.BreakOnUserMove || !args.BreakOnTargetMove || !args.BreakOnDamage || !args.NeedHand {
		t.Fatalf("expected every break condition and NeedHand, got %+v", args)
	}
}

func TestStartIsSilentForIneligibleTarget(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)
	f.world.SetRestrained(victim, false)
	if f.system.TryStartExecution(knife, victim, attacker, marker) {
		t.Fatalf("expected start to be refused")
	}
	if got := f.popups.Deliveries(); len(got) != 0 {
		t.Fatalf("expected no popups, got %+v", got)
	}
	if _, busy := f.sched.Pending(attacker); busy {
		t.Fatalf("expected no do-after to be queued")
	}
}

func TestRangedStartUsesCrossedGunKeys(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	if !f.system.TryStartExecution(pistol, victim, attacker, marker) {
		t.Fatalf("expected start to be accepted")
	}
	want := deliveries(messagePair{internal: msgGunInitialExternal, external: msgGunInitialInternal}, true, popup.SeverityMedium, pistol)
	if diff := cmp.Diff(want, f.popups.Deliveries()); diff != "" {
		t.Fatalf("unexpected start popups (-want +got):\n%s", diff)
	}
}

func TestMeleeExecutionCompletesAfterDoAfter(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)

	var sawExecuting, sawCombatMode bool
	f.melee.OnGetDamage(func(ev *combat.MeleeDamageEvent) {
		sawExecuting = marker.Executing
		sawCombatMode = f.world.IsInCombatMode(attacker)
	})

	if !f.system.TryStartExecution(knife, victim, attacker, marker) {
		t.Fatalf("expected start to be accepted")
	}
	f.popups.Reset()
	f.advance(4 * time.Second)
	if f.world.TotalDamage(victim) != 0 {
		t.Fatalf("expected no damage before the do-after completes")
	}
	f.advance(time.Second)

	if got := f.world.TotalDamage(victim); math.Abs(got-90) > damage.Epsilon {
		t.Fatalf("expected 10 x 9 = 90 damage, got %.2f", got)
	}
	if !f.world.IsDead(victim) {
		t.Fatalf("expected victim to be dead")
	}
	if !sawExecuting || !sawCombatMode {
		t.Fatalf("expected marker executing and combat mode forced during the hit, got executing=%v combat=%v", sawExecuting, sawCombatMode)
	}
	if marker.Executing {
		t.Fatalf("expected executing to be cleared")
	}
	if f.world.IsInCombatMode(attacker) {
		t.Fatalf("expected combat mode to be restored")
	}
	want := deliveries(messagePair{internal: msgMeleeCompleteInternal, external: msgMeleeCompleteExternal}, false, popup.SeverityMediumCaution, knife)
	if diff := cmp.Diff(want, f.popups.Deliveries()); diff != "" {
		t.Fatalf("unexpected completion popups (-want +got):\n%s", diff)
	}
	completed := f.events.EventsOfType(loggingexecution.EventCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected one completed event, got %d", len(completed))
	}
	payload, ok := completed[0].Payload.(loggingexecution.CompletedPayload)
	if !ok || !payload.Landed || payload.Kind != "melee" {
		t.Fatalf("unexpected completed payload %+v", completed[0].Payload)
	}
}

// A target that can interact again before the do-after ends takes no damage
// and no completion popup is sent.
func TestRecoveredTargetLapsesSilently(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)
	f.melee.OnGetDamage(func(*combat.MeleeDamageEvent) {
		t.Fatalf("expected no damage computation for a lapsed execution")
	})
	if !f.system.TryStartExecution(knife, victim, attacker, marker) {
		t.Fatalf("expected start to be accepted")
	}
	f.popups.Reset()
	f.advance(2 * time.Second)
	f.world.SetRestrained(victim, false)
	if marker.Executing {
		t.Fatalf("expected executing to stay false while pending")
	}
	f.advance(3 * time.Second)

	if f.world.TotalDamage(victim) != 0 {
		t.Fatalf("expected no damage, got %.2f", f.world.TotalDamage(victim))
	}
	if got := f.popups.Deliveries(); len(got) != 0 {
		t.Fatalf("expected no completion popups, got %+v", got)
	}
	if marker.Executing {
		t.Fatalf("expected executing to stay false")
	}
	if got := len(f.events.EventsOfType(loggingexecution.EventLapsed)); got != 1 {
		t.Fatalf("expected one lapsed event, got %d", got)
	}
}

func TestMovementInterruptsExecution(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)
	if !f.system.TryStartExecution(knife, victim, attacker, marker) {
		t.Fatalf("expected start to be accepted")
	}
	f.world.Move(attacker, 0, 0.5)
	f.advance(5 * time.Second)
	if f.world.TotalDamage(victim) != 0 {
		t.Fatalf("expected interrupted execution to deal no damage")
	}
	if got := len(f.events.EventsOfType(loggingexecution.EventInterrupted)); got != 1 {
		t.Fatalf("expected one interrupted event, got %d", got)
	}
	if got := len(f.events.EventsOfType(loggingexecution.EventCompleted)); got != 0 {
		t.Fatalf("expected no completed event, got %d", got)
	}
}

func TestOnExecutionDoAfterIgnoresHandledCancelledAndIncomplete(t *testing.T) {
	f := newFixture(t)
	f.hold(t, knife)
	base := doafter.Args{User: attacker, Target: victim, Used: knife}
	events := []*doafter.Event{
		{Args: base, Handled: true},
		{Args: base, Cancelled: true},
		{Args: doafter.Args{User: attacker, Used: knife}},
		{Args: doafter.Args{User: attacker, Target: victim}},
		nil,
	}
	for _, ev := range events {
		f.system.OnExecutionDoAfter(ev)
	}
	if f.world.TotalDamage(victim) != 0 {
		t.Fatalf("expected no damage")
	}
	if got := f.popups.Deliveries(); len(got) != 0 {
		t.Fatalf("expected no popups, got %+v", got)
	}
}

func TestDamageModifierAppliesOnlyToExecutions(t *testing.T) {
	f := newFixture(t)
	entity, _ := f.world.Entity(knife)
	marker := entity.Execution
	for _, m := range []float64{0, 1, 2.5, 9} {
		marker.DamageModifier = m

		marker.Executing = true
		got, ok := f.melee.GetDamage(attacker, knife, victim, combat.AttackContext{Execution: true})
		if !ok {
			t.Fatalf("expected damage to be computed")
		}
		if want := 10 * m; math.Abs(got.Total()-want) > damage.Epsilon {
			t.Fatalf("modifier %.1f: expected %.2f damage during execution, got %.2f", m, want, got.Total())
		}

		plain, _ := f.melee.GetDamage(attacker, knife, victim, combat.AttackContext{})
		if math.Abs(plain.Total()-10) > damage.Epsilon {
			t.Fatalf("modifier %.1f: expected base damage outside execution, got %.2f", m, plain.Total())
		}

		marker.Executing = false
		idle, _ := f.melee.GetDamage(attacker, knife, victim, combat.AttackContext{Execution: true})
		if math.Abs(idle.Total()-10) > damage.Epsilon {
			t.Fatalf("modifier %.1f: expected base damage while the marker is idle, got %.2f", m, idle.Total())
		}
	}

	// Weapons without a marker are never scaled.
	if _, err := f.world.Spawn(world.Entity{ID: "stick", Melee: &world.MeleeWeapon{Damage: knifeDamage.Clone()}}); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	got, _ := f.melee.GetDamage(attacker, "stick", victim, combat.AttackContext{Execution: true})
	if math.Abs(got.Total()-10) > damage.Epsilon {
		t.Fatalf("expected unmarked weapon to deal base damage, got %.2f", got.Total())
	}
}

// A gun execution fires one shot at the target's coordinates.
func TestRangedExecutionAimsAtTarget(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	shooter := &recordingShooter{}
	f.system.guns = shooter

	ev := &doafter.Event{Args: doafter.Args{User: attacker, Target: victim, Used: pistol}}
	if !f.system.Resolve(pistol, victim, attacker, marker, ev) {
		t.Fatalf("expected resolution to run")
	}
	if diff := cmp.Diff([]world.Coordinates{{X: 1}}, shooter.shots); diff != "" {
		t.Fatalf("unexpected shots (-want +got):\n%s", diff)
	}
	if !ev.Handled {
		t.Fatalf("expected attempt to be marked handled")
	}
	want := deliveries(messagePair{internal: msgGunCompleteInternal, external: msgGunCompleteExternal}, false, popup.SeverityMediumCaution, pistol)
	if diff := cmp.Diff(want, f.popups.Deliveries()); diff != "" {
		t.Fatalf("unexpected completion popups (-want +got):\n%s", diff)
	}
}

func TestRangedExecutionKillsWithRealGun(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	if !f.system.TryStartExecution(pistol, victim, attacker, marker) {
		t.Fatalf("expected start to be accepted")
	}
	f.advance(5 * time.Second)
	if !f.world.IsDead(victim) {
		t.Fatalf("expected the shot to kill the victim, damage %.2f", f.world.TotalDamage(victim))
	}
}

// A clumsy shooter whose roll succeeds fires one tile past the target.
func TestClumsyShotIsOffsetFromTarget(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	actor, _ := f.world.Entity(attacker)
	actor.Clumsy = &world.Clumsy{}
	shooter := &recordingShooter{}
	f.system.world = riggedWorld{World: f.world, roll: true}
	f.system.guns = shooter

	ev := &doafter.Event{}
	f.system.Resolve(pistol, victim, attacker, marker, ev)
	if diff := cmp.Diff([]world.Coordinates{{X: 2}}, shooter.shots); diff != "" {
		t.Fatalf("unexpected shots (-want +got):\n%s", diff)
	}
	want := deliveries(messagePair{internal: msgGunClumsyInternal, external: msgGunClumsyExternal}, false, popup.SeverityMediumCaution, pistol)
	if diff := cmp.Diff(want, f.popups.Deliveries()); diff != "" {
		t.Fatalf("unexpected completion popups (-want +got):\n%s", diff)
	}
	if !ev.Handled {
		t.Fatalf("expected attempt to be marked handled")
	}
}

func TestClumsyActorWhoPassesRollUsesNormalMessages(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	actor, _ := f.world.Entity(attacker)
	actor.Clumsy = &world.Clumsy{}
	shooter := &recordingShooter{}
	f.system.world = riggedWorld{World: f.world, roll: false}
	f.system.guns = shooter

	f.system.Resolve(pistol, victim, attacker, marker, &doafter.Event{})
	if diff := cmp.Diff([]world.Coordinates{{X: 1}}, shooter.shots); diff != "" {
		t.Fatalf("unexpected shots (-want +got):\n%s", diff)
	}
	if got := f.popups.Deliveries(); got[0].Popup.Key != msgGunCompleteInternal {
		t.Fatalf("expected gun-complete pair, got %s", got[0].Popup.Key)
	}
}

func TestClumsyRateConvergesToOneThird(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, pistol)
	actor, _ := f.world.Entity(attacker)
	actor.Clumsy = &world.Clumsy{}
	shooter := &recordingShooter{}
	f.system.guns = shooter

	const trials = 6000
	for i := 0; i < trials; i++ {
		f.system.Resolve(pistol, victim, attacker, marker, &doafter.Event{})
	}
	clumsy := 0
	for _, shot := range shooter.shots {
		if shot.X != 1 {
			clumsy++
		}
	}
	rate := float64(clumsy) / trials
	if math.Abs(rate-1.0/3) > 0.03 {
		t.Fatalf("expected clumsy rate near 1/3, got %.3f", rate)
	}
}

func TestResolveRestoresStateForEveryImplementKind(t *testing.T) {
	for _, implement := range []string{knife, pistol, rock} {
		for _, prior := range []bool{false, true} {
			f := newFixture(t)
			marker := f.hold(t, implement)
			f.system.guns = &recordingShooter{}
			f.world.SetInCombatMode(attacker, prior)

			if !f.system.Resolve(implement, victim, attacker, marker, &doafter.Event{}) {
				t.Fatalf("%s: expected resolution to run", implement)
			}
			if marker.Executing {
				t.Fatalf("%s: expected executing to be cleared", implement)
			}
			if got := f.world.IsInCombatMode(attacker); got != prior {
				t.Fatalf("%s: expected combat mode %v, got %v", implement, prior, got)
			}
			if got := len(f.popups.Deliveries()); got != 2 {
				t.Fatalf("%s: expected completion popups even without an effect, got %d", implement, got)
			}
		}
	}
}

func TestResolveIsNeverReentrant(t *testing.T) {
	f := newFixture(t)
	marker := f.hold(t, knife)
	nested := true
	f.melee.OnGetDamage(func(*combat.MeleeDamageEvent) {
		nested = f.system.Resolve(knife, victim, attacker, marker, nil)
	})
	if !f.system.Resolve(knife, victim, attacker, marker, nil) {
		t.Fatalf("expected outer resolution to run")
	}
	if nested {
		t.Fatalf("expected nested resolution to be refused")
	}
	if got := len(f.popups.Deliveries()); got != 2 {
		t.Fatalf("expected only the outer completion popups, got %d", got)
	}
	if math.Abs(f.world.TotalDamage(victim)-90) > damage.Epsilon {
		t.Fatalf("expected a single scaled hit, got %.2f", f.world.TotalDamage(victim))
	}
}
