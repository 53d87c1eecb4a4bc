package world

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"coupdegrace/server/internal/damage"
	"coupdegrace/server/logging"
	"coupdegrace/server/logging/lifecycle"
	"coupdegrace/server/logging/sinks"
)

func newTestMob(id string, x, y float64) Entity {
	return Entity{
		ID:         id,
		Position:   Coordinates{X: x, Y: y},
		Damageable: &Damageable{},
		Mob:        &Mob{Thresholds: MobThresholds{Critical: 100, Dead: 200}},
		CombatMode: &CombatMode{},
		Hands:      &Hands{Count: 2},
	}
}

func TestNewNormalizesConfig(t *testing.T) {
	w := New(Config{Seed: "  "}, Deps{})
	cfg := w.Config()
	if cfg.Seed != DefaultSeed {
		t.Fatalf("expected default seed, got %q", cfg.Seed)
	}
	if cfg.InteractionRange != DefaultInteractionRange {
		t.Fatalf("expected default interaction range, got %.2f", cfg.InteractionRange)
	}
}

func TestSpawnAssignsIDsAndRejectsDuplicates(t *testing.T) {
	w := New(Config{}, Deps{})
	first, err := w.Spawn(Entity{Prototype: "knife"})
	if err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	if first.ID != "knife-1" {
		t.Fatalf("expected generated id knife-1, got %q", first.ID)
	}
	if _, err := w.Spawn(Entity{ID: "knife-1"}); !errors.Is(err, ErrDuplicateEntity) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSpawnGivesMobsADamageable(t *testing.T) {
	w := New(Config{}, Deps{})
	mob, err := w.Spawn(Entity{ID: "mouse", Mob: &Mob{}})
	if err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	if mob.Damageable == nil {
		t.Fatalf("expected mob to receive a damageable component")
	}
}

func TestApplyDamageWalksMobThresholds(t *testing.T) {
	w := New(Config{}, Deps{})
	if _, err := w.Spawn(newTestMob("victim", 0, 0)); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}

	result, ok := w.ApplyDamage("victim", damage.Spec{damage.TypeSlash: 120}, "attacker")
	if !ok {
		t.Fatalf("expected damage to apply")
	}
	if result.State != MobStateCritical {
		t.Fatalf("expected critical state, got %s", result.State)
	}
	if w.CanInteract("victim") {
		t.Fatalf("expected critical mob to be incapacitated")
	}

	result, _ = w.ApplyDamage("victim", damage.Spec{damage.TypeSlash: 90}, "attacker")
	if !result.Killed() {
		t.Fatalf("expected damage to kill the mob, got %+v", result)
	}
	if !w.IsDead("victim") {
		t.Fatalf("expected victim to be dead")
	}

	if _, ok := w.Heal("victim", damage.Spec{damage.TypeSlash: 500}); !ok {
		t.Fatalf("expected heal to apply")
	}
	if !w.IsDead("victim") {
		t.Fatalf("expected healing to leave a dead mob dead")
	}
}

func TestApplyDamageRejectsNonFiniteAmounts(t *testing.T) {
	w := New(Config{}, Deps{})
	w.Spawn(newTestMob("victim", 0, 0))
	nan := damage.Spec{damage.TypeBlunt: math.NaN()}
	if _, ok := w.ApplyDamage("victim", nan, ""); ok {
		t.Fatalf("expected NaN damage to be rejected")
	}
	if w.TotalDamage("victim") != 0 {
		t.Fatalf("expected no damage to be recorded")
	}
}

func TestListenersObserveMovesDamageAndHands(t *testing.T) {
	w := New(Config{}, Deps{})
	w.Spawn(newTestMob("mob", 0, 0))
	w.Spawn(Entity{ID: "knife", Position: Coordinates{X: 1}})

	var moved, damaged, hands []string
	w.Subscribe(Listener{
		OnMoved:        func(id string) { moved = append(moved, id) },
		OnDamaged:      func(id string, _ damage.Spec, _ string) { damaged = append(damaged, id) },
		OnHandsChanged: func(id string) { hands = append(hands, id) },
	})

	w.Move("mob", 0, 0)
	w.Move("mob", 0.5, 0)
	w.ApplyDamage("mob", damage.Spec{damage.TypeBlunt: 5}, "")
	w.Heal("mob", damage.Spec{damage.TypeBlunt: 5})
	w.PickUp("mob", "knife")

	if len(moved) != 1 {
		t.Fatalf("expected exactly one move notification, got %v", moved)
	}
	if len(damaged) != 1 {
		t.Fatalf("expected healing not to count as damage, got %v", damaged)
	}
	if len(hands) != 1 || hands[0] != "mob" {
		t.Fatalf("expected hands notification for mob, got %v", hands)
	}
}

func TestCanAttackRequiresRangeAndAbility(t *testing.T) {
	w := New(Config{InteractionRange: 1.5}, Deps{})
	w.Spawn(newTestMob("attacker", 0, 0))
	w.Spawn(newTestMob("near", 1, 0))
	w.Spawn(newTestMob("far", 5, 0))

	if !w.CanAttack("attacker", "near") {
		t.Fatalf("expected attack in range to be allowed")
	}
	if w.CanAttack("attacker", "far") {
		t.Fatalf("expected attack out of range to be refused")
	}
	w.SetRestrained("attacker", true)
	if w.CanAttack("attacker", "near") {
		t.Fatalf("expected restrained attacker to be refused")
	}
}

func TestHeldMeleeWeaponExtendsReach(t *testing.T) {
	w := New(Config{InteractionRange: 1.5}, Deps{})
	w.Spawn(newTestMob("attacker", 0, 0))
	w.Spawn(newTestMob("victim", 3, 0))
	w.Spawn(Entity{ID: "spear", Position: Coordinates{X: 1}, Melee: &MeleeWeapon{Range: 5}})

	if w.CanAttack("attacker", "victim") {
		t.Fatalf("expected unarmed attacker to be out of reach")
	}
	if !w.PickUp("attacker", "spear") {
		t.Fatalf("expected pickup to succeed")
	}
	if got := w.Reach("attacker"); got != 5 {
		t.Fatalf("expected reach 5 with spear held, got %.2f", got)
	}
	w.SetRestrained("victim", true)
	if !w.CanAttack("attacker", "victim") {
		t.Fatalf("expected spear to reach a target 3 tiles away")
	}
	if w.InRange("attacker", "victim") {
		t.Fatalf("expected interaction range to ignore weapon reach")
	}
	w.Drop("attacker")
	if w.CanAttack("attacker", "victim") {
		t.Fatalf("expected reach to shrink once the spear is dropped")
	}
}

func TestRestrainRequiresAbleActorInRange(t *testing.T) {
	events := sinks.NewMemory()
	w := New(Config{InteractionRange: 1.5}, Deps{Publisher: events})
	w.Spawn(newTestMob("guard", 0, 0))
	w.Spawn(newTestMob("suspect", 1, 0))
	w.Spawn(newTestMob("bystander", 4, 0))
	w.Spawn(Entity{ID: "crate", Position: Coordinates{X: 1}})

	if w.Restrain("guard", "guard", true) {
		t.Fatalf("expected self restraint to be refused")
	}
	if w.Restrain("guard", "bystander", true) {
		t.Fatalf("expected out of range restraint to be refused")
	}
	if w.Restrain("guard", "crate", true) {
		t.Fatalf("expected non-mob restraint to be refused")
	}
	if !w.Restrain("guard", "suspect", true) {
		t.Fatalf("expected restraint to succeed")
	}
	if w.CanInteract("suspect") {
		t.Fatalf("expected restrained suspect to be blocked")
	}
	if w.Restrain("suspect", "guard", true) {
		t.Fatalf("expected restrained actor to be unable to restrain")
	}
	if !w.Restrain("guard", "suspect", true) {
		t.Fatalf("expected repeated restraint to be accepted")
	}
	if !w.Restrain("guard", "suspect", false) || !w.CanInteract("suspect") {
		t.Fatalf("expected release to free the suspect")
	}

	published := events.EventsOfType(lifecycle.EventRestrained)
	if len(published) != 2 {
		t.Fatalf("expected restrain and release events only, got %d", len(published))
	}
	first := published[0]
	if first.Actor.ID != "guard" || len(first.Targets) != 1 || first.Targets[0].ID != "suspect" {
		t.Fatalf("expected guard to restrain suspect, got %+v", first)
	}
	if payload, ok := published[1].Payload.(lifecycle.RestrainedPayload); !ok || payload.Restrained {
		t.Fatalf("expected release payload, got %#v", published[1].Payload)
	}
}

func TestMobStateTransitionsArePublished(t *testing.T) {
	events := sinks.NewMemory()
	w := New(Config{}, Deps{Publisher: events})
	w.Spawn(newTestMob("victim", 0, 0))
	w.SetTick(7)

	w.ApplyDamage("victim", damage.Spec{damage.TypeSlash: 10}, "")
	w.ApplyDamage("victim", damage.Spec{damage.TypeSlash: 110}, "")
	w.ApplyDamage("victim", damage.Spec{damage.TypeSlash: 100}, "")

	published := events.EventsOfType(lifecycle.EventMobStateChanged)
	var got []lifecycle.MobStatePayload
	for _, event := range published {
		if event.Tick != 7 || event.Actor.Kind != logging.EntityKindMob {
			t.Fatalf("expected mob event at tick 7, got %+v", event)
		}
		got = append(got, event.Payload.(lifecycle.MobStatePayload))
	}
	want := []lifecycle.MobStatePayload{
		{From: "alive", To: "critical"},
		{From: "critical", To: "dead"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
	if published[1].Severity != logging.SeverityWarn {
		t.Fatalf("expected death to be published as a warning")
	}
}

func TestHeldItemsFollowTheirHolder(t *testing.T) {
	w := New(Config{}, Deps{})
	w.Spawn(newTestMob("holder", 0, 0))
	w.Spawn(Entity{ID: "knife", Position: Coordinates{X: 1}})

	if !w.PickUp("holder", "knife") {
		t.Fatalf("expected pickup to succeed")
	}
	if !w.IsHolding("holder", "knife") {
		t.Fatalf("expected holder to hold the knife")
	}
	w.Move("holder", 3, 4)
	pos, _ := w.Position("knife")
	if pos != (Coordinates{X: 3, Y: 4}) {
		t.Fatalf("expected held knife at holder position, got %+v", pos)
	}
	if item, ok := w.Drop("holder"); !ok || item != "knife" {
		t.Fatalf("expected knife to drop, got %q %v", item, ok)
	}
	if w.IsHolding("holder", "knife") {
		t.Fatalf("expected hand to be empty after drop")
	}
}

func TestTryRollClumsyRequiresTrait(t *testing.T) {
	w := New(Config{}, Deps{RNG: func(string, string) *rand.Rand { return rand.New(rand.NewSource(1)) }})
	w.Spawn(newTestMob("steady", 0, 0))
	clown := newTestMob("clown", 0, 0)
	clown.Clumsy = &Clumsy{}
	w.Spawn(clown)

	for i := 0; i < 50; i++ {
		if w.TryRollClumsy("steady", 1, nil) {
			t.Fatalf("expected actor without trait never to roll clumsy")
		}
	}
	if !w.TryRollClumsy("clown", 1, nil) {
		t.Fatalf("expected certain roll to succeed for clumsy actor")
	}
	if w.TryRollClumsy("clown", 0, nil) {
		t.Fatalf("expected zero chance never to succeed")
	}
}

func TestCombatModeIgnoresEntitiesWithoutComponent(t *testing.T) {
	w := New(Config{}, Deps{})
	w.Spawn(newTestMob("mob", 0, 0))
	w.Spawn(Entity{ID: "rock"})

	w.SetInCombatMode("mob", true)
	if !w.IsInCombatMode("mob") {
		t.Fatalf("expected mob to enter combat mode")
	}
	w.SetInCombatMode("rock", true)
	if w.IsInCombatMode("rock") {
		t.Fatalf("expected rock without combat mode to stay out of it")
	}
}
