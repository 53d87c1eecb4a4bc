// Package verbs collects the contextual actions an entity can take on another.
package verbs

import "sort"

// Impact classifies how consequential a verb is; high impact verbs are
// logged and may ask the client for confirmation.
type Impact int

const (
	ImpactLow Impact = iota
	ImpactMedium
	ImpactHigh
	ImpactExtreme
)

func (i Impact) String() string {
	switch i {
	case ImpactLow:
		return "low"
	case ImpactMedium:
		return "medium"
	case ImpactHigh:
		return "high"
	case ImpactExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// GetVerbsArgs describe who is asking for verbs, on what, and with what.
type GetVerbsArgs struct {
	User   string
	Using  string
	Target string

	HasHands    bool
	CanAccess   bool
	CanInteract bool
}

// Verb is one offered action. Text and Message are client message keys.
type Verb struct {
	Name    string
	Text    string
	Message string
	Impact  Impact
	Act     func()
}

// Provider offers verbs for the given args; it returns nothing when none apply.
type Provider func(args GetVerbsArgs) []Verb

// World fills in GetVerbsArgs. *world.World satisfies it.
type World interface {
	ActiveHandItem(holderID string) (string, bool)
	HasHands(id string) bool
	CanInteract(id string) bool
	InRange(actorID, targetID string) bool
}

type Registry struct {
	world     World
	providers []Provider
}

func NewRegistry(w World) *Registry {
	return &Registry{world: w}
}

func (r *Registry) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	r.providers = append(r.providers, p)
}

// Args builds the verb query for user acting on target with whatever it
// holds in its active hand.
func (r *Registry) Args(user, target string) GetVerbsArgs {
	args := GetVerbsArgs{User: user, Target: target}
	if r == nil || r.world == nil {
		return args
	}
	args.Using, _ = r.world.ActiveHandItem(user)
	args.HasHands = r.world.HasHands(user)
	args.CanInteract = r.world.CanInteract(user)
	args.CanAccess = user == target || r.world.InRange(user, target)
	return args
}

// Verbs lists every verb offered for args, sorted by name.
func (r *Registry) Verbs(args GetVerbsArgs) []Verb {
	if r == nil {
		return nil
	}
	var verbs []Verb
	for _, p := range r.providers {
		verbs = append(verbs, p(args)...)
	}
	sort.SliceStable(verbs, func(i, j int) bool {
		return verbs[i].Name < verbs[j].Name
	})
	return verbs
}

// Invoke runs the named verb if it is currently offered.
func (r *Registry) Invoke(args GetVerbsArgs, name string) (Verb, bool) {
	for _, verb := range r.Verbs(args) {
		if verb.Name != name {
			continue
		}
		if verb.Act != nil {
			verb.Act()
		}
		return verb, true
	}
	return Verb{}, false
}
