// Package popup delivers short on-screen notices to entities.
package popup

type Severity int

const (
	SeveritySmall Severity = iota
	SeverityMedium
	SeverityMediumCaution
	SeverityLarge
)

func (s Severity) String() string {
	switch s {
	case SeveritySmall:
		return "small"
	case SeverityMedium:
		return "medium"
	case SeverityMediumCaution:
		return "mediumCaution"
	case SeverityLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Args are the named substitutions a client uses to render the message key.
type Args struct {
	Attacker string `json:"attacker,omitempty"`
	Victim   string `json:"victim,omitempty"`
	Weapon   string `json:"weapon,omitempty"`
}

type Popup struct {
	Key      string
	Args     Args
	Severity Severity
}

// Gateway is how gameplay systems show popups.
//
// PopupPredicted and PopupConfirmed are seen by recipient alone; a predicted
// popup is the optimistic notice shown before the outcome is authoritative.
// PopupBroadcast is seen by everyone except except.
type Gateway interface {
	PopupPredicted(p Popup, recipient string)
	PopupConfirmed(p Popup, recipient string)
	PopupBroadcast(p Popup, except string)
}

type Mode int

const (
	ModePredicted Mode = iota
	ModeConfirmed
	ModeBroadcast
)

func (m Mode) String() string {
	switch m {
	case ModePredicted:
		return "predicted"
	case ModeConfirmed:
		return "confirmed"
	case ModeBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Delivery is one popup as it was handed to a Gateway. Entity is the
// recipient, or the excluded entity for broadcasts.
type Delivery struct {
	Mode   Mode
	Popup  Popup
	Entity string
}

// Recorder is a Gateway that remembers every delivery.
type Recorder struct {
	deliveries []Delivery
}

func (r *Recorder) PopupPredicted(p Popup, recipient string) {
	r.deliveries = append(r.deliveries, Delivery{Mode: ModePredicted, Popup: p, Entity: recipient})
}

func (r *Recorder) PopupConfirmed(p Popup, recipient string) {
	r.deliveries = append(r.deliveries, Delivery{Mode: ModeConfirmed, Popup: p, Entity: recipient})
}

func (r *Recorder) PopupBroadcast(p Popup, except string) {
	r.deliveries = append(r.deliveries, Delivery{Mode: ModeBroadcast, Popup: p, Entity: except})
}

func (r *Recorder) Deliveries() []Delivery {
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

func (r *Recorder) Reset() {
	r.deliveries = nil
}

// Multi fans every popup out to several gateways.
type Multi []Gateway

func (m Multi) PopupPredicted(p Popup, recipient string) {
	for _, g := range m {
		if g != nil {
			g.PopupPredicted(p, recipient)
		}
	}
}

func (m Multi) PopupConfirmed(p Popup, recipient string) {
	for _, g := range m {
		if g != nil {
			g.PopupConfirmed(p, recipient)
		}
	}
}

func (m Multi) PopupBroadcast(p Popup, except string) {
	for _, g := range m {
		if g != nil {
			g.PopupBroadcast(p, except)
		}
	}
}
