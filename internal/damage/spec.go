// Package damage models typed damage amounts ("slash: 10, blunt: 5").
package damage

import (
	"math"
	"sort"
)

// Common damage types used by the bundled prototypes.
const (
	TypeBlunt    = "blunt"
	TypeSlash    = "slash"
	TypePiercing = "piercing"
	TypeHeat     = "heat"
)

// Epsilon is the tolerance below which an amount counts as zero.
const Epsilon = 1e-6

// Spec maps a damage type onto an amount. A nil Spec is a valid empty spec.
type Spec map[string]float64

// Total sums every amount.
func (s Spec) Total() float64 {
	total := 0.0
	for _, amount := range s {
		total += amount
	}
	return total
}

// IsZero reports whether every amount is within Epsilon of zero.
func (s Spec) IsZero() bool {
	for _, amount := range s {
		if math.Abs(amount) > Epsilon {
			return false
		}
	}
	return true
}

func (s Spec) Clone() Spec {
	if s == nil {
		return nil
	}
	cloned := make(Spec, len(s))
	for typ, amount := range s {
		cloned[typ] = amount
	}
	return cloned
}

// Scale returns a copy with every amount multiplied by factor.
func (s Spec) Scale(factor float64) Spec {
	scaled := make(Spec, len(s))
	for typ, amount := range s {
		scaled[typ] = amount * factor
	}
	return scaled
}

// Add returns s + other, type by type.
func (s Spec) Add(other Spec) Spec {
	sum := s.Clone()
	if sum == nil {
		sum = make(Spec, len(other))
	}
	for typ, amount := range other {
		sum[typ] += amount
	}
	return sum
}

// Sub returns s - other, type by type.
func (s Spec) Sub(other Spec) Spec {
	return s.Add(other.Scale(-1))
}

// ClampNonNegative drops negative amounts, used when healing past zero.
func (s Spec) ClampNonNegative() Spec {
	clamped := make(Spec, len(s))
	for typ, amount := range s {
		if amount > 0 {
			clamped[typ] = amount
		}
	}
	return clamped
}

// Types lists the damage types in sorted order.
func (s Spec) Types() []string {
	types := make([]string, 0, len(s))
	for typ := range s {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
