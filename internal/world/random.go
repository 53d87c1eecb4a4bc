package world

import (
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue derives a stable seed for a labelled subsystem.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// TryRollClumsy rolls against chance for an accident-prone actor. When trait
// is nil the actor's own Clumsy component is used; actors without the trait
// never roll.
func (w *World) TryRollClumsy(actorID string, chance float64, trait *Clumsy) bool {
	if w == nil {
		return false
	}
	if trait == nil {
		entity, ok := w.entities[actorID]
		if !ok || entity.Clumsy == nil {
			return false
		}
	}
	if chance <= 0 {
		return false
	}
	return w.clumsyRNG.Float64() < chance
}
