package execution

const (
	msgMeleeInitialInternal  = "execution-popup-melee-initial-internal"
	msgMeleeInitialExternal  = "execution-popup-melee-initial-external"
	msgMeleeCompleteInternal = "execution-popup-melee-complete-internal"
	msgMeleeCompleteExternal = "execution-popup-melee-complete-external"
	msgGunInitialInternal    = "execution-popup-gun-initial-internal"
	msgGunInitialExternal    = "execution-popup-gun-initial-external"
	msgGunCompleteInternal   = "execution-popup-gun-complete-internal"
	msgGunCompleteExternal   = "execution-popup-gun-complete-external"
	msgGunClumsyInternal     = "execution-popup-gun-clumsy-internal"
	msgGunClumsyExternal     = "execution-popup-gun-clumsy-external"

	VerbName       = "execute"
	verbTextKey    = "execution-verb-name"
	verbMessageKey = "execution-verb-message"
)

// messagePair is the actor-facing and bystander-facing key of one notice.
type messagePair struct {
	internal string
	external string
}

// startMessages picks the notice shown when an execution begins.
//
// The ranged keys are crossed: the actor is shown the gun "external" text and
// bystanders the "internal" one.
func startMessages(kind implementKind) messagePair {
	if kind == kindRanged {
		return messagePair{internal: msgGunInitialExternal, external: msgGunInitialInternal}
	}
	return messagePair{internal: msgMeleeInitialInternal, external: msgMeleeInitialExternal}
}

func completeMessages(kind implementKind, clumsy bool) messagePair {
	switch {
	case kind == kindRanged && clumsy:
		return messagePair{internal: msgGunClumsyInternal, external: msgGunClumsyExternal}
	case kind == kindRanged:
		return messagePair{internal: msgGunCompleteInternal, external: msgGunCompleteExternal}
	default:
		return messagePair{internal: msgMeleeCompleteInternal, external: msgMeleeCompleteExternal}
	}
}
