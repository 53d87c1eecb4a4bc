package execution

import "coupdegrace/server/internal/verbs"

// Verbs offers "execute" when the user holds an execution-capable implement
// and the target is eligible.
func (s *System) Verbs(args verbs.GetVerbsArgs) []verbs.Verb {
	if s == nil || !args.HasHands || args.Using == "" || !args.CanAccess || !args.CanInteract {
		return nil
	}
	marker, ok := s.marker(args.Using)
	if !ok {
		return nil
	}
	if !s.CanExecute(args.Target, args.User) {
		return nil
	}
	implement, target, actor := args.Using, args.Target, args.User
	return []verbs.Verb{{
		Name:    VerbName,
		Text:    verbTextKey,
		Message: verbMessageKey,
		Impact:  verbs.ImpactHigh,
		Act: func() {
			s.TryStartExecution(implement, target, actor, marker)
		},
	}}
}
