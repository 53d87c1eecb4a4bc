package execution

import (
	"context"

	"coupdegrace/server/internal/doafter"
	"coupdegrace/server/internal/popup"
	"coupdegrace/server/internal/world"
	loggingexecution "coupdegrace/server/logging/execution"
)

// TryStartExecution announces the attempt and queues the do-after that will
// resolve it. Nothing happens when the target is not eligible. It reports
// whether the scheduler accepted the do-after.
func (s *System) TryStartExecution(implement, target, actor string, marker *world.ExecutionMarker) bool {
	if s == nil || marker == nil {
		return false
	}
	if !s.CanExecute(target, actor) {
		return false
	}

	kind := s.implementKind(implement)
	s.notify(startMessages(kind), actor, target, implement, true, popup.SeverityMedium)

	if s.scheduler == nil {
		return false
	}
	token, ok := s.scheduler.TryStart(doafter.Args{
		User:              actor,
		Target:            target,
		Used:              implement,
		Delay:             marker.DoAfterDuration,
		BreakOnTargetMove: true,
		BreakOnUserMove:   true,
		BreakOnDamage:     true,
		NeedHand:          true,
		Callback:          s.OnExecutionDoAfter,
	})
	ctx := context.Background()
	if !ok {
		loggingexecution.Rejected(ctx, s.publisher, s.ref(actor), s.ref(target), loggingexecution.RejectedPayload{
			Implement: implement,
		})
		return false
	}
	loggingexecution.Started(ctx, s.publisher, s.ref(actor), s.ref(target), loggingexecution.StartedPayload{
		Implement:      implement,
		Kind:           kind.String(),
		DoAfterID:      token.ID(),
		DurationMillis: marker.DoAfterDuration.Milliseconds(),
	})
	return true
}

// OnExecutionDoAfter is the do-after callback. The target is re-checked
// because the world kept running while the do-after was pending; a target
// that is no longer eligible lets the attempt lapse silently.
func (s *System) OnExecutionDoAfter(ev *doafter.Event) {
	if s == nil || ev == nil || ev.Handled {
		return
	}
	args := ev.Args
	ctx := context.Background()
	if ev.Cancelled {
		loggingexecution.Interrupted(ctx, s.publisher, s.ref(args.User), s.ref(args.Target), loggingexecution.InterruptedPayload{
			Implement: args.Used,
			DoAfterID: ev.ID,
		})
		return
	}
	if args.Target == "" || args.Used == "" {
		return
	}
	marker, ok := s.marker(args.Used)
	if !ok {
		return
	}
	if !s.CanExecute(args.Target, args.User) {
		loggingexecution.Lapsed(ctx, s.publisher, s.ref(args.User), s.ref(args.Target), loggingexecution.LapsedPayload{
			Implement: args.Used,
			DoAfterID: ev.ID,
		})
		return
	}
	s.Resolve(args.Used, args.Target, args.User, marker, ev)
}
