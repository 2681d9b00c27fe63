package pomodoro

import "focusflow/backend/internal/model"

// CompletePhase computes what follows the current phase of state. It reads
// only its arguments, so identical inputs always give identical output.
//
// Finishing a work phase increments the work count; reaching the configured
// cycle count earns a long break and resets the count to zero. Finishing
// either break returns to work with the count unchanged.
func CompletePhase(state model.SessionState, config model.SessionConfig) model.Transition {
	next := model.Transition{From: state.Phase}

	switch state.Phase {
	case model.PhaseShortBreak, model.PhaseLongBreak:
		next.Phase = model.PhaseWork
		next.WorkCount = state.WorkCount
	default:
		count := state.WorkCount + 1
		if count >= config.CyclesBeforeLongBreak {
			next.Phase = model.PhaseLongBreak
			next.WorkCount = 0
		} else {
			next.Phase = model.PhaseShortBreak
			next.WorkCount = count
		}
	}

	next.DurationSeconds = config.DurationSeconds(next.Phase)
	return next
}
