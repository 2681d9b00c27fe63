package pomodoro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/model"
)

func TestCompletePhaseDefaultCycle(t *testing.T) {
	config := model.SessionConfig{WorkMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesBeforeLongBreak: 4}
	state := model.SessionState{Phase: model.PhaseWork}

	for i := 1; i <= 3; i++ {
		next := CompletePhase(state, config)
		require.Equal(t, model.PhaseShortBreak, next.Phase, "completion %d", i)
		assert.Equal(t, 5*60, next.DurationSeconds)
		assert.Equal(t, i, next.WorkCount)
		assert.Equal(t, model.PhaseWork, next.From)

		state.Phase = next.Phase
		state.WorkCount = next.WorkCount

		back := CompletePhase(state, config)
		require.Equal(t, model.PhaseWork, back.Phase)
		assert.Equal(t, 25*60, back.DurationSeconds)
		assert.Equal(t, i, back.WorkCount)
		state.Phase = back.Phase
		state.WorkCount = back.WorkCount
	}

	next := CompletePhase(state, config)
	assert.Equal(t, model.Transition{
		From:            model.PhaseWork,
		Phase:           model.PhaseLongBreak,
		DurationSeconds: 15 * 60,
		WorkCount:       0,
	}, next)
}

func TestCompletePhaseOneLongBreakPerCycle(t *testing.T) {
	for cycles := MinCycles; cycles <= MaxCycles; cycles++ {
		config := model.SessionConfig{WorkMinutes: 30, ShortBreakMinutes: 4, LongBreakMinutes: 20, CyclesBeforeLongBreak: cycles}
		state := model.SessionState{Phase: model.PhaseWork}

		works, longBreaks := 0, 0
		for works < cycles*3 {
			next := CompletePhase(state, config)
			if state.Phase == model.PhaseWork {
				works++
			}
			if next.Phase == model.PhaseLongBreak {
				longBreaks++
			}
			require.GreaterOrEqual(t, next.WorkCount, 0)
			require.Less(t, next.WorkCount, cycles)
			state.Phase = next.Phase
			state.WorkCount = next.WorkCount
		}

		assert.Equal(t, 3, longBreaks, "cycles=%d", cycles)
	}
}

func TestCompletePhaseIsPure(t *testing.T) {
	config := model.DefaultSessionConfig()
	state := model.SessionState{Phase: model.PhaseWork, WorkCount: 2, RemainingSeconds: 42}

	first := CompletePhase(state, config)
	second := CompletePhase(state, config)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, state.WorkCount)
}

func TestCompletePhaseLongBreakReturnsToWork(t *testing.T) {
	config := model.DefaultSessionConfig()
	next := CompletePhase(model.SessionState{Phase: model.PhaseLongBreak}, config)
	assert.Equal(t, model.PhaseWork, next.Phase)
	assert.Equal(t, 0, next.WorkCount)
	assert.Equal(t, 25*60, next.DurationSeconds)
}
