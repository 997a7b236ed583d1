package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityford/trainer-server-go/internal/model"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

func sessionIn(phase model.Phase) *model.Session {
	return &model.Session{
		ID:           "11111111-1111-1111-1111-111111111111",
		UserName:     "trainee",
		CurrentPhase: phase,
	}
}

func TestAdvancePhase(t *testing.T) {
	t.Run("signals outside closing are inert", func(t *testing.T) {
		for _, phase := range []model.Phase{
			model.PhaseGreeting, model.PhaseDiscovery, model.PhaseSelection,
			model.PhasePresentation, model.PhaseTestDrive, model.PhaseNegotiation,
		} {
			session := sessionIn(phase)
			result := AdvancePhase(session, model.SignalSuccess, 3)

			assert.Equal(t, phase, result.Phase)
			assert.Nil(t, result.Outcome)
			assert.Equal(t, 0, result.AttemptsUsed)
		}
	})

	t.Run("success in closing seals sale_made", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		result := AdvancePhase(session, model.SignalSuccess, 3)

		require.NotNil(t, result.Outcome)
		assert.Equal(t, model.OutcomeSaleMade, *result.Outcome)
		assert.Equal(t, model.PhaseCompleted, result.Phase)
		assert.Equal(t, model.PhaseCompleted, session.CurrentPhase)
	})

	t.Run("objections in closing burn attempts then seal no_sale", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)

		first := AdvancePhase(session, model.SignalObjection, 3)
		assert.Nil(t, first.Outcome)
		assert.Equal(t, 1, first.AttemptsUsed)
		assert.Equal(t, model.PhaseClosing, first.Phase)

		second := AdvancePhase(session, model.SignalObjection, 3)
		assert.Nil(t, second.Outcome)
		assert.Equal(t, 2, second.AttemptsUsed)

		third := AdvancePhase(session, model.SignalObjection, 3)
		require.NotNil(t, third.Outcome)
		assert.Equal(t, model.OutcomeNoSale, *third.Outcome)
		assert.Equal(t, model.PhaseCompleted, third.Phase)
		assert.Equal(t, 3, third.AttemptsUsed)
		assert.Equal(t, 3, session.ClosingAttempts)
	})

	t.Run("success on the last attempt still wins", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		session.ClosingAttempts = 2

		result := AdvancePhase(session, model.SignalSuccess, 3)

		require.NotNil(t, result.Outcome)
		assert.Equal(t, model.OutcomeSaleMade, *result.Outcome)
		assert.Equal(t, 2, result.AttemptsUsed)
	})

	t.Run("neutral in closing leaves the counter alone", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		session.ClosingAttempts = 1

		result := AdvancePhase(session, model.SignalNeutral, 3)

		assert.Nil(t, result.Outcome)
		assert.Equal(t, 1, result.AttemptsUsed)
		assert.Equal(t, model.PhaseClosing, result.Phase)
	})

	t.Run("sealed session is a no-op and never re-fires", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		sealed := AdvancePhase(session, model.SignalSuccess, 3)
		require.NotNil(t, sealed.Outcome)

		again := AdvancePhase(session, model.SignalSuccess, 3)
		require.NotNil(t, again.Outcome)
		assert.Equal(t, model.OutcomeSaleMade, *again.Outcome)
		assert.Equal(t, model.PhaseCompleted, again.Phase)
	})

	t.Run("attempt counter never exceeds the maximum", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		session.ClosingAttempts = 3

		result := AdvancePhase(session, model.SignalObjection, 3)

		require.NotNil(t, result.Outcome)
		assert.Equal(t, model.OutcomeNoSale, *result.Outcome)
		assert.Equal(t, 3, result.AttemptsUsed)
	})

	t.Run("single-attempt configuration seals on first objection", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)

		result := AdvancePhase(session, model.SignalObjection, 1)

		require.NotNil(t, result.Outcome)
		assert.Equal(t, model.OutcomeNoSale, *result.Outcome)
		assert.Equal(t, 1, result.AttemptsUsed)
	})
}

func TestApplyPhaseHint(t *testing.T) {
	t.Run("advances exactly one step forward", func(t *testing.T) {
		session := sessionIn(model.PhaseGreeting)

		require.NoError(t, ApplyPhaseHint(session, model.PhaseDiscovery))
		assert.Equal(t, model.PhaseDiscovery, session.CurrentPhase)

		require.NoError(t, ApplyPhaseHint(session, model.PhaseSelection))
		assert.Equal(t, model.PhaseSelection, session.CurrentPhase)
	})

	t.Run("rejects skipping a step", func(t *testing.T) {
		session := sessionIn(model.PhaseGreeting)

		err := ApplyPhaseHint(session, model.PhaseSelection)

		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		assert.Equal(t, model.PhaseGreeting, session.CurrentPhase)
	})

	t.Run("rejects moving backward", func(t *testing.T) {
		session := sessionIn(model.PhaseNegotiation)

		err := ApplyPhaseHint(session, model.PhaseDiscovery)

		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
	})

	t.Run("rejects re-entering the current phase", func(t *testing.T) {
		session := sessionIn(model.PhaseDiscovery)

		err := ApplyPhaseHint(session, model.PhaseDiscovery)

		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
	})

	t.Run("completed is unreachable via hint", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)

		err := ApplyPhaseHint(session, model.PhaseCompleted)

		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		assert.Equal(t, model.PhaseClosing, session.CurrentPhase)
	})

	t.Run("sealed session rejects hints", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		AdvancePhase(session, model.SignalSuccess, 3)

		err := ApplyPhaseHint(session, model.PhaseCompleted)

		assert.Equal(t, apperrors.ErrCodeSessionSealed, apperrors.GetCode(err))
	})
}

func TestAbandon(t *testing.T) {
	t.Run("seals an open session from any phase", func(t *testing.T) {
		for _, phase := range []model.Phase{
			model.PhaseGreeting, model.PhaseDiscovery, model.PhaseNegotiation, model.PhaseClosing,
		} {
			session := sessionIn(phase)
			outcome := Abandon(session)

			require.NotNil(t, outcome)
			assert.Equal(t, model.OutcomeAbandoned, *outcome)
			assert.Equal(t, model.PhaseAbandoned, session.CurrentPhase)
		}
	})

	t.Run("returns nil for an already sealed session", func(t *testing.T) {
		session := sessionIn(model.PhaseClosing)
		AdvancePhase(session, model.SignalSuccess, 3)

		assert.Nil(t, Abandon(session))
		assert.Equal(t, model.PhaseCompleted, session.CurrentPhase)
	})
}
