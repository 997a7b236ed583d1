package service

import (
	"github.com/cityford/trainer-server-go/internal/model"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

// AdvanceResult describes what a phase-tracker step did to the session.
type AdvanceResult struct {
	Phase model.Phase
	// Outcome is non-nil only when this step sealed the session.
	Outcome *model.Outcome
	// AttemptsUsed reflects the closing-attempt counter after the step.
	AttemptsUsed int
}

// AdvancePhase drives the session state machine with a classifier signal.
// Signals only act while the session is in closing: success seals the sale,
// objection burns a closing attempt and seals no_sale once attempts are
// exhausted. Calling on a sealed session is a no-op returning the terminal
// state; it never re-fires the outcome.
func AdvancePhase(session *model.Session, signal model.Signal, maxAttempts int) AdvanceResult {
	if session.Sealed() {
		return AdvanceResult{
			Phase:        session.CurrentPhase,
			Outcome:      session.Outcome,
			AttemptsUsed: session.ClosingAttempts,
		}
	}

	if session.CurrentPhase == model.PhaseClosing {
		switch signal {
		case model.SignalSuccess:
			outcome := sealSession(session, model.OutcomeSaleMade)
			return AdvanceResult{Phase: session.CurrentPhase, Outcome: outcome, AttemptsUsed: session.ClosingAttempts}

		case model.SignalObjection:
			allowed, used := registerClosingAttempt(session, maxAttempts)
			if !allowed {
				outcome := sealSession(session, model.OutcomeNoSale)
				return AdvanceResult{Phase: session.CurrentPhase, Outcome: outcome, AttemptsUsed: used}
			}
			return AdvanceResult{Phase: session.CurrentPhase, AttemptsUsed: used}
		}
	}

	return AdvanceResult{Phase: session.CurrentPhase, AttemptsUsed: session.ClosingAttempts}
}

// ApplyPhaseHint moves the phase forward exactly one step on behalf of the
// orchestration layer. A hint that would move backward, skip a step, or touch
// a sealed session indicates a caller bug and is rejected loudly.
func ApplyPhaseHint(session *model.Session, hint model.Phase) error {
	if session.Sealed() {
		return apperrors.SessionSealed(session.ID)
	}

	next, ok := session.CurrentPhase.Next()
	if !ok || hint != next {
		return apperrors.InvalidTransition(string(session.CurrentPhase), string(hint))
	}
	if next == model.PhaseCompleted {
		// completed is only reachable through an outcome, never via hint
		return apperrors.InvalidTransition(string(session.CurrentPhase), string(hint))
	}

	session.CurrentPhase = next
	return nil
}

// Abandon force-transitions a stale or manually closed session to the
// abandoned terminal state. Returns the outcome when the session was sealed
// by this call, nil when it was already terminal.
func Abandon(session *model.Session) *model.Outcome {
	if session.Sealed() {
		return nil
	}
	return sealSession(session, model.OutcomeAbandoned)
}

// registerClosingAttempt increments the closing-attempt counter up to
// maxAttempts and reports whether further attempts remain. The counter never
// exceeds the configured maximum.
func registerClosingAttempt(session *model.Session, maxAttempts int) (allowed bool, attemptsUsed int) {
	if session.ClosingAttempts < maxAttempts {
		session.ClosingAttempts++
	}
	return session.ClosingAttempts < maxAttempts, session.ClosingAttempts
}

func sealSession(session *model.Session, outcome model.Outcome) *model.Outcome {
	session.Outcome = &outcome
	session.CurrentPhase = outcome.TerminalPhase()
	return &outcome
}
