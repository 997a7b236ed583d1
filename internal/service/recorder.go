package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/cityford/trainer-server-go/internal/database"
	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"
	"github.com/cityford/trainer-server-go/internal/sse"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

// TurnResult is what one recorded turn did to the session.
type TurnResult struct {
	Message      *model.Message
	Phase        model.Phase
	Outcome      *model.Outcome
	Signal       model.Signal
	Matched      []string
	AttemptsUsed int
}

// SessionRecorder owns the append-only message log and the per-session
// analytics rollup. Each turn classifies, advances the phase tracker,
// appends the message and updates the rollup in one transaction; terminal
// transitions finalize the session and fold it into the daily analytics
// within the same commit.
type SessionRecorder struct {
	db         database.TxRunner
	sessions   repository.SessionRepository
	messages   repository.MessageRepository
	analytics  repository.SessionAnalyticsRepository
	aggregator *AnalyticsAggregator
	broker     *sse.Broker
}

func NewSessionRecorder(
	db database.TxRunner,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	analytics repository.SessionAnalyticsRepository,
	aggregator *AnalyticsAggregator,
	broker *sse.Broker,
) *SessionRecorder {
	return &SessionRecorder{
		db:         db,
		sessions:   sessions,
		messages:   messages,
		analytics:  analytics,
		aggregator: aggregator,
		broker:     broker,
	}
}

// RecordTurn classifies and persists one conversation turn. Assistant turns
// never carry signals; user turns may advance or seal the session. The
// message stores the phase the utterance happened in, before any transition
// it triggered.
func (r *SessionRecorder) RecordTurn(ctx context.Context, session *model.Session, role model.Role, content string, cfg model.ConfigSnapshot) (*TurnResult, error) {
	if session.Sealed() {
		return nil, apperrors.SessionSealed(session.ID)
	}

	cls := Classification{Signal: model.SignalNeutral}
	if role == model.RoleUser {
		cls = Classify(content, cfg)
	}

	phaseAt := session.CurrentPhase
	adv := AdvancePhase(session, cls.Signal, cfg.MaxClosingAttempts)
	now := time.Now()

	result := &TurnResult{
		Phase:        session.CurrentPhase,
		Outcome:      adv.Outcome,
		Signal:       cls.Signal,
		Matched:      cls.Matched,
		AttemptsUsed: adv.AttemptsUsed,
	}

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		msg, err := r.messages.WithTx(tx).Append(ctx, model.AppendMessageParams{
			SessionID: session.ID,
			Role:      role,
			Content:   content,
			Phase:     phaseAt,
			Sentiment: SentimentFor(cls.Signal),
			Keywords:  cls.Matched,
		})
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		result.Message = msg

		if err := r.updateRollup(ctx, tx, session, role, content, phaseAt, cls.Signal, now); err != nil {
			return err
		}

		if err := r.sessions.WithTx(tx).SaveProgress(ctx, session); err != nil {
			return fmt.Errorf("save session progress: %w", err)
		}

		if adv.Outcome != nil {
			if _, _, err := r.finalizeTx(ctx, tx, session, *adv.Outcome, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publishTurnEvents(ctx, session, phaseAt, result)
	return result, nil
}

// Finalize seals the session with the given outcome and rolls it up into
// the daily analytics. Idempotent: re-invocation on a session already sealed
// in storage returns the existing analytics row without side effects.
func (r *SessionRecorder) Finalize(ctx context.Context, session *model.Session, outcome model.Outcome) (*model.SessionAnalytics, error) {
	var (
		analytics *model.SessionAnalytics
		sealed    bool
	)
	now := time.Now()

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		analytics, sealed, err = r.finalizeTx(ctx, tx, session, outcome, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if sealed {
		r.publishSessionClosed(ctx, session, outcome)
	}
	return analytics, nil
}

// finalizeTx is the single finalization path, shared by explicit Finalize
// calls and turns that sealed the session. The storage-level seal guard
// deduplicates racing finalize attempts (manual close vs timeout sweep).
func (r *SessionRecorder) finalizeTx(ctx context.Context, tx *sqlx.Tx, session *model.Session, outcome model.Outcome, now time.Time) (*model.SessionAnalytics, bool, error) {
	sessions := r.sessions.WithTx(tx)
	analyticsRepo := r.analytics.WithTx(tx)

	sealed, err := sessions.Seal(ctx, session.ID, outcome, now)
	if err != nil {
		return nil, false, fmt.Errorf("seal session: %w", err)
	}
	if !sealed {
		existing, err := analyticsRepo.FindBySessionID(ctx, session.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load sealed analytics: %w", err)
		}
		return existing, false, nil
	}

	session.Outcome = &outcome
	session.CurrentPhase = outcome.TerminalPhase()
	session.EndedAt = &now

	a, err := r.loadOrInitRollup(ctx, analyticsRepo, session.ID)
	if err != nil {
		return nil, false, err
	}

	// timeToClose is set exactly once, only for definitive closes
	if a.TimeToClose == nil && outcome != model.OutcomeAbandoned {
		secs := int(now.Sub(session.StartedAt).Seconds())
		a.TimeToClose = &secs
	}
	if outcome == model.OutcomeSaleMade {
		a.SuccessfulTechniques = append(model.StringList(nil), session.TechniquesUsed...)
	} else {
		a.FailedTechniques = append(model.StringList(nil), session.TechniquesUsed...)
	}

	saved, err := analyticsRepo.Save(ctx, a)
	if err != nil {
		return nil, false, fmt.Errorf("save session analytics: %w", err)
	}

	summary := SessionSummary{
		DurationSeconds: session.Duration(now).Seconds(),
		TotalMessages:   saved.TotalMessages,
	}
	if _, err := r.aggregator.applyTx(ctx, tx, now, outcome, summary); err != nil {
		return nil, false, fmt.Errorf("rollup outcome: %w", err)
	}

	return saved, true, nil
}

func (r *SessionRecorder) updateRollup(ctx context.Context, tx *sqlx.Tx, session *model.Session, role model.Role, content string, phaseAt model.Phase, signal model.Signal, now time.Time) error {
	analyticsRepo := r.analytics.WithTx(tx)
	a, err := r.loadOrInitRollup(ctx, analyticsRepo, session.ID)
	if err != nil {
		return err
	}

	// exact running average, recomputed from the previous count
	a.AvgResponseLength = runningAvg(a.AvgResponseLength, a.TotalMessages, float64(len(content)))
	a.TotalMessages++
	if role == model.RoleUser {
		a.UserMessageCount++
	} else {
		a.AssistantMessageCount++
	}

	if role == model.RoleAssistant && phaseAt == model.PhaseDiscovery {
		a.DiscoveryQuestionsAsked++
	}

	switch signal {
	case model.SignalSuccess:
		a.PositiveSignals++
		if a.TimeToFirstInterest == nil {
			secs := int(now.Sub(session.StartedAt).Seconds())
			a.TimeToFirstInterest = &secs
		}
	case model.SignalObjection:
		a.NegativeSignals++
		a.ObjectionCount++
	}

	if _, err := analyticsRepo.Save(ctx, a); err != nil {
		return fmt.Errorf("save session analytics: %w", err)
	}
	return nil
}

func (r *SessionRecorder) loadOrInitRollup(ctx context.Context, repo repository.SessionAnalyticsRepository, sessionID string) (*model.SessionAnalytics, error) {
	a, err := repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session analytics: %w", err)
	}
	if a == nil {
		a = &model.SessionAnalytics{SessionID: sessionID}
	}
	return a, nil
}

func (r *SessionRecorder) publishTurnEvents(ctx context.Context, session *model.Session, phaseAt model.Phase, result *TurnResult) {
	if r.broker == nil {
		return
	}
	if result.Phase != phaseAt {
		r.publish(ctx, session.ID, "phase_changed", map[string]any{
			"sessionId": session.ID,
			"from":      phaseAt,
			"to":        result.Phase,
		})
	}
	if result.Outcome != nil {
		r.publishSessionClosed(ctx, session, *result.Outcome)
	}
}

// NotifyPhaseChanged announces a hint-driven phase transition to SSE
// consumers.
func (r *SessionRecorder) NotifyPhaseChanged(ctx context.Context, session *model.Session, from model.Phase) {
	if r.broker == nil || session.CurrentPhase == from {
		return
	}
	r.publish(ctx, session.ID, "phase_changed", map[string]any{
		"sessionId": session.ID,
		"from":      from,
		"to":        session.CurrentPhase,
	})
}

func (r *SessionRecorder) publishSessionClosed(ctx context.Context, session *model.Session, outcome model.Outcome) {
	if r.broker == nil {
		return
	}
	r.publish(ctx, session.ID, "session_closed", map[string]any{
		"sessionId": session.ID,
		"outcome":   outcome,
	})
}

func (r *SessionRecorder) publish(ctx context.Context, sessionID, eventType string, data map[string]any) {
	event, err := sse.NewEvent(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to encode session event")
		return
	}
	if err := r.broker.Publish(ctx, sessionID, event); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish session event")
	}
	if err := r.broker.Publish(ctx, sse.FirehoseStream, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish firehose event")
	}
}
