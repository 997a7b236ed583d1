package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/database"
	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"
)

// SessionSummary carries the per-session figures folded into the day bucket.
type SessionSummary struct {
	DurationSeconds float64
	TotalMessages   int
}

// AnalyticsAggregator folds closed sessions into the day-bucketed global
// analytics row. Day buckets are UTC calendar days. Every update runs as a
// single transaction holding a row lock on the day, so concurrent session
// terminations never lose increments.
type AnalyticsAggregator struct {
	db       database.TxRunner
	globals  repository.GlobalAnalyticsRepository
	sessions repository.SessionRepository
	messages repository.MessageRepository
}

func NewAnalyticsAggregator(
	db database.TxRunner,
	globals repository.GlobalAnalyticsRepository,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
) *AnalyticsAggregator {
	return &AnalyticsAggregator{
		db:       db,
		globals:  globals,
		sessions: sessions,
		messages: messages,
	}
}

// Rollup applies one session outcome to its day bucket in a fresh
// transaction. Safe to retry: callers holding at-least-once delivery should
// pair it with the sealed-session guard upstream.
func (a *AnalyticsAggregator) Rollup(ctx context.Context, closedAt time.Time, outcome model.Outcome, summary SessionSummary) (*model.GlobalAnalytics, error) {
	var result *model.GlobalAnalytics
	err := a.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		g, err := a.applyTx(ctx, tx, closedAt, outcome, summary)
		if err != nil {
			return err
		}
		result = g
		return nil
	})
	return result, err
}

// applyTx performs the increment-then-recompute sequence inside the caller's
// transaction. Used directly by the recorder so seal and rollup commit
// atomically.
func (a *AnalyticsAggregator) applyTx(ctx context.Context, tx *sqlx.Tx, closedAt time.Time, outcome model.Outcome, summary SessionSummary) (*model.GlobalAnalytics, error) {
	day := model.DayBucket(closedAt)
	globals := a.globals.WithTx(tx)

	if err := globals.EnsureDay(ctx, day); err != nil {
		return nil, fmt.Errorf("ensure day bucket: %w", err)
	}
	g, err := globals.LockDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("lock day bucket: %w", err)
	}

	// Running averages fold in the new value against the pre-increment counts.
	g.AvgSessionDuration = runningAvg(g.AvgSessionDuration, g.TotalSessions, summary.DurationSeconds)
	g.TotalSessions++

	switch outcome {
	case model.OutcomeSaleMade:
		g.AvgMessagesToClose = runningAvg(g.AvgMessagesToClose, g.SuccessfulSales, float64(summary.TotalMessages))
		g.SuccessfulSales++
	case model.OutcomeNoSale:
		g.FailedSales++
	case model.OutcomeAbandoned:
		g.AbandonedSessions++
	default:
		return nil, fmt.Errorf("unknown outcome %q", outcome)
	}

	g.RecomputeConversionRate()

	if err := a.scanDayModes(ctx, tx, g, day); err != nil {
		return nil, err
	}

	if err := globals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update day bucket: %w", err)
	}
	return g, nil
}

// scanDayModes rederives the day's top-performing technique and most common
// objection from the sessions and messages closed that day.
func (a *AnalyticsAggregator) scanDayModes(ctx context.Context, tx *sqlx.Tx, g *model.GlobalAnalytics, day time.Time) error {
	dayEnd := day.AddDate(0, 0, 1)

	closed, err := a.sessions.WithTx(tx).ClosedBetween(ctx, day, dayEnd)
	if err != nil {
		return fmt.Errorf("scan day sessions: %w", err)
	}
	var techniques []string
	for _, s := range closed {
		if s.Outcome != nil && *s.Outcome == model.OutcomeSaleMade {
			techniques = append(techniques, s.TechniquesUsed...)
		}
	}
	if top, ok := firstMode(techniques); ok {
		g.TopPerformingTechnique = &top
	}

	keywordLists, err := a.messages.WithTx(tx).ObjectionKeywordsBetween(ctx, day, dayEnd)
	if err != nil {
		return fmt.Errorf("scan day objections: %w", err)
	}
	var objections []string
	for _, list := range keywordLists {
		objections = append(objections, list...)
	}
	if top, ok := firstMode(objections); ok {
		g.MostCommonObjection = &top
	}
	return nil
}

func runningAvg(oldAvg float64, oldCount int, value float64) float64 {
	return (oldAvg*float64(oldCount) + value) / float64(oldCount+1)
}

// firstMode returns the most frequent value; ties break toward the value
// encountered first.
func firstMode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	firstIdx := make(map[string]int, len(values))
	for i, v := range values {
		if _, seen := firstIdx[v]; !seen {
			firstIdx[v] = i
		}
		counts[v]++
	}

	best := values[0]
	for v, c := range counts {
		if c > counts[best] || (c == counts[best] && firstIdx[v] < firstIdx[best]) {
			best = v
		}
	}
	return best, true
}
