package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/model"
)

type SessionAnalyticsRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*model.SessionAnalytics, error)
	// Save upserts the rollup row keyed by session id.
	Save(ctx context.Context, analytics *model.SessionAnalytics) (*model.SessionAnalytics, error)
	WithTx(tx *sqlx.Tx) SessionAnalyticsRepository
}

type sessionAnalyticsRepo struct {
	db sessionDB
}

func NewSessionAnalyticsRepository(db *sqlx.DB) SessionAnalyticsRepository {
	return &sessionAnalyticsRepo{db: db}
}

func (r *sessionAnalyticsRepo) WithTx(tx *sqlx.Tx) SessionAnalyticsRepository {
	return &sessionAnalyticsRepo{db: tx}
}

func (r *sessionAnalyticsRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.SessionAnalytics, error) {
	var analytics model.SessionAnalytics
	err := r.db.GetContext(ctx, &analytics, `
		SELECT * FROM session_analytics WHERE session_id = $1
	`, sessionID)
	return HandleNotFound(&analytics, err)
}

func (r *sessionAnalyticsRepo) Save(ctx context.Context, a *model.SessionAnalytics) (*model.SessionAnalytics, error) {
	var saved model.SessionAnalytics
	err := r.db.GetContext(ctx, &saved, `
		INSERT INTO session_analytics
			(session_id, total_messages, user_message_count, assistant_message_count,
			 avg_response_length, discovery_questions_asked, objection_count,
			 positive_signals, negative_signals, time_to_first_interest,
			 time_to_close, successful_techniques, failed_techniques, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO UPDATE SET
			total_messages = EXCLUDED.total_messages,
			user_message_count = EXCLUDED.user_message_count,
			assistant_message_count = EXCLUDED.assistant_message_count,
			avg_response_length = EXCLUDED.avg_response_length,
			discovery_questions_asked = EXCLUDED.discovery_questions_asked,
			objection_count = EXCLUDED.objection_count,
			positive_signals = EXCLUDED.positive_signals,
			negative_signals = EXCLUDED.negative_signals,
			time_to_first_interest = EXCLUDED.time_to_first_interest,
			time_to_close = EXCLUDED.time_to_close,
			successful_techniques = EXCLUDED.successful_techniques,
			failed_techniques = EXCLUDED.failed_techniques,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`, a.SessionID, a.TotalMessages, a.UserMessageCount, a.AssistantMessageCount,
		a.AvgResponseLength, a.DiscoveryQuestionsAsked, a.ObjectionCount,
		a.PositiveSignals, a.NegativeSignals, a.TimeToFirstInterest,
		a.TimeToClose, a.SuccessfulTechniques, a.FailedTechniques, time.Now())
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

type GlobalAnalyticsRepository interface {
	// EnsureDay inserts an empty row for the day if none exists.
	EnsureDay(ctx context.Context, date time.Time) error
	// LockDay loads the day's row with a row lock. Callers must hold a
	// transaction; the lock serializes concurrent rollups on the same day.
	LockDay(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error)
	Update(ctx context.Context, analytics *model.GlobalAnalytics) error
	FindByDate(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error)
	ListRange(ctx context.Context, from, to time.Time) ([]model.GlobalAnalytics, error)
	WithTx(tx *sqlx.Tx) GlobalAnalyticsRepository
}

type globalAnalyticsRepo struct {
	db sessionDB
}

func NewGlobalAnalyticsRepository(db *sqlx.DB) GlobalAnalyticsRepository {
	return &globalAnalyticsRepo{db: db}
}

func (r *globalAnalyticsRepo) WithTx(tx *sqlx.Tx) GlobalAnalyticsRepository {
	return &globalAnalyticsRepo{db: tx}
}

func (r *globalAnalyticsRepo) EnsureDay(ctx context.Context, date time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO global_analytics (date)
		VALUES ($1)
		ON CONFLICT (date) DO NOTHING
	`, date)
	return err
}

func (r *globalAnalyticsRepo) LockDay(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error) {
	var analytics model.GlobalAnalytics
	err := r.db.GetContext(ctx, &analytics, `
		SELECT * FROM global_analytics WHERE date = $1 FOR UPDATE
	`, date)
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

func (r *globalAnalyticsRepo) Update(ctx context.Context, g *model.GlobalAnalytics) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE global_analytics SET
			total_sessions = $2,
			successful_sales = $3,
			failed_sales = $4,
			abandoned_sessions = $5,
			avg_session_duration = $6,
			avg_messages_to_close = $7,
			conversion_rate = $8,
			top_performing_technique = $9,
			most_common_objection = $10,
			updated_at = $11
		WHERE date = $1
	`, g.Date, g.TotalSessions, g.SuccessfulSales, g.FailedSales,
		g.AbandonedSessions, g.AvgSessionDuration, g.AvgMessagesToClose,
		g.ConversionRate, g.TopPerformingTechnique, g.MostCommonObjection,
		time.Now())
	return err
}

func (r *globalAnalyticsRepo) FindByDate(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error) {
	var analytics model.GlobalAnalytics
	err := r.db.GetContext(ctx, &analytics, `
		SELECT * FROM global_analytics WHERE date = $1
	`, date)
	return HandleNotFound(&analytics, err)
}

func (r *globalAnalyticsRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.GlobalAnalytics, error) {
	var rows []model.GlobalAnalytics
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM global_analytics
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`, from, to)
	return rows, err
}
