package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	FindByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, limit, offset int) ([]model.Session, error)
	// SaveProgress persists the mutable mid-conversation fields: phase,
	// closing attempts, needs and techniques.
	SaveProgress(ctx context.Context, session *model.Session) error
	// Seal sets the outcome and end timestamp. Guarded by outcome IS NULL so
	// finalization runs at most once; returns false when the session was
	// already sealed.
	Seal(ctx context.Context, id string, outcome model.Outcome, endedAt time.Time) (bool, error)
	// FindStale returns active sessions with no activity since the cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]model.Session, error)
	// ClosedBetween returns sessions sealed within [start, end).
	ClosedBetween(ctx context.Context, start, end time.Time) ([]model.Session, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sales_sessions (id, user_name, current_phase, user_needs, techniques_used, vehicle_interest)
		VALUES ($1, $2, $3, '{}', '[]', $4)
		RETURNING *
	`, params.ID, params.UserName, model.PhaseGreeting, params.VehicleInterest)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sales_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) List(ctx context.Context, limit, offset int) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sales_sessions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return sessions, err
}

func (r *sessionRepo) SaveProgress(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sales_sessions SET
			current_phase = $2,
			closing_attempts = $3,
			user_needs = $4,
			techniques_used = $5,
			updated_at = $6
		WHERE id = $1 AND outcome IS NULL
	`, session.ID, session.CurrentPhase, session.ClosingAttempts,
		session.UserNeeds, session.TechniquesUsed, time.Now())
	return err
}

func (r *sessionRepo) Seal(ctx context.Context, id string, outcome model.Outcome, endedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sales_sessions SET
			outcome = $2,
			current_phase = $3,
			ended_at = $4,
			updated_at = $4
		WHERE id = $1 AND outcome IS NULL
	`, id, outcome, outcome.TerminalPhase(), endedAt)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionRepo) FindStale(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sales_sessions
		WHERE outcome IS NULL AND updated_at < $1
		ORDER BY updated_at ASC
	`, cutoff)
	return sessions, err
}

func (r *sessionRepo) ClosedBetween(ctx context.Context, start, end time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sales_sessions
		WHERE ended_at >= $1 AND ended_at < $2
		ORDER BY ended_at ASC
	`, start, end)
	return sessions, err
}
