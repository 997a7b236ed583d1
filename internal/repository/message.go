package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/model"
)

type MessageRepository interface {
	// Append stores one turn. The log is append-only; rows are never updated.
	Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Message, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// ObjectionKeywordsBetween returns the matched keyword lists of negative
	// user turns in sessions closed within [start, end). Used for the daily
	// most-common-objection scan.
	ObjectionKeywordsBetween(ctx context.Context, start, end time.Time) ([]model.StringList, error)
	WithTx(tx *sqlx.Tx) MessageRepository
}

type messageRepo struct {
	db sessionDB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) WithTx(tx *sqlx.Tx) MessageRepository {
	return &messageRepo{db: tx}
}

func (r *messageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (session_id, role, content, phase, sentiment, keywords)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.SessionID, params.Role, params.Content, params.Phase,
		params.Sentiment, model.StringList(params.Keywords))
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	return msgs, err
}

func (r *messageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *messageRepo) ObjectionKeywordsBetween(ctx context.Context, start, end time.Time) ([]model.StringList, error) {
	var lists []model.StringList
	err := r.db.SelectContext(ctx, &lists, `
		SELECT m.keywords FROM messages m
		JOIN sales_sessions s ON s.id = m.session_id
		WHERE s.ended_at >= $1 AND s.ended_at < $2
		AND m.role = 'user' AND m.sentiment = 'negative'
		ORDER BY m.created_at ASC
	`, start, end)
	return lists, err
}
