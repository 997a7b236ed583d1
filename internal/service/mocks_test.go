package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/database"
	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"
)

// passTxRunner runs the transaction function directly. The mock repositories
// below ignore their tx argument, so a nil tx is fine.
type passTxRunner struct{}

func (passTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var _ database.TxRunner = passTxRunner{}

type mockSessionRepo struct {
	sessions map[string]*model.Session
	stale    []model.Session
	closed   []model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *mockSessionRepo) put(s *model.Session) {
	copied := *s
	m.sessions[s.ID] = &copied
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	now := time.Now()
	s := &model.Session{
		ID:              params.ID,
		UserName:        params.UserName,
		VehicleInterest: params.VehicleInterest,
		CurrentPhase:    model.PhaseGreeting,
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.put(s)
	result := *s
	return &result, nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSessionRepo) List(ctx context.Context, limit, offset int) ([]model.Session, error) {
	var out []model.Session
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

// SaveProgress mirrors the SQL: only the mid-conversation fields are
// written, and only while the stored row is unsealed.
func (m *mockSessionRepo) SaveProgress(ctx context.Context, session *model.Session) error {
	existing, ok := m.sessions[session.ID]
	if !ok || existing.Outcome != nil {
		return nil
	}
	existing.CurrentPhase = session.CurrentPhase
	existing.ClosingAttempts = session.ClosingAttempts
	existing.UserNeeds = session.UserNeeds
	existing.TechniquesUsed = session.TechniquesUsed
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *mockSessionRepo) Seal(ctx context.Context, id string, outcome model.Outcome, endedAt time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Outcome != nil {
		return false, nil
	}
	s.Outcome = &outcome
	s.CurrentPhase = outcome.TerminalPhase()
	s.EndedAt = &endedAt
	return true, nil
}

func (m *mockSessionRepo) FindStale(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	return m.stale, nil
}

func (m *mockSessionRepo) ClosedBetween(ctx context.Context, start, end time.Time) ([]model.Session, error) {
	return m.closed, nil
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockMessageRepo struct {
	messages          []model.Message
	objectionKeywords []model.StringList
}

func (m *mockMessageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.Message, error) {
	msg := model.Message{
		ID:        uuid.NewString(),
		SessionID: params.SessionID,
		Role:      params.Role,
		Content:   params.Content,
		Phase:     params.Phase,
		Sentiment: params.Sentiment,
		Keywords:  params.Keywords,
		CreatedAt: time.Now(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockMessageRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Message, error) {
	var out []model.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	msgs, _ := m.ListBySession(ctx, sessionID)
	return len(msgs), nil
}

func (m *mockMessageRepo) ObjectionKeywordsBetween(ctx context.Context, start, end time.Time) ([]model.StringList, error) {
	return m.objectionKeywords, nil
}

func (m *mockMessageRepo) WithTx(tx *sqlx.Tx) repository.MessageRepository {
	return m
}

type mockSessionAnalyticsRepo struct {
	rows map[string]*model.SessionAnalytics
}

func newMockSessionAnalyticsRepo() *mockSessionAnalyticsRepo {
	return &mockSessionAnalyticsRepo{rows: make(map[string]*model.SessionAnalytics)}
}

func (m *mockSessionAnalyticsRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.SessionAnalytics, error) {
	a, ok := m.rows[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (m *mockSessionAnalyticsRepo) Save(ctx context.Context, a *model.SessionAnalytics) (*model.SessionAnalytics, error) {
	copied := *a
	copied.UpdatedAt = time.Now()
	m.rows[a.SessionID] = &copied
	result := copied
	return &result, nil
}

func (m *mockSessionAnalyticsRepo) WithTx(tx *sqlx.Tx) repository.SessionAnalyticsRepository {
	return m
}

type mockAppConfigRepo struct {
	config *model.AppConfig
	err    error
}

func (m *mockAppConfigRepo) Get(ctx context.Context) (*model.AppConfig, error) {
	return m.config, m.err
}

type mockGlobalAnalyticsRepo struct {
	days map[time.Time]*model.GlobalAnalytics
}

func newMockGlobalAnalyticsRepo() *mockGlobalAnalyticsRepo {
	return &mockGlobalAnalyticsRepo{days: make(map[time.Time]*model.GlobalAnalytics)}
}

func (m *mockGlobalAnalyticsRepo) EnsureDay(ctx context.Context, date time.Time) error {
	if _, ok := m.days[date]; !ok {
		m.days[date] = &model.GlobalAnalytics{Date: date}
	}
	return nil
}

func (m *mockGlobalAnalyticsRepo) LockDay(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error) {
	copied := *m.days[date]
	return &copied, nil
}

func (m *mockGlobalAnalyticsRepo) Update(ctx context.Context, g *model.GlobalAnalytics) error {
	copied := *g
	m.days[g.Date] = &copied
	return nil
}

func (m *mockGlobalAnalyticsRepo) FindByDate(ctx context.Context, date time.Time) (*model.GlobalAnalytics, error) {
	g, ok := m.days[date]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

func (m *mockGlobalAnalyticsRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.GlobalAnalytics, error) {
	var out []model.GlobalAnalytics
	for _, g := range m.days {
		if !g.Date.Before(from) && !g.Date.After(to) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockGlobalAnalyticsRepo) WithTx(tx *sqlx.Tx) repository.GlobalAnalyticsRepository {
	return m
}
