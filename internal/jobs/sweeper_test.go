package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"
)

type mockSessionRepo struct {
	stale      []model.Session
	findErr    error
	lastCutoff time.Time
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) List(ctx context.Context, limit, offset int) ([]model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) SaveProgress(ctx context.Context, session *model.Session) error {
	return nil
}

func (m *mockSessionRepo) Seal(ctx context.Context, id string, outcome model.Outcome, endedAt time.Time) (bool, error) {
	return false, nil
}

func (m *mockSessionRepo) FindStale(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	m.lastCutoff = cutoff
	return m.stale, m.findErr
}

func (m *mockSessionRepo) ClosedBetween(ctx context.Context, start, end time.Time) ([]model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockFinalizer struct {
	finalized map[string]model.Outcome
	err       error
}

func (m *mockFinalizer) Finalize(ctx context.Context, session *model.Session, outcome model.Outcome) (*model.SessionAnalytics, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.finalized == nil {
		m.finalized = make(map[string]model.Outcome)
	}
	m.finalized[session.ID] = outcome
	return &model.SessionAnalytics{SessionID: session.ID}, nil
}

func TestSweepJob(t *testing.T) {
	t.Run("abandons every stale session", func(t *testing.T) {
		sessions := &mockSessionRepo{stale: []model.Session{
			{ID: "s1", CurrentPhase: model.PhaseDiscovery},
			{ID: "s2", CurrentPhase: model.PhaseClosing},
		}}
		finalizer := &mockFinalizer{}
		job := NewSweepJob(sessions, finalizer, 30*time.Minute, time.Minute)

		job.sweep()

		assert.Len(t, finalizer.finalized, 2)
		assert.Equal(t, model.OutcomeAbandoned, finalizer.finalized["s1"])
		assert.Equal(t, model.OutcomeAbandoned, finalizer.finalized["s2"])
	})

	t.Run("cutoff is the staleness window before now", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		job := NewSweepJob(sessions, &mockFinalizer{}, 30*time.Minute, time.Minute)

		before := time.Now().Add(-30 * time.Minute)
		job.sweep()
		after := time.Now().Add(-30 * time.Minute)

		assert.False(t, sessions.lastCutoff.Before(before))
		assert.False(t, sessions.lastCutoff.After(after))
	})

	t.Run("a failing finalize does not stop the sweep", func(t *testing.T) {
		sessions := &mockSessionRepo{stale: []model.Session{{ID: "s1"}, {ID: "s2"}}}
		finalizer := &mockFinalizer{err: errors.New("seal failed")}
		job := NewSweepJob(sessions, finalizer, 30*time.Minute, time.Minute)

		assert.NotPanics(t, func() { job.sweep() })
	})

	t.Run("lookup errors are swallowed", func(t *testing.T) {
		sessions := &mockSessionRepo{findErr: errors.New("db down")}
		finalizer := &mockFinalizer{}
		job := NewSweepJob(sessions, finalizer, 30*time.Minute, time.Minute)

		assert.NotPanics(t, func() { job.sweep() })
		assert.Empty(t, finalizer.finalized)
	})

	t.Run("start and stop terminate cleanly", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		job := NewSweepJob(sessions, &mockFinalizer{}, 30*time.Minute, time.Hour)

		job.Start()
		time.Sleep(10 * time.Millisecond)
		job.Stop()
	})
}
