package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityford/trainer-server-go/internal/model"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

type conversationFixture struct {
	service   *ConversationService
	sessions  *mockSessionRepo
	messages  *mockMessageRepo
	analytics *mockSessionAnalyticsRepo
	globals   *mockGlobalAnalyticsRepo
	appConfig *mockAppConfigRepo
}

func newConversationFixture() *conversationFixture {
	sessions := newMockSessionRepo()
	messages := &mockMessageRepo{}
	analytics := newMockSessionAnalyticsRepo()
	globals := newMockGlobalAnalyticsRepo()
	appConfig := &mockAppConfigRepo{}

	aggregator := NewAnalyticsAggregator(passTxRunner{}, globals, sessions, messages)
	recorder := NewSessionRecorder(passTxRunner{}, sessions, messages, analytics, aggregator, nil)
	svc := NewConversationService(sessions, messages, appConfig, recorder)

	return &conversationFixture{
		service:   svc,
		sessions:  sessions,
		messages:  messages,
		analytics: analytics,
		globals:   globals,
		appConfig: appConfig,
	}
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session in greeting", func(t *testing.T) {
		f := newConversationFixture()

		session, err := f.service.CreateSession(ctx, "  trainee  ", nil, "")

		require.NoError(t, err)
		assert.Equal(t, "trainee", session.UserName)
		assert.Equal(t, model.PhaseGreeting, session.CurrentPhase)
		assert.Empty(t, f.messages.messages)
	})

	t.Run("records a trigger-phrase opening as the first turn", func(t *testing.T) {
		f := newConversationFixture()

		session, err := f.service.CreateSession(ctx, "trainee", nil, "Hey, sell me a car!")

		require.NoError(t, err)
		require.Len(t, f.messages.messages, 1)
		assert.Equal(t, session.ID, f.messages.messages[0].SessionID)
		assert.Equal(t, model.RoleUser, f.messages.messages[0].Role)
	})

	t.Run("rejects an opening without the trigger phrase", func(t *testing.T) {
		f := newConversationFixture()

		_, err := f.service.CreateSession(ctx, "trainee", nil, "hello there")

		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		assert.Empty(t, f.sessions.sessions)
	})

	t.Run("honors a custom trigger phrase from config", func(t *testing.T) {
		f := newConversationFixture()
		f.appConfig.config = &model.AppConfig{TriggerPhrase: "sell me a boat"}

		_, err := f.service.CreateSession(ctx, "trainee", nil, "sell me a boat please")
		require.NoError(t, err)

		_, err = f.service.CreateSession(ctx, "trainee", nil, "sell me a car")
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("config errors degrade to defaults", func(t *testing.T) {
		f := newConversationFixture()
		f.appConfig.err = errors.New("db down")

		_, err := f.service.CreateSession(ctx, "trainee", nil, "sell me a car")
		assert.NoError(t, err)
	})
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("turn on unknown session is not found", func(t *testing.T) {
		f := newConversationFixture()

		_, err := f.service.Turn(ctx, "33333333-3333-3333-3333-333333333333", model.RoleUser, "hi")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("advance walks the funnel one step at a time", func(t *testing.T) {
		f := newConversationFixture()
		session, err := f.service.CreateSession(ctx, "trainee", nil, "")
		require.NoError(t, err)

		updated, err := f.service.AdvanceTo(ctx, session.ID, model.PhaseDiscovery)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseDiscovery, updated.CurrentPhase)

		_, err = f.service.AdvanceTo(ctx, session.ID, model.PhaseNegotiation)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
	})

	t.Run("techniques and needs accumulate while open", func(t *testing.T) {
		f := newConversationFixture()
		session, err := f.service.CreateSession(ctx, "trainee", nil, "")
		require.NoError(t, err)

		_, err = f.service.ApplyTechnique(ctx, session.ID, "urgency")
		require.NoError(t, err)
		updated, err := f.service.RecordNeed(ctx, session.ID, "budget", 30000)
		require.NoError(t, err)

		assert.Equal(t, model.StringList{"urgency"}, updated.TechniquesUsed)
		assert.Equal(t, 30000, updated.UserNeeds["budget"])
	})

	t.Run("sealed session rejects techniques and needs", func(t *testing.T) {
		f := newConversationFixture()
		session, err := f.service.CreateSession(ctx, "trainee", nil, "")
		require.NoError(t, err)

		_, err = f.service.Close(ctx, session.ID, model.OutcomeNoSale)
		require.NoError(t, err)

		_, err = f.service.ApplyTechnique(ctx, session.ID, "urgency")
		assert.Equal(t, apperrors.ErrCodeSessionSealed, apperrors.GetCode(err))

		_, err = f.service.RecordNeed(ctx, session.ID, "budget", 30000)
		assert.Equal(t, apperrors.ErrCodeSessionSealed, apperrors.GetCode(err))
	})

	t.Run("manual close produces the analytics row", func(t *testing.T) {
		f := newConversationFixture()
		session, err := f.service.CreateSession(ctx, "trainee", nil, "")
		require.NoError(t, err)

		analytics, err := f.service.Close(ctx, session.ID, model.OutcomeAbandoned)

		require.NoError(t, err)
		require.NotNil(t, analytics)
		assert.Equal(t, session.ID, analytics.SessionID)

		stored, _ := f.sessions.FindByID(ctx, session.ID)
		assert.Equal(t, model.PhaseAbandoned, stored.CurrentPhase)
	})
}
