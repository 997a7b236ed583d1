package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

// ConversationService is the orchestration layer over the conversation core:
// it loads sessions, snapshots the admin config per turn, and delegates to
// the recorder and phase tracker.
type ConversationService struct {
	sessions  repository.SessionRepository
	messages  repository.MessageRepository
	appConfig repository.AppConfigRepository
	recorder  *SessionRecorder
}

func NewConversationService(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	appConfig repository.AppConfigRepository,
	recorder *SessionRecorder,
) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		messages:  messages,
		appConfig: appConfig,
		recorder:  recorder,
	}
}

// CreateSession opens a new simulation. When an opening message is supplied
// it must contain the configured trigger phrase and is recorded as the
// session's first turn.
func (s *ConversationService) CreateSession(ctx context.Context, userName string, vehicleInterest *string, openingMessage string) (*model.Session, error) {
	cfg := s.configSnapshot(ctx)

	openingMessage = strings.TrimSpace(openingMessage)
	if openingMessage != "" && !containsPhrase(openingMessage, cfg.TriggerPhrase) {
		return nil, apperrors.InvalidInput("openingMessage", fmt.Sprintf("must contain the trigger phrase %q", cfg.TriggerPhrase))
	}

	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		ID:              uuid.NewString(),
		UserName:        strings.TrimSpace(userName),
		VehicleInterest: vehicleInterest,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if openingMessage != "" {
		if _, err := s.recorder.RecordTurn(ctx, session, model.RoleUser, openingMessage, cfg); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("userName", session.UserName).
		Msg("session created")

	return session, nil
}

func containsPhrase(text, phrase string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(phrase)))
}

// Turn records one inbound utterance for the session.
func (s *ConversationService) Turn(ctx context.Context, sessionID string, role model.Role, content string) (*TurnResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.recorder.RecordTurn(ctx, session, role, content, s.configSnapshot(ctx))
	if err != nil {
		return nil, err
	}

	if result.Outcome != nil {
		log.Info().
			Str("sessionId", session.ID).
			Str("outcome", string(*result.Outcome)).
			Int("closingAttempts", result.AttemptsUsed).
			Msg("session sealed")
	}
	return result, nil
}

// AdvanceTo applies an explicit one-step phase hint from the orchestration
// layer.
func (s *ConversationService) AdvanceTo(ctx context.Context, sessionID string, hint model.Phase) (*model.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	from := session.CurrentPhase
	if err := ApplyPhaseHint(session, hint); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveProgress(ctx, session); err != nil {
		return nil, fmt.Errorf("save session progress: %w", err)
	}
	s.recorder.NotifyPhaseChanged(ctx, session, from)

	log.Debug().
		Str("sessionId", session.ID).
		Str("phase", string(session.CurrentPhase)).
		Msg("phase advanced")

	return session, nil
}

// Close manually terminates a session with the given outcome. Abandoned
// closes share the sweeper's finalize path; racing attempts are deduplicated
// by the storage seal guard.
func (s *ConversationService) Close(ctx context.Context, sessionID string, outcome model.Outcome) (*model.SessionAnalytics, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.recorder.Finalize(ctx, session, outcome)
}

// ApplyTechnique appends a sales technique to the session's usage sequence.
func (s *ConversationService) ApplyTechnique(ctx context.Context, sessionID, technique string) (*model.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Sealed() {
		return nil, apperrors.SessionSealed(session.ID)
	}

	session.TechniquesUsed = append(session.TechniquesUsed, technique)
	if err := s.sessions.SaveProgress(ctx, session); err != nil {
		return nil, fmt.Errorf("save session progress: %w", err)
	}
	return session, nil
}

// RecordNeed stores a detected user need on the session.
func (s *ConversationService) RecordNeed(ctx context.Context, sessionID, key string, value any) (*model.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Sealed() {
		return nil, apperrors.SessionSealed(session.ID)
	}

	if session.UserNeeds == nil {
		session.UserNeeds = model.NeedsMap{}
	}
	session.UserNeeds[key] = value
	if err := s.sessions.SaveProgress(ctx, session); err != nil {
		return nil, fmt.Errorf("save session progress: %w", err)
	}
	return session, nil
}

func (s *ConversationService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.loadSession(ctx, sessionID)
}

func (s *ConversationService) ListSessions(ctx context.Context, limit, offset int) ([]model.Session, error) {
	return s.sessions.List(ctx, limit, offset)
}

func (s *ConversationService) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, session.ID)
}

func (s *ConversationService) loadSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// configSnapshot reads the admin config for this turn. Missing or broken
// config degrades to the built-in defaults; a bad config row must never
// halt a conversation.
func (s *ConversationService) configSnapshot(ctx context.Context) model.ConfigSnapshot {
	cfg, err := s.appConfig.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load app config, using defaults")
		return model.DefaultConfigSnapshot()
	}
	return cfg.Snapshot()
}
