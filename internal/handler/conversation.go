package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cityford/trainer-server-go/internal/audit"
	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/service"
	"github.com/cityford/trainer-server-go/internal/util"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

type ConversationHandler struct {
	conversations *service.ConversationService
	turnLimiter   func(http.Handler) http.Handler
}

func NewConversationHandler(conversations *service.ConversationService, turnLimiter func(http.Handler) http.Handler) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		turnLimiter:   turnLimiter,
	}
}

func (h *ConversationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)
	r.Get("/{id}", h.GetSession)
	r.Get("/{id}/messages", h.ListMessages)
	r.With(h.turnLimiter).Post("/{id}/messages", h.PostMessage)
	r.Post("/{id}/advance", h.Advance)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/techniques", h.ApplyTechnique)
	r.Post("/{id}/needs", h.RecordNeed)

	return r
}

func (h *ConversationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName        string  `json:"userName"`
		VehicleInterest *string `json:"vehicleInterest"`
		OpeningMessage  string  `json:"openingMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.UserName == "" {
		writeError(w, apperrors.MissingRequired("userName"))
		return
	}

	session, err := h.conversations.CreateSession(r.Context(), req.UserName, req.VehicleInterest, req.OpeningMessage)
	if err != nil {
		log.Error().Err(err).Msg("create session failed")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCreate,
		SessionID: session.ID,
		Details:   map[string]interface{}{"user_name": session.UserName},
	})

	writeJSON(w, http.StatusCreated, session)
}

func (h *ConversationHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)

	sessions, err := h.conversations.ListSessions(r.Context(), page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Msg("list sessions failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func (h *ConversationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.conversations.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	messages, err := h.conversations.ListMessages(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeError(w, apperrors.MissingRequired("content"))
		return
	}
	role := model.Role(req.Role)
	if role != model.RoleUser && role != model.RoleAssistant {
		writeError(w, apperrors.InvalidInput("role", "must be user or assistant"))
		return
	}

	result, err := h.conversations.Turn(r.Context(), id, role, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"message":         result.Message,
		"phase":           result.Phase,
		"signal":          result.Signal,
		"matchedKeywords": result.Matched,
		"closingAttempts": result.AttemptsUsed,
	}
	if result.Outcome != nil {
		resp["outcome"] = *result.Outcome
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ConversationHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	phase := model.Phase(req.Phase)
	if !phase.Valid() {
		writeError(w, apperrors.InvalidInput("phase", "unknown phase"))
		return
	}

	session, err := h.conversations.AdvanceTo(r.Context(), id, phase)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	outcome := model.Outcome(req.Outcome)
	switch outcome {
	case model.OutcomeSaleMade, model.OutcomeNoSale, model.OutcomeAbandoned:
	default:
		writeError(w, apperrors.InvalidInput("outcome", "unknown outcome"))
		return
	}

	analytics, err := h.conversations.Close(r.Context(), id, outcome)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionClose,
		SessionID: id,
		Details:   map[string]interface{}{"outcome": string(outcome)},
	})

	writeJSON(w, http.StatusOK, analytics)
}

func (h *ConversationHandler) ApplyTechnique(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Technique string `json:"technique"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Technique == "" {
		writeError(w, apperrors.MissingRequired("technique"))
		return
	}

	session, err := h.conversations.ApplyTechnique(r.Context(), id, req.Technique)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *ConversationHandler) RecordNeed(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Key == "" {
		writeError(w, apperrors.MissingRequired("key"))
		return
	}

	session, err := h.conversations.RecordNeed(r.Context(), id, req.Key, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return "", false
	}
	return id, true
}
