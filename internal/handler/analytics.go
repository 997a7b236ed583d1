package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cityford/trainer-server-go/internal/repository"
	"github.com/cityford/trainer-server-go/internal/util"

	apperrors "github.com/cityford/trainer-server-go/internal/errors"
)

const dayFormat = "2006-01-02"

// AnalyticsHandler exposes read-only views over the rollup tables. Derived
// fields are only ever written by the conversation core.
type AnalyticsHandler struct {
	globals          repository.GlobalAnalyticsRepository
	sessionAnalytics repository.SessionAnalyticsRepository
}

func NewAnalyticsHandler(
	globals repository.GlobalAnalyticsRepository,
	sessionAnalytics repository.SessionAnalyticsRepository,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		globals:          globals,
		sessionAnalytics: sessionAnalytics,
	}
}

func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/daily/{date}", h.Daily)
	r.Get("/range", h.Range)
	r.Get("/sessions/{id}", h.SessionAnalytics)

	return r
}

func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date, err := time.ParseInLocation(dayFormat, chi.URLParam(r, "date"), time.UTC)
	if err != nil {
		writeError(w, apperrors.InvalidInput("date", "must be YYYY-MM-DD"))
		return
	}

	analytics, err := h.globals.FindByDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if analytics == nil {
		writeError(w, apperrors.NotFound("Analytics for date"))
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (h *AnalyticsHandler) Range(w http.ResponseWriter, r *http.Request) {
	from, err := time.ParseInLocation(dayFormat, r.URL.Query().Get("from"), time.UTC)
	if err != nil {
		writeError(w, apperrors.InvalidInput("from", "must be YYYY-MM-DD"))
		return
	}
	to, err := time.ParseInLocation(dayFormat, r.URL.Query().Get("to"), time.UTC)
	if err != nil {
		writeError(w, apperrors.InvalidInput("to", "must be YYYY-MM-DD"))
		return
	}
	if to.Before(from) {
		writeError(w, apperrors.InvalidInput("to", "must not precede from"))
		return
	}

	rows, err := h.globals.ListRange(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"days": rows})
}

func (h *AnalyticsHandler) SessionAnalytics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	analytics, err := h.sessionAnalytics.FindBySessionID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if analytics == nil {
		writeError(w, apperrors.NotFound("Session analytics"))
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}
