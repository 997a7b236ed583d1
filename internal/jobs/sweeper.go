package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cityford/trainer-server-go/internal/audit"
	"github.com/cityford/trainer-server-go/internal/model"
	"github.com/cityford/trainer-server-go/internal/repository"
)

// Finalizer seals a session and rolls it into the daily analytics. Satisfied
// by service.SessionRecorder.
type Finalizer interface {
	Finalize(ctx context.Context, session *model.Session, outcome model.Outcome) (*model.SessionAnalytics, error)
}

// SweepJob periodically abandons sessions with no activity past the
// staleness window. It goes through the recorder's finalize path, so a sweep
// racing a manual close is deduplicated by the seal guard.
type SweepJob struct {
	sessions  repository.SessionRepository
	finalizer Finalizer
	window    time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewSweepJob(
	sessions repository.SessionRepository,
	finalizer Finalizer,
	window time.Duration,
	interval time.Duration,
) *SweepJob {
	return &SweepJob{
		sessions:  sessions,
		finalizer: finalizer,
		window:    window,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("window", j.window).Msg("stale session sweep started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("stale session sweep stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.window)
	stale, err := j.sessions.FindStale(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to find stale sessions")
		return
	}

	for i := range stale {
		session := stale[i]
		if _, err := j.finalizer.Finalize(ctx, &session, model.OutcomeAbandoned); err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to abandon stale session")
			continue
		}
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionSweep,
			SessionID: session.ID,
			Details:   map[string]interface{}{"last_activity": session.UpdatedAt.Format(time.RFC3339)},
		})
		log.Info().
			Str("sessionId", session.ID).
			Time("lastActivity", session.UpdatedAt).
			Msg("abandoned stale session")
	}

	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("stale session sweep completed")
	}
}
