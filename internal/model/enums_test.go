package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseOrdering(t *testing.T) {
	t.Run("ranks follow the sales funnel", func(t *testing.T) {
		phases := []Phase{
			PhaseGreeting, PhaseDiscovery, PhaseSelection, PhasePresentation,
			PhaseTestDrive, PhaseNegotiation, PhaseClosing, PhaseCompleted,
		}
		for i, p := range phases {
			assert.Equal(t, i, p.Rank(), "rank of %s", p)
		}
	})

	t.Run("abandoned has no forward position", func(t *testing.T) {
		assert.Equal(t, -1, PhaseAbandoned.Rank())
		assert.Equal(t, -1, Phase("garbage").Rank())
	})

	t.Run("next walks one step forward", func(t *testing.T) {
		next, ok := PhaseGreeting.Next()
		assert.True(t, ok)
		assert.Equal(t, PhaseDiscovery, next)

		next, ok = PhaseClosing.Next()
		assert.True(t, ok)
		assert.Equal(t, PhaseCompleted, next)
	})

	t.Run("terminal phases have no successor", func(t *testing.T) {
		_, ok := PhaseCompleted.Next()
		assert.False(t, ok)
		_, ok = PhaseAbandoned.Next()
		assert.False(t, ok)
	})

	t.Run("terminal detection", func(t *testing.T) {
		assert.True(t, PhaseCompleted.Terminal())
		assert.True(t, PhaseAbandoned.Terminal())
		assert.False(t, PhaseClosing.Terminal())
	})

	t.Run("validity covers abandoned but not garbage", func(t *testing.T) {
		assert.True(t, PhaseAbandoned.Valid())
		assert.True(t, PhaseGreeting.Valid())
		assert.False(t, Phase("limbo").Valid())
	})
}

func TestOutcomeTerminalPhase(t *testing.T) {
	assert.Equal(t, PhaseCompleted, OutcomeSaleMade.TerminalPhase())
	assert.Equal(t, PhaseCompleted, OutcomeNoSale.TerminalPhase())
	assert.Equal(t, PhaseAbandoned, OutcomeAbandoned.TerminalPhase())
}

func TestSessionSealed(t *testing.T) {
	t.Run("fresh session is open", func(t *testing.T) {
		s := &Session{CurrentPhase: PhaseGreeting}
		assert.False(t, s.Sealed())
	})

	t.Run("outcome seals", func(t *testing.T) {
		outcome := OutcomeNoSale
		s := &Session{CurrentPhase: PhaseClosing, Outcome: &outcome}
		assert.True(t, s.Sealed())
	})

	t.Run("terminal phase seals", func(t *testing.T) {
		s := &Session{CurrentPhase: PhaseAbandoned}
		assert.True(t, s.Sealed())
	})
}

func TestConfigSnapshot(t *testing.T) {
	t.Run("nil config yields the defaults", func(t *testing.T) {
		var c *AppConfig
		snap := c.Snapshot()

		assert.Equal(t, DefaultTriggerPhrase, snap.TriggerPhrase)
		assert.Equal(t, DefaultMaxClosingAttempts, snap.MaxClosingAttempts)
		assert.NotEmpty(t, snap.SuccessKeywords)
		assert.NotEmpty(t, snap.ObjectionKeywords)
	})

	t.Run("empty fields fall back individually", func(t *testing.T) {
		c := &AppConfig{
			TriggerPhrase:      "sell me a truck",
			MaxClosingAttempts: 0,
		}
		snap := c.Snapshot()

		assert.Equal(t, "sell me a truck", snap.TriggerPhrase)
		assert.Equal(t, DefaultMaxClosingAttempts, snap.MaxClosingAttempts)
		assert.NotEmpty(t, snap.SuccessKeywords)
	})

	t.Run("snapshot copies are independent", func(t *testing.T) {
		c := &AppConfig{SuccessKeywords: StringList{"deal"}}
		snap := c.Snapshot()

		snap.SuccessKeywords[0] = "mutated"
		assert.Equal(t, StringList{"deal"}, c.SuccessKeywords)
	})
}
