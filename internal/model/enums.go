package model

// Phase is the stage a sales conversation is currently in. Phases only move
// forward through the fixed order below; completed and abandoned are terminal.
type Phase string

const (
	PhaseGreeting     Phase = "greeting"
	PhaseDiscovery    Phase = "discovery"
	PhaseSelection    Phase = "selection"
	PhasePresentation Phase = "presentation"
	PhaseTestDrive    Phase = "test_drive"
	PhaseNegotiation  Phase = "negotiation"
	PhaseClosing      Phase = "closing"
	PhaseCompleted    Phase = "completed"
	PhaseAbandoned    Phase = "abandoned"
)

var phaseOrder = []Phase{
	PhaseGreeting,
	PhaseDiscovery,
	PhaseSelection,
	PhasePresentation,
	PhaseTestDrive,
	PhaseNegotiation,
	PhaseClosing,
	PhaseCompleted,
}

// Rank returns the position of p in the forward ordering, or -1 for
// abandoned and unknown values (which have no forward position).
func (p Phase) Rank() int {
	for i, candidate := range phaseOrder {
		if p == candidate {
			return i
		}
	}
	return -1
}

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// Next returns the phase one step forward, or false when p has no successor.
func (p Phase) Next() (Phase, bool) {
	rank := p.Rank()
	if rank < 0 || rank >= len(phaseOrder)-1 {
		return p, false
	}
	return phaseOrder[rank+1], true
}

func (p Phase) Valid() bool {
	return p.Rank() >= 0 || p == PhaseAbandoned
}

// Outcome is the terminal classification of a finished session.
type Outcome string

const (
	OutcomeSaleMade  Outcome = "sale_made"
	OutcomeNoSale    Outcome = "no_sale"
	OutcomeAbandoned Outcome = "abandoned"
)

// TerminalPhase returns the phase a session lands in when sealed with
// this outcome.
func (o Outcome) TerminalPhase() Phase {
	if o == OutcomeAbandoned {
		return PhaseAbandoned
	}
	return PhaseCompleted
}

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Signal is the classifier's per-utterance verdict.
type Signal string

const (
	SignalSuccess   Signal = "success"
	SignalObjection Signal = "objection"
	SignalNeutral   Signal = "neutral"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)
