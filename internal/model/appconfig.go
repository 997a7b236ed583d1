package model

import (
	"time"
)

// AppConfig is the single admin-managed configuration row. The conversation
// core only reads it; the admin surface owns all writes.
type AppConfig struct {
	ID                 string     `db:"id" json:"id"`
	TriggerPhrase      string     `db:"trigger_phrase" json:"triggerPhrase"`
	SuccessKeywords    StringList `db:"success_keywords" json:"successKeywords"`
	ObjectionKeywords  StringList `db:"objection_keywords" json:"objectionKeywords"`
	MaxClosingAttempts int        `db:"max_closing_attempts" json:"maxClosingAttempts"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// ConfigSnapshot is an immutable per-turn view of AppConfig. Passing a
// snapshot into the classifier and phase tracker keeps them free of shared
// mutable state.
type ConfigSnapshot struct {
	TriggerPhrase      string
	SuccessKeywords    []string
	ObjectionKeywords  []string
	MaxClosingAttempts int
}

// Snapshot copies the config into an independent snapshot. A row with
// missing or unusable fields falls back to the built-in defaults so a bad
// config never halts a conversation turn.
func (c *AppConfig) Snapshot() ConfigSnapshot {
	snap := DefaultConfigSnapshot()
	if c == nil {
		return snap
	}
	if c.TriggerPhrase != "" {
		snap.TriggerPhrase = c.TriggerPhrase
	}
	if len(c.SuccessKeywords) > 0 {
		snap.SuccessKeywords = append([]string(nil), c.SuccessKeywords...)
	}
	if len(c.ObjectionKeywords) > 0 {
		snap.ObjectionKeywords = append([]string(nil), c.ObjectionKeywords...)
	}
	if c.MaxClosingAttempts > 0 {
		snap.MaxClosingAttempts = c.MaxClosingAttempts
	}
	return snap
}

const (
	DefaultTriggerPhrase      = "sell me a car"
	DefaultMaxClosingAttempts = 3
)

var defaultSuccessKeywords = []string{
	"i'll buy it", "i'll buy one", "i'll take it", "i will buy",
	"i'm buying", "i want to buy", "i'd like to buy",
	"i want this car", "i want this truck", "i want this vehicle",
	"i'll take the car", "i'll take the truck",
	"i'll finance it", "i want to finance", "i'll lease it",
	"let's write it up", "draw up the papers", "let's do the paperwork",
	"where do i sign", "i'm ready to sign", "let's sign the papers",
	"order it for me", "reserve it", "hold this one",
	"take my money", "here's my deposit", "i'll put down a deposit",
	"ready to pay", "charge my card",
	"sold", "i'm sold", "you sold me", "you got me",
	"you convinced me", "i'm convinced",
	"sign me up", "i'm in", "count me in", "deal", "you got a deal",
	"it's a deal", "we have a deal", "let's do it", "make it happen",
	"yes i'll buy", "yes i'll take", "yes i want it",
	"this is the one", "this is my truck", "this is my car",
}

var defaultObjectionKeywords = []string{
	"don't want it", "do not want it", "i won't buy", "will not buy",
	"not buying", "i'm not buying", "refuse to buy",
	"not for me", "not the right car", "not the right truck",
	"not what i'm looking for", "doesn't fit my needs",
	"no thanks", "no thank you", "i'll pass", "gonna pass",
	"not interested", "i'm not interested", "doesn't interest me",
	"don't need it", "my current car is fine",
	"absolutely not", "definitely not", "no way", "nope",
	"too expensive", "way too expensive", "too much money",
	"can't afford", "out of my budget", "over my budget",
	"not worth it", "payments too high",
	"not today", "not right now", "maybe another time",
	"let me think about it", "need to think", "need more time",
	"still shopping around", "i'm done", "i'm leaving",
	"i'll go elsewhere", "try another dealer",
}

// DefaultConfigSnapshot returns the built-in seed configuration used when
// no AppConfig row exists or the stored row is unusable.
func DefaultConfigSnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		TriggerPhrase:      DefaultTriggerPhrase,
		SuccessKeywords:    append([]string(nil), defaultSuccessKeywords...),
		ObjectionKeywords:  append([]string(nil), defaultObjectionKeywords...),
		MaxClosingAttempts: DefaultMaxClosingAttempts,
	}
}
