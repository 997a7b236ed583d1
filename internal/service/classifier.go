package service

import (
	"strings"

	"github.com/cityford/trainer-server-go/internal/model"
)

// Classification is the verdict for a single user utterance.
type Classification struct {
	Signal  model.Signal
	Matched []string
}

// Classify scores an utterance against the configured phrase lists. Matching
// is case-insensitive substring containment. When both lists match, a
// closing-intent phrase like "sold" overrides a hedging phrase in the same
// message, so success wins. Empty input or empty lists yield neutral.
func Classify(utterance string, cfg model.ConfigSnapshot) Classification {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Classification{Signal: model.SignalNeutral}
	}

	if matched := matchPhrases(text, cfg.SuccessKeywords); len(matched) > 0 {
		return Classification{Signal: model.SignalSuccess, Matched: matched}
	}
	if matched := matchPhrases(text, cfg.ObjectionKeywords); len(matched) > 0 {
		return Classification{Signal: model.SignalObjection, Matched: matched}
	}
	return Classification{Signal: model.SignalNeutral}
}

func matchPhrases(text string, phrases []string) []string {
	var matched []string
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if strings.Contains(text, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}

// SentimentFor maps a classifier signal onto the stored message sentiment.
func SentimentFor(signal model.Signal) model.Sentiment {
	switch signal {
	case model.SignalSuccess:
		return model.SentimentPositive
	case model.SignalObjection:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}
