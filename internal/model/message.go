package model

import (
	"time"
)

// Message is one turn in a session. Rows are append-only; the creation-time
// order is the total order of the conversation.
type Message struct {
	ID        string     `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"sessionId"`
	Role      Role       `db:"role" json:"role"`
	Content   string     `db:"content" json:"content"`
	Phase     Phase      `db:"phase" json:"phase"`
	Sentiment Sentiment  `db:"sentiment" json:"sentiment"`
	Keywords  StringList `db:"keywords" json:"keywords"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

type AppendMessageParams struct {
	SessionID string
	Role      Role
	Content   string
	Phase     Phase
	Sentiment Sentiment
	Keywords  []string
}
