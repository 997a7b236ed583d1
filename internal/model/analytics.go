package model

import (
	"time"
)

// SessionAnalytics is the one-to-one rollup of a session. Counters are
// monotonically non-decreasing over the session's life; TimeToFirstInterest
// and TimeToClose are each set at most once.
type SessionAnalytics struct {
	ID                      string     `db:"id" json:"id"`
	SessionID               string     `db:"session_id" json:"sessionId"`
	TotalMessages           int        `db:"total_messages" json:"totalMessages"`
	UserMessageCount        int        `db:"user_message_count" json:"userMessageCount"`
	AssistantMessageCount   int        `db:"assistant_message_count" json:"assistantMessageCount"`
	AvgResponseLength       float64    `db:"avg_response_length" json:"avgResponseLength"`
	DiscoveryQuestionsAsked int        `db:"discovery_questions_asked" json:"discoveryQuestionsAsked"`
	ObjectionCount          int        `db:"objection_count" json:"objectionCount"`
	PositiveSignals         int        `db:"positive_signals" json:"positiveSignals"`
	NegativeSignals         int        `db:"negative_signals" json:"negativeSignals"`
	TimeToFirstInterest     *int       `db:"time_to_first_interest" json:"timeToFirstInterest,omitempty"`
	TimeToClose             *int       `db:"time_to_close" json:"timeToClose,omitempty"`
	SuccessfulTechniques    StringList `db:"successful_techniques" json:"successfulTechniques"`
	FailedTechniques        StringList `db:"failed_techniques" json:"failedTechniques"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updatedAt"`
}

// GlobalAnalytics is one row per UTC calendar day, aggregating every session
// closed that day. ConversionRate is derived from the counters on every
// update and is never written independently.
type GlobalAnalytics struct {
	Date                   time.Time `db:"date" json:"date"`
	TotalSessions          int       `db:"total_sessions" json:"totalSessions"`
	SuccessfulSales        int       `db:"successful_sales" json:"successfulSales"`
	FailedSales            int       `db:"failed_sales" json:"failedSales"`
	AbandonedSessions      int       `db:"abandoned_sessions" json:"abandonedSessions"`
	AvgSessionDuration     float64   `db:"avg_session_duration" json:"avgSessionDuration"`
	AvgMessagesToClose     float64   `db:"avg_messages_to_close" json:"avgMessagesToClose"`
	ConversionRate         float64   `db:"conversion_rate" json:"conversionRate"`
	TopPerformingTechnique *string   `db:"top_performing_technique" json:"topPerformingTechnique,omitempty"`
	MostCommonObjection    *string   `db:"most_common_objection" json:"mostCommonObjection,omitempty"`
	UpdatedAt              time.Time `db:"updated_at" json:"updatedAt"`
}

// RecomputeConversionRate rederives the conversion rate from the current
// counters.
func (g *GlobalAnalytics) RecomputeConversionRate() {
	if g.TotalSessions <= 0 {
		g.ConversionRate = 0
		return
	}
	g.ConversionRate = float64(g.SuccessfulSales) / float64(g.TotalSessions) * 100
}

// DayBucket truncates t to its UTC calendar day, the key of the
// GlobalAnalytics row it belongs to.
func DayBucket(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
