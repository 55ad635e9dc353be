package resilience

import (
	"encoding/json"
	"time"
)

// DLQKind names the record type a dead-letter entry carries.
type DLQKind string

const (
	DLQScore          DLQKind = "risk_score"
	DLQPrediction     DLQKind = "cost_prediction"
	DLQSummary        DLQKind = "period_summary"
	DLQRecommendation DLQKind = "recommendation"
)

// DLQEntry is an engine result whose sink write failed after retries. The
// payload is preserved verbatim so the write can be replayed later.
type DLQEntry struct {
	ID           string          `json:"id"`
	Kind         DLQKind         `json:"kind"`
	MemberID     string          `json:"member_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	Error        string          `json:"error"`
	ErrorType    string          `json:"error_type"` // "transient" or "permanent"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	NextRetryAt  time.Time       `json:"next_retry_at"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFailedAt time.Time       `json:"last_failed_at"`
}

// CanRetry reports whether the entry has retry budget left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}
