package domain

import "time"

// BlockEvent records one fetch that looked like an anti-automation
// response rather than real content.
type BlockEvent struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}
