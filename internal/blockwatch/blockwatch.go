package blockwatch

import (
	"fmt"
	"strings"
	"sync"

	"estate-parser-service/internal/core/domain"
)

// DefaultCapacity bounds how many block events a single run retains.
const DefaultCapacity = 50

// challengePhrases are fragments anti-bot interstitials leave in
// otherwise successful responses.
var challengePhrases = []string{
	"verify you are human",
	"access denied",
	"captcha",
	"unusual traffic",
	"attention required",
	"just a moment",
	"cf-chl",
	"pardon our interruption",
}

// BlockedError marks a fetch that was answered by an anti-bot layer
// instead of the portal.
type BlockedError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked at %s (status %d): %s", e.URL, e.StatusCode, e.Reason)
}

// Classify decides whether a response is a block. Statuses 403, 429
// and 503 are blocks regardless of body; any other status is matched
// against known challenge phrases. Returns "" for a usable response.
func Classify(statusCode int, body []byte) string {
	switch statusCode {
	case 403:
		return "status 403 forbidden"
	case 429:
		return "status 429 too many requests"
	case 503:
		return "status 503 service unavailable"
	}
	lowered := strings.ToLower(string(body))
	for _, phrase := range challengePhrases {
		if strings.Contains(lowered, phrase) {
			return "challenge phrase: " + phrase
		}
	}
	return ""
}

// Log collects block events for one run. Events past the capacity are
// counted but not retained.
type Log struct {
	mu       sync.Mutex
	capacity int
	events   []domain.BlockEvent
	total    int
}

// NewLog creates a collector retaining at most capacity events;
// capacity <= 0 falls back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Add records an event, dropping it silently once the collector is full.
func (l *Log) Add(event domain.BlockEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	if len(l.events) < l.capacity {
		l.events = append(l.events, event)
	}
}

// Events returns a copy of the retained events.
func (l *Log) Events() []domain.BlockEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.BlockEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports how many events are retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Total reports how many events were observed, including dropped ones.
func (l *Log) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
