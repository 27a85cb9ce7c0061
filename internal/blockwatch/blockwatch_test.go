package blockwatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"estate-parser-service/internal/core/domain"
)

func TestClassifyStatuses(t *testing.T) {
	require.NotEmpty(t, Classify(403, nil))
	require.NotEmpty(t, Classify(429, nil))
	require.NotEmpty(t, Classify(503, nil))
	require.Empty(t, Classify(200, []byte("<html>ordinary listings page</html>")))
	require.Empty(t, Classify(404, []byte("not found")))
}

func TestClassifyChallengeBody(t *testing.T) {
	body := []byte("<html><title>Just a moment...</title><body>Checking your browser</body></html>")
	require.Contains(t, Classify(200, body), "just a moment")

	body = []byte("please VERIFY you are HUMAN to continue")
	require.NotEmpty(t, Classify(200, body))
}

func TestLogCapsRetainedEvents(t *testing.T) {
	log := NewLog(50)
	for i := 0; i < 100; i++ {
		log.Add(domain.BlockEvent{
			URL:        "https://portal.example.co.uk/search",
			StatusCode: 403,
			Reason:     "status 403 forbidden",
			OccurredAt: time.Now(),
		})
	}
	require.Equal(t, 50, log.Len())
	require.Equal(t, 100, log.Total())
	require.Len(t, log.Events(), 50)
}

func TestLogDefaultCapacity(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		log.Add(domain.BlockEvent{URL: "u", StatusCode: 429})
	}
	require.Equal(t, DefaultCapacity, log.Len())
}

func TestLogConcurrentAdd(t *testing.T) {
	log := NewLog(10)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Add(domain.BlockEvent{URL: "u", StatusCode: 429})
		}()
	}
	wg.Wait()
	require.Equal(t, 10, log.Len())
	require.Equal(t, 40, log.Total())
}
