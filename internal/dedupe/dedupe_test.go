package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdmitOncePerKey(t *testing.T) {
	reg := NewRegistry()

	require.True(t, reg.Admit("12345678"))
	require.False(t, reg.Admit("12345678"))
	require.False(t, reg.Admit("12345678"))

	require.True(t, reg.Admit("https://portal.example.co.uk/property/rose-cottage"))
	require.Equal(t, 2, reg.Len())
}

func TestAdmitRejectsEmptyKey(t *testing.T) {
	reg := NewRegistry()
	require.False(t, reg.Admit(""))
	require.Equal(t, 0, reg.Len())
}

func TestAdmitUnderContention(t *testing.T) {
	reg := NewRegistry()

	const workers = 16
	const keys = 100

	var admitted int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				if reg.Admit(fmt.Sprintf("listing-%d", k)) {
					atomic.AddInt64(&admitted, 1)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(keys), admitted)
	require.Equal(t, keys, reg.Len())
}
