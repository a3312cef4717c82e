package tp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSenderDeliversInDeadlineOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	s := NewAsyncSender(func(p *PendingSend) {
		mu.Lock()
		order = append(order, p.Destination)
		mu.Unlock()
	})
	s.Start()
	defer s.Stop()

	now := time.Now()
	s.Schedule(nil, "late", now.Add(120*time.Millisecond))
	s.Schedule(nil, "early", now.Add(20*time.Millisecond))
	s.Schedule(nil, "mid", now.Add(60*time.Millisecond))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"early", "mid", "late"}, order)
}

func TestAsyncSenderTiesBreakByInsertionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	s := NewAsyncSender(func(p *PendingSend) {
		mu.Lock()
		order = append(order, p.Destination)
		mu.Unlock()
	})
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(20 * time.Millisecond)
	s.Schedule(nil, "first", deadline)
	s.Schedule(nil, "second", deadline)
	s.Schedule(nil, "third", deadline)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestAsyncSenderStopClearsQueueAndRestartRejoins(t *testing.T) {
	delivered := make(chan struct{}, 1)
	s := NewAsyncSender(func(p *PendingSend) { delivered <- struct{}{} })
	s.Start()

	s.Schedule(nil, "never-delivered", time.Now().Add(time.Hour))
	s.Stop()
	assert.Equal(t, 0, s.Pending())

	select {
	case <-delivered:
		t.Fatal("stop must not deliver queued packets")
	default:
	}

	s.Start()
	defer s.Stop()
	s.Schedule(nil, "after-restart", time.Now().Add(10*time.Millisecond))
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("sender did not deliver after restart")
	}
}
