package input

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keytrail/internal/eventlog"
)

func TestQueue_DrainPreservesOrder(t *testing.T) {
	q := NewQueue(0)
	q.Press("A")
	q.Release("A")
	q.Press("B")

	got, dropped := q.Drain()
	assert.Zero(t, dropped)
	assert.Equal(t, []KeyTransition{
		{KeyID: "A", Transition: eventlog.Press},
		{KeyID: "A", Transition: eventlog.Release},
		{KeyID: "B", Transition: eventlog.Press},
	}, got)

	got, _ = q.Drain()
	assert.Empty(t, got)
}

func TestQueue_Limit(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Press("A"))
	assert.True(t, q.Press("B"))
	assert.False(t, q.Press("C"))
	assert.Equal(t, 2, q.Len())

	got, dropped := q.Drain()
	assert.Len(t, got, 2)
	assert.Equal(t, 1, dropped)
	assert.True(t, q.Press("D"), "drain frees capacity")
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue(0)
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Press("K")
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		got, _ := q.Drain()
		total += len(got)
		select {
		case <-done:
			got, _ = q.Drain()
			total += len(got)
			require.Equal(t, producers*each, total)
			return
		default:
		}
	}
}
