package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	tr := NewTracker(3)
	at := time.Date(2025, 11, 7, 10, 0, 0, 0, time.UTC)

	tr.Begin()
	tr.Begin()
	assert.Equal(t, 2, tr.Snapshot().InFlight)

	tr.End(Record{TaskID: "1", WorkOrder: "12/2025", Outcome: OutcomePublished, At: at})
	tr.End(Record{TaskID: "2", WorkOrder: "5/2025", Outcome: OutcomeAborted, At: at})

	snap := tr.Snapshot()
	assert.Zero(t, snap.InFlight)
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Aborted)
	assert.Zero(t, snap.Failed)
	require.NotNil(t, snap.LastWorkOrder)
	assert.Equal(t, "12/2025", snap.LastWorkOrder.WorkOrder, "aborted tasks do not replace the last published one")
}

func TestTracker_RecentIsBounded(t *testing.T) {
	tr := NewTracker(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		tr.Begin()
		tr.End(Record{TaskID: id, Outcome: OutcomeFailed})
	}

	recent := tr.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].TaskID)
	assert.Equal(t, "b", recent[2].TaskID)

	assert.Len(t, tr.Recent(2), 2)
	assert.Equal(t, 4, tr.Snapshot().Failed)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Begin()
			tr.End(Record{Outcome: OutcomePublished})
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, 50, snap.Processed)
	assert.Zero(t, snap.InFlight)
	assert.Len(t, tr.Recent(0), 10)
}
