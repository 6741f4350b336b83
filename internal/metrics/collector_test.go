package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordCall(t *testing.T) {
	c := NewCollector()

	c.RecordCall(OpListFiles, 20*time.Millisecond, false)
	c.RecordCall(OpListFiles, 40*time.Millisecond, true)

	snap := c.Operation(OpListFiles)
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(20), snap.MinTimeMs)
	assert.Equal(t, int64(40), snap.MaxTimeMs)
	assert.InDelta(t, 30.0, snap.AvgTimeMs, 0.001)
	assert.Nil(t, snap.TotalBytes, "no transfer recorded")
}

func TestCollectorRecordTransfer(t *testing.T) {
	c := NewCollector()

	c.RecordTransfer(OpUpload, time.Second, 1024, false)
	c.RecordTransfer(OpUpload, time.Second, 4096, false)

	snap := c.Operation(OpUpload)
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalBytes)
	assert.Equal(t, int64(5120), *snap.TotalBytes)
	assert.Equal(t, int64(4096), *snap.MaxBytes)
}

func TestCollectorSnapshotOrdering(t *testing.T) {
	c := NewCollector()
	c.RecordCall(OpUpload, time.Millisecond, false)
	c.RecordCall(OpChat, time.Millisecond, false)
	c.RecordCall(OpDelete, time.Millisecond, false)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 3)
	assert.Equal(t, OpChat, snap.Operations[0].Operation)
	assert.Equal(t, OpDelete, snap.Operations[1].Operation)
	assert.Equal(t, OpUpload, snap.Operations[2].Operation)
	assert.Nil(t, c.Operation(OpSummarize))
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordCall(OpDelete, time.Millisecond, false)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Operation(OpDelete).Count)
}
