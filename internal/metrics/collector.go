// Package metrics provides in-memory statistics for backend calls made by
// this process.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single backend operation.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Payload bytes (only for upload and download)
	TotalBytes int64
	MaxBytes   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Operation   string
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Transfer stats (nil if nothing was transferred)
	TotalBytes *int64
	MaxBytes   *int64
}

// Snapshot represents the collected statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Operation names for the collector.
const (
	OpChat        = "chat"
	OpUpload      = "upload"
	OpListFiles   = "list_files"
	OpDelete      = "delete"
	OpDownload    = "download"
	OpSummarize   = "summarize"
	OpHealth      = "health"
	OpBrands      = "brands"
	OpModels      = "models"
	OpClearMemory = "clear_memory"
)

// Collector aggregates in-memory call statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordCall records the duration and outcome of a backend call.
func (c *Collector) RecordCall(op string, duration time.Duration, failed bool) {
	c.RecordTransfer(op, duration, 0, failed)
}

// RecordTransfer records a call that moved a payload of n bytes.
func (c *Collector) RecordTransfer(op string, duration time.Duration, n int64, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalBytes += n
	if n > m.MaxBytes {
		m.MaxBytes = n
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(op string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Operation:   op,
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if m.TotalBytes > 0 {
		total := m.TotalBytes
		largest := m.MaxBytes
		snap.TotalBytes = &total
		snap.MaxBytes = &largest
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics, ordered by
// operation name.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for op, m := range c.ops {
		if s := snapshotOp(op, m); s != nil {
			snap.Operations = append(snap.Operations, *s)
		}
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Operation < snap.Operations[j].Operation
	})
	return snap
}

// Operation returns the snapshot for a single operation, or nil if it was
// never recorded.
func (c *Collector) Operation(op string) *OperationSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshotOp(op, c.ops[op])
}
