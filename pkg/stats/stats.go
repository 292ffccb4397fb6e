package stats

import (
	"sync"

	"github.com/obdkit/obdkit-go/pkg/pid"
)

// Statistics holds the running aggregate for one parameter.
type Statistics struct {
	// ID is the parameter this record aggregates.
	ID pid.ID

	// Latest is the most recently applied measurement.
	Latest pid.Measurement

	// Min is the smallest value seen since creation or the last reset.
	Min float64

	// Max is the largest value seen since creation or the last reset.
	Max float64

	// SampleCount is the number of measurements applied since creation
	// or the last reset.
	SampleCount uint64
}

// newStatistics creates a record from the first measurement.
func newStatistics(id pid.ID, first pid.Measurement) *Statistics {
	return &Statistics{
		ID:          id,
		Latest:      first,
		Min:         first.Value,
		Max:         first.Value,
		SampleCount: 1,
	}
}

// update applies one measurement in place.
func (s *Statistics) update(m pid.Measurement) {
	s.Latest = m
	if m.Value < s.Min {
		s.Min = m.Value
	}
	if m.Value > s.Max {
		s.Max = m.Value
	}
	s.SampleCount++
}

// reset collapses the min/max window around the latest reading.
// The latest measurement is kept and counts as the single sample.
func (s *Statistics) reset() {
	s.Min = s.Latest.Value
	s.Max = s.Latest.Value
	s.SampleCount = 1
}

// Collection owns the per-parameter statistics map.
// It is safe for concurrent use; readers get value copies, never pointers
// into the map.
type Collection struct {
	mu      sync.RWMutex
	entries map[pid.ID]*Statistics
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		entries: make(map[pid.ID]*Statistics),
	}
}

// Apply records one measurement, creating the record on first arrival.
func (c *Collection) Apply(id pid.ID, m pid.Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[id]; ok {
		entry.update(m)
		return
	}
	c.entries[id] = newStatistics(id, m)
}

// Get returns a copy of the statistics for one parameter.
// The second return value is false if no measurement has arrived yet.
func (c *Collection) Get(id pid.ID) (Statistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return Statistics{}, false
	}
	return *entry, true
}

// Snapshot returns a copy of all current statistics.
func (c *Collection) Snapshot() map[pid.ID]Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[pid.ID]Statistics, len(c.entries))
	for id, entry := range c.entries {
		out[id] = *entry
	}
	return out
}

// Reset collapses one parameter's min/max window around its latest reading.
// Unknown parameters are a no-op.
func (c *Collection) Reset(id pid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[id]; ok {
		entry.reset()
	}
}

// ResetAll applies Reset to every entry.
func (c *Collection) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		entry.reset()
	}
}

// Clear removes every entry. Used on full disconnect, which intentionally
// discards accumulated statistics.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[pid.ID]*Statistics)
}

// Len returns the number of parameters with at least one measurement.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TotalSamples returns the sum of all sample counts.
func (c *Collection) TotalSamples() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, entry := range c.entries {
		total += entry.SampleCount
	}
	return total
}
