// Package history keeps a bounded in-memory record of completed cycles.
package history

import "github.com/testando12/daytrade-bot/internal/model"

// DefaultCapacity bounds the retained cycle records.
const DefaultCapacity = 500

// Ring is a fixed-capacity append-only buffer of cycle records. Once full,
// each append evicts the oldest record. Not safe for concurrent use; the
// cycle orchestrator serializes access.
type Ring struct {
	records []model.CycleRecord
	cap     int
	start   int
	size    int
}

// NewRing creates a ring with the given capacity (DefaultCapacity if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{records: make([]model.CycleRecord, capacity), cap: capacity}
}

// Append adds a record, evicting the oldest when full.
func (r *Ring) Append(rec model.CycleRecord) {
	idx := (r.start + r.size) % r.cap
	r.records[idx] = rec
	if r.size < r.cap {
		r.size++
	} else {
		r.start = (r.start + 1) % r.cap
	}
}

// Len returns the number of retained records.
func (r *Ring) Len() int { return r.size }

// All returns the retained records, oldest first.
func (r *Ring) All() []model.CycleRecord {
	out := make([]model.CycleRecord, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.records[(r.start+i)%r.cap]
	}
	return out
}

// Last returns up to n most recent records, oldest first.
func (r *Ring) Last(n int) []model.CycleRecord {
	if n > r.size {
		n = r.size
	}
	out := make([]model.CycleRecord, n)
	for i := 0; i < n; i++ {
		out[i] = r.records[(r.start+r.size-n+i)%r.cap]
	}
	return out
}

// Load replaces the contents with the given records, keeping only the newest
// if they exceed capacity. Used when restoring persisted state.
func (r *Ring) Load(records []model.CycleRecord) {
	r.start, r.size = 0, 0
	if len(records) > r.cap {
		records = records[len(records)-r.cap:]
	}
	for _, rec := range records {
		r.Append(rec)
	}
}
