// Package rollback implements the periodic snapshot / late-input-correction
// mechanism of §4.I: a deterministically-seeded RNG source whose state is
// part of every snapshot, and a bounded ring of full simulation snapshots
// the session restores from when an input event arrives timestamped earlier
// than the current frame.
package rollback

import (
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/engine/entity"
)

// Snapshot is one point-in-time capture of the entire simulation (§4.I).
type Snapshot struct {
	Frame     int64
	SimTime   float64
	RNGState  uint64
	Score     int
	Lives     int
	GameState string
	Entities  []entity.Snapshot
	NextID    uint64
}

// Ring stores up to capacity snapshots, oldest evicted first, captured every
// Interval frames by the session's pipeline (§4.I "periodic snapshots").
type Ring struct {
	log      *zap.Logger
	interval int
	capacity int
	buf      []Snapshot
}

// NewRing builds a Ring that keeps at most capacity snapshots, captured every
// interval simulation frames.
func NewRing(log *zap.Logger, interval, capacity int) *Ring {
	if interval <= 0 {
		interval = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{log: log, interval: interval, capacity: capacity}
}

// ShouldCapture reports whether frame is a capture point.
func (r *Ring) ShouldCapture(frame int64) bool {
	return frame%int64(r.interval) == 0
}

// Capture appends snap, evicting the oldest entry once capacity is exceeded.
func (r *Ring) Capture(snap Snapshot) {
	r.buf = append(r.buf, snap)
	if len(r.buf) > r.capacity {
		r.buf = r.buf[len(r.buf)-r.capacity:]
	}
}

// Nearest returns the most recent snapshot at or before tEvent, and whether
// one exists. Late-input correction restores this snapshot and applies the
// corrected event there; the frames between the snapshot and the time the
// session had reached are not re-simulated.
func (r *Ring) Nearest(tEvent float64) (Snapshot, bool) {
	for i := len(r.buf) - 1; i >= 0; i-- {
		if r.buf[i].SimTime <= tEvent {
			return r.buf[i], true
		}
	}
	if len(r.buf) > 0 {
		return r.buf[0], true // nothing old enough: best effort is the oldest we have
	}
	return Snapshot{}, false
}

// Oldest reports the earliest simulation time still coverable by a rollback,
// i.e. how far back late-input correction can reach.
func (r *Ring) Oldest() (float64, bool) {
	if len(r.buf) == 0 {
		return 0, false
	}
	return r.buf[0].SimTime, true
}

// Len reports how many snapshots are currently held.
func (r *Ring) Len() int { return len(r.buf) }
