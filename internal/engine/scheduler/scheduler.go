// Package scheduler owns the deferred-effect queues of §4.H: scheduled
// callbacks (ams.schedule), the audio queue (ams.play_sound), and the
// per-frame dispatch cap that keeps a runaway schedule burst from stalling a
// single frame. Destroy deferral is already handled by entity.Store's own
// destroy-pending/Sweep mechanism; this package does not duplicate it.
package scheduler

import (
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// CallbackDispatcher runs a named scheduled callback against an entity's
// attached behaviors, keeping Queue itself ignorant of the sandbox (§4.E
// "scripts... through the host API", one-directional dependency arrow).
type CallbackDispatcher interface {
	DispatchCallback(name string, id ecs.EntityID) error
}

// AudioEvent is one queued sound request, drained by the session once per
// frame and handed to whatever audio backend the launcher wires up (§6.3).
type AudioEvent struct {
	Name string
	At   float64 // simulation time the request was queued
}

type entry struct {
	remaining float64
	callback  string
	entity    ecs.EntityID
	onFire    func() // internal use (e.g. child lifetime expiry); bypasses the dispatcher and alive check
}

// Queue holds every deferred effect requested during a frame's script
// execution, ticked down and fired by the session's per-frame pipeline.
type Queue struct {
	log         *zap.Logger
	maxPerFrame int

	entries []*entry
	audio   []AudioEvent
}

// New builds an empty Queue. maxPerFrame bounds how many scheduled callbacks
// fire in a single Tick call; a backlog beyond that carries over to the next
// frame rather than bursting (§4.H "per-frame callback dispatch cap").
func New(log *zap.Logger, maxPerFrame int) *Queue {
	return &Queue{log: log, maxPerFrame: maxPerFrame}
}

// Schedule queues a named callback to fire against id after delaySeconds of
// simulation time (ams.schedule).
func (q *Queue) Schedule(delaySeconds float64, callbackName string, id ecs.EntityID) {
	q.entries = append(q.entries, &entry{remaining: delaySeconds, callback: callbackName, entity: id})
}

// ScheduleRaw queues an internal, non-scripted callback (transform-engine
// child lifetime expiry). onFire always runs, even if the originating entity
// has since been destroyed, since it closes over whatever state it needs.
func (q *Queue) ScheduleRaw(delaySeconds float64, onFire func()) {
	q.entries = append(q.entries, &entry{remaining: delaySeconds, onFire: onFire})
}

// PlaySound queues a named sound request (ams.play_sound).
func (q *Queue) PlaySound(name string, simTime float64) {
	q.audio = append(q.audio, AudioEvent{Name: name, At: simTime})
}

// DrainAudio returns and clears the queued audio events.
func (q *Queue) DrainAudio() []AudioEvent {
	out := q.audio
	q.audio = nil
	return out
}

// Pending returns the number of not-yet-fired scheduled entries, for tests
// and for the drift warning below.
func (q *Queue) Pending() int { return len(q.entries) }

// Tick advances every scheduled entry by dt and dispatches the ones that
// have expired, skipping callbacks whose entity has died in the meantime
// (§4.H "skipping dead entities"). Entries beyond maxPerFrame dispatches
// this tick remain queued (with their remaining time already at or below
// zero) and fire on the next Tick call instead.
func (q *Queue) Tick(dt float64, alive func(ecs.EntityID) bool, dispatcher CallbackDispatcher) {
	remaining := q.entries[:0]
	dispatched := 0
	for _, e := range q.entries {
		e.remaining -= dt
		if e.remaining > 0 {
			remaining = append(remaining, e)
			continue
		}
		if q.maxPerFrame > 0 && dispatched >= q.maxPerFrame {
			remaining = append(remaining, e) // fires next tick instead
			continue
		}
		dispatched++
		q.fire(e, alive, dispatcher)
	}
	q.entries = remaining
}

func (q *Queue) fire(e *entry, alive func(ecs.EntityID) bool, dispatcher CallbackDispatcher) {
	if e.onFire != nil {
		e.onFire()
		return
	}
	if !alive(e.entity) {
		return
	}
	if err := dispatcher.DispatchCallback(e.callback, e.entity); err != nil {
		q.log.Warn("scheduled callback failed",
			zap.String("callback", e.callback), zap.String("entity", string(e.entity)), zap.Error(err))
	}
}

// CheckBacklog logs a DriftWarning once the pending queue exceeds cap,
// surfacing a runaway schedule(...) loop before it silently grows unbounded.
func (q *Queue) CheckBacklog(cap int) error {
	if cap <= 0 || len(q.entries) <= cap {
		return nil
	}
	err := apperr.DriftWarning("scheduled callback backlog exceeds cap")
	q.log.Warn(err.Error(), zap.Int("pending", len(q.entries)), zap.Int("cap", cap))
	return err
}
