package entity

import "github.com/arcadeyaml/engine/internal/ecs"

// Snapshot is one entity's full value-typed state, deep-copied so the
// rollback ring never aliases live entity data (§4.I).
type Snapshot struct {
	ID   ecs.EntityID
	Type string
	Tags map[string]bool

	X, Y   float64
	W, H   float64
	VX, VY float64

	Sprite  string
	Color   string
	Visible bool
	Render  []RenderCommand

	Health    int
	MaxHealth int
	Alive     bool
	SpawnTime float64

	Properties map[string]ecs.Value

	Behaviors    []Behavior
	Interactions []Interaction

	Parent           ecs.EntityID
	OffsetX, OffsetY float64
	Children         []ecs.EntityID

	DestroyPending bool

	LastFilterState map[int]bool
	IntervalAccum   map[int]float64
}

func snapshotOf(e *Entity) Snapshot {
	return Snapshot{
		ID: e.ID, Type: e.Type, Tags: cloneTagSet(e.Tags),
		X: e.X, Y: e.Y, W: e.W, H: e.H, VX: e.VX, VY: e.VY,
		Sprite: e.Sprite, Color: e.Color, Visible: e.Visible,
		Render:    append([]RenderCommand(nil), e.Render...),
		Health:    e.Health, MaxHealth: e.MaxHealth, Alive: e.Alive, SpawnTime: e.SpawnTime,
		Properties:   clonePropMap(e.Properties),
		Behaviors:    append([]Behavior(nil), e.Behaviors...),
		Interactions: append([]Interaction(nil), e.Interactions...),
		Parent:       e.Parent, OffsetX: e.OffsetX, OffsetY: e.OffsetY,
		Children:        append([]ecs.EntityID(nil), e.Children...),
		DestroyPending:  e.DestroyPending,
		LastFilterState: cloneBoolMap(e.lastFilterState),
		IntervalAccum:   cloneFloatMap(e.intervalAccum),
	}
}

func (s Snapshot) restore() *Entity {
	return &Entity{
		ID: s.ID, Type: s.Type, Tags: cloneTagSet(s.Tags),
		X: s.X, Y: s.Y, W: s.W, H: s.H, VX: s.VX, VY: s.VY,
		Sprite: s.Sprite, Color: s.Color, Visible: s.Visible,
		Render:    append([]RenderCommand(nil), s.Render...),
		Health:    s.Health, MaxHealth: s.MaxHealth, Alive: s.Alive, SpawnTime: s.SpawnTime,
		Properties:   clonePropMap(s.Properties),
		Behaviors:    append([]Behavior(nil), s.Behaviors...),
		Interactions: append([]Interaction(nil), s.Interactions...),
		Parent:       s.Parent, OffsetX: s.OffsetX, OffsetY: s.OffsetY,
		Children:        append([]ecs.EntityID(nil), s.Children...),
		DestroyPending:  s.DestroyPending,
		lastFilterState: cloneBoolMap(s.LastFilterState),
		intervalAccum:   cloneFloatMap(s.IntervalAccum),
	}
}

// ExportAll returns a deep-copied snapshot of every tracked entity (alive or
// still destroy-pending) in spawn order, plus the next ID counter so a
// restored store keeps minting unique IDs without ever reusing one that
// existed after the snapshot was taken (§8.2's no-reuse invariant holds
// across a rollback too).
func (s *Store) ExportAll() (snaps []Snapshot, nextID uint64) {
	snaps = make([]Snapshot, 0, len(s.spawnOrder))
	for _, id := range s.spawnOrder {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		snaps = append(snaps, snapshotOf(e))
	}
	return snaps, s.nextID
}

// ImportAll replaces the store's entire entity set with snaps, rebuilding
// every index, and restores nextID so future spawns never collide with an ID
// that existed at snapshot time, even one since destroyed (§4.I restore).
func (s *Store) ImportAll(snaps []Snapshot, nextID uint64) {
	s.entities = make(map[ecs.EntityID]*Entity, len(snaps))
	s.spawnOrder = s.spawnOrder[:0]
	s.byType = make(map[string][]ecs.EntityID)
	s.byTag = make(map[string][]ecs.EntityID)
	s.destroyQueue = nil
	s.nextID = nextID

	for _, snap := range snaps {
		e := snap.restore()
		s.entities[e.ID] = e
		s.spawnOrder = append(s.spawnOrder, e.ID)
		s.byType[e.Type] = append(s.byType[e.Type], e.ID)
		for t := range e.Tags {
			s.byTag[t] = append(s.byTag[t], e.ID)
		}
		if e.DestroyPending {
			s.destroyQueue = append(s.destroyQueue, e.ID)
		}
	}
}
