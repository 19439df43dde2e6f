package entity

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// Store owns every entity for the lifetime of a session (§3.5, §4.D). IDs are
// minted monotonically and never recycled, unlike the teacher's entity
// manager, to satisfy the no-reuse-after-destroy invariant (§8.2).
type Store struct {
	log *zap.Logger

	maxLive int
	nextID  uint64

	entities map[ecs.EntityID]*Entity
	spawnOrder []ecs.EntityID // preserved across destroys for stable iteration

	byType map[string][]ecs.EntityID
	byTag  map[string][]ecs.EntityID

	createdHandlers   []func(ecs.EntityID)
	destroyedHandlers []func(ecs.EntityID)

	destroyQueue []ecs.EntityID
}

// NewStore creates an empty entity store capped at maxLive concurrently
// alive entities (§4.D "per-session cap on live entities").
func NewStore(log *zap.Logger, maxLive int) *Store {
	return &Store{
		log:      log,
		maxLive:  maxLive,
		entities: make(map[ecs.EntityID]*Entity),
		byType:   make(map[string][]ecs.EntityID),
		byTag:    make(map[string][]ecs.EntityID),
	}
}

// LiveCount returns the number of currently alive (not destroy-pending) entities.
func (s *Store) LiveCount() int {
	n := 0
	for _, id := range s.spawnOrder {
		if e, ok := s.entities[id]; ok && e.Alive {
			n++
		}
	}
	return n
}

// SpawnParams carries the inputs to Spawn; overrides of zero value are ignored
// in favor of the entity type's declared defaults, handled by the caller
// (the gamedef-aware layer) before this call.
type SpawnParams struct {
	Type           string
	X, Y, VX, VY   float64
	W, H           float64
	Color, Sprite  string
	MaxHealth      int
	Tags           []string
	Properties     map[string]ecs.Value
	Behaviors      []Behavior
	Interactions   []Interaction
	Render         []RenderCommand
	SpawnTime      float64
}

// Spawn creates a new entity from params. It returns "" and logs once when
// the live-entity cap is hit (§4.D, §8.8); it never panics.
func (s *Store) Spawn(p SpawnParams) ecs.EntityID {
	if s.maxLive > 0 && s.LiveCount() >= s.maxLive {
		s.log.Warn("spawn rejected: live entity cap reached",
			zap.String("type", p.Type), zap.Int("cap", s.maxLive))
		return ""
	}

	s.nextID++
	id := ecs.EntityID(fmt.Sprintf("e%d", s.nextID))

	tags := make(map[string]bool, len(p.Tags))
	for _, t := range p.Tags {
		tags[t] = true
	}

	e := &Entity{
		ID:           id,
		Type:         p.Type,
		Tags:         tags,
		X:            p.X,
		Y:            p.Y,
		VX:           p.VX,
		VY:           p.VY,
		W:            p.W,
		H:            p.H,
		Color:        p.Color,
		Sprite:       p.Sprite,
		Visible:      true,
		Render:       append([]RenderCommand(nil), p.Render...),
		Health:       p.MaxHealth,
		MaxHealth:    p.MaxHealth,
		Alive:        true,
		SpawnTime:    p.SpawnTime,
		Properties:   clonePropMap(p.Properties),
		Behaviors:    append([]Behavior(nil), p.Behaviors...),
		Interactions: append([]Interaction(nil), p.Interactions...),
	}

	s.entities[id] = e
	s.spawnOrder = append(s.spawnOrder, id)
	s.byType[p.Type] = append(s.byType[p.Type], id)
	for t := range tags {
		s.byTag[t] = append(s.byTag[t], id)
	}

	for _, h := range s.createdHandlers {
		h(id)
	}

	return id
}

// Get returns the live entity pointer for id, or nil if it does not exist.
// Destroy-pending entities remain gettable until the sweep finalizes them.
func (s *Store) Get(id ecs.EntityID) *Entity {
	return s.entities[id]
}

// IsValid reports whether id names an entity still tracked by the store
// (alive or destroy-pending but not yet swept).
func (s *Store) IsValid(id ecs.EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

// ByType returns every alive entity of the given type, in spawn order.
func (s *Store) ByType(t string) []ecs.EntityID {
	return s.filterAlive(s.byType[t])
}

// ByTag returns every alive entity carrying tag, in spawn order.
func (s *Store) ByTag(tag string) []ecs.EntityID {
	return s.filterAlive(s.byTag[tag])
}

// AllAlive returns every alive entity in spawn order.
func (s *Store) AllAlive() []ecs.EntityID {
	return s.filterAlive(s.spawnOrder)
}

func (s *Store) filterAlive(ids []ecs.EntityID) []ecs.EntityID {
	out := make([]ecs.EntityID, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok && e.Alive {
			out = append(out, id)
		}
	}
	return out
}

// Destroy marks id as destroy-pending; finalization happens at Sweep time
// (§4.D). Destroying an already-pending or unknown entity is a no-op.
func (s *Store) Destroy(id ecs.EntityID) {
	e, ok := s.entities[id]
	if !ok || e.DestroyPending {
		return
	}
	e.DestroyPending = true
	e.Alive = false
	s.destroyQueue = append(s.destroyQueue, id)
}

// SetParent links child under parent with a parent-space offset (§4.D
// set_parent). Attaching to a dead or unknown parent is a no-op warning.
func (s *Store) SetParent(child, parent ecs.EntityID, ox, oy float64) error {
	c, ok := s.entities[child]
	if !ok {
		return apperr.TypeConversion("set_parent: unknown child " + string(child))
	}
	p, ok := s.entities[parent]
	if !ok || !p.Alive {
		s.log.Warn("set_parent: parent missing or dead, ignored",
			zap.String("child", string(child)), zap.String("parent", string(parent)))
		return nil
	}
	if c.Parent != "" {
		s.removeChildFrom(c.Parent, child)
	}
	c.Parent = parent
	c.OffsetX, c.OffsetY = ox, oy
	p.Children = append(p.Children, child)
	return nil
}

// Detach removes child's parent link, leaving it in place spatially.
func (s *Store) Detach(child ecs.EntityID) {
	c, ok := s.entities[child]
	if !ok || c.Parent == "" {
		return
	}
	s.removeChildFrom(c.Parent, child)
	c.Parent = ""
}

func (s *Store) removeChildFrom(parent, child ecs.EntityID) {
	p, ok := s.entities[parent]
	if !ok {
		return
	}
	for i, cid := range p.Children {
		if cid == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
}

// OnCreated registers a callback fired synchronously after every spawn.
func (s *Store) OnCreated(f func(ecs.EntityID)) { s.createdHandlers = append(s.createdHandlers, f) }

// OnDestroyed registers a callback fired synchronously during the sweep,
// after on_destroy hooks and transforms have applied, for each finalized entity.
func (s *Store) OnDestroyed(f func(ecs.EntityID)) { s.destroyedHandlers = append(s.destroyedHandlers, f) }

// SweepHooks are the caller-supplied callbacks the sweep invokes for each
// destroy-pending entity, in the order mandated by §4.D.
type SweepHooks struct {
	// FireOnDestroy runs every attached behavior's on_destroy for id.
	FireOnDestroy func(id ecs.EntityID)
	// ApplyDestroyTransform applies the entity type's on_destroy transform (§4.G).
	ApplyDestroyTransform func(id ecs.EntityID)
	// FireOnParentDestroy runs a child's on_parent_destroy transform when its parent is swept.
	FireOnParentDestroy func(child ecs.EntityID)
}

// Sweep finalizes every destroy-pending entity: fires on_destroy, applies the
// destroy transform, orphans children breadth-first firing their
// on_parent_destroy, then removes the entity from every index. Scripts may
// queue further destroys during hooks; those are absorbed into the same
// sweep via a worklist with a visited set so cycles terminate (§4.D, §8.7).
func (s *Store) Sweep(hooks SweepHooks) {
	visited := make(map[ecs.EntityID]bool)
	work := append([]ecs.EntityID(nil), s.destroyQueue...)
	s.destroyQueue = nil

	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		e, ok := s.entities[id]
		if !ok {
			continue
		}

		if hooks.FireOnDestroy != nil {
			hooks.FireOnDestroy(id)
		}
		if hooks.ApplyDestroyTransform != nil {
			hooks.ApplyDestroyTransform(id)
		}

		// Orphan children breadth-first.
		children := append([]ecs.EntityID(nil), e.Children...)
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] }) // deterministic order
		for _, child := range children {
			if ch, ok := s.entities[child]; ok {
				ch.Parent = ""
				if hooks.FireOnParentDestroy != nil {
					hooks.FireOnParentDestroy(child)
				}
			}
		}

		// Absorb any new destroys queued during the hooks above.
		if len(s.destroyQueue) > 0 {
			work = append(work, s.destroyQueue...)
			s.destroyQueue = nil
		}

		s.finalize(id)
	}
}

func (s *Store) finalize(id ecs.EntityID) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	if e.Parent != "" {
		s.removeChildFrom(e.Parent, id)
	}
	delete(s.entities, id)
	s.byType[e.Type] = removeID(s.byType[e.Type], id)
	for t := range e.Tags {
		s.byTag[t] = removeID(s.byTag[t], id)
	}
	for _, h := range s.destroyedHandlers {
		h(id)
	}
}

func removeID(ids []ecs.EntityID, target ecs.EntityID) []ecs.EntityID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
