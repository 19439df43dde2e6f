// Package session glues every other engine package into one running game
// (§4.K): it owns the loaded definition, entity store, sandbox, interaction
// engine, scheduler, rollback ring, transform engine, and renderer, and it is the single place that converts declarative gamedef
// terms into runtime entity/transform/render terms, since everything else
// is built to depend on entity+gamedef independently rather than on each
// other (§2 dependency order: "entity and render underlie sandbox...
// converge in session").
package session

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
	"github.com/arcadeyaml/engine/internal/engine/interact"
	"github.com/arcadeyaml/engine/internal/engine/render"
	"github.com/arcadeyaml/engine/internal/engine/rollback"
	"github.com/arcadeyaml/engine/internal/engine/sandbox"
	"github.com/arcadeyaml/engine/internal/engine/scheduler"
	"github.com/arcadeyaml/engine/internal/engine/transform"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// State is the `game.state` pseudo-entity attribute (§3.3).
type State string

const (
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateWon       State = "won"
	StateLost      State = "lost"
	StateRetrieval State = "retrieval"
)

// PlaneHitEvent is one normalized input sample (§6.2).
type PlaneHitEvent struct {
	X, Y       float64 // normalized [0,1]
	Timestamp  float64 // simulation-second double
	Confidence float64
	Method     string
	LatencyMs  float64
	Metadata   map[string]ecs.Value
}

// Config bounds the session's resource ceilings (§5), layered on top of the
// game definition's own defaults.
type Config struct {
	MaxLiveEntities    int
	MaxCallbacksPerTick int
	CallbackBacklogCap int
	SnapshotInterval   int
	SnapshotCapacity   int
	DtCap              float64
	RNGSeed            int64
}

// DefaultConfig returns the engine's out-of-the-box resource ceilings.
func DefaultConfig() Config {
	return Config{
		MaxLiveEntities:     4096,
		MaxCallbacksPerTick: 64,
		CallbackBacklogCap:  512,
		SnapshotInterval:    6,
		SnapshotCapacity:    180,
		DtCap:               0.25,
		RNGSeed:             1,
	}
}

// Session runs one loaded game (§4.K). It implements sandbox.Host,
// transform.TypeResolver, transform.Generator, render.Generator,
// interact.ActionRunner, and scheduler.CallbackDispatcher; nothing else in
// the engine needs to know any of those interfaces exist.
type Session struct {
	log *zap.Logger
	id  uuid.UUID

	def *gamedef.Definition
	cfg Config

	store     *entity.Store
	sb        *sandbox.Sandbox
	runner    *sandbox.Runner
	interact  *interact.Engine
	transform *transform.Engine
	sched     *scheduler.Queue
	ring      *rollback.Ring
	emitter   *render.Emitter

	rngSrc *rollback.Source
	rng    *rand.Rand

	frame   int64
	simTime float64
	score   int
	lives   int
	state   State

	pointerX, pointerY float64
	pointerActive      bool
	pointerMethod      string
	pointerW, pointerH float64

	pendingHits []PlaneHitEvent

	terminal []string // terminal events emitted this tick, drained by DrainTerminalEvents

	spawnedTypes map[string]bool // every type name that has ever had an instance spawned, for destroy_all's "was non-empty" guard

	gameConfig map[string]ecs.Value // game-specific CLI flags merged in by the launcher (§6.5)
}

// New builds a Session for def. Every script in def.Behaviors/Actions/
// Generators and the global input/win-expression scripts is compiled
// immediately so a load-time script-compile error is reported before the
// game loop starts (§7 "LoadError... fatal at session start").
func New(log *zap.Logger, def *gamedef.Definition, cfg Config) (*Session, error) {
	sb, err := sandbox.New(log, sandbox.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &Session{
		log:    log,
		id:     uuid.New(),
		def:    def,
		cfg:    cfg,
		store:  entity.NewStore(log, cfg.MaxLiveEntities),
		sb:     sb,
		runner: sandbox.NewRunner(log, sb),
		sched:  scheduler.New(log, cfg.MaxCallbacksPerTick),
		ring:   rollback.NewRing(log, cfg.SnapshotInterval, cfg.SnapshotCapacity),
		rngSrc: rollback.NewSource(cfg.RNGSeed),
		lives:        def.DefaultLives,
		state:        StatePlaying,
		spawnedTypes: make(map[string]bool),
	}
	s.rng = rand.New(s.rngSrc)

	sandbox.Install(sb, s, log)

	if err := s.compileAllScripts(); err != nil {
		sb.Close()
		return nil, err
	}

	s.interact = interact.New(log, s.store, s, float64(def.ScreenWidth), float64(def.ScreenHeight))
	s.transform = transform.New(log, s.store, s, s, s.sched, s.SimTime)
	s.emitter = render.New(log, s.store, def.Palette, s)

	s.store.OnCreated(func(id ecs.EntityID) {
		if e := s.store.Get(id); e != nil {
			s.spawnedTypes[e.Type] = true
		}
	})

	return s, nil
}

// ID returns the session's stable identifier, minted once in New. No code
// in the engine names files or log entries by it.
func (s *Session) ID() uuid.UUID { return s.id }

// SetGameConfig stores the launcher's merged game-specific CLI arguments
// (§6.5), readable back via GameConfig.
func (s *Session) SetGameConfig(args map[string]ecs.Value) { s.gameConfig = args }

// GameConfig returns the value of a game-specific CLI argument by name, or
// the nil Value if it was never set.
func (s *Session) GameConfig(key string) ecs.Value {
	if v, ok := s.gameConfig[key]; ok {
		return v
	}
	return ecs.Nil()
}

func (s *Session) compileAllScripts() error {
	compile := func(namespace string, scripts map[string]*gamedef.Script) error {
		names := make([]string, 0, len(scripts))
		for name := range scripts {
			names = append(names, name)
		}
		sort.Strings(names) // deterministic compile order, irrelevant to behavior but stable for error reporting
		for _, name := range names {
			sc := scripts[name]
			entries, err := s.runner.Load(qualifiedName(namespace, name), sc.Source)
			if err != nil {
				return err
			}
			sc.EntryPoints = entries
		}
		return nil
	}
	if err := compile("behavior", s.def.Behaviors); err != nil {
		return err
	}
	if err := compile("action", s.def.Actions); err != nil {
		return err
	}
	if err := compile("generator", s.def.Generators); err != nil {
		return err
	}
	if s.def.GlobalInput != nil {
		entries, err := s.runner.Load(qualifiedName("input", s.def.GlobalInput.Name), s.def.GlobalInput.Source)
		if err != nil {
			return err
		}
		s.def.GlobalInput.EntryPoints = entries
	}
	if s.def.WinCondition.Kind == "expression" && s.def.WinCondition.Expression != nil {
		exp := s.def.WinCondition.Expression
		entries, err := s.runner.Load(qualifiedName("win", exp.Name), exp.Source)
		if err != nil {
			return err
		}
		exp.EntryPoints = entries
	}
	return nil
}

// qualifiedName gives every compiled script chunk a distinct table key in
// the runner, since behaviors/actions/generators/the global input script and
// the win expression all share one flat namespace of loaded chunks.
func qualifiedName(namespace, name string) string { return namespace + ":" + name }

// SimTime returns the current simulation clock (§3.3 `time.absolute`).
func (s *Session) SimTime() float64 { return s.simTime }

// State returns the current game.state value.
func (s *Session) State() State { return s.state }

// Score and Lives expose the game pseudo-entity's other two attributes.
func (s *Session) GetScore() int { return s.score }
func (s *Session) Lives() int    { return s.lives }

// BackgroundColor returns the game definition's declared background color.
func (s *Session) BackgroundColor() string { return s.def.BackgroundColor }

// Close releases the underlying sandbox interpreter.
func (s *Session) Close() { s.sb.Close() }

// IngestHit queues a PlaneHitEvent for application on the next Tick (§4.K,
// §6.2). Events are buffered rather than applied immediately so a whole
// batch can be sorted by timestamp first.
func (s *Session) IngestHit(ev PlaneHitEvent) {
	s.pendingHits = append(s.pendingHits, ev)
}

// Tick runs one frame of the pipeline described in §2: apply queued inputs
// in timestamp order (a late event restores the nearest snapshot and is
// applied there, without re-simulating the frames after it), advance dt,
// evaluate interactions, flush deferred effects, run on_update transforms
// and flush again, evaluate lose/win, and capture a snapshot if due.
func (s *Session) Tick(dt float64) {
	if dt > s.cfg.DtCap {
		s.log.Warn(apperr.DriftWarning("dt exceeded cap, clamped").Error(),
			zap.Float64("dt", dt), zap.Float64("cap", s.cfg.DtCap))
		dt = s.cfg.DtCap
	}

	s.applyPendingHits(dt)

	s.frame++
	s.simTime += dt

	s.interact.Evaluate(dt)
	s.flushEffects(dt)
	s.transform.EvaluateOnUpdate(dt)
	s.flushEffects(dt)

	s.evaluateLoseConditions()
	s.evaluateWinCondition()

	if err := s.sched.CheckBacklog(s.cfg.CallbackBacklogCap); err != nil {
		s.log.Warn("callback backlog", zap.Error(err))
	}

	if s.ring.ShouldCapture(s.frame) {
		s.captureSnapshot()
	}
}

// flushEffects applies the scheduler's due callbacks and sweeps pending
// destroys, in that order, matching §5's fixed flush points ("scheduled
// callbacks at the start of the tick in which they are due... spawns and
// destroys at end-of-frame").
func (s *Session) flushEffects(dt float64) {
	s.sched.Tick(dt, s.store.IsValid, s)
	s.store.Sweep(entity.SweepHooks{
		FireOnDestroy:         s.fireOnDestroy,
		ApplyDestroyTransform: s.applyDestroyTransform,
		FireOnParentDestroy:   s.applyOnParentDestroyTransform,
	})
}

// applyPendingHits re-orders the batch queued since the last Tick by
// timestamp (§6.2 "consumes these in arrival order but re-orders by
// timestamp"), restoring the nearest snapshot before applying an event whose
// timestamp falls behind the current simulation time. The session then
// continues from the restored frame; it does not re-simulate forward to the
// time it had reached.
func (s *Session) applyPendingHits(dt float64) {
	if len(s.pendingHits) == 0 {
		return
	}
	hits := s.pendingHits
	s.pendingHits = nil
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Timestamp < hits[j].Timestamp })

	for _, ev := range hits {
		tEvent := ev.Timestamp
		if tEvent < s.simTime {
			if snap, ok := s.ring.Nearest(tEvent); ok {
				s.restoreSnapshot(snap)
			}
		}
		s.applyHit(ev)
	}
}

func (s *Session) applyHit(ev PlaneHitEvent) {
	s.pointerX = ev.X * float64(s.def.ScreenWidth)
	s.pointerY = ev.Y * float64(s.def.ScreenHeight)
	s.pointerActive = true
	s.pointerMethod = ev.Method
	if s.def.GlobalInput != nil {
		if _, err := s.runner.Call(qualifiedName("input", s.def.GlobalInput.Name), "on_input",
			lua.LNumber(s.pointerX), lua.LNumber(s.pointerY)); err != nil {
			s.log.Warn("global input script failed", zap.Error(err))
		}
	}
}

func (s *Session) captureSnapshot() {
	snaps, nextID := s.store.ExportAll()
	s.ring.Capture(rollback.Snapshot{
		Frame: s.frame, SimTime: s.simTime, RNGState: s.rngSrc.State(),
		Score: s.score, Lives: s.lives, GameState: string(s.state),
		Entities: snaps, NextID: nextID,
	})
}

func (s *Session) restoreSnapshot(snap rollback.Snapshot) {
	s.frame = snap.Frame
	s.simTime = snap.SimTime
	s.rngSrc.SetState(snap.RNGState)
	s.score = snap.Score
	s.lives = snap.Lives
	s.state = State(snap.GameState)
	s.store.ImportAll(snap.Entities, snap.NextID)
}

// Emit produces this frame's draw list (§4.J/§6.1).
func (s *Session) Emit() []render.Command { return s.emitter.Emit() }

// DrainAudio returns and clears this frame's queued sound events (§6.3).
func (s *Session) DrainAudio() []scheduler.AudioEvent { return s.sched.DrainAudio() }

// DrainTerminalEvents returns and clears any win/lose transition events
// raised since the last call (§4.K "emits a terminal event the host can
// surface").
func (s *Session) DrainTerminalEvents() []string {
	out := s.terminal
	s.terminal = nil
	return out
}
