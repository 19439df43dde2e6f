package session

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
)

// This file evaluates §4.K's end-of-frame win/lose step and the destroy/
// on_parent_destroy hooks the entity store's Sweep calls out to. It is the
// one place game-wide state (score, lives, game.state) and per-type
// transforms (§4.G) meet.

// fireOnDestroy runs every behavior attached to id that exports an
// `on_destroy` entry point, in declaration order (§4.D sweep step 1).
func (s *Session) fireOnDestroy(id ecs.EntityID) {
	e := s.store.Get(id)
	if e == nil {
		return
	}
	for _, b := range e.Behaviors {
		key := qualifiedName("behavior", b.Name)
		if !s.runner.Has(key, "on_destroy") {
			continue
		}
		if _, err := s.runner.Call(key, "on_destroy", lua.LString(string(id))); err != nil {
			s.log.Warn("on_destroy behavior failed", zap.String("entity", string(id)), zap.Error(err))
		}
	}
}

// applyDestroyTransform applies id's entity type's on_destroy transform, if
// any, then checks every "destroyed"-event lose condition for id's type
// (§4.D sweep step 2, §4.G lose conditions).
func (s *Session) applyDestroyTransform(id ecs.EntityID) {
	e := s.store.Get(id)
	if e == nil {
		return
	}
	typeName := e.Type
	if et, ok := s.lookupType(typeName); ok && et.OnDestroy != nil {
		s.transform.Apply(id, et.OnDestroy)
	}
	for _, lc := range s.def.LoseConditions {
		if lc.Event == "destroyed" && lc.EntityType == typeName {
			s.fireLoseCondition(lc, id)
		}
	}
}

// applyOnParentDestroyTransform applies a child's on_parent_destroy
// transform when its parent is swept (§4.D sweep step 3).
func (s *Session) applyOnParentDestroyTransform(child ecs.EntityID) {
	e := s.store.Get(child)
	if e == nil {
		return
	}
	if et, ok := s.lookupType(e.Type); ok && et.OnParentDestroy != nil {
		s.transform.Apply(child, et.OnParentDestroy)
	}
}

// evaluateLoseConditions checks the two level-triggered lose event kinds
// (exited_screen, property_true) against every currently alive entity of
// each condition's type (§4.G).
func (s *Session) evaluateLoseConditions() {
	if s.state != StatePlaying {
		return
	}
	for _, lc := range s.def.LoseConditions {
		if lc.Event == "destroyed" {
			continue // handled at sweep time in applyDestroyTransform
		}
		for _, id := range s.store.ByType(lc.EntityType) {
			e := s.store.Get(id)
			if e == nil {
				continue
			}
			if s.loseEventMatches(lc, e) {
				s.fireLoseCondition(lc, id)
				if s.state != StatePlaying {
					return
				}
			}
		}
	}
}

// loseEventMatches tests e against lc's event kind: exited_screen checks the
// entity's AABB against the named screen edge (or any edge), property_true
// checks a named property's truthiness (§4.G).
func (s *Session) loseEventMatches(lc gamedef.LoseCondition, e *entity.Entity) bool {
	switch lc.Event {
	case "exited_screen":
		return s.exitedScreen(e, lc.Edge)
	case "property_true":
		return e.Properties[lc.Property].IsTruthy()
	default:
		return false
	}
}

func (s *Session) exitedScreen(e *entity.Entity, edge string) bool {
	box := e.AABB()
	w, h := float64(s.def.ScreenWidth), float64(s.def.ScreenHeight)
	switch edge {
	case "top":
		return box.Max.Y < 0
	case "bottom":
		return box.Min.Y > h
	case "left":
		return box.Max.X < 0
	case "right":
		return box.Min.X > w
	default: // "any"
		return box.Max.Y < 0 || box.Min.Y > h || box.Max.X < 0 || box.Min.X > w
	}
}

func (s *Session) fireLoseCondition(lc gamedef.LoseCondition, id ecs.EntityID) {
	if len(lc.Then.Children) > 0 || lc.Then.Kind != "" {
		s.transform.Apply(id, &lc.Then)
	}
	switch lc.Action {
	case "lose_life":
		s.lives--
		if s.lives <= 0 {
			s.transitionTo(StateLost)
		}
	case "":
		// no-op action: only the `then:` transform applies
	default:
		s.transitionTo(StateLost)
	}
}

// evaluateWinCondition checks the game's single win condition (§3.4, §4.K).
func (s *Session) evaluateWinCondition() {
	if s.state != StatePlaying {
		return
	}
	wc := s.def.WinCondition
	switch wc.Kind {
	case "destroy_all":
		if s.spawnedTypes[wc.TargetType] && len(s.store.ByType(wc.TargetType)) == 0 {
			s.transitionTo(StateWon)
		}
	case "reach_score":
		if s.score >= wc.TargetScore {
			s.transitionTo(StateWon)
		}
	case "expression":
		if s.evalWinExpression() {
			s.transitionTo(StateWon)
		}
	}
}

// transitionTo moves game.state from playing to a terminal state exactly
// once, recording the event for the host to surface (§4.K "emits a terminal
// event the host can surface").
func (s *Session) transitionTo(state State) {
	if s.state != StatePlaying {
		return
	}
	s.state = state
	s.terminal = append(s.terminal, string(state))
	s.log.Info("game state transition", zap.String("state", string(state)), zap.Int64("frame", s.frame))
}
