package session

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/sandbox"
)

// This file implements the three narrow interfaces the interact, transform,
// scheduler, and render packages call back into: ActionRunner, Generator,
// and CallbackDispatcher. Every call routes through sandbox.Runner, which
// owns the loaded-chunk table and the actual Lua invocation.

// RunAction implements interact.ActionRunner. Every action script is called
// with the unified (a_id, b_id, modifier, context) signature named in
// Design Notes §9; modifier carries the frame's dt, and context is an empty
// table reserved for future use since no action script in this corpus reads
// it yet.
func (s *Session) RunAction(actionName string, a, b ecs.EntityID, dt float64) error {
	sc, ok := s.def.Actions[actionName]
	if !ok {
		return nil
	}
	ctx := s.sb.LState().NewTable()
	_, err := s.runner.Call(qualifiedName("action", sc.Name), "execute",
		lua.LString(string(a)), lua.LString(string(b)), lua.LNumber(dt), ctx)
	return err
}

// DispatchCallback implements scheduler.CallbackDispatcher. It searches id's
// attached behaviors in declaration order for the first one whose compiled
// chunk exports an entry point named `name`, and calls it with id bound as
// the sole argument (ams.schedule's callback_name, §4.H).
func (s *Session) DispatchCallback(name string, id ecs.EntityID) error {
	e := s.store.Get(id)
	if e == nil {
		return nil
	}
	for _, b := range e.Behaviors {
		key := qualifiedName("behavior", b.Name)
		if !s.runner.Has(key, name) {
			continue
		}
		_, err := s.runner.Call(key, name, lua.LString(string(id)))
		return err
	}
	return nil
}

// Eval implements both transform.Generator and render.Generator: it calls
// scriptName's `generate(i, props)` entry point and converts the first
// return value back to an ecs.Value.
func (s *Session) Eval(scriptName string, index int, parentProps map[string]ecs.Value) (ecs.Value, error) {
	sc, ok := s.def.Generators[scriptName]
	if !ok {
		return ecs.Nil(), nil
	}
	L := s.sb.LState()
	propsTbl := sandbox.ToLua(L, ecs.Map(parentProps))
	return s.runner.CallValue(qualifiedName("generator", sc.Name), "generate", lua.LNumber(index), propsTbl)
}

// evalWinExpression calls the win condition's expression script's `execute`
// entry point and treats its return value as a truthiness test (§3.4 win
// condition kind "expression").
func (s *Session) evalWinExpression() bool {
	exp := s.def.WinCondition.Expression
	if exp == nil {
		return false
	}
	ok, err := s.runner.CallBool(qualifiedName("win", exp.Name), "execute")
	if err != nil {
		s.log.Warn("win expression script failed", zap.Error(err))
		return false
	}
	return ok
}
