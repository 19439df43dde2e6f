package sandbox

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// Runner compiles named scripts (behaviors, actions, generators, the global
// input handler, the win-condition expression) into callable entry-point
// tables and invokes them against the sandbox's single shared interpreter.
// Each script chunk is expected to `return { on_spawn = function(...) ... end,
// on_update = ..., execute = ..., generate = ... }` rather than defining
// globals, so concurrently loaded scripts never clobber each other (§4.A
// step 5-6, §4.E).
type Runner struct {
	log    *zap.Logger
	sb     *Sandbox
	tables map[string]*lua.LTable
}

// NewRunner binds a Runner to an already-constructed, validated Sandbox.
func NewRunner(log *zap.Logger, sb *Sandbox) *Runner {
	return &Runner{log: log, sb: sb, tables: make(map[string]*lua.LTable)}
}

// Load compiles source under name, executes the chunk once to obtain its
// returned entry-point table, and caches it. It returns the set of
// entry-point names the chunk actually defined, for gamedef.Script.EntryPoints.
func (r *Runner) Load(name, source string) (map[string]bool, error) {
	L := r.sb.state
	fn, err := L.LoadString(source)
	if err != nil {
		return nil, apperr.Load(apperr.LoadScriptCompileError, name, err.Error(), err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, apperr.ScriptRuntime(name, "script body failed", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, apperr.Load(apperr.LoadScriptCompileError, name,
			"script must return a table of entry-point functions", nil)
	}
	r.tables[name] = tbl

	entries := make(map[string]bool)
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if _, isFn := v.(*lua.LFunction); isFn {
			entries[string(ks)] = true
		}
	})
	return entries, nil
}

// Has reports whether name's table defines entryPoint.
func (r *Runner) Has(name, entryPoint string) bool {
	tbl, ok := r.tables[name]
	if !ok {
		return false
	}
	_, isFn := tbl.RawGetString(entryPoint).(*lua.LFunction)
	return isFn
}

// Call invokes name's entryPoint function with args and returns its raw
// return values. Calling an entry point the script never defined is a no-op,
// not an error, since most scripts implement only a subset of the lifecycle
// hooks (§3.4 "behaviors declare only the hooks they need").
func (r *Runner) Call(name, entryPoint string, args ...lua.LValue) ([]lua.LValue, error) {
	tbl, ok := r.tables[name]
	if !ok {
		return nil, apperr.ScriptRuntime(name, "script not loaded", nil)
	}
	fn, ok := tbl.RawGetString(entryPoint).(*lua.LFunction)
	if !ok {
		return nil, nil
	}

	L := r.sb.state
	base := L.GetTop()
	L.Push(fn)
	for _, a := range args {
		L.Push(a)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, apperr.ScriptRuntime(fmt.Sprintf("%s.%s", name, entryPoint), "call failed", err)
	}
	nret := L.GetTop() - base
	results := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		results[i] = L.Get(base + 1 + i)
	}
	L.Pop(nret)
	return results, nil
}

// CallValue invokes entryPoint and converts its first return value to an
// ecs.Value, used by generator scripts and `{lua: "..."}` property expressions.
func (r *Runner) CallValue(name, entryPoint string, args ...lua.LValue) (ecs.Value, error) {
	res, err := r.Call(name, entryPoint, args...)
	if err != nil {
		return ecs.Nil(), err
	}
	if len(res) == 0 {
		return ecs.Nil(), nil
	}
	return FromLua(res[0])
}

// CallBool invokes entryPoint and reports its first return value's Lua
// truthiness, used by the win-condition expression form.
func (r *Runner) CallBool(name, entryPoint string, args ...lua.LValue) (bool, error) {
	res, err := r.Call(name, entryPoint, args...)
	if err != nil || len(res) == 0 {
		return false, err
	}
	return lua.LVAsBool(res[0]), nil
}
