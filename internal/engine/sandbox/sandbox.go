// Package sandbox implements the capability-limited embedded scripting layer
// (§4.E): a gopher-lua interpreter with defense-in-depth isolation and the
// fixed ams.* host API as its only channel to game state.
package sandbox

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// forbiddenNames is the published list of globals that must evaluate to nil
// after sandboxing and before any user code runs (§4.E layer 4-5, §8.3).
var forbiddenNames = []string{
	"io", "os", "require", "debug", "loadstring", "load", "dofile", "loadfile",
	"getfenv", "setfenv", "getmetatable", "setmetatable", "rawget", "rawset",
	"rawequal", "rawlen", "coroutine", "package", "module", "collectgarbage",
	"newproxy", "jit", "ffi", "_G", "_VERSION", "python", "_python",
	"dump", "print", // print is removed too: it is not part of the ams.* whitelist
}

// forbiddenTableMembers is checked after the whitelist globals are installed,
// for dangerous functions nested inside a table the sandbox otherwise keeps
// (the pure-math/string libraries).
var forbiddenTableMembers = map[string][]string{
	"string": {"dump", "rep"},
}

// Config bounds resource usage for a single sandbox instance, grounded on the
// teacher's mod.ModConfig capability ceilings, extended with the spec's
// per-invocation time budget (§5).
type Config struct {
	MaxScriptTime time.Duration // soft per-invocation CPU budget, default ~1ms
}

// DefaultConfig returns the engine's default resource ceilings.
func DefaultConfig() Config {
	return Config{MaxScriptTime: time.Millisecond}
}

// Sandbox wraps one gopher-lua interpreter instance configured per §4.E.
// Games with multiple concurrently loaded behaviors share a single Sandbox;
// the engine is single-threaded cooperative, so one *lua.LState suffices.
type Sandbox struct {
	log   *zap.Logger
	state *lua.LState
	cfg   Config
}

// New constructs a Sandbox, applies every defense-in-depth layer of §4.E, and
// runs the startup validation of §8.3. A SandboxValidationError aborts
// construction and must abort engine start (§7).
func New(log *zap.Logger, cfg Config) (*Sandbox, error) {
	// Layer 1: interpreter construction options. gopher-lua ships no
	// raw-foreign-call bridge by default (no cgo FFI, no os/io auto-registration
	// beyond OpenLibs, which we deliberately do not call), so the only work
	// here is NOT calling lua.OpenLibs and instead hand-registering the
	// narrow whitelist below.
	state := lua.NewState(lua.Options{SkipOpenLibs: true})

	s := &Sandbox{log: log, state: state, cfg: cfg}

	// Layer 4: install the whitelist (iteration, type query,
	// stringification, numeric parsing, protected-call, error raise,
	// vararg selection, and the math, string and table libraries).
	s.installWhitelist()

	// Layer 2/3: strip dangerous table members from libraries we do keep.
	s.stripForbiddenMembers()

	// Layer 4 continued: explicitly nil every forbidden global by name, in
	// case any whitelist loader transitively set one (defense in depth).
	for _, name := range forbiddenNames {
		state.SetGlobal(name, lua.LNil)
	}

	// Layer 5: startup validation.
	if err := s.validateForbidden(); err != nil {
		state.Close()
		return nil, err
	}

	return s, nil
}

// installWhitelist registers the minimal standard-library surface permitted
// by §4.E layer 4: base iteration/type/tostring/tonumber/pcall/error/select,
// and the math, string and table libraries (no os/io/string.dump/string.rep).
func (s *Sandbox) installWhitelist() {
	// gopher-lua's OpenBase/OpenMath/OpenString/OpenTable are the closest
	// granular loaders available; each library is installed whole, and the
	// two dangerous string members (dump, rep) are stripped afterward in
	// stripForbiddenMembers.
	lua.OpenBase(s.state)
	lua.OpenMath(s.state)
	lua.OpenString(s.state)
	lua.OpenTable(s.state)

	// Base library ships several names outside the whitelist; remove them
	// individually rather than rely on a second global nil pass alone, so
	// that their absence is visible right where they were introduced.
	for _, extra := range []string{
		"dofile", "loadfile", "load", "loadstring", "collectgarbage",
		"print", "require", "module", "rawget", "rawset", "rawequal",
		"rawlen", "getmetatable", "setmetatable", "getfenv", "setfenv",
		"newproxy", "_G", "_VERSION",
	} {
		s.state.SetGlobal(extra, lua.LNil)
	}
}

func (s *Sandbox) stripForbiddenMembers() {
	for tableName, members := range forbiddenTableMembers {
		tbl, ok := s.state.GetGlobal(tableName).(*lua.LTable)
		if !ok {
			continue
		}
		for _, m := range members {
			tbl.RawSetString(m, lua.LNil)
		}
	}
}

// validateForbidden implements the startup check of §4.E layer 5 / §8.3:
// every forbidden name must evaluate to nil.
func (s *Sandbox) validateForbidden() error {
	for _, name := range forbiddenNames {
		v := s.state.GetGlobal(name)
		if v != lua.LNil {
			return apperr.SandboxValidation(fmt.Sprintf("forbidden name %q is not nil after sandboxing", name))
		}
	}
	for tableName, members := range forbiddenTableMembers {
		tbl, ok := s.state.GetGlobal(tableName).(*lua.LTable)
		if !ok {
			continue
		}
		for _, m := range members {
			if tbl.RawGetString(m) != lua.LNil {
				return apperr.SandboxValidation(fmt.Sprintf("forbidden member %s.%s is not nil after sandboxing", tableName, m))
			}
		}
	}
	return nil
}

// Close releases the underlying interpreter.
func (s *Sandbox) Close() { s.state.Close() }

// LState exposes the raw interpreter for the host-API installer in
// hostapi.go; nothing outside this package should hold onto it.
func (s *Sandbox) LState() *lua.LState { return s.state }
