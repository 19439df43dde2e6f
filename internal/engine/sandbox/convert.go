package sandbox

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// ToLua converts a host Value into its sandbox-native representation using a
// table-driven coercion over the tagged-union kinds (§4.E layer 6, Design
// Notes §9). Unknown Go types never reach this function; every host API
// return value is built as an ecs.Value first.
func ToLua(state *lua.LState, v ecs.Value) lua.LValue {
	switch v.Kind {
	case ecs.ValueNil:
		return lua.LNil
	case ecs.ValueNumber:
		return lua.LNumber(v.Number)
	case ecs.ValueString:
		return lua.LString(v.Str)
	case ecs.ValueBool:
		return lua.LBool(v.Bool)
	case ecs.ValueSeq:
		tbl := state.NewTable()
		for i, e := range v.Seq {
			tbl.RawSetInt(i+1, ToLua(state, e)) // 1-indexed, matching Lua convention
		}
		return tbl
	case ecs.ValueMap:
		tbl := state.NewTable()
		for k, e := range v.Map {
			tbl.RawSetString(k, ToLua(state, e))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// FromLua converts a sandbox value back into the host tagged union. A table
// is treated as a sequence if every key is a dense 1-based integer run,
// otherwise as a map. Function, userdata, and channel values are rejected
// with TypeConversionError per §4.E layer 6 / §7: they are never silently
// coerced.
func FromLua(v lua.LValue) (ecs.Value, error) {
	switch lv := v.(type) {
	case *lua.LNilType:
		return ecs.Nil(), nil
	case lua.LBool:
		return ecs.Bool(bool(lv)), nil
	case lua.LNumber:
		return ecs.Number(float64(lv)), nil
	case lua.LString:
		return ecs.String(string(lv)), nil
	case *lua.LTable:
		return fromLuaTable(lv)
	default:
		return ecs.Nil(), apperr.TypeConversion("script returned unsupported type " + v.Type().String())
	}
}

func fromLuaTable(tbl *lua.LTable) (ecs.Value, error) {
	n := tbl.Len()
	isSeq := n > 0
	if isSeq {
		count := 0
		tbl.ForEach(func(_, _ lua.LValue) { count++ })
		isSeq = count == n
	}

	if isSeq {
		seq := make([]ecs.Value, 0, n)
		for i := 1; i <= n; i++ {
			elem, err := FromLua(tbl.RawGetInt(i))
			if err != nil {
				return ecs.Nil(), err
			}
			seq = append(seq, elem)
		}
		return ecs.Seq(seq), nil
	}

	m := make(map[string]ecs.Value)
	var convErr error
	tbl.ForEach(func(k, val lua.LValue) {
		if convErr != nil {
			return
		}
		ks, ok := k.(lua.LString)
		if !ok {
			convErr = apperr.TypeConversion("table has non-string key")
			return
		}
		ev, err := FromLua(val)
		if err != nil {
			convErr = err
			return
		}
		m[string(ks)] = ev
	})
	if convErr != nil {
		return ecs.Nil(), convErr
	}
	return ecs.Map(m), nil
}
