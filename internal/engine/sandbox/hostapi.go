package sandbox

import (
	"math"
	"math/rand"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
)

// Host is everything the ams.* API needs from the rest of the engine. A
// session implements Host; the sandbox never imports entity/interact/
// scheduler directly, keeping the dependency arrow pointing one way (§2
// "entity and render underlie sandbox").
type Host interface {
	GetPosition(id string) (x, y float64, ok bool)
	SetPosition(id string, x, y float64)
	GetVelocity(id string) (vx, vy float64, ok bool)
	SetVelocity(id string, vx, vy float64)
	GetSize(id string) (w, h float64, ok bool)

	GetSprite(id string) (string, bool)
	SetSprite(id string, name string)
	GetColor(id string) (string, bool)
	SetColor(id string, name string)
	SetVisible(id string, visible bool)

	GetHealth(id string) (int, bool)
	SetHealth(id string, v int)
	IsAlive(id string) bool
	Destroy(id string)

	GetProp(id, key string) ecs.Value
	SetProp(id, key string, v ecs.Value)
	GetConfig(id, behaviorName, key string, def ecs.Value) ecs.Value
	GameConfig(key string) ecs.Value

	EntitiesOfType(t string) []string
	EntitiesByTag(tag string) []string
	CountByTag(tag string) int
	AllEntityIDs() []string

	ScreenWidth() int
	ScreenHeight() int
	Score() int
	AddScore(delta int)
	SimTime() float64

	PlaySound(name string)
	Schedule(delaySeconds float64, callbackName, entityID string)

	Spawn(typ string, x, y, vx, vy, w, h float64, color, sprite string) string

	SetParent(child, parent string, ox, oy float64)
	DetachFromParent(id string)
	HasParent(id string) bool
	GetParentID(id string) string
	GetChildren(id string) []string

	// Random must be deterministically seeded and snapshotted by the
	// session's rollback ring so replays are reproducible (§4.I, §8.1).
	Random() *rand.Rand
}

// Install registers the ams table and the ams.* functions bound to host on
// the sandbox's Lua state (§4.E host API surface table).
func Install(s *Sandbox, host Host, log *zap.Logger) {
	L := s.state
	ams := L.NewTable()
	L.SetGlobal("ams", ams)

	reg := func(name string, fn lua.LGFunction) { ams.RawSetString(name, L.NewFunction(fn)) }

	reg("get_x", func(L *lua.LState) int {
		x, _, ok := host.GetPosition(argStr(L, 1))
		if !ok {
			return pushNum(L, 0)
		}
		return pushNum(L, x)
	})
	reg("set_x", func(L *lua.LState) int {
		id := argStr(L, 1)
		_, y, ok := host.GetPosition(id)
		if !ok {
			return 0
		}
		host.SetPosition(id, argNum(L, 2), y)
		return 0
	})
	reg("get_y", func(L *lua.LState) int {
		_, y, ok := host.GetPosition(argStr(L, 1))
		if !ok {
			return pushNum(L, 0)
		}
		return pushNum(L, y)
	})
	reg("set_y", func(L *lua.LState) int {
		id := argStr(L, 1)
		x, _, ok := host.GetPosition(id)
		if !ok {
			return 0
		}
		host.SetPosition(id, x, argNum(L, 2))
		return 0
	})
	reg("get_vx", func(L *lua.LState) int {
		vx, _, ok := host.GetVelocity(argStr(L, 1))
		if !ok {
			return pushNum(L, 0)
		}
		return pushNum(L, vx)
	})
	reg("set_vx", func(L *lua.LState) int {
		id := argStr(L, 1)
		_, vy, ok := host.GetVelocity(id)
		if !ok {
			return 0
		}
		host.SetVelocity(id, argNum(L, 2), vy)
		return 0
	})
	reg("get_vy", func(L *lua.LState) int {
		_, vy, ok := host.GetVelocity(argStr(L, 1))
		if !ok {
			return pushNum(L, 0)
		}
		return pushNum(L, vy)
	})
	reg("set_vy", func(L *lua.LState) int {
		id := argStr(L, 1)
		vx, _, ok := host.GetVelocity(id)
		if !ok {
			return 0
		}
		host.SetVelocity(id, vx, argNum(L, 2))
		return 0
	})
	reg("get_width", func(L *lua.LState) int {
		w, _, _ := host.GetSize(argStr(L, 1))
		return pushNum(L, w)
	})
	reg("get_height", func(L *lua.LState) int {
		_, h, _ := host.GetSize(argStr(L, 1))
		return pushNum(L, h)
	})
	reg("get_sprite", func(L *lua.LState) int {
		v, _ := host.GetSprite(argStr(L, 1))
		return pushStr(L, v)
	})
	reg("set_sprite", func(L *lua.LState) int {
		host.SetSprite(argStr(L, 1), argStr(L, 2))
		return 0
	})
	reg("get_color", func(L *lua.LState) int {
		v, _ := host.GetColor(argStr(L, 1))
		return pushStr(L, v)
	})
	reg("set_color", func(L *lua.LState) int {
		host.SetColor(argStr(L, 1), argStr(L, 2))
		return 0
	})
	reg("set_visible", func(L *lua.LState) int {
		host.SetVisible(argStr(L, 1), L.ToBool(2))
		return 0
	})
	reg("get_health", func(L *lua.LState) int {
		v, _ := host.GetHealth(argStr(L, 1))
		return pushNum(L, float64(v))
	})
	reg("set_health", func(L *lua.LState) int {
		host.SetHealth(argStr(L, 1), int(argNum(L, 2)))
		return 0
	})
	reg("is_alive", func(L *lua.LState) int {
		L.Push(lua.LBool(host.IsAlive(argStr(L, 1))))
		return 1
	})
	reg("destroy", func(L *lua.LState) int {
		host.Destroy(argStr(L, 1))
		return 0
	})
	reg("get_prop", func(L *lua.LState) int {
		v := host.GetProp(argStr(L, 1), argStr(L, 2))
		L.Push(ToLua(L, v))
		return 1
	})
	reg("set_prop", func(L *lua.LState) int {
		v, err := FromLua(L.Get(3))
		if err != nil {
			log.Debug("set_prop: unsupported value type, ignored", zap.Error(err))
			return 0
		}
		host.SetProp(argStr(L, 1), argStr(L, 2), v)
		return 0
	})
	reg("get_config", func(L *lua.LState) int {
		def, _ := FromLua(L.Get(4))
		v := host.GetConfig(argStr(L, 1), argStr(L, 2), argStr(L, 3), def)
		L.Push(ToLua(L, v))
		return 1
	})
	reg("game_config", func(L *lua.LState) int {
		L.Push(ToLua(L, host.GameConfig(argStr(L, 1))))
		return 1
	})
	reg("get_entities_of_type", func(L *lua.LState) int { return pushIDTable(L, host.EntitiesOfType(argStr(L, 1))) })
	reg("get_entities_by_tag", func(L *lua.LState) int { return pushIDTable(L, host.EntitiesByTag(argStr(L, 1))) })
	reg("count_entities_by_tag", func(L *lua.LState) int { return pushNum(L, float64(host.CountByTag(argStr(L, 1)))) })
	reg("get_all_entity_ids", func(L *lua.LState) int { return pushIDTable(L, host.AllEntityIDs()) })
	reg("get_screen_width", func(L *lua.LState) int { return pushNum(L, float64(host.ScreenWidth())) })
	reg("get_screen_height", func(L *lua.LState) int { return pushNum(L, float64(host.ScreenHeight())) })
	reg("get_score", func(L *lua.LState) int { return pushNum(L, float64(host.Score())) })
	reg("add_score", func(L *lua.LState) int {
		host.AddScore(int(argNum(L, 1)))
		return 0
	})
	reg("get_time", func(L *lua.LState) int { return pushNum(L, host.SimTime()) })
	reg("play_sound", func(L *lua.LState) int {
		host.PlaySound(argStr(L, 1))
		return 0
	})
	reg("schedule", func(L *lua.LState) int {
		host.Schedule(argNum(L, 1), argStr(L, 2), argStr(L, 3))
		return 0
	})
	reg("spawn", func(L *lua.LState) int {
		id := host.Spawn(argStr(L, 1), argNum(L, 2), argNum(L, 3), argNum(L, 4), argNum(L, 5),
			argNum(L, 6), argNum(L, 7), argStrOr(L, 8, ""), argStrOr(L, 9, ""))
		if id == "" {
			L.Push(lua.LNil)
			return 1
		}
		return pushStr(L, id)
	})
	reg("set_parent", func(L *lua.LState) int {
		host.SetParent(argStr(L, 1), argStr(L, 2), argNum(L, 3), argNum(L, 4))
		return 0
	})
	reg("detach_from_parent", func(L *lua.LState) int {
		host.DetachFromParent(argStr(L, 1))
		return 0
	})
	reg("has_parent", func(L *lua.LState) int {
		L.Push(lua.LBool(host.HasParent(argStr(L, 1))))
		return 1
	})
	reg("get_parent_id", func(L *lua.LState) int { return pushStr(L, host.GetParentID(argStr(L, 1))) })
	reg("get_children", func(L *lua.LState) int { return pushIDTable(L, host.GetChildren(argStr(L, 1))) })

	// Math convenience surface, duplicating the pure math library so scripts
	// are shielded from any future narrowing of the layer-4 whitelist.
	reg("sin", func(L *lua.LState) int { return pushNum(L, math.Sin(argNum(L, 1))) })
	reg("cos", func(L *lua.LState) int { return pushNum(L, math.Cos(argNum(L, 1))) })
	reg("sqrt", func(L *lua.LState) int { return pushNum(L, math.Sqrt(argNum(L, 1))) })
	reg("atan2", func(L *lua.LState) int { return pushNum(L, math.Atan2(argNum(L, 1), argNum(L, 2))) })
	reg("abs", func(L *lua.LState) int { return pushNum(L, math.Abs(argNum(L, 1))) })
	reg("min", func(L *lua.LState) int { return pushNum(L, math.Min(argNum(L, 1), argNum(L, 2))) })
	reg("max", func(L *lua.LState) int { return pushNum(L, math.Max(argNum(L, 1), argNum(L, 2))) })
	reg("floor", func(L *lua.LState) int { return pushNum(L, math.Floor(argNum(L, 1))) })
	reg("ceil", func(L *lua.LState) int { return pushNum(L, math.Ceil(argNum(L, 1))) })
	reg("random", func(L *lua.LState) int { return pushNum(L, host.Random().Float64()) })
	reg("random_range", func(L *lua.LState) int {
		lo, hi := argNum(L, 1), argNum(L, 2)
		return pushNum(L, lo+host.Random().Float64()*(hi-lo))
	})
	reg("clamp", func(L *lua.LState) int {
		v, lo, hi := argNum(L, 1), argNum(L, 2), argNum(L, 3)
		return pushNum(L, math.Min(math.Max(v, lo), hi))
	})
	reg("log", func(L *lua.LState) int {
		log.Info(argStr(L, 1))
		return 0
	})
}

func argStr(L *lua.LState, n int) string  { return L.CheckString(n) }
func argNum(L *lua.LState, n int) float64 { return float64(L.CheckNumber(n)) }

func argStrOr(L *lua.LState, n int, def string) string {
	v := L.Get(n)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return def
}

func pushNum(L *lua.LState, v float64) int {
	L.Push(lua.LNumber(v))
	return 1
}

func pushStr(L *lua.LState, v string) int {
	L.Push(lua.LString(v))
	return 1
}

func pushIDTable(L *lua.LState, ids []string) int {
	tbl := L.NewTable()
	for i, id := range ids {
		tbl.RawSetInt(i+1, lua.LString(id))
	}
	L.Push(tbl)
	return 1
}
