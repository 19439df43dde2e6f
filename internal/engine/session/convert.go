package session

import (
	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
)

// This file is the one place gamedef's declarative terms are turned into
// entity's runtime terms. Both of those packages stay free of each other so
// transform/render/interact can depend on entity alone; session already
// depends on gamedef to load the game, so the conversion lives here.

func opFromString(op string) entity.Operator {
	switch op {
	case "lt":
		return entity.OpLt
	case "gt":
		return entity.OpGt
	case "lte":
		return entity.OpLte
	case "gte":
		return entity.OpGte
	case "between":
		return entity.OpBetween
	case "in":
		return entity.OpIn
	default:
		return entity.OpEq
	}
}

func triggerFromString(t string) entity.Trigger {
	switch t {
	case "exit":
		return entity.TriggerExit
	case "continuous":
		return entity.TriggerContinuous
	default:
		return entity.TriggerEnter
	}
}

func convertFilter(f gamedef.FilterDef) entity.Filter {
	var preds []entity.Predicate
	if f.Distance != nil {
		d := f.Distance
		preds = append(preds, entity.Predicate{
			Kind: entity.PredicateDistance, Mode: d.Mode, Op: opFromString(d.Op),
			Value: ecs.Number(d.Value), Lo: ecs.Number(d.Lo), Hi: ecs.Number(d.Hi),
		})
	}
	if f.Angle != nil {
		preds = append(preds, entity.Predicate{
			Kind: entity.PredicateAngle, Lo: ecs.Number(f.Angle.Between[0]), Hi: ecs.Number(f.Angle.Between[1]),
		})
	}
	for _, p := range f.Props {
		preds = append(preds, entity.Predicate{
			Kind: entity.PredicateProp, Mode: p.Path, Op: opFromString(p.Op),
			Value: p.Value, Lo: p.Lo, Hi: p.Hi, In: p.In,
		})
	}
	if len(f.Edges) > 0 {
		preds = append(preds, entity.Predicate{Kind: entity.PredicateEdges, Edges: f.Edges, Margin: f.Margin})
	}
	return entity.Filter{Predicates: preds}
}

func convertFilterPtr(f *gamedef.FilterDef) *entity.Filter {
	if f == nil {
		return nil
	}
	out := convertFilter(*f)
	return &out
}

func convertInteractions(defs []gamedef.InteractionDef) []entity.Interaction {
	out := make([]entity.Interaction, len(defs))
	for i, d := range defs {
		out[i] = entity.Interaction{
			Target: d.Target, Filter: convertFilter(d.Filter),
			Trigger: triggerFromString(d.Trigger), Action: d.Action,
		}
	}
	return out
}

func convertRenderList(defs []gamedef.RenderCommandDef) []entity.RenderCommand {
	out := make([]entity.RenderCommand, len(defs))
	for i, d := range defs {
		out[i] = entity.RenderCommand{
			Kind: d.Kind, OffsetX: d.OffsetX, OffsetY: d.OffsetY,
			Width: d.Width, Height: d.Height, Color: d.Color, Alpha: d.Alpha,
			Fill: d.Fill, LineWidth: d.LineWidth, SpriteName: d.SpriteName,
			Text: d.Text, FontSize: d.FontSize, When: convertFilterPtr(d.When),
		}
	}
	return out
}

func convertBehaviors(refs []gamedef.BehaviorRef) []entity.Behavior {
	out := make([]entity.Behavior, len(refs))
	for i, r := range refs {
		out[i] = entity.Behavior{Name: r.Name, Config: r.Config}
	}
	return out
}

func (s *Session) lookupType(typeName string) (*gamedef.EntityType, bool) {
	et, ok := s.def.EntityTypes[typeName]
	return et, ok
}

// baseSpawnParams builds the default SpawnParams for et with no position or
// velocity set; callers fill those in.
func baseSpawnParams(et *gamedef.EntityType) entity.SpawnParams {
	return entity.SpawnParams{
		Type: et.Name, W: et.W, H: et.H,
		Color: et.DefaultColor, Sprite: et.DefaultSprite,
		MaxHealth:    et.MaxHealth,
		Tags:         append([]string(nil), et.Tags...),
		Properties:   clonePropsForSpawn(et.DefaultProps),
		Behaviors:    convertBehaviors(et.Behaviors),
		Interactions: convertInteractions(et.Interactions),
		Render:       convertRenderList(et.Render),
	}
}

func clonePropsForSpawn(in map[string]ecs.Value) map[string]ecs.Value {
	out := make(map[string]ecs.Value, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

// ResolveSpawn implements transform.TypeResolver and doubles as the shared
// path for host-API spawns (§4.G child spawns, ams.spawn). props overrides
// the type's default properties entry by entry, leaving the rest at default.
func (s *Session) ResolveSpawn(typeName string, x, y, vx, vy float64, props map[string]ecs.Value) (entity.SpawnParams, bool) {
	et, ok := s.lookupType(typeName)
	if !ok {
		return entity.SpawnParams{}, false
	}
	p := baseSpawnParams(et)
	p.X, p.Y, p.VX, p.VY = x, y, vx, vy
	p.SpawnTime = s.simTime
	for k, v := range props {
		p.Properties[k] = v
	}
	return p, true
}

// ResolveMorph implements transform.TypeResolver.
func (s *Session) ResolveMorph(typeName string) (entity.MorphSpec, bool) {
	et, ok := s.lookupType(typeName)
	if !ok {
		return entity.MorphSpec{}, false
	}
	return entity.MorphSpec{
		Type: et.Name, Tags: append([]string(nil), et.Tags...),
		MaxHealth: et.MaxHealth, DefaultColor: et.DefaultColor, DefaultSprite: et.DefaultSprite,
		DefaultProps: clonePropsForSpawn(et.DefaultProps),
		Behaviors:    convertBehaviors(et.Behaviors),
		Interactions: convertInteractions(et.Interactions),
		Render:       convertRenderList(et.Render),
	}, true
}

// OnUpdateTransforms implements transform.TypeResolver.
func (s *Session) OnUpdateTransforms(typeName string) []gamedef.OnUpdateTransform {
	et, ok := s.lookupType(typeName)
	if !ok {
		return nil
	}
	return et.OnUpdate
}
