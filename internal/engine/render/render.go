// Package render turns each alive, visible entity's declared render command
// list into the ordered draw-list contract of §6.1/§4.J: resolving
// `$property` and inline-script expressions at draw time, substituting
// `{token}` placeholders in sprite-name templates, and honoring a `stop`
// command that halts the rest of that entity's own command list.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
)

// Generator evaluates an inline-script expression referenced by a render
// command, the same contract transform.Generator uses for child-spawn
// expressions.
type Generator interface {
	Eval(scriptName string, index int, parentProps map[string]ecs.Value) (ecs.Value, error)
}

// Command is one entry of a frame's draw list (§6.1).
type Command struct {
	Kind       string
	X, Y       float64
	Width      float64
	Height     float64
	Color      string
	Alpha      int
	Fill       bool
	LineWidth  float64
	SpriteName string
	Text       string
	FontSize   float64
	EntityID   string
	LayerIndex int
}

// Emitter produces a frame's draw list from the entity store.
type Emitter struct {
	log           *zap.Logger
	store         *entity.Store
	palette       map[string]string
	gen           Generator
	warnedMissing map[string]bool
}

// New builds an Emitter. palette maps a game's named colors (§3.4 "palette")
// to their literal form; a render command's Color field is looked up there
// before being treated as a literal.
func New(log *zap.Logger, store *entity.Store, palette map[string]string, gen Generator) *Emitter {
	return &Emitter{log: log, store: store, palette: palette, gen: gen, warnedMissing: make(map[string]bool)}
}

// Emit builds the frame's draw list in entity spawn order, then render
// command declaration order within each entity, assigning a monotonically
// increasing LayerIndex so the consumer can sort or just trust emission order.
func (r *Emitter) Emit() []Command {
	var out []Command
	layer := 0
	for _, id := range r.store.AllAlive() {
		ent := r.store.Get(id)
		if ent == nil || !ent.Visible {
			continue
		}
		for _, rc := range ent.Render {
			if rc.Kind == "stop" {
				break
			}
			if rc.When != nil && !r.matchesWhen(ent, rc.When) {
				continue
			}
			out = append(out, r.resolve(ent, rc, layer))
			layer++
		}
	}
	return out
}

func (r *Emitter) resolve(ent *entity.Entity, rc entity.RenderCommand, layer int) Command {
	ox := r.resolveNumber(rc.OffsetX, ent)
	oy := r.resolveNumber(rc.OffsetY, ent)
	cmd := Command{
		Kind:       rc.Kind,
		X:          ent.X + ox,
		Y:          ent.Y + oy,
		Width:      r.resolveNumber(rc.Width, ent),
		Height:     r.resolveNumber(rc.Height, ent),
		Color:      r.resolveColor(rc.Color, ent),
		Alpha:      r.resolveAlpha(rc.Alpha, ent),
		Fill:       rc.Fill,
		LineWidth:  rc.LineWidth,
		SpriteName: r.resolveSpriteName(rc.SpriteName, ent),
		Text:       r.resolveText(rc.Text, ent),
		FontSize:   rc.FontSize,
		EntityID:   string(ent.ID),
		LayerIndex: layer,
	}
	return cmd
}

func (r *Emitter) resolveAlpha(expr string, ent *entity.Entity) int {
	if expr == "" {
		return 255
	}
	return int(r.resolveNumber(expr, ent))
}

// resolveExpr evaluates a literal, `$property`, or `$script:name` reference
// against ent, the draw-time counterpart of transform.Engine.resolveValue.
func (r *Emitter) resolveExpr(expr string, ent *entity.Entity) ecs.Value {
	switch {
	case expr == "":
		return ecs.Nil()
	case strings.HasPrefix(expr, "$script:"):
		name := strings.TrimPrefix(expr, "$script:")
		if r.gen == nil {
			return ecs.Nil()
		}
		v, err := r.gen.Eval(name, 0, ent.Properties)
		if err != nil {
			r.log.Warn("render: generator script failed", zap.String("script", name), zap.Error(err))
			return ecs.Nil()
		}
		return v
	case strings.HasPrefix(expr, "$"):
		key := strings.TrimPrefix(expr, "$")
		v, ok := ent.Properties[key]
		if !ok {
			r.warnMissingOnce(ent.Type, key)
			return ecs.Nil()
		}
		return v
	default:
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			return ecs.Number(f)
		}
		return ecs.String(expr)
	}
}

func (r *Emitter) resolveNumber(expr string, ent *entity.Entity) float64 {
	return r.resolveExpr(expr, ent).AsNumber()
}

func (r *Emitter) resolveText(expr string, ent *entity.Entity) string {
	if expr == "" {
		return ""
	}
	v := r.resolveExpr(expr, ent)
	if v.Kind == ecs.ValueString {
		return v.Str
	}
	if v.Kind == ecs.ValueNumber {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return expr
}

func (r *Emitter) resolveColor(expr string, ent *entity.Entity) string {
	if expr == "" {
		return ent.Color
	}
	if strings.HasPrefix(expr, "$") || strings.HasPrefix(expr, "$script:") {
		v := r.resolveExpr(expr, ent)
		return v.AsString()
	}
	if literal, ok := r.palette[expr]; ok {
		return literal
	}
	return expr
}

// resolveSpriteName substitutes `{token}` placeholders in a sprite template
// (e.g. `duck_{color}_{frame}`) from the entity's color and properties (§4.J
// "template sprite resolution").
func (r *Emitter) resolveSpriteName(template string, ent *entity.Entity) string {
	if template == "" || !strings.Contains(template, "{") {
		return template
	}
	out := template
	out = strings.ReplaceAll(out, "{color}", ent.Color)
	out = strings.ReplaceAll(out, "{sprite}", ent.Sprite)
	for key, v := range ent.Properties {
		token := "{" + key + "}"
		if !strings.Contains(out, token) {
			continue
		}
		var s string
		switch v.Kind {
		case ecs.ValueString:
			s = v.Str
		case ecs.ValueNumber:
			s = strconv.FormatFloat(v.Number, 'f', -1, 64)
		case ecs.ValueBool:
			s = strconv.FormatBool(v.Bool)
		default:
			s = fmt.Sprintf("%v", v)
		}
		out = strings.ReplaceAll(out, token, s)
	}
	return out
}

func (r *Emitter) warnMissingOnce(entityType, prop string) {
	key := entityType + "." + prop
	if r.warnedMissing[key] {
		return
	}
	r.warnedMissing[key] = true
	r.log.Warn("render: missing property, using default", zap.String("entity_type", entityType), zap.String("property", prop))
}

// matchesWhen evaluates a render command's conditional filter against the
// owning entity's own properties only (a render `when:` has no "other side"
// the way an interaction filter does).
func (r *Emitter) matchesWhen(ent *entity.Entity, f *entity.Filter) bool {
	for _, p := range f.Predicates {
		if p.Kind != entity.PredicateProp {
			continue // distance/angle/edges have no meaning for a single-entity render guard
		}
		key := strings.TrimPrefix(strings.TrimPrefix(p.Mode, "a."), "b.")
		v := ent.Properties[key]
		if !matchesOp(v, p) {
			return false
		}
	}
	return true
}

func matchesOp(v ecs.Value, p entity.Predicate) bool {
	switch p.Op {
	case entity.OpEq:
		return v.Equal(p.Value)
	case entity.OpLt:
		return v.AsNumber() < p.Value.AsNumber()
	case entity.OpGt:
		return v.AsNumber() > p.Value.AsNumber()
	case entity.OpLte:
		return v.AsNumber() <= p.Value.AsNumber()
	case entity.OpGte:
		return v.AsNumber() >= p.Value.AsNumber()
	case entity.OpBetween:
		return v.AsNumber() >= p.Lo.AsNumber() && v.AsNumber() <= p.Hi.AsNumber()
	case entity.OpIn:
		for _, c := range p.In {
			if v.Equal(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
