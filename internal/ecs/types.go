// Package ecs provides the primitive value types shared by the entity store,
// interaction engine, transform engine, and renderer: entity identity, 2-D
// geometry, color, and the tagged-union value used for custom properties.
package ecs

import "fmt"

// EntityID is an opaque, session-unique string identifier. It is minted once
// per spawn and never reused, even after the entity is destroyed (§8.2).
type EntityID string

// Invalid reports whether id is the zero value, used as a "no such entity"
// sentinel at API boundaries (e.g. a parent that was never set).
func (id EntityID) Invalid() bool { return id == "" }

// Vector2 is a 2-D float64 point or displacement in game pixels.
type Vector2 struct {
	X, Y float64
}

// AABB is an axis-aligned bounding box in game pixels, top-left origin.
type AABB struct {
	Min, Max Vector2
}

// Overlaps reports whether two AABBs touch or intersect (closed interval,
// per the boundary-behavior invariant that distance:0 fires on exact touch).
func (a AABB) Overlaps(b AABB) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y
}

// Width and Height report the box's extents.
func (a AABB) Width() float64  { return a.Max.X - a.Min.X }
func (a AABB) Height() float64 { return a.Max.Y - a.Min.Y }

// Center returns the box's midpoint.
func (a AABB) Center() Vector2 {
	return Vector2{X: (a.Min.X + a.Max.X) / 2, Y: (a.Min.Y + a.Max.Y) / 2}
}

// Color is an 8-bit-per-channel RGBA color.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueNil ValueKind = iota
	ValueNumber
	ValueString
	ValueBool
	ValueSeq
	ValueMap
)

// Value is the tagged-union sum type backing every custom property and every
// value that crosses the script sandbox boundary (Design Notes §9: "tagged
// union / sum type" replacing dynamic mapping values from the source).
type Value struct {
	Kind   ValueKind
	Number float64
	Str    string
	Bool   bool
	Seq    []Value
	Map    map[string]Value
}

func Nil() Value                { return Value{Kind: ValueNil} }
func Number(n float64) Value    { return Value{Kind: ValueNumber, Number: n} }
func String(s string) Value     { return Value{Kind: ValueString, Str: s} }
func Bool(b bool) Value         { return Value{Kind: ValueBool, Bool: b} }
func Seq(v []Value) Value       { return Value{Kind: ValueSeq, Seq: v} }
func Map(v map[string]Value) Value { return Value{Kind: ValueMap, Map: v} }

// IsTruthy applies the engine's truthiness rule: nil and false are falsy,
// zero and the empty string are truthy (the same rule Lua itself uses).
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case ValueNil:
		return false
	case ValueBool:
		return v.Bool
	default:
		return true
	}
}

// AsNumber coerces v to a float64, returning 0 for non-numeric kinds.
func (v Value) AsNumber() float64 {
	if v.Kind == ValueNumber {
		return v.Number
	}
	return 0
}

// AsString coerces v to a string, returning "" for non-string kinds.
func (v Value) AsString() string {
	if v.Kind == ValueString {
		return v.Str
	}
	return ""
}

// Equal reports structural equality between two Values, used by property
// predicates and on_update equality checks. Seq/Map equality is by recursive
// element comparison; mismatched kinds are never equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueNumber:
		return v.Number == other.Number
	case ValueString:
		return v.Str == other.Str
	case ValueBool:
		return v.Bool == other.Bool
	case ValueNil:
		return true
	case ValueSeq:
		if len(v.Seq) != len(other.Seq) {
			return false
		}
		for i := range v.Seq {
			if !v.Seq[i].Equal(other.Seq[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, e := range v.Map {
			oe, ok := other.Map[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone deep-copies a Value so no two entities (or a snapshot and the live
// entity it was taken from) ever alias the same backing slice or map.
func (v Value) Clone() Value {
	switch v.Kind {
	case ValueSeq:
		out := make([]Value, len(v.Seq))
		for i, e := range v.Seq {
			out[i] = e.Clone()
		}
		return Value{Kind: ValueSeq, Seq: out}
	case ValueMap:
		out := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Clone()
		}
		return Value{Kind: ValueMap, Map: out}
	default:
		return v
	}
}
