// Package gamedef holds the immutable, fully-resolved game definition (§3.4)
// and the loader that produces it (§4.A).
package gamedef

import "github.com/arcadeyaml/engine/internal/ecs"

// Definition is the frozen, value-typed result of loading a game.yaml and its
// levels. Nothing in this struct is mutated after Load returns.
type Definition struct {
	Name, Description, Version, Author string
	ScreenWidth, ScreenHeight           int
	BackgroundColor                     string
	Palette                             map[string]string

	DefaultLives int
	QuiverSize   int

	EntityTypes map[string]*EntityType
	Behaviors   map[string]*Script
	Actions     map[string]*Script // interaction/collision/input actions, one namespace
	Generators  map[string]*Script

	GlobalInput *Script

	WinCondition  WinCondition
	LoseConditions []LoseCondition

	Layouts map[string]*Layout
	Levels  []*Level

	SpriteSheets   map[string]*SpriteSheet
	SpriteAliases  map[string]*SpriteAlias
	Sounds         map[string]string
	CLIArgSchema   map[string]CLIArg
}

// CLIArg describes one game-specific CLI flag merged into the config map
// (§6.5 "<game-specific flags>").
type CLIArg struct {
	Type        string // "string"|"number"|"bool"
	Default     ecs.Value
	Description string
}

// EntityType is a named template: geometry, defaults, behaviors, interactions,
// and render list, resolved through any `extends` chain at load time.
type EntityType struct {
	Name    string
	Extends string

	W, H          float64
	DefaultColor  string
	DefaultSprite string
	DefaultProps  map[string]ecs.Value
	Tags          []string
	MaxHealth     int

	Behaviors    []BehaviorRef
	Interactions []InteractionDef
	Render       []RenderCommandDef

	OnDestroy       *TransformDef
	OnParentDestroy *TransformDef
	OnUpdate        []OnUpdateTransform
}

// BehaviorRef names an attached behavior and its per-behavior config.
type BehaviorRef struct {
	Name   string
	Config map[string]ecs.Value
}

// InteractionDef is the declaration form of entity.Interaction, referencing
// action scripts by name rather than holding compiled closures.
type InteractionDef struct {
	Target  string
	Filter  FilterDef
	Trigger string // "enter"|"exit"|"continuous"
	Action  string
}

// FilterDef is the parsed form of `when:`.
type FilterDef struct {
	Distance *DistancePredicate
	Angle    *AnglePredicate
	Props    []PropPredicate
	Edges    []string
	Margin   float64
}

type DistancePredicate struct {
	Op    string // eq|lt|gt|lte|gte|between
	Value float64
	Lo, Hi float64
	Mode  string // "from"|"to"
}

type AnglePredicate struct {
	Between [2]float64
}

type PropPredicate struct {
	Path string // "a.<prop>" or "b.<prop>"
	Op   string
	Value ecs.Value
	Lo, Hi ecs.Value
	In   []ecs.Value
}

// RenderCommandDef mirrors entity.RenderCommand but allows $property and
// inline-script references unresolved until draw time.
type RenderCommandDef struct {
	Kind                   string
	OffsetX, OffsetY       string // may be a literal number or a "$property" / script ref
	Width, Height          string
	Color                  string
	Alpha                  string
	Fill                   bool
	LineWidth              float64
	SpriteName             string
	Text                   string
	FontSize               float64
	When                   *FilterDef
}

// TransformDef is the declarative side effect attached to a lifecycle event
// (§4.G): destroy or morph-type, each optionally spawning children.
type TransformDef struct {
	Kind        string // "destroy"|"morph"
	NewType     string // for morph
	InheritVelocity bool
	PreserveProperties bool
	Children    []ChildSpawnDef
}

// ChildSpawnDef is one entry of a transform's child-spawn list.
type ChildSpawnDef struct {
	Type            string
	Count           int
	OffsetX, OffsetY string // literal or inline-script expression, `i` bound
	InheritVelocity float64 // scale factor
	Lifetime        float64 // seconds, 0 = no auto-destroy
	Properties      map[string]string // value may be "$property" or inline script
}

// OnUpdateTransform is a type-level conditional transform evaluated every
// frame on every alive entity of the type (§4.G).
type OnUpdateTransform struct {
	AgeMin, AgeMax float64
	HasAgeMin, HasAgeMax bool
	Property  string
	Value     ecs.Value
	HasPropertyCheck bool
	Interval  float64
	HasInterval bool
	Transform TransformDef
}

// LoseCondition is a typed declarative lose trigger (§4.G).
type LoseCondition struct {
	EntityType string
	Event      string // "exited_screen"|"property_true"|"destroyed"
	Edge       string // for exited_screen
	Property   string // for property_true
	Action     string
	Then       TransformDef
}

// WinCondition is one of the three forms named in §3.4.
type WinCondition struct {
	Kind       string // "destroy_all"|"reach_score"|"expression"
	TargetType string
	TargetScore int
	Expression  *Script
}

// Script is a named subroutine compiled into the sandbox, whether authored
// inline (`{lua: "..."}`) or file-backed (§4.A step 5-6).
type Script struct {
	Name       string
	Source     string
	SourcePath string // "" for inline scripts
	EntryPoints map[string]bool // which of on_spawn/on_update/on_destroy/execute/generate/... are defined
}

// Layout is an ASCII-grid level layout with a glyph-to-type key.
type Layout struct {
	Name       string
	Rows       []string
	Key        map[rune]string
	CellWidth, CellHeight float64
}

// Level is one playable level, referencing a layout and level-specific overrides.
type Level struct {
	Name   string
	Layout string
}

// SpriteSheet and SpriteAlias describe the asset tables (§3.4 Assets).
type SpriteSheet struct {
	Name   string
	Path   string
	Region map[string][4]int // name -> x,y,w,h
}

type SpriteAlias struct {
	Name   string
	Sheet  string
	Region string
	FlipX, FlipY bool
}
