package gamedef

import (
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// ContentReader is the subset of contentfs.FS the loader needs, kept narrow
// so tests can fake it without a real filesystem.
type ContentReader interface {
	ReadText(vpath string) (string, error)
}

// Loader produces a frozen Definition from a game's root YAML document:
// it reads the document, then runs parse, schema validation, build, extends
// resolution, inline-script extraction and the reference-closure check, in
// that order. Scripts are compiled later, when session.New loads them.
type Loader struct {
	log             *zap.Logger
	fs              ContentReader
	schema          *jsonschema.Schema
	skipSchemaCheck bool
	scriptNameSeq   int
	pendingScripts  []pendingScript
}

// pendingScript is an inline {lua: "..."} node discovered while building
// entity types, queued for registration once the Definition it belongs to
// exists (step 5, §4.A).
type pendingScript struct {
	ns, name, source string
}

// NewLoader builds a Loader bound to fs and the published game schema
// document (schemaJSON, the raw JSON-schema text, §6.4). If skipSchema is
// true, step 3 (schema validation) is bypassed per the SKIP_SCHEMA_VALIDATION
// debug flag (§6.6) — callers must log that this was done, since it is
// documented as unsafe for production.
func NewLoader(log *zap.Logger, fs ContentReader, schemaJSON []byte, skipSchema bool) (*Loader, error) {
	l := &Loader{log: log, fs: fs, skipSchemaCheck: skipSchema}
	if !skipSchema && len(schemaJSON) > 0 {
		compiler := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
		if err != nil {
			return nil, apperr.Load(apperr.LoadSchemaError, "schema", "invalid schema document", err)
		}
		const resourceURI = "mem://game-schema.json"
		if err := compiler.AddResource(resourceURI, doc); err != nil {
			return nil, apperr.Load(apperr.LoadSchemaError, "schema", "failed to register schema", err)
		}
		schema, err := compiler.Compile(resourceURI)
		if err != nil {
			return nil, apperr.Load(apperr.LoadSchemaError, "schema", "failed to compile schema", err)
		}
		l.schema = schema
	}
	return l, nil
}

// Load runs the full pipeline against the game's root document at gamePath
// (conventionally "games/<slug>/game.yaml").
func (l *Loader) Load(_ context.Context, gamePath string) (*Definition, error) {
	text, err := l.fs.ReadText(gamePath)
	if err != nil {
		return nil, apperr.Load(apperr.LoadParseError, gamePath, "failed to read game definition", err)
	}

	doc, err := l.parse(gamePath, text)
	if err != nil {
		return nil, err
	}

	if err := l.validateSchema(gamePath, doc); err != nil {
		return nil, err
	}

	def, err := l.build(gamePath, doc)
	if err != nil {
		return nil, err
	}

	if err := l.resolveExtends(def); err != nil {
		return nil, err
	}

	l.extractInlineScripts(def)

	if err := l.checkReferenceClosure(def); err != nil {
		return nil, err
	}

	return def, nil
}

// ParseDoc exposes step 2's generic YAML parse for callers that only need a
// raw field (the registry's discovery-time metadata peek) without running
// the rest of the load pipeline.
func (l *Loader) ParseDoc(path, text string) (map[string]any, error) {
	return l.parse(path, text)
}

// parse is step 2: generic YAML parse, rejecting a document whose root is
// not a mapping.
func (l *Loader) parse(path, text string) (map[string]any, error) {
	var node map[string]any
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, apperr.Load(apperr.LoadParseError, path, "invalid YAML", err)
	}
	if node == nil {
		return nil, apperr.Load(apperr.LoadParseError, path, "empty document", nil)
	}
	return node, nil
}

// validateSchema is step 3.
func (l *Loader) validateSchema(path string, doc map[string]any) error {
	if l.skipSchemaCheck || l.schema == nil {
		l.log.Warn("schema validation skipped", zap.String("path", path))
		return nil
	}
	if err := l.schema.Validate(doc); err != nil {
		return apperr.Load(apperr.LoadSchemaError, path, "schema validation failed", err)
	}
	return nil
}

// build converts the generic document into a partially-resolved Definition
// (entity type extends chains and inline scripts not yet processed).
func (l *Loader) build(path string, doc map[string]any) (*Definition, error) {
	def := &Definition{
		EntityTypes:   make(map[string]*EntityType),
		Behaviors:     make(map[string]*Script),
		Actions:       make(map[string]*Script),
		Generators:    make(map[string]*Script),
		SpriteSheets:  make(map[string]*SpriteSheet),
		SpriteAliases: make(map[string]*SpriteAlias),
		Sounds:        make(map[string]string),
		CLIArgSchema:  make(map[string]CLIArg),
		Palette:       make(map[string]string),
	}

	def.Name, _ = doc["name"].(string)
	def.Description, _ = doc["description"].(string)
	def.Version, _ = doc["version"].(string)
	def.Author, _ = doc["author"].(string)
	def.ScreenWidth = intOf(doc["screen_width"])
	def.ScreenHeight = intOf(doc["screen_height"])
	def.BackgroundColor, _ = doc["background_color"].(string)

	if def.Name == "" || def.ScreenWidth == 0 || def.ScreenHeight == 0 {
		return nil, apperr.Load(apperr.LoadSchemaError, path,
			"missing required root field (name, screen_width, screen_height)", nil)
	}

	entityTypesRaw, _ := doc["entity_types"].(map[string]any)
	if len(entityTypesRaw) == 0 {
		return nil, apperr.Load(apperr.LoadSchemaError, path, "entity_types must be non-empty", nil)
	}
	for name, raw := range entityTypesRaw {
		et, err := l.buildEntityType(name, raw)
		if err != nil {
			return nil, apperr.Load(apperr.LoadSchemaError, path, err.Error(), nil)
		}
		def.EntityTypes[name] = et
	}

	if winRaw, ok := doc["win_condition"]; ok {
		wc, err := l.buildWinCondition(winRaw)
		if err != nil {
			return nil, apperr.Load(apperr.LoadSchemaError, path, err.Error(), nil)
		}
		def.WinCondition = wc
	}

	if loseRaw, ok := doc["lose_conditions"].([]any); ok {
		for _, raw := range loseRaw {
			lc, err := l.buildLoseCondition(raw)
			if err != nil {
				return nil, apperr.Load(apperr.LoadSchemaError, path, err.Error(), nil)
			}
			def.LoseConditions = append(def.LoseConditions, lc)
		}
	}

	if def.WinCondition.Kind == "" && len(def.LoseConditions) == 0 {
		return nil, apperr.Load(apperr.LoadSchemaError, path,
			"at least one of win_condition or lose_conditions is required", nil)
	}

	return def, nil
}

func (l *Loader) buildEntityType(name string, raw any) (*EntityType, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity_types.%s: expected mapping", name)
	}
	et := &EntityType{Name: name}
	et.Extends, _ = m["extends"].(string)
	et.W = floatOf(m["width"])
	et.H = floatOf(m["height"])
	et.DefaultColor, _ = m["color"].(string)
	et.DefaultSprite, _ = m["sprite"].(string)
	et.MaxHealth = intOf(m["health"])
	et.DefaultProps = toPropMap(m["properties"])

	if tags, ok := m["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				et.Tags = append(et.Tags, s)
			}
		}
	}

	if behaviors, ok := m["behaviors"].([]any); ok {
		for _, b := range behaviors {
			switch v := b.(type) {
			case string:
				et.Behaviors = append(et.Behaviors, BehaviorRef{Name: v})
			case map[string]any:
				if lua, ok := v["lua"].(string); ok {
					name := l.nextScriptName("behavior")
					l.pendingScripts = append(l.pendingScripts, pendingScript{ns: "behavior", name: name, source: lua})
					et.Behaviors = append(et.Behaviors, BehaviorRef{Name: name, Config: toPropMap(v["config"])})
					continue
				}
				for bn, cfg := range v {
					et.Behaviors = append(et.Behaviors, BehaviorRef{Name: bn, Config: toPropMap(cfg)})
				}
			}
		}
	}

	if interactions, ok := m["interactions"].([]any); ok {
		for _, raw := range interactions {
			im, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			in := InteractionDef{}
			in.Target, _ = im["target"].(string)
			in.Trigger, _ = im["trigger"].(string)
			in.Action = l.resolveActionRef(im["action"])
			if whenRaw, ok := im["when"].(map[string]any); ok {
				in.Filter = buildFilter(whenRaw)
			}
			et.Interactions = append(et.Interactions, in)
		}
	}

	if renders, ok := m["render"].([]any); ok {
		for _, raw := range renders {
			rm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			et.Render = append(et.Render, buildRenderCommand(rm))
		}
	}

	if onDestroyRaw, ok := m["on_destroy"].(map[string]any); ok {
		td := l.buildTransform(onDestroyRaw)
		et.OnDestroy = &td
	}
	if onParentDestroyRaw, ok := m["on_parent_destroy"].(map[string]any); ok {
		td := l.buildTransform(onParentDestroyRaw)
		et.OnParentDestroy = &td
	}
	if onUpdateRaw, ok := m["on_update"].([]any); ok {
		for _, raw := range onUpdateRaw {
			um, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			et.OnUpdate = append(et.OnUpdate, l.buildOnUpdate(um))
		}
	}

	return et, nil
}

// resolveActionRef accepts either a plain action name or an inline
// {lua: "..."} node, minting a synthetic name and queueing the script for
// registration in the latter case (step 5, §4.A).
func (l *Loader) resolveActionRef(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if lua, ok := v["lua"].(string); ok {
			name := l.nextScriptName("action")
			l.pendingScripts = append(l.pendingScripts, pendingScript{ns: "action", name: name, source: lua})
			return name
		}
	}
	return ""
}

func buildFilter(m map[string]any) FilterDef {
	f := FilterDef{}
	if d, ok := m["distance"].(map[string]any); ok {
		f.Distance = &DistancePredicate{
			Op:    str(d["op"]),
			Value: floatOf(d["value"]),
			Lo:    floatOf(d["lo"]),
			Hi:    floatOf(d["hi"]),
			Mode:  str(d["mode"]),
		}
	}
	if a, ok := m["angle"].(map[string]any); ok {
		if between, ok := a["between"].([]any); ok && len(between) == 2 {
			f.Angle = &AnglePredicate{Between: [2]float64{floatOf(between[0]), floatOf(between[1])}}
		}
	}
	if props, ok := m["props"].([]any); ok {
		for _, raw := range props {
			pm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			f.Props = append(f.Props, PropPredicate{
				Path:  str(pm["path"]),
				Op:    str(pm["op"]),
				Value: toValue(pm["value"]),
				Lo:    toValue(pm["lo"]),
				Hi:    toValue(pm["hi"]),
			})
		}
	}
	if edges, ok := m["edges"].([]any); ok {
		for _, e := range edges {
			if s, ok := e.(string); ok {
				f.Edges = append(f.Edges, s)
			}
		}
	}
	f.Margin = floatOf(m["margin"])
	return f
}

func buildRenderCommand(m map[string]any) RenderCommandDef {
	return RenderCommandDef{
		Kind:       str(m["kind"]),
		OffsetX:    str(m["offset_x"]),
		OffsetY:    str(m["offset_y"]),
		Width:      str(m["width"]),
		Height:     str(m["height"]),
		Color:      str(m["color"]),
		Alpha:      str(m["alpha"]),
		Fill:       boolOf(m["fill"]),
		LineWidth:  floatOf(m["line_width"]),
		SpriteName: str(m["sprite"]),
		Text:       str(m["text"]),
		FontSize:   floatOf(m["font_size"]),
	}
}

// buildTransform parses a TransformDef, extracting any inline offset/property
// scripts embedded in its child-spawn list as synthetic generator scripts.
func (l *Loader) buildTransform(m map[string]any) TransformDef {
	td := TransformDef{
		Kind:               str(m["kind"]),
		NewType:            str(m["new_type"]),
		InheritVelocity:    boolOf(m["inherit_velocity"]),
		PreserveProperties: boolOf(m["preserve_properties"]),
	}
	if children, ok := m["children"].([]any); ok {
		for _, raw := range children {
			cm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			td.Children = append(td.Children, l.buildChildSpawn(cm))
		}
	}
	return td
}

func (l *Loader) buildChildSpawn(m map[string]any) ChildSpawnDef {
	c := ChildSpawnDef{
		Type:            str(m["type"]),
		Count:           intOf(m["count"]),
		OffsetX:         l.resolveExprRef(m["offset_x"]),
		OffsetY:         l.resolveExprRef(m["offset_y"]),
		InheritVelocity: floatOf(m["inherit_velocity"]),
		Lifetime:        floatOf(m["lifetime"]),
	}
	if props, ok := m["properties"].(map[string]any); ok {
		c.Properties = make(map[string]string, len(props))
		for k, v := range props {
			c.Properties[k] = l.resolveExprRef(v)
		}
	}
	return c
}

func (l *Loader) buildOnUpdate(m map[string]any) OnUpdateTransform {
	ou := OnUpdateTransform{}
	if v, ok := m["age_min"]; ok {
		ou.AgeMin, ou.HasAgeMin = floatOf(v), true
	}
	if v, ok := m["age_max"]; ok {
		ou.AgeMax, ou.HasAgeMax = floatOf(v), true
	}
	if v, ok := m["property"]; ok {
		ou.Property, ou.HasPropertyCheck = str(v), true
		ou.Value = toValue(m["value"])
	}
	if v, ok := m["interval"]; ok {
		ou.Interval, ou.HasInterval = floatOf(v), true
	}
	if tm, ok := m["then"].(map[string]any); ok {
		ou.Transform = l.buildTransform(tm)
	}
	return ou
}

// resolveExprRef accepts a literal string/number or an inline {lua: "..."}
// generator expression, returning either the literal (stringified) or a
// "$script:<name>" reference the transform engine resolves at spawn time.
func (l *Loader) resolveExprRef(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64, int:
		return fmt.Sprintf("%v", v)
	case map[string]any:
		if lua, ok := v["lua"].(string); ok {
			name := l.nextScriptName("generator")
			l.pendingScripts = append(l.pendingScripts, pendingScript{ns: "generator", name: name, source: lua})
			return "$script:" + name
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func (l *Loader) buildWinCondition(raw any) (WinCondition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return WinCondition{}, fmt.Errorf("win_condition: expected mapping")
	}
	kind, _ := m["kind"].(string)
	wc := WinCondition{Kind: kind}
	wc.TargetType, _ = m["target_type"].(string)
	wc.TargetScore = intOf(m["target_score"])
	return wc, nil
}

func (l *Loader) buildLoseCondition(raw any) (LoseCondition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return LoseCondition{}, fmt.Errorf("lose_conditions[]: expected mapping")
	}
	lc := LoseCondition{}
	lc.EntityType, _ = m["entity_type"].(string)
	lc.Event, _ = m["event"].(string)
	lc.Edge, _ = m["edge"].(string)
	lc.Property, _ = m["property"].(string)
	lc.Action, _ = m["action"].(string)
	return lc, nil
}

// resolveExtends is step 4: merges each entity type's `extends` chain,
// detecting cycles. Child fields override; lists replace, per §4.A step 4.
func (l *Loader) resolveExtends(def *Definition) error {
	resolved := make(map[string]bool)
	resolving := make(map[string]bool)

	var resolve func(name string) error
	resolve = func(name string) error {
		if resolved[name] {
			return nil
		}
		if resolving[name] {
			return apperr.Load(apperr.LoadExtendCycle, name, "extends cycle detected", nil)
		}
		et, ok := def.EntityTypes[name]
		if !ok {
			return apperr.Load(apperr.LoadMissingReference, name, "extends references unknown type", nil)
		}
		if et.Extends == "" {
			resolved[name] = true
			return nil
		}
		resolving[name] = true
		if err := resolve(et.Extends); err != nil {
			return err
		}
		resolving[name] = false

		base := def.EntityTypes[et.Extends]
		mergeEntityType(et, base)
		resolved[name] = true
		return nil
	}

	for name := range def.EntityTypes {
		if err := resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// mergeEntityType overlays base's fields onto child wherever child left the
// field at its zero value; lists are replaced wholesale when child set any.
func mergeEntityType(child, base *EntityType) {
	if child.W == 0 {
		child.W = base.W
	}
	if child.H == 0 {
		child.H = base.H
	}
	if child.DefaultColor == "" {
		child.DefaultColor = base.DefaultColor
	}
	if child.DefaultSprite == "" {
		child.DefaultSprite = base.DefaultSprite
	}
	if child.MaxHealth == 0 {
		child.MaxHealth = base.MaxHealth
	}
	if len(child.DefaultProps) == 0 {
		child.DefaultProps = base.DefaultProps
	}
	if len(child.Tags) == 0 {
		child.Tags = base.Tags
	}
	if len(child.Behaviors) == 0 {
		child.Behaviors = base.Behaviors
	}
	if len(child.Interactions) == 0 {
		child.Interactions = base.Interactions
	}
	if len(child.Render) == 0 {
		child.Render = base.Render
	}
	if child.OnDestroy == nil {
		child.OnDestroy = base.OnDestroy
	}
	if child.OnParentDestroy == nil {
		child.OnParentDestroy = base.OnParentDestroy
	}
	if len(child.OnUpdate) == 0 {
		child.OnUpdate = base.OnUpdate
	}
}

// extractInlineScripts is step 5: every {lua: "..."} node encountered while
// building entity types (behaviors, interaction actions, child-spawn
// expressions) was queued in l.pendingScripts with a synthetic name already
// minted; this registers each one against def so the remainder of the
// pipeline only ever deals with name references.
func (l *Loader) extractInlineScripts(def *Definition) {
	for _, p := range l.pendingScripts {
		l.RegisterScript(def, p.ns, p.name, p.source, "")
	}
	l.pendingScripts = nil
}

// RegisterScript records a compiled-or-pending script under name in ns
// ("behavior"|"action"|"generator"), used both for file-backed scripts
// loaded before Load and for inline scripts extracted during Load.
func (l *Loader) RegisterScript(def *Definition, ns, name, source, path string) {
	s := &Script{Name: name, Source: source, SourcePath: path, EntryPoints: make(map[string]bool)}
	switch ns {
	case "behavior":
		def.Behaviors[name] = s
	case "action":
		def.Actions[name] = s
	case "generator":
		def.Generators[name] = s
	}
}

func (l *Loader) nextScriptName(kind string) string {
	l.scriptNameSeq++
	return fmt.Sprintf("__inline_%s_%d", kind, l.scriptNameSeq)
}

// checkReferenceClosure is step 7: every behavior and interaction action an
// entity type names, every generator its transforms reference, every
// lose-condition entity type and a destroy_all target type must resolve.
// Sprite and sound names, interaction targets, child-spawn types and morph
// target types are not checked here.
func (l *Loader) checkReferenceClosure(def *Definition) error {
	for name, et := range def.EntityTypes {
		for _, b := range et.Behaviors {
			if _, ok := def.Behaviors[b.Name]; !ok {
				return apperr.Load(apperr.LoadMissingReference, name,
					"entity type references unknown behavior "+b.Name, nil)
			}
		}
		for _, in := range et.Interactions {
			if _, ok := def.Actions[in.Action]; !ok {
				return apperr.Load(apperr.LoadMissingReference, name,
					"interaction references unknown action "+in.Action, nil)
			}
		}
	}
	for name, et := range def.EntityTypes {
		checkTransformClosure := func(td *TransformDef) error {
			if td == nil {
				return nil
			}
			return closureCheckTransform(def, name, td)
		}
		if err := checkTransformClosure(et.OnDestroy); err != nil {
			return err
		}
		if err := checkTransformClosure(et.OnParentDestroy); err != nil {
			return err
		}
		for _, ou := range et.OnUpdate {
			if err := closureCheckTransform(def, name, &ou.Transform); err != nil {
				return err
			}
		}
	}
	for _, lc := range def.LoseConditions {
		if _, ok := def.EntityTypes[lc.EntityType]; !ok {
			return apperr.Load(apperr.LoadMissingReference, "lose_conditions",
				"references unknown entity type "+lc.EntityType, nil)
		}
	}
	if def.WinCondition.Kind == "destroy_all" {
		if _, ok := def.EntityTypes[def.WinCondition.TargetType]; !ok {
			return apperr.Load(apperr.LoadMissingReference, "win_condition",
				"references unknown entity type "+def.WinCondition.TargetType, nil)
		}
	}
	return nil
}

// closureCheckTransform verifies every "$script:<name>" generator reference
// embedded in a transform's child-spawn expressions resolves to a registered
// generator (part of step 7, §4.A).
func closureCheckTransform(def *Definition, entityTypeName string, td *TransformDef) error {
	checkRef := func(expr string) error {
		const prefix = "$script:"
		if !strings.HasPrefix(expr, prefix) {
			return nil
		}
		name := strings.TrimPrefix(expr, prefix)
		if _, ok := def.Generators[name]; !ok {
			return apperr.Load(apperr.LoadMissingReference, entityTypeName,
				"transform references unknown generator "+name, nil)
		}
		return nil
	}
	for _, child := range td.Children {
		if err := checkRef(child.OffsetX); err != nil {
			return err
		}
		if err := checkRef(child.OffsetY); err != nil {
			return err
		}
		for _, v := range child.Properties {
			if err := checkRef(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toPropMap(v any) map[string]ecs.Value {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]ecs.Value, len(m))
	for k, raw := range m {
		out[k] = toValue(raw)
	}
	return out
}

func toValue(raw any) ecs.Value {
	switch v := raw.(type) {
	case nil:
		return ecs.Nil()
	case string:
		return ecs.String(v)
	case bool:
		return ecs.Bool(v)
	case int:
		return ecs.Number(float64(v))
	case float64:
		return ecs.Number(v)
	case []any:
		seq := make([]ecs.Value, len(v))
		for i, e := range v {
			seq[i] = toValue(e)
		}
		return ecs.Seq(seq)
	case map[string]any:
		m := make(map[string]ecs.Value, len(v))
		for k, e := range v {
			m[k] = toValue(e)
		}
		return ecs.Map(m)
	default:
		return ecs.Nil()
	}
}
