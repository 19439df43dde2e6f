// Package registry discovers and instantiates games (§4.C). YAML-only games
// are discovered from every content filesystem layer; native-code games can
// only ever be registered from trusted Go code compiled into the binary
// itself, which is what "only from the core root" collapses to once native
// code has no loader path through the content filesystem at all.
package registry

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/engine/contentfs"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// gamesRoot is the virtual directory every layer may contribute a game
// subdirectory under.
const gamesRoot = "games"

// NativeGame is a compiled-in game implementation (§4.C "native-code
// games"). Nothing in this engine ships one yet; the interface exists so a
// host binary can register one without the registry depending on any
// concrete game package.
type NativeGame interface {
	Slug() string
	Metadata() Metadata
}

// Metadata is what the registry surfaces about a discovered game without
// fully loading it, enough for `--list-games` and CLI flag merging (§6.5).
type Metadata struct {
	Slug         string
	Name         string
	Description  string
	Version      string
	Author       string
	Native       bool
	CLIArgSchema map[string]gamedef.CLIArg
}

// entry is a cached, discovered game: either a YAML declaration path or a
// registered native implementation, never both.
type entry struct {
	meta   Metadata
	yaml   string // virtual path to game.yaml, "" for native games
	native NativeGame
}

// Registry discovers games from a content filesystem and caches them by slug.
type Registry struct {
	log    *zap.Logger
	fs     *contentfs.FS
	loader *gamedef.Loader

	natives map[string]NativeGame
	cache   map[string]*entry
}

// New builds a Registry bound to fs (for YAML discovery) and loader (for
// full game.yaml loading on Load).
func New(log *zap.Logger, fs *contentfs.FS, loader *gamedef.Loader) *Registry {
	return &Registry{
		log: log, fs: fs, loader: loader,
		natives: make(map[string]NativeGame),
		cache:   make(map[string]*entry),
	}
}

// RegisterNative registers a compiled-in game. Called only from trusted Go
// startup code (cmd/arcadeyaml's own init or main), never reachable from any
// content-filesystem layer, which is what keeps native registration
// core-root-only (§4.C).
func (r *Registry) RegisterNative(g NativeGame) {
	r.natives[g.Slug()] = g
}

func skipDir(name string) bool {
	if name == "base" || name == "common" {
		return true
	}
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// Discover scans every content filesystem layer under games/ for YAML-only
// games, plus every registered native game, and populates the slug cache.
// It never fails outright on one bad candidate; a directory missing both a
// native entry point and a game.yaml is silently skipped (§4.C).
func (r *Registry) Discover() error {
	r.cache = make(map[string]*entry)

	for slug, g := range r.natives {
		r.cache[slug] = &entry{meta: g.Metadata(), native: g}
	}

	names, err := r.fs.List(gamesRoot)
	if err != nil {
		if err == contentfs.ErrNotFound {
			return nil // no games/ directory at all is not an error, just nothing to discover
		}
		return err
	}

	for _, name := range names {
		if skipDir(name) {
			continue
		}
		if _, isNative := r.natives[name]; isNative {
			continue // native registration always wins over a same-named YAML dir
		}
		yamlPath := gamesRoot + "/" + name + "/game.yaml"
		if !r.fs.Exists(yamlPath) {
			continue
		}
		meta, err := r.peekMetadata(name, yamlPath)
		if err != nil {
			r.log.Warn("registry: skipping game with unreadable declaration",
				zap.String("slug", name), zap.Error(err))
			continue
		}
		r.cache[name] = &entry{meta: meta, yaml: yamlPath}
	}
	return nil
}

// peekMetadata reads just enough of game.yaml to populate Metadata without
// running the full load pipeline (schema validation, extends resolution,
// inline script extraction) for every candidate at discovery time.
func (r *Registry) peekMetadata(slug, yamlPath string) (Metadata, error) {
	text, err := r.fs.ReadText(yamlPath)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := r.loader.ParseDoc(yamlPath, text)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Slug:        slug,
		Name:        strOrDefault(raw["name"], slug),
		Description: strOrDefault(raw["description"], ""),
		Version:     strOrDefault(raw["version"], ""),
		Author:      strOrDefault(raw["author"], ""),
	}, nil
}

func strOrDefault(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// List returns every discovered game's metadata, sorted by slug for
// deterministic `--list-games` output.
func (r *Registry) List() []Metadata {
	out := make([]Metadata, 0, len(r.cache))
	for _, e := range r.cache {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Lookup returns slug's cached metadata, if discovered.
func (r *Registry) Lookup(slug string) (Metadata, bool) {
	e, ok := r.cache[slug]
	if !ok {
		return Metadata{}, false
	}
	return e.meta, true
}

// Load fully loads slug's game definition through the gamedef pipeline. It
// fails for native games, which have no Definition (a native game drives the
// session through its own Go code, not a loaded declaration).
func (r *Registry) Load(ctx context.Context, slug string) (*gamedef.Definition, error) {
	e, ok := r.cache[slug]
	if !ok {
		return nil, apperr.Load(apperr.LoadMissingReference, slug, "game not found in registry", nil)
	}
	if e.yaml == "" {
		return nil, apperr.Load(apperr.LoadMissingReference, slug, "native games have no YAML definition", nil)
	}
	return r.loader.Load(ctx, e.yaml)
}

// Native returns slug's registered native implementation, if any.
func (r *Registry) Native(slug string) (NativeGame, bool) {
	e, ok := r.cache[slug]
	if !ok || e.native == nil {
		return nil, false
	}
	return e.native, true
}
