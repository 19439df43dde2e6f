package session

import (
	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// This file is the session's own entry point into the store for the one
// spawn a script never initiates: populating a level from its layout at
// level start (§3.4 layouts/levels).

// SpawnEntity places a default instance of typeName at (x, y) with zero
// velocity, the path every non-scripted spawn (level bootstrap, tests) goes
// through. It returns a LoadError if typeName is not declared, since an
// unknown type in a layout key is a load-time mistake, not a runtime one.
func (s *Session) SpawnEntity(typeName string, x, y float64) (ecs.EntityID, error) {
	p, ok := s.ResolveSpawn(typeName, x, y, 0, 0, nil)
	if !ok {
		return "", apperr.Load(apperr.LoadMissingReference, typeName, "unknown entity type referenced by layout", nil)
	}
	id := s.store.Spawn(p)
	if id == "" {
		return "", apperr.CapacityExceeded("live entity cap reached while spawning " + typeName)
	}
	return id, nil
}

// LoadLayout spawns one entity per non-blank glyph in the named layout's
// grid, at row/col * CellWidth/CellHeight, resolving the glyph through the
// layout's key (§3.4 "ASCII-grid level layout with a glyph-to-type key").
// A glyph with no key entry is skipped; it is ordinary layout padding, not
// an error.
func (s *Session) LoadLayout(name string) error {
	layout, ok := s.def.Layouts[name]
	if !ok {
		return apperr.Load(apperr.LoadMissingReference, name, "layout not found", nil)
	}
	for row, line := range layout.Rows {
		for col, glyph := range line {
			typeName, ok := layout.Key[glyph]
			if !ok || typeName == "" {
				continue
			}
			x := float64(col) * layout.CellWidth
			y := float64(row) * layout.CellHeight
			if _, err := s.SpawnEntity(typeName, x, y); err != nil {
				return err
			}
		}
	}
	return nil
}
