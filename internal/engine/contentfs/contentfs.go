// Package contentfs implements the layered, sandbox-enforced virtual content
// filesystem (§4.B): every game-definition read, asset read, and script read
// resolves through here, walking layers high-to-low with first-hit-wins and
// rejecting any path that would escape a layer root.
package contentfs

import (
	"errors"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

// ErrNotFound is returned when vpath is well-formed but matches no layer,
// distinct from IllegalPath which signals an escape attempt.
var ErrNotFound = errors.New("contentfs: not found in any layer")

// Layer is one root directory in the content filesystem's search order.
type Layer struct {
	Name     string
	Root     string
	Priority int
}

// Default priorities for the three layer kinds named in §4.B. Overlay layers
// get priorities >= OverlayMinPriority, assigned by configuration order.
const (
	PriorityEngine        = 5
	OverlayMinPriority    = 10
	PriorityUser          = 1000
)

// FS is the layered content filesystem. Layers are finalized at session
// start and never change for the life of the session (§5 "layer set is
// finalized at session start").
type FS struct {
	log    *zap.Logger
	layers []Layer // sorted highest priority first
}

// New builds an FS from userRoot (highest priority), zero or more overlay
// roots, and the engine-builtin root (lowest). Overlays rank in the order
// given: the first gets the highest overlay priority and is searched first.
func New(log *zap.Logger, userRoot string, overlayRoots []string, engineRoot string) *FS {
	fs := &FS{log: log}
	fs.layers = append(fs.layers, Layer{Name: "user", Root: userRoot, Priority: PriorityUser})
	for i, root := range overlayRoots {
		fs.layers = append(fs.layers, Layer{Name: "overlay", Root: root, Priority: OverlayMinPriority + len(overlayRoots) - 1 - i})
	}
	fs.layers = append(fs.layers, Layer{Name: "engine", Root: engineRoot, Priority: PriorityEngine})
	return fs
}

// resolve validates vpath against a single layer root and returns the joined
// OS path. Paths containing ".." segments or an absolute prefix are rejected
// regardless of layer, enforced per layer rather than on the composed result
// (§4.B contract, §8.4).
func resolve(layer Layer, vpath string) (string, error) {
	clean := path.Clean("/" + vpath) // normalize, collapsing any ".." against a virtual root
	if strings.Contains(vpath, "..") {
		return "", apperr.IllegalPath(vpath, "path escapes layer root "+layer.Name)
	}
	if path.IsAbs(vpath) {
		return "", apperr.IllegalPath(vpath, "absolute paths are not permitted")
	}
	return path.Join(layer.Root, clean), nil
}

// Exists reports whether vpath resolves to a readable file or directory in
// any layer, searched high to low.
func (fs *FS) Exists(vpath string) bool {
	_, _, err := fs.find(vpath)
	return err == nil
}

// find walks layers high-to-low and returns the first hit's real path and
// owning layer name, or an error (IllegalPath or a plain not-found).
func (fs *FS) find(vpath string) (string, string, error) {
	var illegal error
	for _, layer := range fs.layers {
		real, err := resolve(layer, vpath)
		if err != nil {
			illegal = err
			continue
		}
		if _, statErr := os.Stat(real); statErr == nil {
			return real, layer.Name, nil
		}
	}
	if illegal != nil {
		return "", "", illegal
	}
	return "", "", ErrNotFound
}

// ReadBytes resolves vpath and returns its raw contents.
func (fs *FS) ReadBytes(vpath string) ([]byte, error) {
	real, layer, err := fs.find(vpath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return nil, apperr.IllegalPath(vpath, "read failed in layer "+layer)
	}
	return data, nil
}

// ReadText resolves vpath and returns its contents decoded as UTF-8.
func (fs *FS) ReadText(vpath string) (string, error) {
	data, err := fs.ReadBytes(vpath)
	if err != nil {
		return "", err
	}
	if !isValidUTF8(data) {
		return "", apperr.Load(apperr.LoadParseError, vpath, "not valid UTF-8", nil)
	}
	return string(data), nil
}

// List returns the names of entries directly under vpath, merged across
// layers (a name present in a higher layer shadows the same name lower down).
func (fs *FS) List(vpath string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	var anyOK bool
	for _, layer := range fs.layers {
		real, err := resolve(layer, vpath)
		if err != nil {
			continue
		}
		entries, err := os.ReadDir(real)
		if err != nil {
			continue
		}
		anyOK = true
		for _, e := range entries {
			if !seen[e.Name()] {
				seen[e.Name()] = true
				names = append(names, e.Name())
			}
		}
	}
	if !anyOK {
		return nil, ErrNotFound
	}
	return names, nil
}

// RealPath resolves vpath to an OS path without checking existence. It is
// only ever called by trusted host code (never exposed to scripts).
func (fs *FS) RealPath(vpath string) (string, error) {
	for _, layer := range fs.layers {
		real, err := resolve(layer, vpath)
		if err == nil {
			if _, statErr := os.Stat(real); statErr == nil {
				return real, nil
			}
		}
	}
	// Fall back to validating against the highest-priority layer so callers
	// creating a new file still get escape protection.
	if len(fs.layers) == 0 {
		return "", apperr.IllegalPath(vpath, "no layers configured")
	}
	return resolve(fs.layers[0], vpath)
}

func isValidUTF8(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}
