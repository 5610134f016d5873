// Package artifact defines the processed configuration artifact produced by
// elaboration: the shared configuration block, a per-source-file module
// index, and the per-module-name preprocessing map.
//
// An Artifact is a frozen value. It is fully built in one shot, persisted
// whole, and only ever read afterwards; there are no partial updates. Two
// units' artifacts share nothing, so concurrent reads need no locking.
package artifact

import (
	"path/filepath"
	"strings"

	"github.com/vk/stanzaconf/internal/directive"
)

// maxRenameChain bounds the provenance walk for generated files: how many
// derivation steps (trailing dotted segments) Lookup strips before giving
// up. The original behavior leaves this unspecified; a conservative finite
// bound beats guessing at further renaming semantics.
const maxRenameChain = 8

// Artifact is one build unit's processed configuration.
type Artifact struct {
	Shared directive.Shared `cbor:"shared"`
	// Modules maps normalized source-path keys (extension stripped,
	// case folded) to per-module records. Every key resolves to exactly
	// one module.
	Modules map[string]directive.Module `cbor:"modules"`
	// PP maps module names to their optional preprocessing directive.
	PP map[string]*directive.PP `cbor:"pp"`
}

// NormalizeKey turns a source path into its index key: the path with its
// final extension stripped, case folded.
func NormalizeKey(path string) string {
	ext := filepath.Ext(path)
	return strings.ToLower(path[:len(path)-len(ext)])
}

// Lookup resolves a source path to its module record. The query is
// normalized like the stored keys, so "Foo.ml", "foo.mli" and case variants
// all reach an entry stored under "foo".
//
// Generated intermediates that are not keys themselves fall back along
// their provenance chain: trailing dotted segments are stripped one at a
// time ("foo.pp" after "foo.pp.ml") until an ancestor key matches. The walk
// is bounded by maxRenameChain and stops on any step that makes no
// progress; exhaustion is "not found", never a loop.
func (a *Artifact) Lookup(path string) (directive.Module, bool) {
	key := NormalizeKey(path)
	for i := 0; i < maxRenameChain; i++ {
		if m, ok := a.Modules[key]; ok {
			return m, true
		}
		ext := filepath.Ext(key)
		if ext == "" {
			break
		}
		next := key[:len(key)-len(ext)]
		if next == key {
			break
		}
		key = next
	}
	return directive.Module{}, false
}

// LookupName finds a module record by module name, ignoring case.
func (a *Artifact) LookupName(name string) (directive.Module, bool) {
	for _, m := range a.Modules {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return directive.Module{}, false
}

// Directive returns the preprocessing directive for a module name, or nil.
func (a *Artifact) Directive(name string) *directive.PP {
	if pp, ok := a.PP[name]; ok {
		return pp
	}
	for k, pp := range a.PP {
		if strings.EqualFold(k, name) {
			return pp
		}
	}
	return nil
}
