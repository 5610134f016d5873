// Package merge combines persisted artifacts into one legacy document.
//
// The merge is read-only over already-persisted files: artifacts are
// loaded, folded tail-into-head, and rendered; nothing is written back.
package merge

import (
	"context"
	"errors"
	"sort"

	"github.com/vk/stanzaconf/internal/artifact"
	"github.com/vk/stanzaconf/internal/conffile"
	"github.com/vk/stanzaconf/internal/ctxlog"
	"github.com/vk/stanzaconf/internal/render"
)

// ErrNoData reports an empty input list. It is informative, not fatal.
var ErrNoData = errors.New("no data")

// Merge loads every artifact file and folds them into one legacy document.
// Any single unreadable file fails the whole merge; there is no partial
// result.
//
// Fold semantics: directory sets union; suffix overrides concatenate
// (renderer keeps the first on collision); preprocessing maps and base flag
// lists accumulate so each artifact's specificity is preserved; secondary
// toolchain flags are environment-wide, so the first artifact that has any
// fixes them; the standard-library directory is the first artifact's,
// unconditionally.
func Merge(ctx context.Context, paths []string) (*render.Legacy, error) {
	if len(paths) == 0 {
		return nil, ErrNoData
	}
	logger := ctxlog.FromContext(ctx)

	artifacts := make([]*artifact.Artifact, 0, len(paths))
	for _, path := range paths {
		a, err := conffile.Read(path)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	logger.Debug("Merging artifacts.", "count", len(artifacts))

	doc := render.FromArtifact(artifacts[0])
	for _, a := range artifacts[1:] {
		fold(doc, a)
	}
	return doc, nil
}

// fold merges one more artifact into the accumulating document.
func fold(doc *render.Legacy, a *artifact.Artifact) {
	doc.ObjDirs = unionSorted(doc.ObjDirs, a.Shared.ObjDirs)
	doc.SrcDirs = unionSorted(doc.SrcDirs, a.Shared.SrcDirs)
	doc.Suffixes = append(doc.Suffixes, a.Shared.Suffixes...)
	if len(a.PP) > 0 {
		doc.PPMaps = append(doc.PPMaps, a.PP)
	}
	if len(a.Shared.Flags) > 0 {
		doc.FlagLists = append(doc.FlagLists, a.Shared.Flags)
	}
	if len(doc.SecondaryFlags) == 0 && len(a.Shared.SecondaryFlags) > 0 {
		doc.SecondaryFlags = append([]string(nil), a.Shared.SecondaryFlags...)
	}
}

// unionSorted merges two directory sets into one deduplicated sorted slice.
// Commutative and idempotent, so fold order cannot change the result.
func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
