// Package render turns processed artifacts into the two text shapes the
// code-intelligence tool consumes: a structured directive list for a single
// module, and the legacy line-oriented document used by older integrations.
//
// Directive vocabulary: STDLIB, EXCLUDE_QUERY_DIR, B, S, FLG, SUFFIX.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vk/stanzaconf/internal/artifact"
	"github.com/vk/stanzaconf/internal/directive"
)

// Structured renders the directive list for one module of an artifact, in
// the fixed order the consuming tool expects: STDLIB, EXCLUDE_QUERY_DIR,
// B, S, FLG blocks (opens, preprocessing, secondary, base), SUFFIX.
func Structured(a *artifact.Artifact, module string, q Quoter) ([]string, error) {
	m, ok := a.LookupName(module)
	if !ok {
		return nil, fmt.Errorf("no configuration for module %q", module)
	}

	var lines []string
	if a.Shared.Stdlib != "" {
		lines = append(lines, "STDLIB "+a.Shared.Stdlib)
	}
	lines = append(lines, "EXCLUDE_QUERY_DIR")
	for _, dir := range a.Shared.ObjDirs {
		lines = append(lines, "B "+dir)
	}
	for _, dir := range a.Shared.SrcDirs {
		lines = append(lines, "S "+dir)
	}

	if len(m.Opens) > 0 {
		toks := make([]string, 0, 2*len(m.Opens))
		for _, open := range m.Opens {
			toks = append(toks, "-open", open)
		}
		lines = append(lines, "FLG "+strings.Join(toks, " "))
	}
	if pp := a.Directive(m.Name); pp != nil {
		// The command was shell-joined during elaboration; it is spliced
		// after the kind flag as-is.
		lines = append(lines, "FLG "+pp.Kind.Flag()+" "+pp.Command)
	}
	if len(a.Shared.SecondaryFlags) > 0 {
		lines = append(lines, "FLG "+ShellJoin(q, a.Shared.SecondaryFlags))
	}
	if len(a.Shared.Flags) > 0 {
		lines = append(lines, "FLG "+ShellJoin(q, a.Shared.Flags))
	}

	for _, pair := range a.Shared.Suffixes {
		if impl, intf, ok := pair.Resolve(); ok {
			lines = append(lines, "SUFFIX "+impl+" "+intf)
		}
	}
	return lines, nil
}

// Legacy is the merge-oriented document model: one artifact's data, or the
// fold of many. Set-valued fields stay deduplicated and sorted; list-valued
// fields accumulate so each source artifact's specificity is preserved.
type Legacy struct {
	Stdlib         string
	ObjDirs        []string
	SrcDirs        []string
	Suffixes       []directive.SuffixPair
	PPMaps         []map[string]*directive.PP
	FlagLists      [][]string
	SecondaryFlags []string
}

// FromArtifact lifts a single artifact into the legacy document model.
func FromArtifact(a *artifact.Artifact) *Legacy {
	l := &Legacy{
		Stdlib:         a.Shared.Stdlib,
		ObjDirs:        append([]string(nil), a.Shared.ObjDirs...),
		SrcDirs:        append([]string(nil), a.Shared.SrcDirs...),
		Suffixes:       append([]directive.SuffixPair(nil), a.Shared.Suffixes...),
		SecondaryFlags: append([]string(nil), a.Shared.SecondaryFlags...),
	}
	if len(a.PP) > 0 {
		l.PPMaps = append(l.PPMaps, a.PP)
	}
	if len(a.Shared.Flags) > 0 {
		l.FlagLists = append(l.FlagLists, a.Shared.Flags)
	}
	return l
}

// Render writes the legacy document. Directory and suffix directives stay
// active; every flag is emitted as a "# FLG" comment line because the
// legacy consumer cannot disambiguate multiple active FLG blocks.
func (l *Legacy) Render(w io.Writer, q Quoter) error {
	var b strings.Builder
	b.WriteString("EXCLUDE_QUERY_DIR\n")
	if l.Stdlib != "" {
		b.WriteString("STDLIB " + l.Stdlib + "\n")
	}
	for _, dir := range l.ObjDirs {
		b.WriteString("B " + dir + "\n")
	}
	for _, dir := range l.SrcDirs {
		b.WriteString("S " + dir + "\n")
	}

	// Duplicated suffix overrides are allowed after a merge; the first
	// pair listed for an implementation suffix wins.
	seen := make(map[string]bool)
	for _, pair := range l.Suffixes {
		impl, intf, ok := pair.Resolve()
		if !ok || seen[impl] {
			continue
		}
		seen[impl] = true
		b.WriteString("SUFFIX " + impl + " " + intf + "\n")
	}

	for _, ppMap := range l.PPMaps {
		names := make([]string, 0, len(ppMap))
		for name, pp := range ppMap {
			if pp != nil {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			pp := ppMap[name]
			b.WriteString("# FLG " + pp.Kind.Flag() + " " + q(pp.Command) + "\n")
		}
	}
	if len(l.SecondaryFlags) > 0 {
		b.WriteString("# FLG " + ShellJoin(q, l.SecondaryFlags) + "\n")
	}
	for _, flags := range l.FlagLists {
		if len(flags) > 0 {
			b.WriteString("# FLG " + ShellJoin(q, flags) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
