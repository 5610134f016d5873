// Package stanza models one build unit (library or executable) as an
// immutable descriptor: everything known synchronously at rule-generation
// time, before any build-graph query has been answered.
package stanza

import (
	"context"

	"github.com/vk/stanzaconf/internal/ctxlog"
)

// Mode is the compilation backend a unit is elaborated for.
type Mode int

const (
	// ModeNative is the primary byte-code style backend.
	ModeNative Mode = iota
	// ModeSecondary is the alternate compilation backend, with its own
	// standard library and compiler discovery.
	ModeSecondary
)

// String implements fmt.Stringer for log output.
func (m Mode) String() string {
	if m == ModeSecondary {
		return "secondary"
	}
	return "native"
}

// Target classifies what a stanza compiles to.
type Target int

const (
	// TargetLibrary is a library stanza carrying an explicit mode set.
	TargetLibrary Target = iota
	// TargetExecutable is an executable stanza; always native.
	TargetExecutable
	// TargetSecondaryEmit is an emit stanza for the alternate backend.
	TargetSecondaryEmit
)

// InputPlaceholder is the well-known token a preprocessing action uses as
// its final argument to stand for the file being rewritten.
const InputPlaceholder = "%{input-file}"

// ObjDirs is the per-unit object directory layout: one directory per
// backend, holding that backend's compiled interface artifacts.
type ObjDirs struct {
	Byte      string
	Secondary string
}

// For selects the private object directory for the given mode.
func (d ObjDirs) For(mode Mode) string {
	if mode == ModeSecondary {
		return d.Secondary
	}
	return d.Byte
}

// Library is a resolved handle on a required library. The public object
// directories mirror the ObjDirs layout with public visibility.
type Library struct {
	Name               string
	SrcDirs            []string
	PublicByteDir      string
	PublicSecondaryDir string
}

// PublicObjDir selects the library's public object directory for the given
// mode. Together with ObjDirs.For this forms the full visibility×mode
// selection table.
func (l Library) PublicObjDir(mode Mode) string {
	if mode == ModeSecondary {
		return l.PublicSecondaryDir
	}
	return l.PublicByteDir
}

// FlagsFn is a deferred compiler-flag computation. It is awaited exactly
// once, during elaboration.
type FlagsFn func(ctx context.Context) ([]string, error)

// Action is an explicit program invocation used as a preprocessing step.
type Action struct {
	Prog string
	Args []string
}

// PPSpec is the raw per-module preprocessing specification: either an
// explicit action, a named transformation pipeline, or neither.
type PPSpec struct {
	Action   *Action
	Pipeline string
}

// Unit is one compiled module owned by the stanza. Virtual units are
// placeholders with no sources of their own and are skipped when the
// per-module index is built.
type Unit struct {
	Name    string
	Virtual bool
	Sources []string
}

// ModuleTable lists the stanza's compiled modules. A non-empty Alias names
// the umbrella module that re-exports the others.
type ModuleTable struct {
	Alias string
	Units []Unit
}

// Opens returns the ordered module names implicitly opened for the named
// unit. Today that is the umbrella alias, when one exists and the unit is
// not the alias itself.
func (t ModuleTable) Opens(unit string) []string {
	if t.Alias == "" || t.Alias == unit {
		return nil
	}
	return []string{t.Alias}
}

// Descriptor is the raw, eagerly constructed record for one build unit.
// It is immutable after New returns; elaboration reads it, never writes.
type Descriptor struct {
	// Unit is the stanza's identity token.
	Unit string
	// Requires is the resolved required-library set. Empty when upstream
	// resolution failed; the failure never travels further than New.
	Requires []Library
	// Stdlib is the configured standard-library directory for native mode.
	Stdlib string
	// Flags is the deferred compiler-flag computation, already carrying
	// the alias open prepend when the module table defines an umbrella.
	Flags FlagsFn
	// Preprocess maps module names to their raw preprocessing specs.
	Preprocess map[string]PPSpec
	// LocalLibrary is the stanza's local library name, when it has one.
	LocalLibrary string
	// SrcDirs are the stanza's own declared source directories.
	SrcDirs []string
	// Modules is the stanza's compiled-module table.
	Modules ModuleTable
	// Dialects are the registered source dialects, in registration order.
	Dialects []Dialect
	// Mode is the resolved compilation mode.
	Mode Mode
	// ObjDir is the stanza's private object directory for Mode.
	ObjDir string
	// ObjRoot is the full per-backend object directory layout, kept so the
	// elaborator can select public directories for required libraries.
	ObjRoot ObjDirs
}

// Dialect is one registered source dialect and its filename suffix
// override. Empty sides follow the defaulting rule at render time.
type Dialect struct {
	Name string
	Impl string
	Intf string
}

// Params carries everything New needs. RequiresErr holds an upstream
// library-resolution failure, if any; it is swallowed here.
type Params struct {
	Unit         string
	Requires     []Library
	RequiresErr  error
	Stdlib       string
	Flags        FlagsFn
	Preprocess   map[string]PPSpec
	LocalLibrary string
	SrcDirs      []string
	Modules      ModuleTable
	ObjRoot      ObjDirs
	Dialects     []Dialect
	Target       Target
	// Modes is the library's declared mode set; ignored for other targets.
	Modes []Mode
}

// New constructs a descriptor. It never fails: an upstream required-library
// failure degrades to an empty set, because generating configuration must
// never fail the surrounding build.
func New(ctx context.Context, p Params) *Descriptor {
	mode := resolveMode(p.Target, p.Modes)

	requires := p.Requires
	if p.RequiresErr != nil {
		ctxlog.FromContext(ctx).Debug("required libraries unresolved, continuing with none.",
			"unit", p.Unit, "error", p.RequiresErr)
		requires = nil
	}

	flags := p.Flags
	if flags == nil {
		flags = func(context.Context) ([]string, error) { return nil, nil }
	}
	if alias := p.Modules.Alias; alias != "" {
		// Prepend, not append: later -open tokens must not shadow the
		// umbrella module.
		inner := flags
		flags = func(ctx context.Context) ([]string, error) {
			computed, err := inner(ctx)
			if err != nil {
				return nil, err
			}
			return append([]string{"-open", alias}, computed...), nil
		}
	}

	return &Descriptor{
		Unit:         p.Unit,
		Requires:     requires,
		Stdlib:       p.Stdlib,
		Flags:        flags,
		Preprocess:   p.Preprocess,
		LocalLibrary: p.LocalLibrary,
		SrcDirs:      p.SrcDirs,
		Modules:      p.Modules,
		Dialects:     p.Dialects,
		Mode:         mode,
		ObjDir:       p.ObjRoot.For(mode),
		ObjRoot:      p.ObjRoot,
	}
}

// resolveMode collapses a compile target to exactly one backend. A library
// with any native mode stays native; only a purely secondary mode set (or
// an emit stanza) selects the secondary backend.
func resolveMode(target Target, modes []Mode) Mode {
	switch target {
	case TargetExecutable:
		return ModeNative
	case TargetSecondaryEmit:
		return ModeSecondary
	}
	secondary := false
	for _, m := range modes {
		if m == ModeNative {
			return ModeNative
		}
		if m == ModeSecondary {
			secondary = true
		}
	}
	if secondary {
		return ModeSecondary
	}
	return ModeNative
}
