// Package elab turns a stanza descriptor plus live build-graph queries into
// a processed configuration artifact.
//
// Elaboration never fails: every collaborator failure (unresolved library,
// missing driver, missing secondary toolchain) is adapted to an absent or
// empty value at a single boundary per query, because generating this
// configuration must never fail the surrounding build. Set-valued results
// (directories) are folded with a commutative, idempotent union so the
// concurrent fan-out cannot affect them; list-valued results (flags,
// suffixes, opens) are assembled on one sequential path so completion
// timing cannot reorder them.
package elab

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vk/stanzaconf/internal/artifact"
	"github.com/vk/stanzaconf/internal/ctxlog"
	"github.com/vk/stanzaconf/internal/directive"
	"github.com/vk/stanzaconf/internal/render"
	"github.com/vk/stanzaconf/internal/stanza"
)

// SupportLibrary is the well-known toolchain-support library whose
// transitive closure is injected into every secondary-mode unit. Its
// absence is tolerated.
const SupportLibrary = "secondary-support"

// SecondaryToolchain is what discovery finds for the alternate backend.
// Zero values mean "not found".
type SecondaryToolchain struct {
	// StdlibDirs are candidate standard-library directories, best first.
	StdlibDirs []string
	// Compiler is the path of the alternate compiler binary.
	Compiler string
}

// Resolver bundles the asynchronous build-graph queries elaboration
// consumes. Implementations may compute lazily; elaboration memoizes where
// a query is needed more than once.
type Resolver interface {
	// ResolveClosure resolves a library by name and returns its full
	// transitive dependency closure, the library itself included.
	ResolveClosure(ctx context.Context, name string) ([]stanza.Library, error)
	// SourceDirs returns a library's source directories.
	SourceDirs(ctx context.Context, lib stanza.Library) ([]string, error)
	// ObjDir computes a library's public object directory for a mode.
	ObjDir(lib stanza.Library, mode stanza.Mode) (string, error)
	// Driver locates a named transformation pipeline's driver executable
	// and its effective flag list.
	Driver(ctx context.Context, pipeline string) (path string, flags []string, err error)
	// Secondary discovers the alternate toolchain.
	Secondary(ctx context.Context) (SecondaryToolchain, error)
}

// Options carries the caller-side context for one elaboration.
type Options struct {
	// Dir is the current directory context; relative descriptor-owned
	// directories are resolved against it. Library-provided directories
	// come from the build graph already absolute and are left alone.
	Dir string
	// ExtraSrcDirs are caller-supplied additional source directories.
	ExtraSrcDirs []string
	Resolver     Resolver
	// Quoter encodes command lines for the target platform. Defaults to
	// the host platform's strategy.
	Quoter render.Quoter
}

// queries is the swallow-on-failure boundary around the resolver. Upstream
// build failures never propagate past these methods: each one degrades to
// an empty or absent value and logs at debug.
type queries struct {
	r         Resolver
	secondary func() (SecondaryToolchain, error)
}

func newQueries(ctx context.Context, r Resolver) *queries {
	return &queries{
		r: r,
		secondary: sync.OnceValues(func() (SecondaryToolchain, error) {
			return r.Secondary(ctx)
		}),
	}
}

func (q *queries) closure(ctx context.Context, name string) []stanza.Library {
	libs, err := q.r.ResolveClosure(ctx, name)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("library closure unresolved, skipping.", "library", name, "error", err)
		return nil
	}
	return libs
}

func (q *queries) sourceDirs(ctx context.Context, lib stanza.Library) []string {
	dirs, err := q.r.SourceDirs(ctx, lib)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("source directories unresolved, skipping.", "library", lib.Name, "error", err)
		return nil
	}
	return dirs
}

func (q *queries) objDir(ctx context.Context, lib stanza.Library, mode stanza.Mode) (string, bool) {
	dir, err := q.r.ObjDir(lib, mode)
	if err != nil || dir == "" {
		ctxlog.FromContext(ctx).Debug("object directory unresolved, skipping.", "library", lib.Name, "error", err)
		return "", false
	}
	return dir, true
}

func (q *queries) driver(ctx context.Context, pipeline string) (string, []string, bool) {
	path, flags, err := q.r.Driver(ctx, pipeline)
	if err != nil || path == "" {
		ctxlog.FromContext(ctx).Debug("pipeline driver unresolved, no directive emitted.", "pipeline", pipeline, "error", err)
		return "", nil, false
	}
	return path, flags, true
}

func (q *queries) discover(ctx context.Context) SecondaryToolchain {
	tc, err := q.secondary()
	if err != nil {
		ctxlog.FromContext(ctx).Debug("secondary toolchain discovery failed, continuing without.", "error", err)
		return SecondaryToolchain{}
	}
	return tc
}

// Elaborate produces the processed artifact for one build unit. It blocks
// only on the resolver's own queries and cannot fail; collaborator
// failures degrade to absent values at the narrowest scope.
func Elaborate(ctx context.Context, d *stanza.Descriptor, opts Options) *artifact.Artifact {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Elaboration started.", "unit", d.Unit, "mode", d.Mode.String())

	quoter := opts.Quoter
	if quoter == nil {
		quoter = render.QuoterFor(runtime.GOOS)
	}
	q := newQueries(ctx, opts.Resolver)

	// Standard-library resolution: native mode trusts the descriptor;
	// secondary mode takes discovery's first candidate, or none.
	stdlib := d.Stdlib
	if d.Mode == stanza.ModeSecondary {
		stdlib = ""
		if dirs := q.discover(ctx).StdlibDirs; len(dirs) > 0 {
			stdlib = dirs[0]
		}
	}

	// Transitive closure injection for the secondary backend's support
	// library. Not found leaves the requires set unchanged.
	requires := d.Requires
	if d.Mode == stanza.ModeSecondary {
		requires = unionLibraries(requires, q.closure(ctx, SupportLibrary))
	}

	// Await the deferred flag computation. Strictly sequential: flag
	// order is semantic.
	flags, err := d.Flags(ctx)
	if err != nil {
		logger.Debug("flag computation failed, continuing with none.", "unit", d.Unit, "error", err)
		flags = nil
	}

	objDirs := newStringSet()
	srcDirs := newStringSet()
	objDirs.add(joinDir(opts.Dir, d.ObjDir))
	for _, dir := range d.SrcDirs {
		srcDirs.add(joinDir(opts.Dir, dir))
	}
	for _, dir := range opts.ExtraSrcDirs {
		srcDirs.add(joinDir(opts.Dir, dir))
	}

	// Directory fan-out: one task per required library, folded with set
	// union. Fold order is irrelevant.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, lib := range requires {
		g.Go(func() error {
			dirs := q.sourceDirs(gctx, lib)
			pub, ok := q.objDir(gctx, lib, d.Mode)
			mu.Lock()
			defer mu.Unlock()
			for _, dir := range dirs {
				srcDirs.add(dir)
			}
			if ok {
				objDirs.add(pub)
			}
			return nil
		})
	}

	// Per-module preprocessing resolution fans out too; each task owns a
	// distinct slot, so completion order cannot shuffle the map.
	names := make([]string, 0, len(d.Preprocess))
	for name := range d.Preprocess {
		names = append(names, name)
	}
	sort.Strings(names)
	resolved := make([]*directive.PP, len(names))
	for i, name := range names {
		spec := d.Preprocess[name]
		g.Go(func() error {
			resolved[i] = resolvePP(gctx, q, quoter, spec)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures were swallowed at the boundary

	pp := make(map[string]*directive.PP, len(names))
	for i, name := range names {
		pp[name] = resolved[i]
	}

	// Secondary-toolchain flags: tell the consuming tool to use the
	// alternate compiler as a macro-expansion driver, when it exists.
	var secondaryFlags []string
	if d.Mode == stanza.ModeSecondary {
		if compiler := q.discover(ctx).Compiler; compiler != "" {
			secondaryFlags = []string{"-ppx", render.ShellJoin(quoter, []string{compiler, "--as-ppx"})}
		}
	}

	suffixes := make([]directive.SuffixPair, 0, len(d.Dialects))
	for _, dialect := range d.Dialects {
		suffixes = append(suffixes, directive.SuffixPair{Impl: dialect.Impl, Intf: dialect.Intf})
	}

	modules := make(map[string]directive.Module)
	for _, unit := range d.Modules.Units {
		if unit.Virtual {
			continue
		}
		cfg := directive.Module{Name: unit.Name, Opens: d.Modules.Opens(unit.Name)}
		for _, src := range unit.Sources {
			modules[artifact.NormalizeKey(src)] = cfg
		}
	}

	a := &artifact.Artifact{
		Shared: directive.Shared{
			Stdlib:         stdlib,
			ObjDirs:        objDirs.sorted(),
			SrcDirs:        srcDirs.sorted(),
			Flags:          flags,
			Suffixes:       suffixes,
			SecondaryFlags: secondaryFlags,
		},
		Modules: modules,
		PP:      pp,
	}
	logger.Debug("Elaboration finished.",
		"unit", d.Unit,
		"obj_dirs", len(a.Shared.ObjDirs),
		"src_dirs", len(a.Shared.SrcDirs),
		"modules", len(a.Modules))
	return a
}

// resolvePP resolves one module's raw preprocessing spec. Any shape other
// than the two recognized ones yields no directive, never an error.
func resolvePP(ctx context.Context, q *queries, quoter render.Quoter, spec stanza.PPSpec) *directive.PP {
	if action := spec.Action; action != nil {
		last := len(action.Args) - 1
		if last < 0 || action.Args[last] != stanza.InputPlaceholder {
			return nil
		}
		tokens := append([]string{action.Prog}, action.Args[:last]...)
		return &directive.PP{
			Kind:    directive.PPSubstitution,
			Command: render.ShellJoin(quoter, tokens),
		}
	}
	if spec.Pipeline != "" {
		driver, flags, ok := q.driver(ctx, spec.Pipeline)
		if !ok {
			return nil
		}
		tokens := append([]string{driver, "--as-ppx"}, flags...)
		return &directive.PP{
			Kind:    directive.PPMacro,
			Command: render.ShellJoin(quoter, tokens),
		}
	}
	return nil
}

// unionLibraries unions two library sets by name, keeping first occurrence.
func unionLibraries(base, extra []stanza.Library) []stanza.Library {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	out := append([]stanza.Library(nil), base...)
	for _, lib := range base {
		seen[lib.Name] = struct{}{}
	}
	for _, lib := range extra {
		if _, ok := seen[lib.Name]; ok {
			continue
		}
		seen[lib.Name] = struct{}{}
		out = append(out, lib)
	}
	return out
}

// joinDir resolves dir against the elaboration directory context.
func joinDir(base, dir string) string {
	if base == "" || dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// stringSet is a commutative, idempotent accumulator for directory sets.
type stringSet map[string]struct{}

func newStringSet() stringSet { return make(stringSet) }

func (s stringSet) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
