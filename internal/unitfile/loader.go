// Package unitfile loads HCL workspace files describing build units and the
// static collaborator data (libraries, preprocessing pipelines, secondary
// toolchain) used to elaborate them outside a live build graph.
package unitfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stanzaconf/internal/ctxlog"
	"github.com/vk/stanzaconf/internal/fsutil"
	"github.com/vk/stanzaconf/internal/stanza"
)

// Workspace is the merged view of every workspace file found at a path.
type Workspace struct {
	units     map[string]*unitBlock
	libraries map[string]*libraryBlock
	pipelines map[string]*pipelineBlock
	secondary *secondaryBlock
}

// Load parses the workspace at path, which may be a single .hcl file or a
// directory searched recursively.
func Load(ctx context.Context, path string) (*Workspace, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no workspace files found at %s", path)
	}
	logger.Debug("Discovered workspace files.", "count", len(files))

	w := &Workspace{
		units:     make(map[string]*unitBlock),
		libraries: make(map[string]*libraryBlock),
		pipelines: make(map[string]*pipelineBlock),
	}
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse workspace file %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalContext(file), &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode workspace file %s: %w", file, diags)
		}

		for _, unit := range root.Units {
			if _, dup := w.units[unit.Name]; dup {
				return nil, fmt.Errorf("duplicate unit %q in %s", unit.Name, file)
			}
			w.units[unit.Name] = unit
		}
		for _, lib := range root.Libraries {
			if _, dup := w.libraries[lib.Name]; dup {
				return nil, fmt.Errorf("duplicate library %q in %s", lib.Name, file)
			}
			w.libraries[lib.Name] = lib
		}
		for _, pipeline := range root.Pipelines {
			if _, dup := w.pipelines[pipeline.Name]; dup {
				return nil, fmt.Errorf("duplicate pipeline %q in %s", pipeline.Name, file)
			}
			w.pipelines[pipeline.Name] = pipeline
		}
		if root.Secondary != nil {
			if w.secondary != nil {
				return nil, fmt.Errorf("duplicate secondary block in %s", file)
			}
			w.secondary = root.Secondary
		}
	}
	logger.Debug("Workspace loading complete.",
		"units", len(w.units), "libraries", len(w.libraries), "pipelines", len(w.pipelines))
	return w, nil
}

// evalContext builds the expression scope for one workspace file. Paths in
// a workspace are usually written relative to the file that declares them;
// workspace_dir lets them be spelled absolute without hardcoding.
func evalContext(file string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"workspace_dir": cty.StringVal(filepath.Dir(file)),
		},
	}
}

// Units lists the declared unit names, sorted.
func (w *Workspace) Units() []string {
	names := make([]string, 0, len(w.units))
	for name := range w.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptor builds the stanza descriptor for a declared unit. An unknown
// unit is a usage error; an unresolvable required library is not — that
// failure rides into stanza.New, which swallows it.
func (w *Workspace) Descriptor(ctx context.Context, name string) (*stanza.Descriptor, error) {
	unit, ok := w.units[name]
	if !ok {
		return nil, fmt.Errorf("unit %q is not declared in the workspace", name)
	}

	target, modes, err := parseTarget(unit.Target, unit.Modes)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", name, err)
	}

	requires, requiresErr := w.resolveRequires(unit.Requires)

	var objRoot stanza.ObjDirs
	if unit.ObjDirs != nil {
		objRoot = stanza.ObjDirs{Byte: unit.ObjDirs.Byte, Secondary: unit.ObjDirs.Secondary}
	}

	table := stanza.ModuleTable{Alias: unit.Alias}
	for _, m := range unit.Modules {
		table.Units = append(table.Units, stanza.Unit{
			Name:    m.Name,
			Virtual: m.Virtual,
			Sources: m.Sources,
		})
	}

	preprocess := make(map[string]stanza.PPSpec, len(unit.Preprocess))
	for _, p := range unit.Preprocess {
		spec := stanza.PPSpec{Pipeline: p.Pipeline}
		if p.Action != nil {
			spec.Action = &stanza.Action{Prog: p.Action.Prog, Args: p.Action.Args}
		}
		preprocess[p.Module] = spec
	}

	dialects := make([]stanza.Dialect, 0, len(unit.Dialects))
	for _, d := range unit.Dialects {
		dialects = append(dialects, stanza.Dialect{Name: d.Name, Impl: d.Impl, Intf: d.Intf})
	}

	flags := unit.Flags
	return stanza.New(ctx, stanza.Params{
		Unit:         unit.Name,
		Requires:     requires,
		RequiresErr:  requiresErr,
		Stdlib:       unit.Stdlib,
		Flags:        func(context.Context) ([]string, error) { return flags, nil },
		Preprocess:   preprocess,
		LocalLibrary: unit.LocalLibrary,
		SrcDirs:      unit.SrcDirs,
		Modules:      table,
		ObjRoot:      objRoot,
		Dialects:     dialects,
		Target:       target,
		Modes:        modes,
	}), nil
}

// resolveRequires maps declared requirement names onto library handles.
// Any unknown name fails the whole set, mirroring how upstream resolution
// failures arrive all-or-nothing.
func (w *Workspace) resolveRequires(names []string) ([]stanza.Library, error) {
	libs := make([]stanza.Library, 0, len(names))
	for _, name := range names {
		block, ok := w.libraries[name]
		if !ok {
			return nil, fmt.Errorf("library %q is not declared in the workspace", name)
		}
		libs = append(libs, libraryHandle(block))
	}
	return libs, nil
}

func libraryHandle(block *libraryBlock) stanza.Library {
	return stanza.Library{
		Name:               block.Name,
		SrcDirs:            block.SrcDirs,
		PublicByteDir:      block.PublicByteDir,
		PublicSecondaryDir: block.PublicSecondaryDir,
	}
}

// parseTarget maps the textual target/modes attributes onto stanza types.
func parseTarget(target string, modes []string) (stanza.Target, []stanza.Mode, error) {
	var parsed []stanza.Mode
	for _, mode := range modes {
		switch mode {
		case "native":
			parsed = append(parsed, stanza.ModeNative)
		case "secondary":
			parsed = append(parsed, stanza.ModeSecondary)
		default:
			return 0, nil, fmt.Errorf("unknown mode %q (want native or secondary)", mode)
		}
	}
	switch target {
	case "", "library":
		return stanza.TargetLibrary, parsed, nil
	case "executable":
		return stanza.TargetExecutable, parsed, nil
	case "secondary-emit":
		return stanza.TargetSecondaryEmit, parsed, nil
	default:
		return 0, nil, fmt.Errorf("unknown target %q (want library, executable or secondary-emit)", target)
	}
}
