package unitfile

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/stanzaconf/internal/elab"
	"github.com/vk/stanzaconf/internal/stanza"
)

// StaticResolver answers the elaborator's build-graph queries from the
// workspace's declared blocks. Unknown names are failures; the elaborator
// swallows them like any other upstream failure.
type StaticResolver struct {
	w *Workspace
}

// Resolver returns the workspace-backed collaborator bundle.
func (w *Workspace) Resolver() *StaticResolver {
	return &StaticResolver{w: w}
}

var _ elab.Resolver = (*StaticResolver)(nil)

// ResolveClosure resolves a library by name and returns its transitive
// dependency closure, the library itself first, dependencies sorted.
func (r *StaticResolver) ResolveClosure(_ context.Context, name string) ([]stanza.Library, error) {
	root, ok := r.w.libraries[name]
	if !ok {
		return nil, fmt.Errorf("library %q is not declared in the workspace", name)
	}

	visited := map[string]bool{name: true}
	var deps []string
	var walk func(block *libraryBlock) error
	walk = func(block *libraryBlock) error {
		for _, dep := range block.Deps {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			next, ok := r.w.libraries[dep]
			if !ok {
				return fmt.Errorf("library %q depends on undeclared library %q", block.Name, dep)
			}
			deps = append(deps, dep)
			if err := walk(next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}

	sort.Strings(deps)
	closure := []stanza.Library{libraryHandle(root)}
	for _, dep := range deps {
		closure = append(closure, libraryHandle(r.w.libraries[dep]))
	}
	return closure, nil
}

// SourceDirs returns the declared source directories of a library.
func (r *StaticResolver) SourceDirs(_ context.Context, lib stanza.Library) ([]string, error) {
	block, ok := r.w.libraries[lib.Name]
	if !ok {
		return nil, fmt.Errorf("library %q is not declared in the workspace", lib.Name)
	}
	return block.SrcDirs, nil
}

// ObjDir computes a library's public object directory for a mode.
func (r *StaticResolver) ObjDir(lib stanza.Library, mode stanza.Mode) (string, error) {
	if dir := lib.PublicObjDir(mode); dir != "" {
		return dir, nil
	}
	return "", fmt.Errorf("library %q has no public object directory for %s mode", lib.Name, mode)
}

// Driver locates a declared pipeline's driver and flags.
func (r *StaticResolver) Driver(_ context.Context, pipeline string) (string, []string, error) {
	block, ok := r.w.pipelines[pipeline]
	if !ok {
		return "", nil, fmt.Errorf("pipeline %q is not declared in the workspace", pipeline)
	}
	return block.Driver, block.Flags, nil
}

// Secondary reports the declared alternate toolchain, when there is one.
func (r *StaticResolver) Secondary(context.Context) (elab.SecondaryToolchain, error) {
	if r.w.secondary == nil {
		return elab.SecondaryToolchain{}, fmt.Errorf("no secondary toolchain declared in the workspace")
	}
	return elab.SecondaryToolchain{
		StdlibDirs: r.w.secondary.StdlibDirs,
		Compiler:   r.w.secondary.Compiler,
	}, nil
}
