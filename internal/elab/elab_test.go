package elab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stanzaconf/internal/directive"
	"github.com/vk/stanzaconf/internal/render"
	"github.com/vk/stanzaconf/internal/stanza"
)

// fakeResolver implements Resolver through optional function fields. A nil
// field behaves like an upstream build failure.
type fakeResolver struct {
	closureFn   func(name string) ([]stanza.Library, error)
	srcFn       func(lib stanza.Library) ([]string, error)
	objFn       func(lib stanza.Library, mode stanza.Mode) (string, error)
	driverFn    func(pipeline string) (string, []string, error)
	secondaryFn func() (SecondaryToolchain, error)
}

var errUnresolved = errors.New("unresolved in build graph")

func (f *fakeResolver) ResolveClosure(_ context.Context, name string) ([]stanza.Library, error) {
	if f.closureFn == nil {
		return nil, errUnresolved
	}
	return f.closureFn(name)
}

func (f *fakeResolver) SourceDirs(_ context.Context, lib stanza.Library) ([]string, error) {
	if f.srcFn == nil {
		return nil, errUnresolved
	}
	return f.srcFn(lib)
}

func (f *fakeResolver) ObjDir(lib stanza.Library, mode stanza.Mode) (string, error) {
	if f.objFn == nil {
		return "", errUnresolved
	}
	return f.objFn(lib, mode)
}

func (f *fakeResolver) Driver(_ context.Context, pipeline string) (string, []string, error) {
	if f.driverFn == nil {
		return "", nil, errUnresolved
	}
	return f.driverFn(pipeline)
}

func (f *fakeResolver) Secondary(context.Context) (SecondaryToolchain, error) {
	if f.secondaryFn == nil {
		return SecondaryToolchain{}, errUnresolved
	}
	return f.secondaryFn()
}

func linuxOpts(r Resolver) Options {
	return Options{Resolver: r, Quoter: render.QuoterFor("linux")}
}

func TestElaborateSingleModuleUnit(t *testing.T) {
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "app",
		Target:  stanza.TargetExecutable,
		Stdlib:  "",
		SrcDirs: []string{"src"},
		ObjRoot: stanza.ObjDirs{Byte: "_build/.objs/byte", Secondary: "_build/.objs/alt"},
		Modules: stanza.ModuleTable{Units: []stanza.Unit{{Name: "Main", Sources: []string{"src/main.ml"}}}},
	})

	a := Elaborate(context.Background(), d, linuxOpts(&fakeResolver{}))

	assert.Equal(t, []string{"_build/.objs/byte"}, a.Shared.ObjDirs)
	assert.Equal(t, []string{"src"}, a.Shared.SrcDirs)
	assert.Empty(t, a.Shared.Flags)
	assert.Empty(t, a.Shared.SecondaryFlags)
	require.Len(t, a.Modules, 1)

	m, ok := a.Lookup("src/Main.ml")
	require.True(t, ok)
	assert.Equal(t, "Main", m.Name)
	assert.Empty(t, m.Opens)
	assert.Nil(t, a.Directive("Main"))
}

func TestElaborateSurvivesTotalCollaboratorFailure(t *testing.T) {
	d := stanza.New(context.Background(), stanza.Params{
		Unit:     "lib",
		Target:   stanza.TargetLibrary,
		Requires: []stanza.Library{{Name: "dep1"}, {Name: "dep2"}},
		SrcDirs:  []string{"src"},
		ObjRoot:  stanza.ObjDirs{Byte: "obj"},
		Preprocess: map[string]stanza.PPSpec{
			"Main": {Pipeline: "ghost"},
		},
	})

	a := Elaborate(context.Background(), d, linuxOpts(&fakeResolver{}))

	// Only the unit's own declared directories survive.
	assert.Equal(t, []string{"obj"}, a.Shared.ObjDirs)
	assert.Equal(t, []string{"src"}, a.Shared.SrcDirs)
	require.Contains(t, a.PP, "Main")
	assert.Nil(t, a.PP["Main"])
}

func TestElaborateDirectoryFanOut(t *testing.T) {
	libs := []stanza.Library{
		{Name: "a", PublicByteDir: "pub/a"},
		{Name: "b", PublicByteDir: "pub/b"},
		{Name: "broken"},
	}
	r := &fakeResolver{
		srcFn: func(lib stanza.Library) ([]string, error) {
			switch lib.Name {
			case "a":
				return []string{"src/a", "src/shared"}, nil
			case "b":
				return []string{"src/b", "src/shared"}, nil
			}
			return nil, errUnresolved
		},
		objFn: func(lib stanza.Library, mode stanza.Mode) (string, error) {
			if lib.Name == "broken" {
				return "", errUnresolved
			}
			return lib.PublicObjDir(mode), nil
		},
	}
	d := stanza.New(context.Background(), stanza.Params{
		Unit:     "lib",
		Target:   stanza.TargetLibrary,
		Requires: libs,
		SrcDirs:  []string{"src/own"},
		ObjRoot:  stanza.ObjDirs{Byte: "obj/own"},
	})

	a := Elaborate(context.Background(), d, Options{
		Resolver:     r,
		Quoter:       render.QuoterFor("linux"),
		ExtraSrcDirs: []string{"src/extra"},
	})

	assert.Equal(t, []string{"obj/own", "pub/a", "pub/b"}, a.Shared.ObjDirs)
	assert.Equal(t, []string{"src/a", "src/b", "src/extra", "src/own", "src/shared"}, a.Shared.SrcDirs)
}

func TestElaborateDirContext(t *testing.T) {
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "lib",
		Target:  stanza.TargetLibrary,
		SrcDirs: []string{"src", "/abs/src"},
		ObjRoot: stanza.ObjDirs{Byte: "obj"},
	})

	a := Elaborate(context.Background(), d, Options{
		Dir:      "/workspace/unit",
		Resolver: &fakeResolver{},
		Quoter:   render.QuoterFor("linux"),
	})

	assert.Equal(t, []string{"/workspace/unit/obj"}, a.Shared.ObjDirs)
	assert.Equal(t, []string{"/abs/src", "/workspace/unit/src"}, a.Shared.SrcDirs)
}

func TestElaborateSecondaryMode(t *testing.T) {
	support := []stanza.Library{
		{Name: SupportLibrary, PublicSecondaryDir: "pub/support"},
		{Name: "support-dep", PublicSecondaryDir: "pub/support-dep"},
	}
	r := &fakeResolver{
		closureFn: func(name string) ([]stanza.Library, error) {
			if name == SupportLibrary {
				return support, nil
			}
			return nil, errUnresolved
		},
		srcFn: func(lib stanza.Library) ([]string, error) { return nil, errUnresolved },
		objFn: func(lib stanza.Library, mode stanza.Mode) (string, error) {
			return lib.PublicObjDir(mode), nil
		},
		secondaryFn: func() (SecondaryToolchain, error) {
			return SecondaryToolchain{
				StdlibDirs: []string{"/alt/stdlib1", "/alt/stdlib2"},
				Compiler:   "/opt/altc",
			}, nil
		},
	}
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "emit",
		Target:  stanza.TargetSecondaryEmit,
		Stdlib:  "/native/stdlib",
		ObjRoot: stanza.ObjDirs{Byte: "obj/byte", Secondary: "obj/alt"},
	})

	a := Elaborate(context.Background(), d, linuxOpts(r))

	assert.Equal(t, "/alt/stdlib1", a.Shared.Stdlib, "first discovered candidate wins over the configured native dir")
	assert.Equal(t, []string{"obj/alt", "pub/support", "pub/support-dep"}, a.Shared.ObjDirs)
	assert.Equal(t, []string{"-ppx", "/opt/altc --as-ppx"}, a.Shared.SecondaryFlags)
}

func TestElaborateSecondaryModeNothingDiscovered(t *testing.T) {
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "emit",
		Target:  stanza.TargetSecondaryEmit,
		Stdlib:  "/native/stdlib",
		ObjRoot: stanza.ObjDirs{Secondary: "obj/alt"},
	})

	a := Elaborate(context.Background(), d, linuxOpts(&fakeResolver{}))

	assert.Empty(t, a.Shared.Stdlib)
	assert.Empty(t, a.Shared.SecondaryFlags)
	assert.Equal(t, []string{"obj/alt"}, a.Shared.ObjDirs)
}

func TestElaborateNativeModeIgnoresSecondaryToolchain(t *testing.T) {
	called := false
	r := &fakeResolver{
		secondaryFn: func() (SecondaryToolchain, error) {
			called = true
			return SecondaryToolchain{Compiler: "/opt/altc"}, nil
		},
	}
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "lib",
		Target:  stanza.TargetLibrary,
		Stdlib:  "/native/stdlib",
		ObjRoot: stanza.ObjDirs{Byte: "obj"},
	})

	a := Elaborate(context.Background(), d, linuxOpts(r))

	assert.Equal(t, "/native/stdlib", a.Shared.Stdlib)
	assert.Empty(t, a.Shared.SecondaryFlags)
	assert.False(t, called, "native mode has no business discovering the secondary toolchain")
}

func TestResolvePP(t *testing.T) {
	quoter := render.QuoterFor("linux")

	t.Run("action ending in the input placeholder is text substitution", func(t *testing.T) {
		r := &fakeResolver{}
		q := newQueries(context.Background(), r)
		pp := resolvePP(context.Background(), q, quoter, stanza.PPSpec{
			Action: &stanza.Action{Prog: "/bin/rw", Args: []string{"--fast", "a b", stanza.InputPlaceholder}},
		})
		require.NotNil(t, pp)
		assert.Equal(t, directive.PPSubstitution, pp.Kind)
		assert.Equal(t, "/bin/rw --fast 'a b'", pp.Command)
	})

	t.Run("action without the placeholder yields nothing", func(t *testing.T) {
		q := newQueries(context.Background(), &fakeResolver{})
		pp := resolvePP(context.Background(), q, quoter, stanza.PPSpec{
			Action: &stanza.Action{Prog: "/bin/rw", Args: []string{"--fast"}},
		})
		assert.Nil(t, pp)
	})

	t.Run("pipeline resolves to a macro-expansion directive", func(t *testing.T) {
		r := &fakeResolver{driverFn: func(pipeline string) (string, []string, error) {
			return "/bin/drv", []string{"--cookie", "x y"}, nil
		}}
		q := newQueries(context.Background(), r)
		pp := resolvePP(context.Background(), q, quoter, stanza.PPSpec{Pipeline: "inline"})
		require.NotNil(t, pp)
		assert.Equal(t, directive.PPMacro, pp.Kind)
		assert.Equal(t, "/bin/drv --as-ppx --cookie 'x y'", pp.Command)
	})

	t.Run("unresolvable pipeline yields nothing", func(t *testing.T) {
		q := newQueries(context.Background(), &fakeResolver{})
		assert.Nil(t, resolvePP(context.Background(), q, quoter, stanza.PPSpec{Pipeline: "ghost"}))
	})

	t.Run("empty spec yields nothing", func(t *testing.T) {
		q := newQueries(context.Background(), &fakeResolver{})
		assert.Nil(t, resolvePP(context.Background(), q, quoter, stanza.PPSpec{}))
	})
}

func TestElaborateOpensFromAlias(t *testing.T) {
	d := stanza.New(context.Background(), stanza.Params{
		Unit:    "lib",
		Target:  stanza.TargetLibrary,
		ObjRoot: stanza.ObjDirs{Byte: "obj"},
		Modules: stanza.ModuleTable{
			Alias: "Lib",
			Units: []stanza.Unit{
				{Name: "Lib", Virtual: true},
				{Name: "Util", Sources: []string{"src/util.ml", "src/util.mli"}},
			},
		},
	})

	a := Elaborate(context.Background(), d, linuxOpts(&fakeResolver{}))

	// The virtual alias unit is excluded; both sources of Util share one entry each.
	assert.Len(t, a.Modules, 1)
	m, ok := a.Lookup("src/util.mli")
	require.True(t, ok)
	assert.Equal(t, []string{"Lib"}, m.Opens)
}
