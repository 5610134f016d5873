package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stanzaconf/internal/directive"
)

func indexWith(keys ...string) *Artifact {
	a := &Artifact{Modules: map[string]directive.Module{}}
	for _, k := range keys {
		a.Modules[k] = directive.Module{Name: k}
	}
	return a
}

func TestLookupNormalization(t *testing.T) {
	a := indexWith("foo")

	for _, query := range []string{"Foo.ml", "foo.mli", "FOO.ML", "foo"} {
		m, ok := a.Lookup(query)
		require.True(t, ok, "query %q should resolve", query)
		assert.Equal(t, "foo", m.Name)
	}

	_, ok := a.Lookup("bar.ml")
	assert.False(t, ok)
}

func TestLookupKeepsDirectoryPrefix(t *testing.T) {
	a := indexWith("src/main")

	_, ok := a.Lookup("src/Main.ml")
	assert.True(t, ok)

	// A bare stem must not match a key stored under a directory.
	_, ok = a.Lookup("Main.ml")
	assert.False(t, ok)
}

func TestProvenanceFallback(t *testing.T) {
	a := indexWith("foo")

	t.Run("generated intermediate resolves to ancestor", func(t *testing.T) {
		m, ok := a.Lookup("foo.pp.ml")
		require.True(t, ok)
		assert.Equal(t, "foo", m.Name)
	})

	t.Run("multi-step chain resolves", func(t *testing.T) {
		_, ok := a.Lookup("foo.pp.cppo.ml")
		assert.True(t, ok)
	})

	t.Run("chain exhaustion is not found", func(t *testing.T) {
		_, ok := a.Lookup("foo.a.b.c.d.e.f.g.h.i.ml")
		assert.False(t, ok)
	})

	t.Run("unknown stem is not found", func(t *testing.T) {
		_, ok := a.Lookup("bar.pp.ml")
		assert.False(t, ok)
	})
}

func TestLookupName(t *testing.T) {
	a := &Artifact{Modules: map[string]directive.Module{
		"src/util": {Name: "Util", Opens: []string{"Lib"}},
	}}

	m, ok := a.LookupName("util")
	require.True(t, ok)
	assert.Equal(t, []string{"Lib"}, m.Opens)

	_, ok = a.LookupName("Nope")
	assert.False(t, ok)
}

func TestDirective(t *testing.T) {
	pp := &directive.PP{Kind: directive.PPMacro, Command: "drv --as-ppx"}
	a := &Artifact{PP: map[string]*directive.PP{"Util": pp}}

	assert.Same(t, pp, a.Directive("Util"))
	assert.Same(t, pp, a.Directive("util"))
	assert.Nil(t, a.Directive("Main"))
}
