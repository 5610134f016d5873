package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.hcl", "a.hcl", "nested/c.hcl", "nested/ignore.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	t.Run("directory walk is recursive and sorted", func(t *testing.T) {
		files, err := FindFilesByExtension(dir, ".hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.hcl"),
			filepath.Join(dir, "b.hcl"),
			filepath.Join(dir, "nested", "c.hcl"),
		}, files)
	})

	t.Run("single file path works", func(t *testing.T) {
		files, err := FindFilesByExtension(filepath.Join(dir, "a.hcl"), ".hcl")
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("file with other extension yields nothing", func(t *testing.T) {
		files, err := FindFilesByExtension(filepath.Join(dir, "nested", "ignore.txt"), ".hcl")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing path is an error", func(t *testing.T) {
		_, err := FindFilesByExtension(filepath.Join(dir, "absent"), ".hcl")
		assert.Error(t, err)
	})

	t.Run("empty extension is an error", func(t *testing.T) {
		_, err := FindFilesByExtension(dir, "")
		assert.Error(t, err)
	})
}
