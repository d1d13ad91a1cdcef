package util

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCBZKeepsOrder(t *testing.T) {
	dir := t.TempDir()

	var files []string
	for _, name := range []string{"page_002.jpg", "page_001.jpg"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0644))
		files = append(files, p)
	}

	out := filepath.Join(dir, "ch.cbz")
	require.NoError(t, CreateCBZ(files, out))

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "page_002.jpg", r.File[0].Name)
	assert.Equal(t, "page_001.jpg", r.File[1].Name)
}

func TestCreateCBZMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := CreateCBZ([]string{filepath.Join(dir, "nope.jpg")}, filepath.Join(dir, "out.cbz"))
	assert.Error(t, err)
}
