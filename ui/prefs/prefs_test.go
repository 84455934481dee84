package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")

	p, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path())
	assert.Equal(t, "", p.String(KeyLastDir))
	assert.True(t, p.Bool(KeyShowBase, true))
	assert.Equal(t, 900.0, p.Float(KeyWindowW, 900))
	assert.Empty(t, p.Recent())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")

	p, err := LoadFrom(path)
	require.NoError(t, err)
	p.SetString(KeyLastDir, "/data/fundus")
	p.SetString(KeyTool, "brush")
	p.SetBool(KeyShowSegment, false)
	p.SetFloat(KeyWindowW, 1280)
	p.AddRecent("/data/fundus/left.png")
	require.NoError(t, p.Save())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/fundus", loaded.String(KeyLastDir))
	assert.Equal(t, "brush", loaded.String(KeyTool))
	assert.False(t, loaded.Bool(KeyShowSegment, true))
	assert.Equal(t, 1280.0, loaded.Float(KeyWindowW, 0))
	assert.Equal(t, []string{"/data/fundus/left.png"}, loaded.Recent())
}

func TestLoadFromRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values: [unclosed"), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestTypeMismatchUsesFallback(t *testing.T) {
	p := newPrefs("")
	p.SetString(KeyShowBase, "yes")
	assert.True(t, p.Bool(KeyShowBase, true))
	assert.Equal(t, 2.5, p.Float(KeyShowBase, 2.5))
}

func TestRemoveRecent(t *testing.T) {
	p := newPrefs("")
	p.AddRecent("/img/a.png")
	p.AddRecent("/img/b.png")
	before := p.Recent()

	p.RemoveRecent("/img/a.png")
	p.RemoveRecent("/img/missing.png")

	assert.Equal(t, []string{"/img/b.png"}, p.Recent())
	assert.Equal(t, []string{"/img/b.png", "/img/a.png"}, before)
}

func TestAddRecentDeduplicatesAndBounds(t *testing.T) {
	p := newPrefs("")
	for i := 0; i < MaxRecent+3; i++ {
		p.AddRecent(fmt.Sprintf("/img/%d.png", i))
	}
	p.AddRecent("/img/5.png")

	recent := p.Recent()
	assert.Len(t, recent, MaxRecent)
	assert.Equal(t, "/img/5.png", recent[0])
	assert.Equal(t, "/img/10.png", recent[1])

	count := 0
	for _, r := range recent {
		if r == "/img/5.png" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
