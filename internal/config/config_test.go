package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergedFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output: /tmp/out
image_workers: 0
http:
  timeout: 10s
  user_agent: file-agent
engine:
  enabled: false
  cache_ttl: 2m
sources:
  ikigai:
    show_nsfw: "true"
`), 0644))

	cfg, used, err := LoadMerged(Options{Path: path, UserAgent: "flag-agent", Debug: true})
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "/tmp/out", cfg.Output)
	assert.Equal(t, 5, cfg.ImageWorkers)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "flag-agent", cfg.HTTP.UserAgent)
	assert.False(t, cfg.Engine.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Engine.CacheTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 3*time.Minute, cfg.Engine.ActiveTTL)
	assert.Equal(t, "true", cfg.SourceSettings("ikigai")["show_nsfw"])
	assert.Empty(t, cfg.SourceSettings("cubari"))
}

func TestLoadMergedBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0644))

	_, _, err := LoadMerged(Options{Path: path})
	assert.Error(t, err)

	_, _, err = LoadMerged(Options{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoadMergedIgnoreConfig(t *testing.T) {
	cfg, used, err := LoadMerged(Options{IgnoreConfig: true, Output: "x", Source: "cubari"})
	require.NoError(t, err)

	assert.Equal(t, "(ignored config)", used)
	assert.Equal(t, "x", cfg.Output)
	assert.Equal(t, "cubari", cfg.DefaultSource)
	assert.Equal(t, 8*time.Second, cfg.Engine.WaitTimeout)
}

func TestSaveRoundTripKeepsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c.yaml")
	cfg := DefaultConfig()
	cfg.Engine.ReleaseDelay = 1500 * time.Millisecond

	require.NoError(t, SaveYAML(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "release_delay: 1.5s")

	back, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine, back.Engine)
}

func TestPrint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources["ikigai"] = map[string]string{"show_nsfw": "true"}

	var buf bytes.Buffer
	cfg.Print(&buf)

	assert.Contains(t, buf.String(), " -image_workers: 5\n")
	assert.Contains(t, buf.String(), " -engine.max_idle: 2\n")
	assert.Contains(t, buf.String(), " -sources.ikigai.show_nsfw: true\n")
}

func TestProfiles(t *testing.T) {
	p := Profiles{Root: t.TempDir()}

	_, _, err := p.Active()
	assert.ErrorIs(t, err, ErrNoConfig)

	path, err := p.InitDefault()
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = p.InitDefault()
	assert.ErrorIs(t, err, os.ErrExist)

	custom := DefaultConfig()
	custom.Output = "/comics"
	_, err = p.Create("work", custom)
	require.NoError(t, err)
	_, err = p.Create("work", custom)
	assert.Error(t, err)

	require.NoError(t, p.Switch("work"))
	label, activePath, err := p.Active()
	require.NoError(t, err)
	assert.Equal(t, "work", label)

	loaded, err := LoadYAML(activePath)
	require.NoError(t, err)
	assert.Equal(t, "/comics", loaded.Output)

	require.NoError(t, p.Rename("work", "home"))
	label, _, _ = p.Active()
	assert.Equal(t, "home", label)

	list, err := p.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.True(t, list[1].Active)

	require.NoError(t, p.Reset("home"))
	loaded, err = LoadYAML(p.Path("home"))
	require.NoError(t, err)
	assert.Equal(t, ".", loaded.Output)

	require.NoError(t, p.Remove("home"))
	label, _, _ = p.Active()
	assert.Equal(t, DefaultLabel, label)

	assert.Error(t, p.Remove(DefaultLabel))
	assert.Error(t, p.Switch("nope"))
	assert.Error(t, p.Switch("../escape"))
}

func TestProfilesImport(t *testing.T) {
	p := Profiles{Root: t.TempDir()}

	src := filepath.Join(t.TempDir(), "in.yaml")
	require.NoError(t, os.WriteFile(src, []byte("output: imported\n"), 0644))

	require.NoError(t, p.Import("shared", src))
	cfg, err := LoadYAML(p.Path("shared"))
	require.NoError(t, err)
	assert.Equal(t, "imported", cfg.Output)

	require.NoError(t, os.WriteFile(src, []byte(": not yaml ["), 0644))
	assert.Error(t, p.Import("broken", src))
}
