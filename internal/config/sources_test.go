package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSources(t, `
sources:
  notaires:
    base_url: https://notaires.example/liste
    link_pattern: /fr/annonce-immo/
    max_pages: 20
    delay_between_pages: 3s
`)
	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Contains(t, sources, "notaires")

	cfg := sources["notaires"]
	assert.Equal(t, "https://notaires.example/liste", cfg.BaseURL)
	assert.Equal(t, "/fr/annonce-immo/", cfg.LinkPattern)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.Equal(t, 3*time.Second, cfg.DelayBetweenPages)
}

func TestLoadSourcesDefaults(t *testing.T) {
	path := writeSources(t, `
sources:
  encheres:
    base_url: https://encheres.example/ventes
`)
	sources, err := LoadSources(path)
	require.NoError(t, err)

	cfg := sources["encheres"]
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 2*time.Second, cfg.DelayBetweenPages)
	assert.NotEmpty(t, cfg.LinkPattern)
}

func TestLoadSourcesRequiresBaseURL(t *testing.T) {
	path := writeSources(t, `
sources:
  broken:
    max_pages: 5
`)
	_, err := LoadSources(path)
	require.Error(t, err)
}
