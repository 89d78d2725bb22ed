package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3001", cfg.NodeODM.URL)
	assert.Equal(t, 5_000_000, cfg.PointCloud.MaxPoints)
	assert.Equal(t, 2_000_000, cfg.PointCloud.DefaultPoints)
	assert.Equal(t, os.TempDir(), cfg.Cache.Dir)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090

[nodeodm]
url = "http://odm.internal:3001"

[cache]
ttl = "30m"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://odm.internal:3001", cfg.NodeODM.URL)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL())
	// untouched keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[nodeodm]\nurl = \"http://from-file:3001\"\n"), 0o644))

	t.Setenv("ODM_NODEODM_URL", "http://from-env:3001")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:3001", cfg.NodeODM.URL)
}

func TestNodeODMURLConvenienceVar(t *testing.T) {
	t.Setenv("NODEODM_URL", "http://convenience:3001")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://convenience:3001", cfg.NodeODM.URL)
}

func TestCacheTTLFallsBackOnGarbage(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{TTL: "soon"}}
	assert.Equal(t, time.Hour, cfg.CacheTTL())

	cfg.Cache.TTL = "-5m"
	assert.Equal(t, time.Hour, cfg.CacheTTL())
}

func TestNodeODMTimeout(t *testing.T) {
	cfg := &Config{NodeODM: NodeODMConfig{Timeout: "45s"}}
	assert.Equal(t, 45*time.Second, cfg.NodeODMTimeout())

	cfg.NodeODM.Timeout = "bogus"
	assert.Equal(t, time.Duration(0), cfg.NodeODMTimeout())
}
