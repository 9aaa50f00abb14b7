package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, "almoner", cfg.Graph.Database)
	assert.Equal(t, "http://localhost:8000", cfg.Resolver.BaseURL)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ALMONER_GRAPH_URI", "bolt://graph.internal:7687")
	t.Setenv("ALMONER_RESOLVER_BASE_URL", "http://resolver.internal:8000")
	t.Setenv("ALMONER_API_AUTH_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, "http://resolver.internal:8000", cfg.Resolver.BaseURL)
	assert.Equal(t, "secret", cfg.API.AuthToken)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Graph: GraphConfig{URI: "bolt://localhost:7687", Database: "almoner"},
		API:   APIConfig{ListenAddr: ":8080"},
	}
	require.NoError(t, valid.Validate())

	missingURI := valid
	missingURI.Graph.URI = ""
	assert.Error(t, missingURI.Validate())

	missingDB := valid
	missingDB.Graph.Database = ""
	assert.Error(t, missingDB.Validate())

	badTimeout := valid
	badTimeout.Resolver.TimeoutSeconds = -1
	assert.Error(t, badTimeout.Validate())

	noListen := valid
	noListen.API.ListenAddr = ""
	assert.Error(t, noListen.Validate())
}

func TestResolverConfig_Durations(t *testing.T) {
	r := ResolverConfig{TimeoutSeconds: 5, ProbeIntervalSeconds: 60}
	assert.Equal(t, 5*time.Second, r.Timeout())
	assert.Equal(t, time.Minute, r.ProbeInterval())

	// Zero values fall back to the defaults.
	zero := ResolverConfig{}
	assert.Equal(t, DefaultResolverTimeout, zero.Timeout())
	assert.Equal(t, DefaultProbeInterval, zero.ProbeInterval())
}

func TestGraphConfig_StringMasksPassword(t *testing.T) {
	g := GraphConfig{URI: "bolt://localhost:7687", Username: "neo4j", Password: "hunter2", Database: "almoner"}
	s := g.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "***")
}
