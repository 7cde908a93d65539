package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMasterDefaults(t *testing.T) {
	cfg, err := LoadMaster()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "TEST", cfg.Allocator)
	require.True(t, cfg.Registry.IsSQL())
	require.False(t, cfg.TLS.Enabled())
}

func TestLoadMasterOverrides(t *testing.T) {
	t.Setenv("VIZSCHED_HTTP_ADDR", ":9090")
	t.Setenv("VIZSCHED_ALLOCATOR", "AWS")
	t.Setenv("VIZSCHED_REGISTRY_BACKEND", "dynamo")
	t.Setenv("VIZSCHED_ECS_SUBNETS", "subnet-1,subnet-2")

	cfg, err := LoadMaster()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, "AWS", cfg.Allocator)
	require.True(t, cfg.Registry.IsDynamo())
	require.Equal(t, []string{"subnet-1", "subnet-2"}, cfg.ECS.Subnets)
}

func TestLoadSlaveDefaults(t *testing.T) {
	cfg, err := LoadSlave()
	require.NoError(t, err)
	require.Equal(t, ":8081", cfg.HTTPAddr)
	require.Equal(t, 8443, cfg.RendererPort)
}
