package di

import (
	"bytes"
	"context"
	"testing"

	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/dispatch"
	"github.com/mikey/decoy-alerts/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(settings map[string]any) func() (*config.Config, error) {
	return func() (*config.Config, error) {
		cfg := config.NewFromViper(config.NewEmptyViper())
		for key, value := range settings {
			cfg.Set(key, value)
		}
		return cfg, nil
	}
}

func TestBuildContainer_Resolves(t *testing.T) {
	container, err := BuildContainerWithConfig(testConfig(map[string]any{
		"database.type":   "memory",
		"alert.transport": "log",
		"logging.level":   "error",
	}))
	require.NoError(t, err)

	err = container.Invoke(func(server ports.InboundServer, service *core.IngestionService, dispatcher ports.AlertDispatcher, store ports.Store) {
		assert.NotNil(t, server)
		assert.NotNil(t, service)
		assert.IsType(t, &dispatch.Pool{}, dispatcher)
		require.NoError(t, dispatcher.Stop(context.Background()))
		require.NoError(t, store.Close())
	})
	require.NoError(t, err)
}

func TestBuildContainer_SyncDispatcher(t *testing.T) {
	container, err := BuildContainerWithConfig(testConfig(map[string]any{
		"database.type":    "memory",
		"alert.transport":  "log",
		"dispatch.workers": 0,
	}))
	require.NoError(t, err)

	err = container.Invoke(func(dispatcher ports.AlertDispatcher) {
		assert.IsType(t, &dispatch.Sync{}, dispatcher)
	})
	require.NoError(t, err)
}

func TestBuildContainer_UnknownTransport(t *testing.T) {
	container, err := BuildContainerWithConfig(testConfig(map[string]any{
		"database.type":   "memory",
		"alert.transport": "carrier-pigeon",
	}))
	require.NoError(t, err)

	err = container.Invoke(func(ports.InboundServer) {})
	assert.ErrorContains(t, err, "unsupported alert transport")
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	flags, err := ParseFlags("decoyctl", []string{"-db-type", "memory", "-verbose", "list", "-limit", "5"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "memory", flags.DatabaseType)
	assert.True(t, flags.Verbose)
	assert.Equal(t, []string{"list", "-limit", "5"}, flags.Args)
}

func TestBuildCLIContainer_AppliesOverrides(t *testing.T) {
	flags := &CLIFlags{DatabaseType: "memory"}
	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config, store ports.Store) {
		assert.Equal(t, "memory", cfg.GetString("database.type"))
		require.NoError(t, store.UpsertDecoy(context.Background(), &core.Decoy{Address: "a@decoy.test", CustomerEmail: "o@c.test"}))
	})
	require.NoError(t, err)
}
