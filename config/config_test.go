package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, BackendBolt, cfg.StorageBackend)
	require.Equal(t, defaultTimeout, cfg.MessagingTimeout)
	require.Equal(t, defaultMaxRetries, cfg.MessagingMaxRetries)
}

func TestLoadConfigRequiresSelfIdentifier(t *testing.T) {
	_, err := LoadConfig([]string{})
	require.Error(t, err)
}

func TestLoadConfigRejectsSameSelfAndCounterparty(t *testing.T) {
	_, err := LoadConfig([]string{"--self=alice", "--counterparty=alice"})
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownStorageBackend(t *testing.T) {
	_, err := LoadConfig([]string{"--self=alice", "--counterparty=bob", "--storage=postgres"})
	require.Error(t, err)
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	cfg, err := LoadConfig([]string{"--self=alice", "--counterparty=bob", "--storage=memory", "--debuglevel=debug"})
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.SelfIdentifier)
	require.Equal(t, "bob", cfg.CounterpartyIdentifier)
	require.Equal(t, BackendMemory, cfg.StorageBackend)
	require.Equal(t, "debug", cfg.DebugLevel)
}

func TestCleanAndExpandPathExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/fixture")
	out := CleanAndExpandPath("~/data")
	require.Equal(t, "/home/fixture/data", out)
}

func TestCleanAndExpandPathEmptyIsNoop(t *testing.T) {
	require.Equal(t, "", CleanAndExpandPath(""))
}
