package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/provenance-network/anchor-ingestor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearIngestorEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHAIN_SOURCE", "CONTRACT_ACCOUNT", "START_BLOCK", "END_BLOCK",
		"RECONNECT_DELAY", "MAX_RECONNECT_ATTEMPTS", "SHIP_URL", "TLS_CA_PATH",
		"TLS_VERIFY", "PUSH_ADDR", "PUSH_JWT_KEY", "IPFS_URL", "IPFS_GATEWAY",
		"S3_ENDPOINT", "S3_BUCKET", "S3_REGION", "CACHE_HOST", "CACHE_PORT",
		"CACHE_TTL", "RPC_URL", "REQUIRE_ACCOUNT_AUTH", "ALLOW_UNSIGNED_EVENTS",
		"LOG_LEVEL", "MAX_PROCESSED_HASHES", "ACCOUNT_CACHE_TTL", "OTLP_ENDPOINT",
		"HEALTH_ADDR", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_RequiresContractAccount(t *testing.T) {
	clearIngestorEnv(t)
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_DefaultsWithMinimalEnv(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.ChainSourceStreaming, cfg.ChainSource)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.RequireAccountAuth)
	assert.False(t, cfg.AllowUnsignedEvents)
	assert.Equal(t, 10000, cfg.MaxProcessedHashes)
	assert.Equal(t, 5*time.Minute, cfg.AccountCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLoad_RequiresRPCURLWhenAccountAuthRequired(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("REQUIRE_ACCOUNT_AUTH", "true")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_PermissiveModeDoesNotRequireRPCURL(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("REQUIRE_ACCOUNT_AUTH", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.RequireAccountAuth)
}

func TestLoad_PushSourceRequiresJWTKey(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")
	t.Setenv("CHAIN_SOURCE", "push")

	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("PUSH_JWT_KEY", "secret")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.ChainSourcePush, cfg.ChainSource)
}

func TestLoad_RejectsInvalidChainSource(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")
	t.Setenv("CHAIN_SOURCE", "carrier-pigeon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_FileOverlayFillsUnsetEnv(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")

	dir := t.TempDir()
	path := dir + "/ingestor.yaml"
	require.NoError(t, os.WriteFile(path, []byte("log_level: DEBUG\ncache_ttl: 1h\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestLoad_FileOverlayDoesNotOverrideExistingEnv(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")
	t.Setenv("LOG_LEVEL", "WARN")

	dir := t.TempDir()
	path := dir + "/ingestor.yaml"
	require.NoError(t, os.WriteFile(path, []byte("log_level: DEBUG\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearIngestorEnv(t)
	t.Setenv("CONTRACT_ACCOUNT", "anchor.contract")
	t.Setenv("RPC_URL", "http://localhost:8888")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MAX_PROCESSED_HASHES", "500")
	t.Setenv("ACCOUNT_CACHE_TTL", "1m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 500, cfg.MaxProcessedHashes)
	assert.Equal(t, time.Minute, cfg.AccountCacheTTL)
}
