// Package config loads the ingestor's process configuration from
// environment variables, applying sensible defaults and failing fast on an
// invalid combination rather than starting in an unsafe state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors Config's env-driven fields for an optional YAML
// config file (CONFIG_FILE). Fields left unset in the file are left unset
// here and never override an already-present environment variable.
type fileOverlay struct {
	ChainSource          string `yaml:"chain_source"`
	ContractAccount      string `yaml:"contract_account"`
	StartBlock           string `yaml:"start_block"`
	EndBlock             string `yaml:"end_block"`
	ReconnectDelay       string `yaml:"reconnect_delay"`
	MaxReconnectAttempts string `yaml:"max_reconnect_attempts"`
	ShipURL              string `yaml:"ship_url"`
	TLSCAPath            string `yaml:"tls_ca_path"`
	TLSVerify            string `yaml:"tls_verify"`
	PushAddr             string `yaml:"push_addr"`
	PushJWTKey           string `yaml:"push_jwt_key"`
	IPFSURL              string `yaml:"ipfs_url"`
	IPFSGateway          string `yaml:"ipfs_gateway"`
	S3Endpoint           string `yaml:"s3_endpoint"`
	S3Bucket             string `yaml:"s3_bucket"`
	S3Region             string `yaml:"s3_region"`
	CacheHost            string `yaml:"cache_host"`
	CachePort            string `yaml:"cache_port"`
	CacheTTL             string `yaml:"cache_ttl"`
	RPCURL               string `yaml:"rpc_url"`
	RequireAccountAuth   string `yaml:"require_account_auth"`
	AllowUnsignedEvents  string `yaml:"allow_unsigned_events"`
	LogLevel             string `yaml:"log_level"`
	MaxProcessedHashes   string `yaml:"max_processed_hashes"`
	AccountCacheTTL      string `yaml:"account_cache_ttl"`
	OTLPEndpoint         string `yaml:"otlp_endpoint"`
	HealthAddr           string `yaml:"health_addr"`
}

// applyFileOverlay reads CONFIG_FILE, if set, and exports any field present
// there into the process environment, without clobbering a variable the
// environment already defines. This lets a multi-environment deployment
// ship one YAML file per environment while still letting an operator
// override a single value with an env var at invocation time.
func applyFileOverlay() error {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read CONFIG_FILE %q: %w", path, err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse CONFIG_FILE %q: %w", path, err)
	}

	fields := map[string]string{
		"CHAIN_SOURCE":           overlay.ChainSource,
		"CONTRACT_ACCOUNT":       overlay.ContractAccount,
		"START_BLOCK":            overlay.StartBlock,
		"END_BLOCK":              overlay.EndBlock,
		"RECONNECT_DELAY":        overlay.ReconnectDelay,
		"MAX_RECONNECT_ATTEMPTS": overlay.MaxReconnectAttempts,
		"SHIP_URL":               overlay.ShipURL,
		"TLS_CA_PATH":            overlay.TLSCAPath,
		"TLS_VERIFY":             overlay.TLSVerify,
		"PUSH_ADDR":              overlay.PushAddr,
		"PUSH_JWT_KEY":           overlay.PushJWTKey,
		"IPFS_URL":               overlay.IPFSURL,
		"IPFS_GATEWAY":           overlay.IPFSGateway,
		"S3_ENDPOINT":            overlay.S3Endpoint,
		"S3_BUCKET":              overlay.S3Bucket,
		"S3_REGION":              overlay.S3Region,
		"CACHE_HOST":             overlay.CacheHost,
		"CACHE_PORT":             overlay.CachePort,
		"CACHE_TTL":              overlay.CacheTTL,
		"RPC_URL":                overlay.RPCURL,
		"REQUIRE_ACCOUNT_AUTH":   overlay.RequireAccountAuth,
		"ALLOW_UNSIGNED_EVENTS":  overlay.AllowUnsignedEvents,
		"LOG_LEVEL":              overlay.LogLevel,
		"MAX_PROCESSED_HASHES":   overlay.MaxProcessedHashes,
		"ACCOUNT_CACHE_TTL":      overlay.AccountCacheTTL,
		"OTLP_ENDPOINT":          overlay.OTLPEndpoint,
		"HEALTH_ADDR":            overlay.HealthAddr,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("config: apply CONFIG_FILE value for %s: %w", key, err)
		}
	}
	return nil
}

// ChainSourceKind selects which chain source the manager starts.
type ChainSourceKind string

const (
	ChainSourceStreaming ChainSourceKind = "streaming"
	ChainSourcePush      ChainSourceKind = "push"
)

// Config holds the ingestor's full configuration surface.
type Config struct {
	ChainSource     ChainSourceKind
	ContractAccount string
	StartBlock      uint64
	EndBlock        uint64

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	ShipURL    string // streaming source websocket endpoint
	TLSCAPath  string
	TLSVerify  bool
	PushAddr   string
	PushJWTKey string

	IPFSURL     string
	IPFSGateway string

	S3Endpoint string
	S3Bucket   string
	S3Region   string

	CacheHost string
	CachePort string
	CacheTTL  time.Duration

	RPCURL string

	RequireAccountAuth  bool
	AllowUnsignedEvents bool

	LogLevel string

	MaxProcessedHashes int
	AccountCacheTTL    time.Duration

	OTLPEndpoint string
	HealthAddr   string
}

// Load reads configuration from the environment, applies defaults, and
// validates the result. It returns an error instead of panicking so the
// caller (cmd/ingestord) can log and exit with a nonzero code.
func Load() (*Config, error) {
	if err := applyFileOverlay(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ChainSource:     ChainSourceKind(getEnv("CHAIN_SOURCE", string(ChainSourceStreaming))),
		ContractAccount: os.Getenv("CONTRACT_ACCOUNT"),
		StartBlock:      getEnvUint64("START_BLOCK", 0),
		EndBlock:        getEnvUint64("END_BLOCK", 0),

		ReconnectDelay:       getEnvDuration("RECONNECT_DELAY", time.Second),
		MaxReconnectAttempts: getEnvInt("MAX_RECONNECT_ATTEMPTS", 10),

		ShipURL:    getEnv("SHIP_URL", "ws://localhost:8999"),
		TLSCAPath:  os.Getenv("TLS_CA_PATH"),
		TLSVerify:  getEnvBool("TLS_VERIFY", true),
		PushAddr:   getEnv("PUSH_ADDR", ":8088"),
		PushJWTKey: os.Getenv("PUSH_JWT_KEY"),

		IPFSURL:     getEnv("IPFS_URL", "http://localhost:5001"),
		IPFSGateway: getEnv("IPFS_GATEWAY", "http://localhost:8080"),

		S3Endpoint: os.Getenv("S3_ENDPOINT"),
		S3Bucket:   getEnv("S3_BUCKET", "anchor-events"),
		S3Region:   getEnv("S3_REGION", "us-east-1"),

		CacheHost: getEnv("CACHE_HOST", "localhost"),
		CachePort: getEnv("CACHE_PORT", "6379"),
		CacheTTL:  getEnvDuration("CACHE_TTL", 24*time.Hour),

		RPCURL: os.Getenv("RPC_URL"),

		RequireAccountAuth:  getEnvBool("REQUIRE_ACCOUNT_AUTH", true),
		AllowUnsignedEvents: getEnvBool("ALLOW_UNSIGNED_EVENTS", false),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		MaxProcessedHashes: getEnvInt("MAX_PROCESSED_HASHES", 10000),
		AccountCacheTTL:    getEnvDuration("ACCOUNT_CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
		HealthAddr:   getEnv("HEALTH_ADDR", ":8089"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ContractAccount == "" {
		return fmt.Errorf("config: CONTRACT_ACCOUNT is required")
	}
	switch c.ChainSource {
	case ChainSourceStreaming, ChainSourcePush:
	default:
		return fmt.Errorf("config: CHAIN_SOURCE must be %q or %q, got %q", ChainSourceStreaming, ChainSourcePush, c.ChainSource)
	}
	if c.RequireAccountAuth && c.RPCURL == "" {
		return fmt.Errorf("config: RPC_URL is required when REQUIRE_ACCOUNT_AUTH is true")
	}
	if c.ChainSource == ChainSourcePush && c.PushJWTKey == "" {
		return fmt.Errorf("config: PUSH_JWT_KEY is required when CHAIN_SOURCE is %q", ChainSourcePush)
	}
	if c.MaxProcessedHashes <= 0 {
		return fmt.Errorf("config: MAX_PROCESSED_HASHES must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvUint64(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
