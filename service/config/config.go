package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// Cluster names understood by the signer and the explorer.
const (
	ClusterDevnet      = "devnet"
	ClusterTestnet     = "testnet"
	ClusterMainnetBeta = "mainnet-beta"
)

// Reauthorization policies applied when a reauthorize call fails during a send.
const (
	// ReauthPolicyAnyError drops the session on any reauthorize failure.
	ReauthPolicyAnyError = "any-error"
	// ReauthPolicyRevocationOnly drops the session only when the signer
	// reported revocation or could not be reached.
	ReauthPolicyRevocationOnly = "revocation-only"
)

// Config holds all application configuration loaded from environment variables.
// All fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Ledger configuration
	Cluster             string
	SolanaRPCURL        string
	Commitment          rpc.CommitmentType
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	AirdropLamports     uint64

	// App identity presented to the signer
	AppName string
	AppURI  string
	AppIcon string

	// Signer transport configuration
	SignerNATSURL string
	SignerSubject string
	SignerTimeout time.Duration

	// Session configuration
	SessionStoreDir string
	ReauthPolicy    string

	// EventsNATSURL enables the JetStream activity publisher when set.
	EventsNATSURL string
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error listing every invalid setting.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Ledger configuration
	cfg.Cluster = getEnvOrDefault("SOLANA_CLUSTER", ClusterTestnet)
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultRPCURL(cfg.Cluster))
	cfg.Commitment = rpc.CommitmentType(getEnvOrDefault("LEDGER_COMMITMENT", string(rpc.CommitmentProcessed)))

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	airdrop, err := parseUint("AIRDROP_LAMPORTS", 1_000_000_000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.AirdropLamports = airdrop
	}

	// App identity
	cfg.AppName = getEnvOrDefault("APP_NAME", "walletlink")
	cfg.AppURI = os.Getenv("APP_URI")
	cfg.AppIcon = os.Getenv("APP_ICON")

	// Signer transport
	cfg.SignerNATSURL = getEnvOrDefault("SIGNER_NATS_URL", "nats://localhost:4222")
	cfg.SignerSubject = getEnvOrDefault("SIGNER_SUBJECT", "walletlink.signer")

	signerTimeout, err := parseDuration("SIGNER_TIMEOUT", "2m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignerTimeout = signerTimeout
	}

	// Session
	cfg.SessionStoreDir = getEnvOrDefault("SESSION_STORE_DIR", "./data/session")
	cfg.ReauthPolicy = getEnvOrDefault("REAUTH_POLICY", ReauthPolicyAnyError)

	// Activity events (optional)
	cfg.EventsNATSURL = os.Getenv("EVENTS_NATS_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for daemon initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cluster {
	case ClusterDevnet, ClusterTestnet, ClusterMainnetBeta:
	default:
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER must be one of %s, %s, %s (got %q)",
			ClusterDevnet, ClusterTestnet, ClusterMainnetBeta, c.Cluster))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Reads and confirmations favor responsiveness; finalized is never used.
	switch c.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_COMMITMENT must be %s or %s (got %q)",
			rpc.CommitmentProcessed, rpc.CommitmentConfirmed, c.Commitment))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CONFIRM_TIMEOUT must be positive"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL must be positive"))
	} else if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL (%v) cannot be greater than CONFIRM_TIMEOUT (%v)",
			c.ConfirmPollInterval, c.ConfirmTimeout))
	}

	if c.AppName == "" {
		errs = append(errs, fmt.Errorf("APP_NAME is required"))
	}

	if c.SignerNATSURL == "" {
		errs = append(errs, fmt.Errorf("SIGNER_NATS_URL is required"))
	}

	if c.SignerSubject == "" {
		errs = append(errs, fmt.Errorf("SIGNER_SUBJECT is required"))
	}

	if c.SignerTimeout < time.Second {
		errs = append(errs, fmt.Errorf("SIGNER_TIMEOUT must be at least 1 second"))
	}

	if c.SessionStoreDir == "" {
		errs = append(errs, fmt.Errorf("SESSION_STORE_DIR is required"))
	}

	switch c.ReauthPolicy {
	case ReauthPolicyAnyError, ReauthPolicyRevocationOnly:
	default:
		errs = append(errs, fmt.Errorf("REAUTH_POLICY must be %s or %s (got %q)",
			ReauthPolicyAnyError, ReauthPolicyRevocationOnly, c.ReauthPolicy))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AirdropSupported reports whether the configured cluster runs a faucet.
func (c *Config) AirdropSupported() bool {
	return c.Cluster != ClusterMainnetBeta
}

// DefaultRPCURL returns the public RPC endpoint for a cluster, or "" if unknown.
func DefaultRPCURL(cluster string) string {
	switch cluster {
	case ClusterDevnet:
		return rpc.DevNet_RPC
	case ClusterTestnet:
		return rpc.TestNet_RPC
	case ClusterMainnetBeta:
		return rpc.MainNetBeta_RPC
	default:
		return ""
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}
