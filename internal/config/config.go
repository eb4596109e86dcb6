// Package config is the process bootstrap configuration (SPEC_FULL.md §9):
// RPC endpoint list, stream URL, follower CSV path, aggregator URL, the
// durable store DSN, poll and refresh intervals, and the log/debug surface,
// loaded via Viper from a YAML/JSON file with environment variable
// overrides. There is no separate send endpoint (transactions go through
// the RPC endpoint list) and no buy sizing (that is per-follower policy
// read from the durable store).
//
// Grounded on the teacher's internal/config/config.go: defaults set with
// SetDefault before ReadInConfig, a post-unmarshal validation pass, and an
// env-override pass applied last so operators can patch a single value
// without touching the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the core's full bootstrap configuration.
type Config struct {
	// RPCEndpoints is the Chain Client's endpoint pool.
	RPCEndpoints []string `mapstructure:"rpc_endpoints"`
	// StreamURL is the Stream Ingest transport's websocket or gRPC target.
	StreamURL string `mapstructure:"stream_url"`
	// FollowerCSVPath points at the [FollowerID, PrivateKeyBase58] CSV
	// follower.LoadSigners reads.
	FollowerCSVPath string `mapstructure:"follower_csv_path"`
	// AggregatorURL is the fallback builder's quote-and-swap endpoint.
	AggregatorURL string `mapstructure:"aggregator_url"`
	// PostgresURL is the durable store.Store DSN.
	PostgresURL string `mapstructure:"postgres_url"`
	// PumpFunFeeRecipient is the protocol fee account the PumpFun builder
	// must credit on every buy/sell, base58-encoded.
	PumpFunFeeRecipient string `mapstructure:"pumpfun_fee_recipient"`
	// PoolSeedPath optionally points at a JSON file of known Raydium/
	// Meteora/Orca pool account sets, loaded into the pool index at
	// startup. Native dispatch to a family with no indexed pool for a
	// given mint pair fails that one dispatch; it does not fall back to
	// the aggregator.
	PoolSeedPath string `mapstructure:"pool_seed_path"`

	CallsPerSecond          int           `mapstructure:"calls_per_second"`
	ConfirmPollInterval     time.Duration `mapstructure:"confirm_poll_interval"`
	AggregatorTimeout       time.Duration `mapstructure:"aggregator_timeout"`
	LeaderRefreshInterval   time.Duration `mapstructure:"leader_refresh_interval"`
	FollowerRefreshInterval time.Duration `mapstructure:"follower_refresh_interval"`
	DedupSweepInterval      time.Duration `mapstructure:"dedup_sweep_interval"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultCallsPerSecond          = 20
	DefaultConfirmPollInterval     = 500 * time.Millisecond
	DefaultAggregatorTimeout       = 3 * time.Second
	DefaultLeaderRefreshInterval   = 5 * time.Minute
	DefaultFollowerRefreshInterval = 5 * time.Minute
	DefaultDedupSweepInterval      = 10 * time.Second
	DefaultLogFile                 = "copytrader.log"

	envPrefix = "COPYTRADER"
)

// Load reads path (YAML or JSON, by extension) into a validated Config,
// applying defaults first and environment overrides last.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"calls_per_second":          DefaultCallsPerSecond,
		"confirm_poll_interval":     DefaultConfirmPollInterval,
		"aggregator_timeout":        DefaultAggregatorTimeout,
		"leader_refresh_interval":   DefaultLeaderRefreshInterval,
		"follower_refresh_interval": DefaultFollowerRefreshInterval,
		"dedup_sweep_interval":      DefaultDedupSweepInterval,
		"log_file":                  DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyEnvironmentOverrides(v, &cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.RPCEndpoints) == 0 {
		return errors.New("config: rpc_endpoints is empty")
	}
	for _, endpoint := range cfg.RPCEndpoints {
		if err := validateURLScheme(endpoint, "http"); err != nil {
			return fmt.Errorf("config: rpc endpoint %q: %w", endpoint, err)
		}
	}
	if cfg.StreamURL == "" {
		return errors.New("config: stream_url is required")
	}
	if cfg.FollowerCSVPath == "" {
		return errors.New("config: follower_csv_path is required")
	}
	if cfg.PostgresURL == "" {
		return errors.New("config: postgres_url is required")
	}
	if cfg.PumpFunFeeRecipient == "" {
		return errors.New("config: pumpfun_fee_recipient is required")
	}
	if cfg.AggregatorURL != "" {
		if err := validateURLScheme(cfg.AggregatorURL, "http"); err != nil {
			return fmt.Errorf("config: aggregator_url: %w", err)
		}
	}
	if cfg.CallsPerSecond <= 0 {
		return errors.New("config: calls_per_second must be positive")
	}
	if cfg.ConfirmPollInterval <= 0 {
		return errors.New("config: confirm_poll_interval must be positive")
	}
	return nil
}

func validateURLScheme(rawURL, wantPrefix string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.HasPrefix(parsed.Scheme, wantPrefix) {
		return fmt.Errorf("expected a %q-prefixed scheme, got %q", wantPrefix, parsed.Scheme)
	}
	return nil
}

// applyEnvironmentOverrides lets individual fields be overridden post-file
// via COPYTRADER_-prefixed environment variables, mirroring the teacher's
// SOLANA_BOT_ prefix scheme. Only the handful of operator-rotated values
// (rather than every field) are wired here, matching the teacher's own
// selective override list.
func applyEnvironmentOverrides(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if endpoints := v.GetString("RPC_ENDPOINTS"); endpoints != "" {
		cfg.RPCEndpoints = splitAndTrim(endpoints)
	}
	if streamURL := v.GetString("STREAM_URL"); streamURL != "" {
		cfg.StreamURL = streamURL
	}
	if postgresURL := v.GetString("POSTGRES_URL"); postgresURL != "" {
		cfg.PostgresURL = postgresURL
	}
	if followerCSV := v.GetString("FOLLOWER_CSV_PATH"); followerCSV != "" {
		cfg.FollowerCSVPath = followerCSV
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if clean := strings.TrimSpace(p); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
