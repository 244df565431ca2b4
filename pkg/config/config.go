package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/types"
)

// RepositoryConfig holds per-repository storage settings (§4.1, §10.3).
type RepositoryConfig struct {
	DataDir          string `yaml:"data_dir"`
	QuotaBytes       int64  `yaml:"quota_bytes"`
	BlockRequestMode string `yaml:"block_request_mode"` // "lazy" or "greedy"
}

// NetworkConfig holds peer-connection and protocol timing settings
// (§4.5.2, §4.6, §10.3).
type NetworkConfig struct {
	ListenAddresses  []string      `yaml:"listen_addresses"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff  time.Duration `yaml:"max_retry_backoff"`
	LinkPermits      int           `yaml:"link_permits"`
	PeerPermits      int           `yaml:"peer_permits"`
}

// LoggingConfig mirrors pkg/log.Config in a YAML-serializable shape (the
// teacher's log.Config carries an io.Writer, which yaml can't decode).
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// APIConfig holds the management gRPC API's listen address (§6.4).
type APIConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// Config is the aggregate, top-level configuration loaded for one
// warrensync-repld process.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Network    NetworkConfig    `yaml:"network"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

// Default returns a Config with every field set to its documented
// default, the way log.Init defaults Output to os.Stdout when the
// caller leaves it unset.
func Default() Config {
	return Config{
		Repository: RepositoryConfig{
			DataDir:          "./data",
			QuotaBytes:       0, // unlimited
			BlockRequestMode: "lazy",
		},
		Network: NetworkConfig{
			ListenAddresses:  []string{"0.0.0.0:35421"},
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   30 * time.Second,
			RetryBackoff:     time.Second,
			MaxRetryBackoff:  time.Minute,
			LinkPermits:      8,
			PeerPermits:      32,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		API: APIConfig{
			ListenAddress: "127.0.0.1:35420",
		},
	}
}

// Load reads a YAML config file at path, merging it over Default() so an
// omitted section or field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether cfg describes a usable configuration.
func (c Config) Validate() error {
	switch c.Repository.BlockRequestMode {
	case "lazy", "greedy":
	default:
		return fmt.Errorf("config: block_request_mode must be \"lazy\" or \"greedy\", got %q", c.Repository.BlockRequestMode)
	}
	if c.Repository.DataDir == "" {
		return fmt.Errorf("config: repository.data_dir must not be empty")
	}
	if len(c.Network.ListenAddresses) == 0 {
		return fmt.Errorf("config: network.listen_addresses must not be empty")
	}
	return nil
}

// RequestMode translates the configured string into a types.BlockRequestMode
// (§4.7 Greedy vs Lazy).
func (c Config) RequestMode() types.BlockRequestMode {
	if c.Repository.BlockRequestMode == "greedy" {
		return types.ModeGreedy
	}
	return types.ModeLazy
}

// ToLogConfig adapts the YAML-serializable LoggingConfig into pkg/log's
// own Config shape.
func (l LoggingConfig) ToLogConfig() log.Config {
	return log.Config{
		Level:      log.Level(l.Level),
		JSONOutput: l.JSON,
	}
}
