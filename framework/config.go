package framework

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	ConfigFileEnv  = "DEPLOYER_CONFIG"
	configFileName = "deployer"

	// DefaultPrivateKey is the first prefunded account of a local hardhat/anvil node,
	// address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
	DefaultPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	DefaultRPCURL     = "http://127.0.0.1:8545"
	DefaultNetwork    = "localhost"
)

var (
	errMissingRPCURL     = errors.New("rpc_url is required")
	errMissingPrivateKey = errors.New("private_key is required")
	errInvalidTimeout    = errors.New("timeout must be positive")
)

type Config struct {
	Network        string        `mapstructure:"network"`
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	ArtifactsDir   string        `mapstructure:"artifacts_dir"`
	DeploymentsDir string        `mapstructure:"deployments_dir"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
	Timeout        time.Duration `mapstructure:"timeout"`
	LogLevel       string        `mapstructure:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Network:        DefaultNetwork,
		RPCURL:         DefaultRPCURL,
		PrivateKey:     DefaultPrivateKey,
		ArtifactsDir:   "artifacts",
		DeploymentsDir: "deployments",
		Timeout:        5 * time.Minute,
		LogLevel:       "info",
	}
}

// LoadConfig layers defaults, an optional config file and the environment, in
// increasing order of precedence. With an empty configFile a deployer.{yaml,json,toml}
// in the working directory is used when present.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("network", def.Network)
	v.SetDefault("rpc_url", def.RPCURL)
	v.SetDefault("chain_id", def.ChainID)
	v.SetDefault("private_key", def.PrivateKey)
	v.SetDefault("artifacts_dir", def.ArtifactsDir)
	v.SetDefault("deployments_dir", def.DeploymentsDir)
	v.SetDefault("gas_limit", def.GasLimit)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("log_level", def.LogLevel)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errMissingRPCURL
	}
	if c.PrivateKey == "" {
		return errMissingPrivateKey
	}
	if c.Timeout <= 0 {
		return errInvalidTimeout
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}
