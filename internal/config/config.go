// Package config loads gallery service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"timeshift-nft/internal/evm"
)

// Config holds every setting the gallery binaries read from the environment.
// Flags in cmd/* override these values.
type Config struct {
	RPCEndpoint     string `env:"ETH_RPC_ENDPOINT"`
	WSEndpoint      string `env:"ETH_WS_ENDPOINT"`
	ContractAddress string `env:"NFT_CONTRACT_ADDRESS"`
	SignerAddress   string `env:"SIGNER_ADDRESS"`
	OwnerAddress    string `env:"OWNER_ADDRESS"` // gallery owner, defaults to the signer

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"3s"`
	RPCCallTimeout  time.Duration `env:"RPC_CALL_TIMEOUT" envDefault:"10s"`
	RPCMaxRetries   int           `env:"RPC_MAX_RETRIES" envDefault:"3"`
	RPCRateLimit    float64       `env:"RPC_RATE_LIMIT" envDefault:"0"` // requests per second, 0 = unlimited
	RPCRateBurst    int           `env:"RPC_RATE_BURST" envDefault:"1"`
	ResolverWorkers int           `env:"RESOLVER_WORKERS" envDefault:"1"`

	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"2s"`
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"5m"`
	ExplorerTxURL       string        `env:"EXPLORER_TX_URL" envDefault:"https://sepolia.etherscan.io/tx/"`

	PostgresDSN string `env:"POSTGRES_DSN"`
	UseMemory   bool   `env:"USE_MEMORY" envDefault:"false"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Load reads envFile (if it exists) into the process environment and parses Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile sets KEY=VALUE pairs from path without overriding existing variables.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

// Owner returns the address whose tokens the gallery shows.
func (c *Config) Owner() string {
	if c.OwnerAddress != "" {
		return c.OwnerAddress
	}
	return c.SignerAddress
}

// CanMint reports whether a signer is configured.
func (c *Config) CanMint() bool {
	return c.SignerAddress != ""
}

// Validate checks the settings a running gallery needs. A missing signer
// leaves the gallery read-only.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCEndpoint == "" {
		errs = append(errs, errors.New("ETH_RPC_ENDPOINT is required"))
	}
	if c.ContractAddress == "" {
		errs = append(errs, errors.New("NFT_CONTRACT_ADDRESS is required"))
	} else if !evm.IsHexAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("NFT_CONTRACT_ADDRESS %q is not a hex address", c.ContractAddress))
	}
	if c.SignerAddress != "" && !evm.IsHexAddress(c.SignerAddress) {
		errs = append(errs, fmt.Errorf("SIGNER_ADDRESS %q is not a hex address", c.SignerAddress))
	}
	if c.OwnerAddress != "" && !evm.IsHexAddress(c.OwnerAddress) {
		errs = append(errs, fmt.Errorf("OWNER_ADDRESS %q is not a hex address", c.OwnerAddress))
	}
	if c.Owner() == "" {
		errs = append(errs, errors.New("OWNER_ADDRESS or SIGNER_ADDRESS is required"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.RPCCallTimeout <= 0 {
		errs = append(errs, errors.New("RPC_CALL_TIMEOUT must be positive"))
	}
	if c.RPCMaxRetries < 0 {
		errs = append(errs, errors.New("RPC_MAX_RETRIES must not be negative"))
	}
	if c.RPCRateLimit < 0 {
		errs = append(errs, errors.New("RPC_RATE_LIMIT must not be negative"))
	}
	if c.ResolverWorkers < 1 {
		errs = append(errs, errors.New("RESOLVER_WORKERS must be at least 1"))
	}
	if c.ReceiptPollInterval <= 0 {
		errs = append(errs, errors.New("RECEIPT_POLL_INTERVAL must be positive"))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("CONFIRM_TIMEOUT must be positive"))
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required (set USE_MEMORY=true for in-memory storage)"))
	}

	return errors.Join(errs...)
}
