// Package config loads and validates the client configuration at startup.
// Fail-fast: an invalid value stops the process before anything connects.
//
// Values come from config.yml (optional) and environment variables; the
// environment wins.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gotify/configor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/wallet"
)

// Config holds all runtime configuration.
type Config struct {
	Backend struct {
		URL            string `default:"http://localhost:5000/api" env:"BACKEND_URL"`
		TimeoutSeconds int    `default:"15" env:"BACKEND_TIMEOUT_SECONDS"`
	}
	Session struct {
		Token string `default:"" env:"JOBMATE_TOKEN"`
	}
	Chain struct {
		RPCURL        string `default:"" env:"ETH_RPC_URL"`
		ChainID       int64  `default:"11155111" env:"CHAIN_ID"`
		PrivateKey    string `default:"" env:"WALLET_PRIVATE_KEY"`
		Recipient     string `default:"0x4A726DAabAaa2a9208d676Ecd09B7aC66453608F" env:"PAYMENT_RECIPIENT"`
		AmountETH     string `default:"0.001" env:"PAYMENT_AMOUNT_ETH"`
		ExplorerTxURL string `default:"https://sepolia.etherscan.io/tx/" env:"EXPLORER_TX_URL"`
	}
	Feed struct {
		DebounceMillis  int     `default:"300" env:"FEED_DEBOUNCE_MS"`
		SuggestionLimit int     `default:"5" env:"FEED_SUGGESTION_LIMIT"`
		Threshold       float64 `default:"0.3" env:"FEED_RECOMMEND_THRESHOLD"`
		RecommendLimit  int     `default:"3" env:"FEED_RECOMMEND_LIMIT"`
		RefreshMinutes  int     `default:"2" env:"FEED_REFRESH_MINUTES"`
	}
	Storage struct {
		DatabaseURL string `default:"" env:"DATABASE_URL"`
		RedisURL    string `default:"" env:"REDIS_URL"`
	}
	Server struct {
		GRPCPort string `default:"9090" env:"GRPC_PORT"`
		HTTPPort string `default:"8080" env:"HTTP_PORT"`
	}
	Log struct {
		Level  string `default:"info" env:"LOG_LEVEL"`
		Format string `default:"text" env:"LOG_FORMAT"`
	}

	amountWei *big.Int
}

// DefaultFiles are the config files looked up when Load gets none.
var DefaultFiles = []string{"config.yml"}

// Load reads the configuration and returns a validated Config.
// Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	conf := new(Config)
	if err := configor.New(&configor.Config{}).Load(conf, files...); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if u, err := url.ParseRequestURI(c.Backend.URL); err != nil || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.Backend.URL)
	}
	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be a positive integer, got %d", c.Backend.TimeoutSeconds)
	}
	if c.Chain.ChainID < 1 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.Chain.ChainID)
	}
	if !common.IsHexAddress(c.Chain.Recipient) {
		return fmt.Errorf("PAYMENT_RECIPIENT is not an address: %q", c.Chain.Recipient)
	}
	wei, err := wallet.ParseEther(c.Chain.AmountETH)
	if err != nil {
		return errors.Wrap(err, "PAYMENT_AMOUNT_ETH")
	}
	c.amountWei = wei
	if c.Chain.PrivateKey != "" && c.Chain.RPCURL == "" {
		return fmt.Errorf("ETH_RPC_URL is required when WALLET_PRIVATE_KEY is set")
	}
	if c.Feed.DebounceMillis < 1 || c.Feed.SuggestionLimit < 1 || c.Feed.RecommendLimit < 1 {
		return fmt.Errorf("feed debounce and limits must be positive")
	}
	if c.Feed.Threshold < 0 || c.Feed.Threshold >= 1 {
		return fmt.Errorf("FEED_RECOMMEND_THRESHOLD must be in [0,1), got %v", c.Feed.Threshold)
	}
	if c.Feed.RefreshMinutes < 1 {
		return fmt.Errorf("FEED_REFRESH_MINUTES must be a positive integer, got %d", c.Feed.RefreshMinutes)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// AmountWei is the payment amount in wei.
func (c *Config) AmountWei() *big.Int { return new(big.Int).Set(c.amountWei) }

// RecipientAddress is the payment recipient.
func (c *Config) RecipientAddress() common.Address { return common.HexToAddress(c.Chain.Recipient) }

// BackendTimeout is the per-request HTTP timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// Debounce is the suggestion debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Feed.DebounceMillis) * time.Millisecond
}

// RefreshSpec is the cron spec for the periodic feed refresh in serve mode.
func (c *Config) RefreshSpec() string { return fmt.Sprintf("@every %dm", c.Feed.RefreshMinutes) }
