// Package config loads client and sandbox settings from YAML with ONEWALLET_* overrides.
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ONEWALLET_"

// Config is the contents of onewallet.yaml.
type Config struct {
	WalletURL      string        `yaml:"walletUrl"`
	RPCURL         string        `yaml:"rpcUrl"`
	MerchantID     string        `yaml:"merchantId"`
	MerchantKey    string        `yaml:"merchantKey"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	Retry          RetryConfig   `yaml:"retry"`
	RateLimit      float64       `yaml:"rateLimit"`
	RateBurst      int           `yaml:"rateBurst"`
	EpochWindow    uint64        `yaml:"epochWindow"`
	// RedisURL selects the Redis nonce registry and event stream; empty keeps both in memory.
	RedisURL string        `yaml:"redisUrl"`
	LogLevel string        `yaml:"logLevel"`
	Sandbox  SandboxConfig `yaml:"sandbox"`
}

// RetryConfig bounds retries of idempotent remote calls.
type RetryConfig struct {
	Attempts  uint          `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"baseDelay"`
}

// SandboxConfig configures `onewallet sandbox`.
type SandboxConfig struct {
	Addr     string `yaml:"addr"`
	SMSCode  string `yaml:"smsCode"`
	Epoch    uint64 `yaml:"epoch"`
	GasPrice uint64 `yaml:"gasPrice"`
	// MerchantPublicKey is a base64 PKIX RSA key; empty skips merchant signature checks.
	MerchantPublicKey string `yaml:"merchantPublicKey"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		WalletURL:      "http://localhost:9000",
		RPCURL:         "http://localhost:9000/rpc",
		RequestTimeout: 15 * time.Second,
		Retry:          RetryConfig{Attempts: 4, BaseDelay: 200 * time.Millisecond},
		RateLimit:      20,
		RateBurst:      10,
		EpochWindow:    30,
		LogLevel:       "info",
		Sandbox: SandboxConfig{
			Addr:     ":9000",
			SMSCode:  "123456",
			Epoch:    100,
			GasPrice: 1000,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates the result.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read config file '%v'", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config from file '%v'", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("WALLET_URL", &c.WalletURL)
	str("RPC_URL", &c.RPCURL)
	str("MERCHANT_ID", &c.MerchantID)
	str("MERCHANT_KEY", &c.MerchantKey)
	str("REDIS_URL", &c.RedisURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("SANDBOX_ADDR", &c.Sandbox.Addr)
	str("SANDBOX_SMS_CODE", &c.Sandbox.SMSCode)
	str("SANDBOX_MERCHANT_PUBLIC_KEY", &c.Sandbox.MerchantPublicKey)

	if v, ok := lookup(EnvPrefix + "REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sREQUEST_TIMEOUT", EnvPrefix)
		}
		c.RequestTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "EPOCH_WINDOW"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %sEPOCH_WINDOW", EnvPrefix)
		}
		c.EpochWindow = n
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %sRATE_LIMIT", EnvPrefix)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"walletUrl": c.WalletURL, "rpcUrl": c.RPCURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.Errorf("%s must be an http(s) url, got %q", name, raw)
		}
	}
	if c.RequestTimeout <= 0 {
		return errors.New("requestTimeout must be positive")
	}
	if c.EpochWindow == 0 {
		return errors.New("epochWindow must be positive")
	}
	if c.Retry.Attempts == 0 {
		return errors.New("retry.attempts must be at least 1")
	}
	if c.RateLimit < 0 {
		return errors.New("rateLimit cannot be negative")
	}
	if (c.MerchantID == "") != (c.MerchantKey == "") {
		return errors.New("merchantId and merchantKey must be set together")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid logLevel")
	}
	return nil
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}
