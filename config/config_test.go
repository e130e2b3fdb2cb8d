package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(30), cfg.EpochWindow)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onewallet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
walletUrl: https://wallet.example.com
rpcUrl: https://rpc.example.com
requestTimeout: 3s
epochWindow: 10
retry:
  attempts: 2
  baseDelay: 50ms
sandbox:
  smsCode: "999999"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.example.com", cfg.WalletURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint64(10), cfg.EpochWindow)
	assert.Equal(t, uint(2), cfg.Retry.Attempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, "999999", cfg.Sandbox.SMSCode)
	assert.Equal(t, ":9000", cfg.Sandbox.Addr)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"ONEWALLET_WALLET_URL":      "https://override.example.com",
		"ONEWALLET_REQUEST_TIMEOUT": "7s",
		"ONEWALLET_EPOCH_WINDOW":    "5",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "https://override.example.com", cfg.WalletURL)
	assert.Equal(t, 7*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint64(5), cfg.EpochWindow)

	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "ONEWALLET_EPOCH_WINDOW" {
			return "many", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"bad url":          func(c *Config) { c.WalletURL = "wallet" },
		"zero timeout":     func(c *Config) { c.RequestTimeout = 0 },
		"zero window":      func(c *Config) { c.EpochWindow = 0 },
		"merchant id only": func(c *Config) { c.MerchantID = "m1" },
		"bad level":        func(c *Config) { c.LogLevel = "loud" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
