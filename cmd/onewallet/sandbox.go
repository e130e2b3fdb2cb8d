package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/layer-3/onewallet/adapters/store"
	"github.com/layer-3/onewallet/adapters/tokenizer"
	"github.com/layer-3/onewallet/config"
	"github.com/layer-3/onewallet/ports"
	"github.com/layer-3/onewallet/sandbox"
	transport "github.com/layer-3/onewallet/transport/http"
)

var commandSandbox = &cli.Command{
	Name:  "sandbox",
	Usage: "Run an in-memory wallet service, prover and network",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return runSandbox(c.Context, cfg)
	},
}

func runSandbox(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logger()
	gin.SetMode(gin.ReleaseMode)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	merchantKey, err := parseMerchantPublicKey(cfg.Sandbox.MerchantPublicKey)
	if err != nil {
		return err
	}

	var st ports.Store = store.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		st = store.NewRedisStore(client)
	}

	backend := sandbox.NewBackend(sandbox.Config{
		MerchantID:  cfg.MerchantID,
		MerchantKey: merchantKey,
		SMSCode:     cfg.Sandbox.SMSCode,
		Epoch:       cfg.Sandbox.Epoch,
		GasPrice:    cfg.Sandbox.GasPrice,
		Logger:      log,
	}, tokenizer.NewJWTTokenizer(signKey), st)

	router, err := transport.SetupRouter(backend, log)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Sandbox.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Sandbox.Addr).Info("sandbox listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseMerchantPublicKey(b64 string) (*rsa.PublicKey, error) {
	if b64 == "" {
		return nil, nil
	}
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode merchant public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse merchant public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("merchant public key is %T, not RSA", key)
	}
	return pub, nil
}
