package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/layer-3/onewallet"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/service"
)

var commandLogin = &cli.Command{
	Name:  "login",
	Usage: "Log in by SMS and print the zkLogin address",
	Flags: loginFlags,
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, client *onewallet.Client, l *login) error {
			fmt.Println(l.proof.Address)
			return nil
		})
	},
}

// login is a session that went through the whole handshake.
type login struct {
	session   *service.Session
	ephemeral *core.Ephemeral
	proof     *core.ZkProof
}

func withSession(c *cli.Context, fn func(ctx context.Context, client *onewallet.Client, l *login) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	client, err := onewallet.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	l, err := doLogin(ctx, c, client)
	if err != nil {
		return err
	}
	defer l.session.Logout(ctx)

	return fn(ctx, client, l)
}

func doLogin(ctx context.Context, c *cli.Context, client *onewallet.Client) (*login, error) {
	mobile, err := core.NewMobile(c.String(prefixFlag.Name), c.String(mobileFlag.Name))
	if err != nil {
		return nil, err
	}
	provider, err := core.ParseProvider(c.String(providerFlag.Name))
	if err != nil {
		return nil, err
	}

	s := client.NewSession()
	codeID, err := s.RequestCode(ctx, mobile, provider)
	if err != nil {
		return nil, err
	}

	smsCode := c.String(smsCodeFlag.Name)
	if smsCode == "" {
		fmt.Fprintf(os.Stderr, "SMS code sent to %s: ", mobile)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read sms code: %w", err)
		}
		smsCode = strings.TrimSpace(line)
	}

	authCode, err := s.VerifyCode(ctx, mobile, provider, smsCode, codeID)
	if err != nil {
		return nil, err
	}
	eph, err := s.GenerateEphemeralForNetwork(ctx)
	if err != nil {
		return nil, err
	}
	auth, err := s.ExchangeToken(ctx, provider, authCode, core.LoginTypeSMS, eph.Nonce.Value)
	if err != nil {
		return nil, err
	}
	proof, err := s.FetchProof(ctx, service.ProofRequest{
		MaxEpoch:   eph.MaxEpoch,
		Randomness: eph.Randomness,
		KeyPair:    eph.KeyPair,
		JWT:        auth.JWT,
		Salt:       auth.Salt,
	})
	if err != nil {
		return nil, err
	}
	return &login{session: s, ephemeral: eph, proof: proof}, nil
}
