package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/layer-3/onewallet/config"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "conf",
		Aliases: []string{"c"},
		Usage:   "path to onewallet.yaml",
		EnvVars: []string{"ONEWALLET_CONF"},
	}
	mobileFlag = &cli.StringFlag{
		Name:     "mobile",
		Usage:    "subscriber number",
		EnvVars:  []string{"ONEWALLET_MOBILE"},
		Required: true,
	}
	prefixFlag = &cli.StringFlag{
		Name:    "prefix",
		Usage:   "country calling code",
		Value:   "855",
		EnvVars: []string{"ONEWALLET_MOBILE_PREFIX"},
	}
	providerFlag = &cli.StringFlag{
		Name:    "provider",
		Value:   "huione",
		EnvVars: []string{"ONEWALLET_PROVIDER"},
	}
	smsCodeFlag = &cli.StringFlag{
		Name:  "sms-code",
		Usage: "code received by SMS; prompted for when empty",
	}
)

var loginFlags = []cli.Flag{configFlag, mobileFlag, prefixFlag, providerFlag, smsCodeFlag}

func main() {
	app := &cli.App{
		Name:  "onewallet",
		Usage: "OneChain wallet client",
		Commands: []*cli.Command{
			commandSandbox,
			commandLogin,
			commandTransfer,
			commandCurrencies,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String(configFlag.Name))
}
