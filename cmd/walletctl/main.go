// walletctl is a thin JSON-RPC client for walletd's request surface, the
// operator-facing counterpart to full-service's own client, in the shape
// of dcrlncli: an urfave/cli command table where each command marshals
// its own params and renders the result with go-pretty.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "walletctl"
	app.Usage = "control plane for walletd"
	app.Version = "2.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:9090",
			Usage: "host:port walletd's request surface listens on",
		},
		cli.StringFlag{
			Name:  "macaroon",
			Usage: "hex-encoded macaroon to present on write methods",
		},
	}
	app.Commands = []cli.Command{
		versionCommand,
		createAccountCommand,
		listAccountsCommand,
		accountStatusCommand,
		assignAddressCommand,
		buildAndSubmitCommand,
		giftCodeCommands,
		networkStatusCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "[walletctl]", err)
		os.Exit(1)
	}
}
