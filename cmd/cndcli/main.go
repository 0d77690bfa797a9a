package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atomicswap/cnd/cndrpc"
	"github.com/urfave/cli"
)

const defaultControlSockName = "control.sock"

// defaultSocketPath mirrors cnd's own defaultDataDir/control.sock default,
// so cndcli talks to a stock daemon without any flags by default.
func defaultSocketPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", defaultControlSockName)
	}
	return filepath.Join(dir, ".cnd", "data", defaultControlSockName)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[cndcli] %v\n", err)
	os.Exit(1)
}

// getClient dials the control socket named by the global --socket flag.
func getClient(ctx *cli.Context) *cndrpc.Client {
	client, err := cndrpc.Dial(ctx.GlobalString("socket"))
	if err != nil {
		fatal(err)
	}
	return client
}

func main() {
	app := cli.NewApp()
	app.Name = "cndcli"
	app.Version = "0.1"
	app.Usage = "control plane for the cnd atomic swap daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "socket",
			Value: defaultSocketPath(),
			Usage: "path to cnd's Unix-domain control socket",
		},
	}
	app.Commands = []cli.Command{
		proposeCommand,
		acceptCommand,
		declineCommand,
		swapsCommand,
		swapCommand,
		fundCommand,
		redeemCommand,
		refundCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
