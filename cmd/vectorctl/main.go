// vectorctl is a command-line driver of the channel core, in the shape of
// cmd/lncli: one subcommand per driver operation. Because spec.md §1 places
// the RPC/gRPC surface outside the core's scope, vectorctl does not dial a
// remote daemon — it runs both participants' drivers locally against their
// own persisted storage, wired to each other over one loopback
// messaging.Bus, and drives one side's operation to completion. Each
// invocation is a fresh process, so --datadir is where both sides'
// state is durably kept between runs.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[vectorctl] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "vectorctl"
	app.Usage = "control plane for the vector channel core"
	app.Version = "0.1"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: "./vectorctl-data",
			Usage: "directory holding both participants' persisted channel state",
		},
		cli.StringFlag{
			Name:  "self",
			Value: "alice",
			Usage: "public identifier of the participant issuing this command",
		},
		cli.StringFlag{
			Name:  "counterparty",
			Value: "bob",
			Usage: "public identifier of the other participant",
		},
		cli.StringFlag{
			Name:  "chainrpc",
			Usage: "EVM JSON-RPC endpoint (omit to use an in-memory mock chain)",
		},
		cli.StringFlag{
			Name:  "adjudicator",
			Usage: "on-chain adjudicator contract address",
		},
	}
	app.Commands = []cli.Command{
		setupCommand,
		depositCommand,
		createCommand,
		resolveCommand,
		getChannelCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
