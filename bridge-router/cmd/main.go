package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/ethbridge/bridge-router/config"
	"github.com/mantlenetworkio/ethbridge/bridge-router/flags"
	"github.com/mantlenetworkio/ethbridge/bridge-router/metrics"
	"github.com/mantlenetworkio/ethbridge/bridge-router/service"
	opservice "github.com/mantlenetworkio/ethbridge/op-service"
	"github.com/mantlenetworkio/ethbridge/op-service/cliapp"
	"github.com/mantlenetworkio/ethbridge/op-service/ctxinterrupt"
	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
	"github.com/mantlenetworkio/ethbridge/op-service/metrics/doc"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Version = opservice.FormatVersion(Version, GitCommit, GitDate, "")
	app.Name = "bridge-router"
	app.Usage = "Bridge Message Router"
	app.Description = "Verifies, executes and queues messages between Ethereum and the parachains of the bridge hub"
	app.Action = cliapp.LifecycleCmd(service.Main(Version))
	app.Commands = []*cli.Command{
		{
			Name:        "doc",
			Subcommands: doc.NewSubcommands(metrics.NewMetrics("default")),
		},
		{
			Name:  "config",
			Usage: "Prints the default chain configuration as TOML",
			Action: func(ctx *cli.Context) error {
				out, err := config.Default().Encode()
				if err != nil {
					return err
				}
				_, err = ctx.App.Writer.Write(out)
				return err
			},
		},
	}

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}
