package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/mantlenetworkio/ethbridge/op-service"
	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
	opmetrics "github.com/mantlenetworkio/ethbridge/op-service/metrics"
	oprpc "github.com/mantlenetworkio/ethbridge/op-service/rpc"
)

const EnvVarPrefix = "BRIDGE_ROUTER"

func prefixEnvVars(name string) []string {
	return opservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	// Required Flags
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Directory of the router database. Use \"memory\" for a non-persistent database.",
		EnvVars:  prefixEnvVars("DATADIR"),
		Required: true,
	}

	// Optional Flags
	ChainConfigFlag = &cli.PathFlag{
		Name:    "chain-config",
		Usage:   "Path to the TOML chain parameters. Defaults to the Sepolia test bridge.",
		EnvVars: prefixEnvVars("CHAIN_CONFIG"),
	}
	SubmitRateLimitFlag = &cli.Float64Flag{
		Name:    "submit.rate-limit",
		Usage:   "Maximum envelope submissions per second. Zero disables the limit.",
		EnvVars: prefixEnvVars("SUBMIT_RATE_LIMIT"),
		Value:   0,
	}
	SubmitBurstFlag = &cli.IntFlag{
		Name:    "submit.burst",
		Usage:   "Envelope submissions allowed in a burst above the rate limit",
		EnvVars: prefixEnvVars("SUBMIT_BURST"),
		Value:   16,
	}
	SubmitTimeoutFlag = &cli.DurationFlag{
		Name:    "submit.timeout",
		Usage:   "How long a submission may wait for the rate limiter",
		EnvVars: prefixEnvVars("SUBMIT_TIMEOUT"),
		Value:   5 * time.Second,
	}
)

var requiredFlags = []cli.Flag{
	DataDirFlag,
}

var optionalFlags = []cli.Flag{
	ChainConfigFlag,
	SubmitRateLimitFlag,
	SubmitBurstFlag,
	SubmitTimeoutFlag,
}

func init() {
	optionalFlags = append(optionalFlags, oprpc.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
