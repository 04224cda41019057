package service

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/ethbridge/bridge-router/flags"
	opservice "github.com/mantlenetworkio/ethbridge/op-service"
	"github.com/mantlenetworkio/ethbridge/op-service/cliapp"
	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
)

func Main(version string) cliapp.LifecycleAction {
	return func(cliCtx *cli.Context, _ context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		if err := flags.CheckRequired(cliCtx); err != nil {
			return nil, err
		}
		cfg := NewConfig(cliCtx)
		if err := cfg.LoadChainConfig(); err != nil {
			return nil, err
		}
		if err := cfg.Check(); err != nil {
			return nil, fmt.Errorf("invalid CLI flags: %w", err)
		}

		l := oplog.NewLogger(oplog.AppOut(cliCtx), cfg.LogConfig)
		oplog.SetGlobalLogHandler(l.Handler())
		opservice.ValidateEnvVars(flags.EnvVarPrefix, flags.Flags, l)

		svc, err := BridgeRouterServiceFromCLIConfig(cliCtx.Context, version, cfg, l)
		if err != nil {
			return nil, err
		}
		l.Info("starting bridge router service")
		return svc, nil
	}
}
