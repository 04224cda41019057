package rpc

import (
	"errors"
	"math"

	"github.com/urfave/cli/v2"

	opservice "github.com/mantlenetworkio/ethbridge/op-service"
)

const (
	ListenAddrFlagName  = "rpc.addr"
	PortFlagName        = "rpc.port"
	EnableAdminFlagName = "rpc.enable-admin"
	AdminJWTFlagName    = "rpc.admin-jwt-secret"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     ListenAddrFlagName,
			Usage:    "rpc listening address",
			Value:    "0.0.0.0",
			EnvVars:  opservice.PrefixEnvVar(envPrefix, "RPC_ADDR"),
			Category: "RPC",
		},
		&cli.IntFlag{
			Name:     PortFlagName,
			Usage:    "rpc listening port",
			Value:    8545,
			EnvVars:  opservice.PrefixEnvVar(envPrefix, "RPC_PORT"),
			Category: "RPC",
		},
		&cli.BoolFlag{
			Name:     EnableAdminFlagName,
			Usage:    "Enable the admin API",
			EnvVars:  opservice.PrefixEnvVar(envPrefix, "RPC_ENABLE_ADMIN"),
			Category: "RPC",
		},
		&cli.StringFlag{
			Name:     AdminJWTFlagName,
			Usage:    "Path to the JWT secret that authenticates admin API calls. Generated if missing.",
			EnvVars:  opservice.PrefixEnvVar(envPrefix, "RPC_ADMIN_JWT_SECRET"),
			Category: "RPC",
		},
	}
}

type CLIConfig struct {
	ListenAddr         string
	ListenPort         int
	EnableAdmin        bool
	AdminJWTSecretPath string
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		ListenAddr: "0.0.0.0",
		ListenPort: 8545,
	}
}

func (c CLIConfig) Check() error {
	if c.ListenPort < 0 || c.ListenPort > math.MaxUint16 {
		return errors.New("invalid RPC port")
	}
	if c.EnableAdmin && c.AdminJWTSecretPath == "" {
		return errors.New("the admin API requires a JWT secret path")
	}
	return nil
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		ListenAddr:         ctx.String(ListenAddrFlagName),
		ListenPort:         ctx.Int(PortFlagName),
		EnableAdmin:        ctx.Bool(EnableAdminFlagName),
		AdminJWTSecretPath: ctx.String(AdminJWTFlagName),
	}
}
