package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/ethbridge/bridge-router/config"
	"github.com/mantlenetworkio/ethbridge/bridge-router/flags"
	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
	opmetrics "github.com/mantlenetworkio/ethbridge/op-service/metrics"
	oprpc "github.com/mantlenetworkio/ethbridge/op-service/rpc"
)

// MemoryDataDir selects a database that lives only as long as the process.
const MemoryDataDir = "memory"

type CLIConfig struct {
	DataDir         string
	ChainConfigPath string
	SubmitRateLimit float64
	SubmitBurst     int
	SubmitTimeout   time.Duration
	RPCConfig       oprpc.CLIConfig
	LogConfig       oplog.CLIConfig
	MetricsConfig   opmetrics.CLIConfig

	// Chain is loaded from ChainConfigPath by LoadChainConfig.
	Chain *config.ChainConfig
}

func (c *CLIConfig) Check() error {
	if err := c.RPCConfig.Check(); err != nil {
		return err
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return err
	}
	if c.DataDir == "" {
		return errors.New("datadir is required")
	}
	if c.SubmitRateLimit < 0 {
		return errors.New("submit rate limit must not be negative")
	}
	if c.SubmitRateLimit > 0 && c.SubmitBurst <= 0 {
		return errors.New("submit burst must be positive when rate limited")
	}
	if c.Chain == nil {
		return errors.New("missing chain config")
	}
	if err := c.Chain.Check(); err != nil {
		return fmt.Errorf("invalid chain config: %w", err)
	}
	return nil
}

// LoadChainConfig reads the chain config file, or uses the default one if no path is set.
func (c *CLIConfig) LoadChainConfig() error {
	if c.ChainConfigPath == "" {
		c.Chain = config.Default()
		return nil
	}
	chain, err := config.Load(c.ChainConfigPath)
	if err != nil {
		return err
	}
	c.Chain = chain
	return nil
}

func NewConfig(ctx *cli.Context) *CLIConfig {
	return &CLIConfig{
		// Required Flags
		DataDir: ctx.String(flags.DataDirFlag.Name),

		// Optional Flags
		ChainConfigPath: ctx.Path(flags.ChainConfigFlag.Name),
		SubmitRateLimit: ctx.Float64(flags.SubmitRateLimitFlag.Name),
		SubmitBurst:     ctx.Int(flags.SubmitBurstFlag.Name),
		SubmitTimeout:   ctx.Duration(flags.SubmitTimeoutFlag.Name),
		RPCConfig:       oprpc.ReadCLIConfig(ctx),
		LogConfig:       oplog.ReadCLIConfig(ctx),
		MetricsConfig:   opmetrics.ReadCLIConfig(ctx),
	}
}
