// Package config loads the chain parameters of the router from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/router"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// ChainConfig holds the parameters of the bridged chains and the genesis state of the router.
type ChainConfig struct {
	EthereumChainID        uint64
	BridgeHub              types.Origin
	AssetHub               types.Origin
	Treasury               types.AccountID
	ExecutionCost          types.Balance
	DefaultMinExecutionFee types.Balance
	MinExecutionFee        map[types.Origin]types.Balance
	ProcessedCacheSize     int
	HeaderCapacity         int
	Genesis                router.Genesis
}

// fileConfig is the TOML layout. TOML keys are strings, so per-chain fees are hydrated into
// ChainConfig after decoding.
type fileConfig struct {
	EthereumChainID        uint64                   `toml:"ethereum_chain_id"`
	BridgeHub              types.Origin             `toml:"bridge_hub"`
	AssetHub               types.Origin             `toml:"asset_hub"`
	Treasury               types.AccountID          `toml:"treasury"`
	ExecutionCost          types.Balance            `toml:"execution_cost"`
	DefaultMinExecutionFee types.Balance            `toml:"default_min_execution_fee"`
	MinExecutionFee        map[string]types.Balance `toml:"min_execution_fee,omitempty"`
	ProcessedCacheSize     int                      `toml:"processed_cache_size,omitempty"`
	HeaderCapacity         int                      `toml:"header_capacity,omitempty"`
	Genesis                router.Genesis           `toml:"genesis"`
}

// Default returns parameters for a Sepolia test bridge.
func Default() *ChainConfig {
	const (
		assetHub = types.Origin(1000)
		penpal   = types.Origin(2000)
	)
	return &ChainConfig{
		EthereumChainID:        11155111,
		BridgeHub:              1013,
		AssetHub:               assetHub,
		Treasury:               types.AccountID{0x6d, 0x6f, 0x64, 0x6c, 0x70, 0x79, 0x2f, 0x74, 0x72, 0x73, 0x72, 0x79},
		ExecutionCost:          types.NewBalance(1_000_000),
		DefaultMinExecutionFee: types.NewBalance(1_000_000_000),
		MinExecutionFee: map[types.Origin]types.Balance{
			penpal: types.NewBalance(5_000),
		},
		ProcessedCacheSize: router.DefaultProcessedCacheSize,
		HeaderCapacity:     inbound.DefaultHeaderCapacity,
		Genesis: router.Genesis{
			Gateway: common.HexToAddress("0xEDa338E4dC46038493b885327842fD3E301CaB39"),
			Pricing: types.DefaultPricingParameters(),
			Mode:    types.Normal,
			Allocations: []router.Allocation{
				{Account: types.SiblingSovereign(assetHub), Amount: types.Units(1, 18)},
			},
		},
	}
}

// Load reads a chain config file. Unknown keys are rejected.
func Load(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config: %w", err)
	}
	return Decode(data)
}

func Decode(data []byte) (*ChainConfig, error) {
	var raw fileConfig
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chain config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown chain config keys: %s", strings.Join(keys, ", "))
	}
	cfg := &ChainConfig{
		EthereumChainID:        raw.EthereumChainID,
		BridgeHub:              raw.BridgeHub,
		AssetHub:               raw.AssetHub,
		Treasury:               raw.Treasury,
		ExecutionCost:          raw.ExecutionCost,
		DefaultMinExecutionFee: raw.DefaultMinExecutionFee,
		MinExecutionFee:        make(map[types.Origin]types.Balance, len(raw.MinExecutionFee)),
		ProcessedCacheSize:     raw.ProcessedCacheSize,
		HeaderCapacity:         raw.HeaderCapacity,
		Genesis:                raw.Genesis,
	}
	for k, fee := range raw.MinExecutionFee {
		para, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid para ID %q in min_execution_fee: %w", k, err)
		}
		cfg.MinExecutionFee[types.Origin(para)] = fee
	}
	return cfg, nil
}

// Encode renders the config as TOML, in the layout Decode reads.
func (c *ChainConfig) Encode() ([]byte, error) {
	raw := fileConfig{
		EthereumChainID:        c.EthereumChainID,
		BridgeHub:              c.BridgeHub,
		AssetHub:               c.AssetHub,
		Treasury:               c.Treasury,
		ExecutionCost:          c.ExecutionCost,
		DefaultMinExecutionFee: c.DefaultMinExecutionFee,
		MinExecutionFee:        make(map[string]types.Balance, len(c.MinExecutionFee)),
		ProcessedCacheSize:     c.ProcessedCacheSize,
		HeaderCapacity:         c.HeaderCapacity,
		Genesis:                c.Genesis,
	}
	for para, fee := range c.MinExecutionFee {
		raw.MinExecutionFee[strconv.FormatUint(uint64(para), 10)] = fee
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ChainConfig) Check() error {
	if c.HeaderCapacity < 0 || c.ProcessedCacheSize < 0 {
		return errors.New("cache sizes must not be negative")
	}
	if err := c.RouterConfig().Check(); err != nil {
		return err
	}
	if err := c.Genesis.Check(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	return nil
}

// RouterConfig returns the router part of the chain config.
func (c *ChainConfig) RouterConfig() *router.Config {
	return &router.Config{
		Inbound: inbound.Config{
			EthereumChainID:        c.EthereumChainID,
			BridgeHub:              c.BridgeHub,
			AssetHub:               c.AssetHub,
			MinExecutionFee:        c.MinExecutionFee,
			DefaultMinExecutionFee: c.DefaultMinExecutionFee,
		},
		Treasury:           c.Treasury,
		ExecutionCost:      c.ExecutionCost,
		ProcessedCacheSize: c.ProcessedCacheSize,
	}
}
