package router

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

var (
	pricingKey  = db.Key(db.PrefixParam, []byte("pricing"))
	gatewayKey  = db.Key(db.PrefixParam, []byte("gateway"))
	modeKey     = db.Key(db.PrefixParam, []byte("mode"))
	eventSeqKey = db.Key(db.PrefixParam, []byte("event-seq"))
	genesisKey  = db.Key(db.PrefixParam, []byte("genesis"))
)

// Allocation is a native balance minted at genesis.
type Allocation struct {
	Account types.AccountID `json:"account" toml:"account"`
	Amount  types.Balance   `json:"amount" toml:"amount"`
}

// Genesis is the initial state of the router.
type Genesis struct {
	Gateway     common.Address          `json:"gateway" toml:"gateway"`
	Pricing     types.PricingParameters `json:"pricing" toml:"pricing"`
	Mode        types.OperatingMode     `json:"mode" toml:"mode"`
	Allocations []Allocation            `json:"allocations" toml:"allocations"`
}

func (g *Genesis) Check() error {
	if g.Gateway == (common.Address{}) {
		return fmt.Errorf("missing gateway address")
	}
	if !g.Mode.Valid() {
		return fmt.Errorf("unknown operating mode %d", uint8(g.Mode))
	}
	return g.Pricing.Check()
}

func readPricing(r db.Reader) (*types.PricingParameters, error) {
	data, ok, err := r.Get(pricingKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: pricing parameters not initialized", types.ErrRegistry)
	}
	var p types.PricingParameters
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: bad pricing parameters: %w", types.ErrRegistry, err)
	}
	return &p, nil
}

func writePricing(kv db.KV, p *types.PricingParameters) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return kv.Set(pricingKey, data)
}

func readGateway(r db.Reader) (common.Address, error) {
	data, ok, err := r.Get(gatewayKey)
	if err != nil {
		return common.Address{}, err
	}
	if !ok || len(data) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: gateway not initialized", types.ErrRegistry)
	}
	return common.BytesToAddress(data), nil
}

func writeGateway(kv db.KV, addr common.Address) error {
	return kv.Set(gatewayKey, addr[:])
}

func readMode(r db.Reader) (types.OperatingMode, error) {
	data, ok, err := r.Get(modeKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return types.Normal, nil
	}
	if len(data) != 1 || !types.OperatingMode(data[0]).Valid() {
		return 0, &db.CorruptValueError{Key: modeKey, Len: len(data)}
	}
	return types.OperatingMode(data[0]), nil
}

func writeMode(kv db.KV, mode types.OperatingMode) error {
	return kv.Set(modeKey, []byte{byte(mode)})
}

// applyGenesis writes the genesis state. It returns false if the state was initialized before.
func applyGenesis(kv db.KV, g *Genesis, bridgeHub types.Origin) (bool, error) {
	_, done, err := kv.Get(genesisKey)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	if err := registry.Genesis(kv, bridgeHub); err != nil {
		return false, fmt.Errorf("failed to create governance channels: %w", err)
	}
	if err := writePricing(kv, &g.Pricing); err != nil {
		return false, err
	}
	if err := writeGateway(kv, g.Gateway); err != nil {
		return false, err
	}
	if err := writeMode(kv, g.Mode); err != nil {
		return false, err
	}
	for _, a := range g.Allocations {
		if err := ledger.Mint(kv, ledger.Native, a.Account, a.Amount); err != nil {
			return false, fmt.Errorf("failed to allocate to %s: %w", a.Account, err)
		}
	}
	return true, kv.Set(genesisKey, []byte{1})
}
