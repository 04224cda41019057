package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Root-only operations. Callers must restrict access to them.

// SetPricingParameters replaces the pricing parameters and informs the gateway of the new
// exchange rate and inbound delivery cost.
func (r *Router) SetPricingParameters(p *types.PricingParameters) (*outbound.Receipt, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var receipt *outbound.Receipt
	err := r.rootUpdate(func(kv db.KV) ([]types.Event, error) {
		if err := writePricing(kv, p); err != nil {
			return nil, err
		}
		var err error
		receipt, err = outbound.Enqueue(kv, types.PrimaryGovernanceChannel, &outbound.SetPricingParameters{
			ExchangeRate: p.ExchangeRate,
			DeliveryCost: p.Rewards.Local,
			Multiplier:   p.Multiplier,
		})
		if err != nil {
			return nil, err
		}
		return []types.Event{{Kind: types.EventPricingParametersChanged}, queued(receipt)}, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("pricing parameters changed", "exchange_rate", p.ExchangeRate, "fee_per_gas", p.FeePerGas,
		"local_reward", p.Rewards.Local, "remote_reward", p.Rewards.Remote, "multiplier", p.Multiplier)
	return receipt, nil
}

// SetGateway changes the address trusted to emit inbound messages.
func (r *Router) SetGateway(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.rootUpdate(func(kv db.KV) ([]types.Event, error) {
		if err := writeGateway(kv, addr); err != nil {
			return nil, err
		}
		return []types.Event{{Kind: types.EventGatewayChanged, Address: &addr}}, nil
	})
	if err != nil {
		return err
	}
	r.log.Info("gateway changed", "gateway", addr)
	return nil
}

// SetOperatingMode halts or resumes outbound messages, and informs the gateway.
// Governance messages are still queued while halted.
func (r *Router) SetOperatingMode(mode types.OperatingMode) (*outbound.Receipt, error) {
	if !mode.Valid() {
		return nil, types.ErrMalformed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var receipt *outbound.Receipt
	err := r.rootUpdate(func(kv db.KV) ([]types.Event, error) {
		if err := writeMode(kv, mode); err != nil {
			return nil, err
		}
		var err error
		receipt, err = outbound.Enqueue(kv, types.PrimaryGovernanceChannel, &outbound.SetOperatingMode{Mode: mode})
		if err != nil {
			return nil, err
		}
		m := mode
		return []types.Event{{Kind: types.EventOperatingModeChanged, Mode: &m}, queued(receipt)}, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("operating mode changed", "mode", mode)
	return receipt, nil
}

func (r *Router) rootUpdate(fn func(kv db.KV) ([]types.Event, error)) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()
	events, err := fn(tx)
	if err != nil {
		r.flag("root", err)
		return err
	}
	return r.commit(tx, events)
}
