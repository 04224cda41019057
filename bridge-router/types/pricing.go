package types

import (
	"errors"
	"fmt"
)

var ErrInvalidPricing = errors.New("invalid pricing parameters")

// Rewards paid to relayers, in the native unit of each side.
type Rewards struct {
	// Local is paid on the local chain to the relayer of an inbound message.
	Local Balance `json:"local" toml:"local"`
	// Remote is paid on the remote chain, denominated in wei, to the relayer of an outbound message.
	Remote Balance `json:"remote" toml:"remote"`
}

type PricingParameters struct {
	// ExchangeRate is the value of one local native unit in wei.
	ExchangeRate FixedU128 `json:"exchangeRate" toml:"exchange_rate"`
	// FeePerGas is the price of remote gas, in local native units.
	FeePerGas  Balance   `json:"feePerGas" toml:"fee_per_gas"`
	Rewards    Rewards   `json:"rewards" toml:"rewards"`
	Multiplier FixedU128 `json:"multiplier" toml:"multiplier"`
}

// DefaultPricingParameters are used until a root origin sets new ones.
func DefaultPricingParameters() PricingParameters {
	return PricingParameters{
		ExchangeRate: MustFixedFromRational(1, 75),
		FeePerGas:    GWei(20),
		Rewards: Rewards{
			Local:  Units(1, 10),
			Remote: MilliEther(1),
		},
		Multiplier: FixedFromInt(1),
	}
}

func (p *PricingParameters) Check() error {
	if p.ExchangeRate.IsZero() {
		return fmt.Errorf("%w: zero exchange rate", ErrInvalidPricing)
	}
	if p.Multiplier.IsZero() {
		return fmt.Errorf("%w: zero multiplier", ErrInvalidPricing)
	}
	if p.FeePerGas.IsZero() {
		return fmt.Errorf("%w: zero fee per gas", ErrInvalidPricing)
	}
	if p.Rewards.Local.IsZero() {
		return fmt.Errorf("%w: zero local reward", ErrInvalidPricing)
	}
	if p.Rewards.Remote.IsZero() {
		return fmt.Errorf("%w: zero remote reward", ErrInvalidPricing)
	}
	return nil
}
