// Package fees prices outbound messages and moves the fees to the accounts that earn them.
package fees

import (
	"fmt"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// MaximumBaseGas is the gas the gateway spends on any message before dispatching its command.
const MaximumBaseGas = 185_000

// Gas used by the gateway to dispatch each command, on top of MaximumBaseGas.
const (
	AgentExecuteGas         = 100_000
	CreateAgentGas          = 275_000
	CreateChannelGas        = 100_000
	UpdateChannelGas        = 50_000
	SetOperatingModeGas     = 40_000
	SetPricingParametersGas = 60_000
)

// GasUsed is a constant gas meter: the worst case remote gas of delivering cmd.
func GasUsed(cmd outbound.Command) uint64 {
	var dispatch uint64
	switch cmd.(type) {
	case *outbound.AgentExecute:
		dispatch = AgentExecuteGas
	case *outbound.CreateAgent:
		dispatch = CreateAgentGas
	case *outbound.CreateChannel:
		dispatch = CreateChannelGas
	case *outbound.UpdateChannel:
		dispatch = UpdateChannelGas
	case *outbound.SetOperatingMode:
		dispatch = SetOperatingModeGas
	case *outbound.SetPricingParameters:
		dispatch = SetPricingParametersGas
	default:
		panic(fmt.Errorf("no gas estimate for command %T", cmd))
	}
	return MaximumBaseGas + dispatch
}

// Fee of an outbound message, in local native units.
type Fee struct {
	// Local pays for the execution of the message, and goes to the treasury.
	Local types.Balance `json:"local"`
	// Remote pays for delivery on the remote chain, and goes to the sovereign of that chain.
	Remote types.Balance `json:"remote"`
}

func (f Fee) Total() (types.Balance, error) {
	total, overflow := f.Local.AddOverflow(f.Remote)
	if overflow {
		return types.ZeroBalance, fmt.Errorf("%w: fee %s + %s", types.ErrOverflow, f.Local, f.Remote)
	}
	return total, nil
}

// ComputeFees prices a message that uses the given amount of remote gas.
//
//	local  = fee_per_gas * gas * multiplier
//	remote = rewards.remote / exchange_rate
func ComputeFees(p *types.PricingParameters, gas uint64) (Fee, error) {
	if err := p.Check(); err != nil {
		return Fee{}, err
	}
	gasCost, overflow := p.FeePerGas.MulOverflow(gas)
	if overflow {
		return Fee{}, fmt.Errorf("%w: %d gas at %s", types.ErrOverflow, gas, p.FeePerGas)
	}
	local, err := p.Multiplier.MulInt(gasCost)
	if err != nil {
		return Fee{}, fmt.Errorf("local fee: %w", err)
	}
	remote, err := p.ExchangeRate.DivInt(p.Rewards.Remote)
	if err != nil {
		return Fee{}, fmt.Errorf("remote fee: %w", err)
	}
	fee := Fee{Local: local, Remote: remote}
	if _, err := fee.Total(); err != nil {
		return Fee{}, err
	}
	return fee, nil
}

// Charge takes exactly the total fee from payer, crediting the local part to the treasury and
// the remote part to the sovereign. The offered amount and the balance of the payer are both
// checked before any balance changes.
func Charge(kv db.KV, payer types.AccountID, offered types.Balance, fee Fee, treasury, sovereign types.AccountID) error {
	total, err := fee.Total()
	if err != nil {
		return err
	}
	if offered.Lt(total) {
		return fmt.Errorf("%w: offered %s, required %s (local %s, remote %s)",
			types.ErrInsufficientFee, offered, total, fee.Local, fee.Remote)
	}
	if err := ledger.CanWithdraw(kv, ledger.Native, payer, total); err != nil {
		return fmt.Errorf("fee payer: %w", err)
	}
	if err := ledger.Transfer(kv, ledger.Native, payer, treasury, fee.Local); err != nil {
		return fmt.Errorf("local fee: %w", err)
	}
	if err := ledger.Transfer(kv, ledger.Native, payer, sovereign, fee.Remote); err != nil {
		return fmt.Errorf("remote fee: %w", err)
	}
	return nil
}
