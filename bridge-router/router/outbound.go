package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/fees"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// TransferIntent asks to release Amount of a registered token to Beneficiary on Ethereum.
type TransferIntent struct {
	Sender types.AccountID `json:"sender"`
	// Origin is the chain whose channel carries the message, and whose agent releases the tokens.
	Origin      types.Origin   `json:"origin"`
	Token       common.Address `json:"token"`
	Amount      types.Balance  `json:"amount"`
	Beneficiary common.Address `json:"beneficiary"`
	// Fee is the most the sender agrees to pay.
	Fee types.Balance `json:"fee"`
}

// OutboundResult describes a queued message and what it cost.
type OutboundResult struct {
	Receipt *outbound.Receipt `json:"receipt,omitempty"`
	Fee     fees.Fee          `json:"fee"`
	Events  []types.Event     `json:"events"`
}

// QuoteFee returns the fee of sending cmd with the current pricing.
func (r *Router) QuoteFee(cmd outbound.Command) (fees.Fee, error) {
	var fee fees.Fee
	err := r.db.View(func(rd db.Reader) error {
		pricing, err := readPricing(rd)
		if err != nil {
			return err
		}
		fee, err = fees.ComputeFees(pricing, fees.GasUsed(cmd))
		return err
	})
	return fee, err
}

func checkNotHalted(rd db.Reader) error {
	mode, err := readMode(rd)
	if err != nil {
		return err
	}
	if mode == types.RejectingOutbound {
		return types.ErrHalted
	}
	return nil
}

// charge takes the fee of cmd from payer.
func (r *Router) charge(kv db.KV, payer types.AccountID, offered types.Balance, cmd outbound.Command) (fees.Fee, error) {
	pricing, err := readPricing(kv)
	if err != nil {
		return fees.Fee{}, err
	}
	fee, err := fees.ComputeFees(pricing, fees.GasUsed(cmd))
	if err != nil {
		return fees.Fee{}, err
	}
	remote := types.EthereumSovereign(r.cfg.Inbound.EthereumChainID)
	if err := fees.Charge(kv, payer, offered, fee, r.cfg.Treasury, remote); err != nil {
		return fees.Fee{}, err
	}
	return fee, nil
}

func queued(receipt *outbound.Receipt) types.Event {
	return types.Event{
		Kind:      types.EventMessageQueued,
		MessageID: receipt.MessageID,
		ChannelID: receipt.ChannelID,
		Nonce:     receipt.Nonce,
	}
}

// TransferToEthereum burns the tokens of the sender, charges the fee and queues the release
// command on the channel of the origin.
func (r *Router) TransferToEthereum(intent *TransferIntent) (*OutboundResult, error) {
	if intent.Amount.IsZero() {
		return nil, fmt.Errorf("%w: zero amount", types.ErrMalformed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	if err := checkNotHalted(tx); err != nil {
		return nil, err
	}
	channelID := types.ChannelIDOf(intent.Origin)
	if _, err := outbound.CheckChannel(tx, channelID); err != nil {
		return nil, err
	}
	key := types.AssetKey{ChainID: r.cfg.Inbound.EthereumChainID, Token: intent.Token}
	agent := types.AgentIDOf(intent.Origin)
	estimate := &outbound.AgentExecute{
		AgentID: agent,
		Command: &outbound.TransferToken{Token: intent.Token, Recipient: intent.Beneficiary, Amount: intent.Amount},
	}
	fee, err := r.charge(tx, intent.Sender, intent.Fee, estimate)
	if err != nil {
		return nil, err
	}
	cmd, err := assets.ReserveAndForward(tx, key, intent.Sender, intent.Amount, agent, intent.Beneficiary)
	if err != nil {
		r.flag("transfer", err)
		return nil, err
	}
	receipt, err := outbound.Enqueue(tx, channelID, cmd)
	if err != nil {
		r.flag("transfer", err)
		return nil, err
	}
	sender, amount := intent.Sender, intent.Amount
	events := []types.Event{
		{Kind: types.EventBurned, Asset: &key, Account: &sender, Amount: &amount},
		queued(receipt),
	}
	if err := r.commit(tx, events); err != nil {
		return nil, err
	}
	r.metrics.RecordFees(fee)
	r.log.Info("queued transfer", "channel", channelID, "nonce", receipt.Nonce, "token", intent.Token,
		"amount", intent.Amount, "beneficiary", intent.Beneficiary, "local_fee", fee.Local, "remote_fee", fee.Remote)
	return &OutboundResult{Receipt: receipt, Fee: fee, Events: events}, nil
}

// CreateAgent creates the agent of origin and asks the gateway to deploy it.
// The sovereign account of origin pays. Creating an existing agent changes nothing.
func (r *Router) CreateAgent(origin types.Origin, offered types.Balance) (*OutboundResult, error) {
	return r.control(func(kv db.KV) (outbound.Command, []types.Event, error) {
		agent, created, err := registry.CreateAgent(kv, origin)
		if err != nil || !created {
			return nil, nil, err
		}
		ev := types.Event{Kind: types.EventAgentCreated, Origin: origin, AgentID: agent}
		return &outbound.CreateAgent{AgentID: agent}, []types.Event{ev}, nil
	}, origin, offered)
}

// CreateChannel creates the channel of origin, or changes its mode if it exists, and informs
// the gateway. The agent of origin must exist.
func (r *Router) CreateChannel(origin types.Origin, mode types.OperatingMode, offered types.Balance) (*OutboundResult, error) {
	return r.control(func(kv db.KV) (outbound.Command, []types.Event, error) {
		ch, created, err := registry.CreateChannel(kv, origin, mode)
		if err != nil {
			return nil, nil, err
		}
		m := ch.Mode
		if created {
			ev := types.Event{Kind: types.EventChannelCreated, Origin: origin, ChannelID: ch.ID, AgentID: ch.AgentID, Mode: &m}
			return &outbound.CreateChannel{ChannelID: ch.ID, AgentID: ch.AgentID, Mode: mode}, []types.Event{ev}, nil
		}
		ev := types.Event{Kind: types.EventChannelUpdated, Origin: origin, ChannelID: ch.ID, AgentID: ch.AgentID, Mode: &m}
		return &outbound.UpdateChannel{ChannelID: ch.ID, Mode: mode}, []types.Event{ev}, nil
	}, origin, offered)
}

// UpdateChannel changes the mode of the existing channel of origin and informs the gateway.
func (r *Router) UpdateChannel(origin types.Origin, mode types.OperatingMode, offered types.Balance) (*OutboundResult, error) {
	return r.control(func(kv db.KV) (outbound.Command, []types.Event, error) {
		ch, err := registry.UpdateChannel(kv, origin, mode)
		if err != nil {
			return nil, nil, err
		}
		m := ch.Mode
		ev := types.Event{Kind: types.EventChannelUpdated, Origin: origin, ChannelID: ch.ID, AgentID: ch.AgentID, Mode: &m}
		return &outbound.UpdateChannel{ChannelID: ch.ID, Mode: mode}, []types.Event{ev}, nil
	}, origin, offered)
}

// control applies a registry change requested by origin, and queues the resulting command on
// the primary governance channel. A nil command means there was nothing to do.
func (r *Router) control(apply func(kv db.KV) (outbound.Command, []types.Event, error), origin types.Origin, offered types.Balance) (*OutboundResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	if err := checkNotHalted(tx); err != nil {
		return nil, err
	}
	cmd, events, err := apply(tx)
	if err != nil {
		r.flag("control", err)
		return nil, err
	}
	if cmd == nil {
		r.log.Debug("control request changed nothing", "origin", origin)
		return &OutboundResult{Events: []types.Event{}}, nil
	}
	fee, err := r.charge(tx, types.SiblingSovereign(origin), offered, cmd)
	if err != nil {
		return nil, err
	}
	receipt, err := outbound.Enqueue(tx, types.PrimaryGovernanceChannel, cmd)
	if err != nil {
		r.flag("control", err)
		return nil, err
	}
	events = append(events, queued(receipt))
	if err := r.commit(tx, events); err != nil {
		return nil, err
	}
	r.metrics.RecordFees(fee)
	r.log.Info("queued control command", "origin", origin, "command", cmd.Index(), "nonce", receipt.Nonce)
	return &OutboundResult{Receipt: receipt, Fee: fee, Events: events}, nil
}
