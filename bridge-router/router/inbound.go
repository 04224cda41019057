package router

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/program"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Result describes how an envelope was processed.
type Result struct {
	MessageID common.Hash  `json:"messageID"`
	Nonce     uint64       `json:"nonce"`
	Dest      types.Origin `json:"dest"`
	// Success is false if the message was consumed without taking effect.
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Program    string        `json:"program,omitempty"`
	Deliveries int           `json:"deliveries"`
	Events     []types.Event `json:"events"`
}

// SubmitEnvelope verifies an envelope and applies the program it converts into.
//
// Envelopes that fail verification, replays, and envelopes whose fees cannot be settled leave
// the state untouched. A failed proof does not mark the message ID processed: the envelope
// carrying a valid proof for the same ID is still accepted. Envelopes that fail conversion are consumed without effect and the
// error is returned along with the result. Envelopes whose program fails are consumed too:
// the relayer is paid and the fee is burned, but no other effect remains.
func (r *Router) SubmitEnvelope(relayer types.AccountID, env *inbound.Envelope) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.processed.Contains(env.MessageID) {
		r.metrics.RecordProcessedCache(true)
		r.metrics.RecordEnvelope(OutcomeReplay)
		return nil, fmt.Errorf("%w: %s", types.ErrReplay, env.MessageID)
	}
	r.metrics.RecordProcessedCache(false)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	gateway, err := readGateway(tx)
	if err != nil {
		return nil, r.reject(env, err)
	}
	conv, err := r.proc.Process(tx, env, gateway)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrReplay):
		r.processed.Add(env.MessageID, struct{}{})
		r.metrics.RecordEnvelope(OutcomeReplay)
		return nil, err
	case conv != nil && types.MarksProcessed(err):
		tx.Discard()
		res, ferr := r.consume(relayer, conv, err, false)
		if ferr != nil {
			return nil, r.reject(env, ferr)
		}
		r.log.Warn("envelope rejected", "id", env.MessageID, "origin", env.Origin(), "err", err)
		return res, err
	default:
		return nil, r.reject(env, err)
	}

	pricing, err := readPricing(tx)
	if err != nil {
		return nil, r.reject(env, err)
	}
	events := []types.Event{received(conv)}
	settled, err := settle(tx, relayer, conv, pricing)
	if err != nil {
		return nil, r.reject(env, err)
	}
	events = append(events, settled...)
	if err := inbound.MarkProcessed(tx, conv.MessageID); err != nil {
		return nil, r.reject(env, err)
	}

	outcome, execErr := program.Execute(tx, r.execEnv(), conv.Program)
	if execErr != nil {
		r.flag("execute", execErr)
		tx.Discard()
		res, err := r.consume(relayer, conv, execErr, true)
		if err != nil {
			return nil, r.reject(env, err)
		}
		r.log.Warn("program failed", "id", conv.MessageID, "dest", conv.Dest, "program", conv.Program, "err", execErr)
		return res, nil
	}
	if len(outcome.Trapped) > 0 {
		r.log.Warn("assets left in holding", "id", conv.MessageID, "assets", outcome.Trapped)
	}
	events = append(events, outcome.Events...)
	success := true
	events = append(events, types.Event{Kind: types.EventMessageProcessed, MessageID: conv.MessageID, Origin: conv.Origin, Nonce: conv.Nonce, Success: &success})
	if err := r.commit(tx, events); err != nil {
		return nil, r.reject(env, err)
	}
	r.processed.Add(conv.MessageID, struct{}{})
	r.metrics.RecordEnvelope(OutcomeAccepted)

	for _, fwd := range outcome.Forwards {
		d := &Delivery{MessageID: conv.MessageID, Dest: fwd.Dest, Assets: fwd.Assets, Program: fwd.Program}
		if err := r.dispatcher.Dispatch(d); err != nil {
			r.log.Error("failed to dispatch program", "id", conv.MessageID, "dest", fwd.Dest, "err", err)
		}
	}
	r.log.Info("envelope processed", "id", conv.MessageID, "origin", conv.Origin, "nonce", conv.Nonce,
		"dest", conv.Dest, "fee", conv.Fee, "program", conv.Program)
	return &Result{
		MessageID:  conv.MessageID,
		Nonce:      conv.Nonce,
		Dest:       conv.Dest,
		Success:    true,
		Program:    conv.Program.String(),
		Deliveries: len(outcome.Forwards),
		Events:     events,
	}, nil
}

// reject records an envelope that left no trace.
func (r *Router) reject(env *inbound.Envelope, err error) error {
	r.flag("submit", err)
	r.metrics.RecordEnvelope(OutcomeRejected)
	r.log.Debug("envelope not applied", "id", env.MessageID, "err", err)
	return err
}

// consume marks the message processed without applying its program, in a fresh batch.
// With settled set, the relayer is paid and the teleported fee burned as for a successful message.
func (r *Router) consume(relayer types.AccountID, conv *inbound.Conversion, cause error, settled bool) (*Result, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()
	events := []types.Event{received(conv)}
	if settled {
		pricing, err := readPricing(tx)
		if err != nil {
			return nil, err
		}
		evs, err := settle(tx, relayer, conv, pricing)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	if err := inbound.MarkProcessed(tx, conv.MessageID); err != nil {
		return nil, err
	}
	success := false
	events = append(events, types.Event{
		Kind:      types.EventMessageProcessed,
		MessageID: conv.MessageID,
		Origin:    conv.Origin,
		Nonce:     conv.Nonce,
		Success:   &success,
		Error:     cause.Error(),
	})
	if err := r.commit(tx, events); err != nil {
		return nil, err
	}
	r.processed.Add(conv.MessageID, struct{}{})
	r.metrics.RecordEnvelope(OutcomeFailed)
	return &Result{
		MessageID: conv.MessageID,
		Nonce:     conv.Nonce,
		Dest:      conv.Dest,
		Error:     cause.Error(),
		Program:   programString(conv.Program),
		Events:    events,
	}, nil
}

func received(conv *inbound.Conversion) types.Event {
	return types.Event{
		Kind:      types.EventMessageReceived,
		MessageID: conv.MessageID,
		Origin:    conv.Origin,
		ChannelID: types.ChannelIDOf(conv.Origin),
		Nonce:     conv.Nonce,
	}
}

// settle pays the relayer reward and burns the teleported fee, both from the sovereign account
// of the destination of the program.
func settle(kv db.KV, relayer types.AccountID, conv *inbound.Conversion, pricing *types.PricingParameters) ([]types.Event, error) {
	sovereign := types.SiblingSovereign(conv.Dest)
	if err := ledger.Transfer(kv, ledger.Native, sovereign, relayer, pricing.Rewards.Local); err != nil {
		return nil, fmt.Errorf("relayer reward: %w", err)
	}
	if conv.Fee.IsZero() {
		return nil, nil
	}
	if err := ledger.Burn(kv, ledger.Native, sovereign, conv.Fee); err != nil {
		return nil, fmt.Errorf("teleported fee: %w", err)
	}
	fee := conv.Fee
	return []types.Event{{Kind: types.EventBurned, MessageID: conv.MessageID, Account: &sovereign, Amount: &fee}}, nil
}

func programString(p program.Program) string {
	if len(p) == 0 {
		return ""
	}
	return p.String()
}
