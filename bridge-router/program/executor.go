package program

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

var (
	ErrBadOrigin       = fmt.Errorf("%w: bad origin for instruction", types.ErrUnauthorized)
	ErrNotHoldingFees  = errors.New("holding register cannot cover fee")
	ErrBarrier         = errors.New("execution not paid for")
	ErrUnknownCall     = fmt.Errorf("%w: unknown call", types.ErrMalformed)
	ErrUnsupportedKind = fmt.Errorf("%w: unsupported instruction", types.ErrMalformed)
)

// Env describes the chain a program executes on.
type Env struct {
	// Sender is the chain the program arrives from: the bridge hub.
	Sender types.Origin
	// ExecutionCost is what BuyExecution charges. The rest of the fee can be refunded.
	ExecutionCost types.Balance
	// Treasury receives execution costs.
	Treasury types.AccountID
}

// Forward is a program sent on to another chain, together with the assets it carries.
type Forward struct {
	Dest    types.Origin `json:"dest"`
	Assets  []Asset      `json:"assets"`
	Program Program      `json:"program"`
}

// Outcome is the result of a successful execution.
type Outcome struct {
	Forwards []Forward
	Events   []types.Event
	// Trapped holds assets left in the holding register when the program ended.
	Trapped []Asset
	Topic   *common.Hash
}

type origin struct {
	cleared  bool
	pallet   *uint8
	ethereum *uint64
}

type executor struct {
	kv  db.KV
	env *Env

	origin  origin
	holding []Asset
	unspent Asset
	paid    bool

	out Outcome
}

// Execute runs a program against the state. On error the caller must discard all writes.
func Execute(kv db.KV, env *Env, prog Program) (*Outcome, error) {
	ex := &executor{kv: kv, env: env, unspent: Asset{ID: NativeAsset}}
	for i, inst := range prog {
		if err := ex.step(inst); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, inst.Name(), err)
		}
	}
	ex.out.Trapped = ex.holding
	return &ex.out, nil
}

func (ex *executor) step(inst Instruction) error {
	switch inst := inst.(type) {
	case *ReceiveTeleportedAsset:
		if ex.origin.cleared || ex.origin.ethereum != nil {
			return ErrBadOrigin
		}
		if !inst.Asset.ID.IsNative() {
			return fmt.Errorf("%w: only the native asset is teleported", ErrBadOrigin)
		}
		return ex.hold(inst.Asset)
	case *ReserveAssetDeposited:
		if inst.Asset.ID.IsNative() {
			return fmt.Errorf("%w: native asset is not reserve backed", ErrBadOrigin)
		}
		if ex.origin.cleared || ex.origin.ethereum == nil || *ex.origin.ethereum != inst.Asset.ID.Foreign.ChainID {
			return fmt.Errorf("%w: reserve of %s", ErrBadOrigin, inst.Asset.ID)
		}
		return ex.hold(inst.Asset)
	case *BuyExecution:
		return ex.buyExecution(inst.Fee)
	case *RefundSurplus:
		if ex.unspent.Amount.IsZero() {
			return nil
		}
		refund := ex.unspent
		ex.unspent.Amount = types.ZeroBalance
		return ex.hold(refund)
	case *DescendOrigin:
		if ex.origin.cleared || ex.origin.ethereum != nil || ex.origin.pallet != nil {
			return ErrBadOrigin
		}
		pallet := inst.Pallet
		ex.origin.pallet = &pallet
		return nil
	case *UniversalOrigin:
		if !ex.isInboundQueue() {
			return ErrBadOrigin
		}
		chainID := inst.ChainID
		ex.origin.ethereum = &chainID
		return nil
	case *ClearOrigin:
		ex.origin = origin{cleared: true}
		return nil
	case *CreateForeignAsset:
		return ex.createForeignAsset(inst)
	case *ControlInstruction:
		return ex.control(inst)
	case *DepositAsset:
		if !ex.paid {
			return ErrBarrier
		}
		for _, a := range ex.takeHolding() {
			if err := ex.deposit(a, inst.Beneficiary); err != nil {
				return err
			}
		}
		return nil
	case *DepositReserveAsset:
		if !ex.paid {
			return ErrBarrier
		}
		held := ex.takeHolding()
		sovereign := types.SiblingSovereign(inst.Dest)
		forwarded := make(Program, 0, len(held)+1+len(inst.Program))
		for _, a := range held {
			if err := ex.deposit(a, sovereign); err != nil {
				return err
			}
			forwarded = append(forwarded, &ReserveAssetDeposited{Asset: a})
		}
		forwarded = append(forwarded, &ClearOrigin{})
		forwarded = append(forwarded, inst.Program...)
		ex.out.Forwards = append(ex.out.Forwards, Forward{Dest: inst.Dest, Assets: held, Program: forwarded})
		return nil
	case *SetTopic:
		topic := inst.Topic
		ex.out.Topic = &topic
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedKind, inst)
	}
}

// isInboundQueue reports whether the origin is the inbound queue of the sending chain.
func (ex *executor) isInboundQueue() bool {
	return !ex.origin.cleared && ex.origin.ethereum == nil &&
		ex.origin.pallet != nil && *ex.origin.pallet == InboundQueuePallet
}

func (ex *executor) hold(a Asset) error {
	for i := range ex.holding {
		if sameAsset(ex.holding[i].ID, a.ID) {
			sum, overflow := ex.holding[i].Amount.AddOverflow(a.Amount)
			if overflow {
				return fmt.Errorf("%w: holding of %s", types.ErrOverflow, a.ID)
			}
			ex.holding[i].Amount = sum
			return nil
		}
	}
	ex.holding = append(ex.holding, a)
	return nil
}

func (ex *executor) takeHolding() []Asset {
	out := ex.holding
	ex.holding = nil
	return out
}

func (ex *executor) buyExecution(fee Asset) error {
	if !fee.ID.IsNative() {
		return fmt.Errorf("%w: execution is paid in the native asset", ErrNotHoldingFees)
	}
	if fee.Amount.Lt(ex.env.ExecutionCost) {
		return fmt.Errorf("%w: fee %s below execution cost %s", types.ErrInsufficientFee, fee.Amount, ex.env.ExecutionCost)
	}
	idx := -1
	for i := range ex.holding {
		if ex.holding[i].ID.IsNative() {
			idx = i
		}
	}
	if idx < 0 || ex.holding[idx].Amount.Lt(fee.Amount) {
		return fmt.Errorf("%w: %s", ErrNotHoldingFees, fee)
	}
	ex.holding[idx].Amount, _ = ex.holding[idx].Amount.SubUnderflow(fee.Amount)
	if ex.holding[idx].Amount.IsZero() {
		ex.holding = append(ex.holding[:idx], ex.holding[idx+1:]...)
	}
	if err := ledger.Mint(ex.kv, ledger.Native, ex.env.Treasury, ex.env.ExecutionCost); err != nil {
		return err
	}
	surplus, _ := fee.Amount.SubUnderflow(ex.env.ExecutionCost)
	unspent, overflow := ex.unspent.Amount.AddOverflow(surplus)
	if overflow {
		return fmt.Errorf("%w: unspent fees", types.ErrOverflow)
	}
	ex.unspent.Amount = unspent
	ex.paid = true
	return nil
}

func (ex *executor) deposit(a Asset, beneficiary types.AccountID) error {
	if a.Amount.IsZero() {
		return nil
	}
	amount := a.Amount
	account := beneficiary
	if a.ID.IsNative() {
		if err := ledger.Mint(ex.kv, ledger.Native, beneficiary, a.Amount); err != nil {
			return err
		}
		ex.out.Events = append(ex.out.Events, types.Event{Kind: types.EventMinted, Account: &account, Amount: &amount})
		return nil
	}
	if err := assets.Credit(ex.kv, *a.ID.Foreign, beneficiary, a.Amount); err != nil {
		return err
	}
	key := *a.ID.Foreign
	ex.out.Events = append(ex.out.Events, types.Event{Kind: types.EventIssued, Asset: &key, Account: &account, Amount: &amount})
	return nil
}

func (ex *executor) createForeignAsset(inst *CreateForeignAsset) error {
	if inst.Pallet != ForeignAssetsPallet || inst.Call != CreateForeignAssetCall {
		return fmt.Errorf("%w: %d/%d", ErrUnknownCall, inst.Pallet, inst.Call)
	}
	if !ex.paid {
		return ErrBarrier
	}
	if ex.origin.cleared || ex.origin.ethereum == nil || *ex.origin.ethereum != inst.Key.ChainID {
		return fmt.Errorf("%w: only Ethereum chain %d can create %s", ErrBadOrigin, inst.Key.ChainID, inst.Key)
	}
	created, err := assets.Register(ex.kv, inst.Key, inst.Admin, inst.MinBalance)
	if err != nil {
		return err
	}
	if created {
		key := inst.Key
		admin := inst.Admin
		ex.out.Events = append(ex.out.Events, types.Event{Kind: types.EventAssetCreated, Asset: &key, Account: &admin})
	}
	return nil
}

func (ex *executor) control(inst *ControlInstruction) error {
	if inst.Pallet != SystemPallet {
		return fmt.Errorf("%w: pallet %d", ErrUnknownCall, inst.Pallet)
	}
	if !ex.isInboundQueue() {
		return ErrBadOrigin
	}
	switch inst.Call {
	case CreateAgentCall:
		agent, created, err := registry.CreateAgent(ex.kv, inst.Origin)
		if err != nil {
			return err
		}
		if created {
			ex.out.Events = append(ex.out.Events, types.Event{Kind: types.EventAgentCreated, Origin: inst.Origin, AgentID: agent})
		}
		return nil
	case CreateChannelCall:
		ch, created, err := registry.CreateChannel(ex.kv, inst.Origin, inst.Mode)
		if err != nil {
			return err
		}
		mode := ch.Mode
		kind := types.EventChannelUpdated
		if created {
			kind = types.EventChannelCreated
		}
		ex.out.Events = append(ex.out.Events, types.Event{Kind: kind, Origin: inst.Origin, ChannelID: ch.ID, AgentID: ch.AgentID, Mode: &mode})
		return nil
	default:
		return fmt.Errorf("%w: %d/%d", ErrUnknownCall, inst.Pallet, inst.Call)
	}
}

func sameAsset(a, b AssetRef) bool {
	if a.IsNative() || b.IsNative() {
		return a.IsNative() == b.IsNative()
	}
	return *a.Foreign == *b.Foreign
}
