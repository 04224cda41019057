// Package program defines the routed programs that inbound messages are converted into, and
// executes them against local state. A program is a flat list of instructions operating on a
// holding register of assets and on an origin, in the manner of cross-consensus messages.
package program

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Pallet and call indices the programs refer to.
const (
	InboundQueuePallet  = uint8(80)
	SystemPallet        = uint8(83)
	ForeignAssetsPallet = uint8(53)

	CreateAgentCall        = uint8(3)
	CreateChannelCall      = uint8(4)
	CreateForeignAssetCall = uint8(0)
)

// AssetRef identifies an asset in the holding register: the local native currency, or a
// foreign asset when Foreign is set.
type AssetRef struct {
	Foreign *types.AssetKey `json:"foreign,omitempty"`
}

var NativeAsset = AssetRef{}

func ForeignAsset(key types.AssetKey) AssetRef {
	return AssetRef{Foreign: &key}
}

func (a AssetRef) IsNative() bool {
	return a.Foreign == nil
}

func (a AssetRef) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.Foreign.String()
}

// Asset is an amount of an asset.
type Asset struct {
	ID     AssetRef      `json:"id"`
	Amount types.Balance `json:"amount"`
}

func (a Asset) String() string {
	return fmt.Sprintf("%s %s", a.Amount, a.ID)
}

// Instruction is a single step of a program.
type Instruction interface {
	Name() string
}

// ReceiveTeleportedAsset puts assets that were removed from circulation at the sending side
// into the holding register.
type ReceiveTeleportedAsset struct {
	Asset Asset `json:"asset"`
}

// BuyExecution pays for the execution of the rest of the program out of the holding register.
type BuyExecution struct {
	Fee Asset `json:"fee"`
}

// DescendOrigin narrows the origin to a pallet of the origin chain.
type DescendOrigin struct {
	Pallet uint8 `json:"pallet"`
}

// UniversalOrigin switches the origin to the given Ethereum chain.
type UniversalOrigin struct {
	ChainID uint64 `json:"chainID"`
}

// CreateForeignAsset registers a foreign asset. The origin must be the Ethereum chain of the asset.
type CreateForeignAsset struct {
	Pallet     uint8           `json:"pallet"`
	Call       uint8           `json:"call"`
	Key        types.AssetKey  `json:"key"`
	Admin      types.AccountID `json:"admin"`
	MinBalance types.Balance   `json:"minBalance"`
}

// ControlInstruction dispatches a privileged registry call on behalf of an origin.
// The origin of the program must be the inbound queue.
type ControlInstruction struct {
	Pallet uint8               `json:"pallet"`
	Call   uint8               `json:"call"`
	Origin types.Origin        `json:"origin"`
	Mode   types.OperatingMode `json:"mode"`
}

// ReserveAssetDeposited puts assets whose reserve is held on the origin chain into the holding register.
type ReserveAssetDeposited struct {
	Asset Asset `json:"asset"`
}

// ClearOrigin drops the origin. Instructions that need an origin fail afterwards.
type ClearOrigin struct{}

// DepositAsset moves everything in the holding register to the beneficiary.
type DepositAsset struct {
	Beneficiary types.AccountID `json:"beneficiary"`
}

// DepositReserveAsset moves everything in the holding register into the sovereign account of
// the destination, and forwards Program to the destination with the same assets.
type DepositReserveAsset struct {
	Dest    types.Origin `json:"dest"`
	Program Program      `json:"program"`
}

// RefundSurplus returns unspent execution fees to the holding register.
type RefundSurplus struct{}

// SetTopic tags the program for tracing.
type SetTopic struct {
	Topic common.Hash `json:"topic"`
}

func (ReceiveTeleportedAsset) Name() string { return "ReceiveTeleportedAsset" }
func (BuyExecution) Name() string           { return "BuyExecution" }
func (DescendOrigin) Name() string          { return "DescendOrigin" }
func (UniversalOrigin) Name() string        { return "UniversalOrigin" }
func (CreateForeignAsset) Name() string     { return "CreateForeignAsset" }
func (ControlInstruction) Name() string     { return "ControlInstruction" }
func (ReserveAssetDeposited) Name() string  { return "ReserveAssetDeposited" }
func (ClearOrigin) Name() string            { return "ClearOrigin" }
func (DepositAsset) Name() string           { return "DepositAsset" }
func (DepositReserveAsset) Name() string    { return "DepositReserveAsset" }
func (RefundSurplus) Name() string          { return "RefundSurplus" }
func (SetTopic) Name() string               { return "SetTopic" }

// Program is a sequence of instructions.
type Program []Instruction

func (p Program) String() string {
	names := make([]string, len(p))
	for i, inst := range p {
		names[i] = inst.Name()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// Topic returns the topic set by the last SetTopic instruction.
func (p Program) Topic() (common.Hash, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if t, ok := p[i].(*SetTopic); ok {
			return t.Topic, true
		}
	}
	return common.Hash{}, false
}
