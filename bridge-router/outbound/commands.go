package outbound

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Command indices understood by the gateway contract. Indices 1, 6 and 7 belong to commands
// the router never sends.
const (
	AgentExecuteIndex         = byte(0)
	CreateAgentIndex          = byte(2)
	CreateChannelIndex        = byte(3)
	UpdateChannelIndex        = byte(4)
	SetOperatingModeIndex     = byte(5)
	SetPricingParametersIndex = byte(8)
)

const TransferTokenIndex = byte(0)

var (
	bytes32Type = mustType("bytes32")
	bytesType   = mustType("bytes")
	uint8Type   = mustType("uint8")
	uint64Type  = mustType("uint64")
	uint128Type = mustType("uint128")
	addressType = mustType("address")
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Errorf("abi type %q: %w", name, err))
	}
	return t
}

func args(ts ...abi.Type) abi.Arguments {
	out := make(abi.Arguments, len(ts))
	for i, t := range ts {
		out[i] = abi.Argument{Type: t}
	}
	return out
}

var (
	agentExecuteArgs    = args(bytes32Type, bytesType)
	transferTokenArgs   = args(addressType, addressType, uint128Type)
	executeCommandArgs  = args(uint8Type, bytesType)
	createAgentArgs     = args(bytes32Type)
	createChannelArgs   = args(bytes32Type, bytes32Type, uint8Type)
	updateChannelArgs   = args(bytes32Type, uint8Type)
	operatingModeArgs   = args(uint8Type)
	pricingArgs         = args(uint128Type, uint128Type, uint128Type)
	messageEnvelopeArgs = args(bytes32Type, uint64Type, uint8Type, bytesType, bytes32Type)
)

// Command is an instruction for the gateway contract on the remote chain.
type Command interface {
	Index() byte
	// Params returns the ABI encoded parameters of the command.
	Params() ([]byte, error)
}

// TransferToken releases reserved tokens held by an agent.
type TransferToken struct {
	Token     common.Address `json:"token"`
	Recipient common.Address `json:"recipient"`
	Amount    types.Balance  `json:"amount"`
}

// AgentExecute makes an agent run a command.
type AgentExecute struct {
	AgentID types.AgentID  `json:"agentID"`
	Command *TransferToken `json:"command"`
}

func (c *AgentExecute) Index() byte { return AgentExecuteIndex }

func (c *AgentExecute) Params() ([]byte, error) {
	transfer, err := transferTokenArgs.Pack(c.Command.Token, c.Command.Recipient, c.Command.Amount.ToBig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	inner, err := executeCommandArgs.Pack(TransferTokenIndex, transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent command: %w", err)
	}
	return agentExecuteArgs.Pack(c.AgentID, inner)
}

type CreateAgent struct {
	AgentID types.AgentID `json:"agentID"`
}

func (c *CreateAgent) Index() byte { return CreateAgentIndex }

func (c *CreateAgent) Params() ([]byte, error) {
	return createAgentArgs.Pack(c.AgentID)
}

type CreateChannel struct {
	ChannelID types.ChannelID     `json:"channelID"`
	AgentID   types.AgentID       `json:"agentID"`
	Mode      types.OperatingMode `json:"mode"`
}

func (c *CreateChannel) Index() byte { return CreateChannelIndex }

func (c *CreateChannel) Params() ([]byte, error) {
	return createChannelArgs.Pack(c.ChannelID, c.AgentID, uint8(c.Mode))
}

type UpdateChannel struct {
	ChannelID types.ChannelID     `json:"channelID"`
	Mode      types.OperatingMode `json:"mode"`
}

func (c *UpdateChannel) Index() byte { return UpdateChannelIndex }

func (c *UpdateChannel) Params() ([]byte, error) {
	return updateChannelArgs.Pack(c.ChannelID, uint8(c.Mode))
}

// SetOperatingMode halts or resumes the gateway as a whole.
type SetOperatingMode struct {
	Mode types.OperatingMode `json:"mode"`
}

func (c *SetOperatingMode) Index() byte { return SetOperatingModeIndex }

func (c *SetOperatingMode) Params() ([]byte, error) {
	return operatingModeArgs.Pack(uint8(c.Mode))
}

// SetPricingParameters informs the gateway of new pricing.
// Fixed-point values are sent as their inner representation.
type SetPricingParameters struct {
	ExchangeRate types.FixedU128 `json:"exchangeRate"`
	DeliveryCost types.Balance   `json:"deliveryCost"`
	Multiplier   types.FixedU128 `json:"multiplier"`
}

func (c *SetPricingParameters) Index() byte { return SetPricingParametersIndex }

func (c *SetPricingParameters) Params() ([]byte, error) {
	return pricingArgs.Pack(c.ExchangeRate.Inner().ToBig(), c.DeliveryCost.ToBig(), c.Multiplier.Inner().ToBig())
}

// EncodeEnvelope returns the bytes handed to the delivery fabric for a queued message.
func EncodeEnvelope(channelID types.ChannelID, nonce uint64, index byte, params []byte, id common.Hash) ([]byte, error) {
	return messageEnvelopeArgs.Pack(channelID, nonce, index, params, id)
}

// DecodeEnvelope is the inverse of EncodeEnvelope.
func DecodeEnvelope(data []byte) (channelID types.ChannelID, nonce uint64, index byte, params []byte, id common.Hash, err error) {
	values, err := messageEnvelopeArgs.Unpack(data)
	if err != nil {
		return
	}
	channelID = values[0].([32]byte)
	nonce = values[1].(uint64)
	index = values[2].(uint8)
	params = values[3].([]byte)
	id = values[4].([32]byte)
	return
}
