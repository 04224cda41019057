package inbound

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// OutboundMessageAcceptedTopic is the signature topic of the gateway event carrying a message.
var OutboundMessageAcceptedTopic = crypto.Keccak256Hash([]byte("OutboundMessageAccepted(bytes32,uint64,bytes32,bytes)"))

var gatewayEventArgs = func() abi.Arguments {
	u64, err := abi.NewType("uint64", "", nil)
	if err != nil {
		panic(err)
	}
	b, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "nonce", Type: u64}, {Name: "payload", Type: b}}
}()

// Log is an event emitted on the remote chain.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

func (l *Log) matches(o *gethtypes.Log) bool {
	if l.Address != o.Address || len(l.Topics) != len(o.Topics) || string(l.Data) != string(o.Data) {
		return false
	}
	for i := range l.Topics {
		if l.Topics[i] != o.Topics[i] {
			return false
		}
	}
	return true
}

// Proof shows that Log was emitted by the transaction at TxIndex in the block BlockHash.
type Proof struct {
	BlockHash common.Hash `json:"blockHash"`
	TxIndex   uint64      `json:"txIndex"`
	Log       Log         `json:"log"`
	// ReceiptProof holds the receipt trie nodes on the path to the receipt of the transaction.
	ReceiptProof []hexutil.Bytes `json:"receiptProof"`
}

// Envelope is a message from the gateway together with the proof it was sent.
type Envelope struct {
	MessageID     common.Hash `json:"messageID"`
	OriginChainID uint64      `json:"originChainID"`
	Proof         Proof       `json:"proof"`
}

func (e *Envelope) Origin() types.Origin {
	return types.Origin(e.OriginChainID)
}

// GatewayEvent is the decoded OutboundMessageAccepted event.
type GatewayEvent struct {
	ChannelID types.ChannelID
	Nonce     uint64
	MessageID common.Hash
	Payload   []byte
}

// DecodeGatewayEvent decodes an OutboundMessageAccepted event emitted by gateway.
// All failures wrap ErrProofInvalid: the log is not a message of the trusted gateway.
func DecodeGatewayEvent(l *Log, gateway common.Address) (*GatewayEvent, error) {
	if l.Address != gateway {
		return nil, fmt.Errorf("%w: log emitted by %s, expected gateway %s", types.ErrProofInvalid, l.Address, gateway)
	}
	if len(l.Topics) != 3 || l.Topics[0] != OutboundMessageAcceptedTopic {
		return nil, fmt.Errorf("%w: not an OutboundMessageAccepted event", types.ErrProofInvalid)
	}
	values, err := gatewayEventArgs.Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad event data: %w", types.ErrProofInvalid, err)
	}
	return &GatewayEvent{
		ChannelID: l.Topics[1],
		Nonce:     values[0].(uint64),
		MessageID: l.Topics[2],
		Payload:   values[1].([]byte),
	}, nil
}

// EncodeGatewayEvent builds the log the gateway emits for a message.
func EncodeGatewayEvent(gateway common.Address, ev *GatewayEvent) (*Log, error) {
	data, err := gatewayEventArgs.Pack(ev.Nonce, ev.Payload)
	if err != nil {
		return nil, err
	}
	return &Log{
		Address: gateway,
		Topics:  []common.Hash{OutboundMessageAcceptedTopic, ev.ChannelID, ev.MessageID},
		Data:    data,
	}, nil
}
