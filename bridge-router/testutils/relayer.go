// Package testutils builds proven envelopes the way a relayer would, for tests.
package testutils

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/ethbridge/bridge-router/codec"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// HeaderImporter makes a header trusted by the proof oracle.
type HeaderImporter interface {
	ImportHeader(h *gethtypes.Header) common.Hash
}

// Relayer emits gateway logs in fake blocks, imports their headers and proves the logs.
type Relayer struct {
	Gateway  common.Address
	Verifier HeaderImporter
	block    int64
}

func NewRelayer(gateway common.Address, verifier HeaderImporter) *Relayer {
	return &Relayer{Gateway: gateway, Verifier: verifier, block: 1000}
}

// MessageID derives the ID the gateway assigns to a message.
func MessageID(origin types.Origin, nonce uint64) common.Hash {
	ch := types.ChannelIDOf(origin)
	return crypto.Keccak256Hash(ch[:], binary.BigEndian.AppendUint64(nil, nonce))
}

// Envelope sends msg on the channel of origin.
func (r *Relayer) Envelope(t testing.TB, origin types.Origin, nonce uint64, msg codec.VersionedMessage) *inbound.Envelope {
	return r.EnvelopePayload(t, origin, nonce, codec.EncodeMessage(msg))
}

// EnvelopePayload sends raw payload bytes on the channel of origin.
func (r *Relayer) EnvelopePayload(t testing.TB, origin types.Origin, nonce uint64, payload []byte) *inbound.Envelope {
	id := MessageID(origin, nonce)
	l, err := inbound.EncodeGatewayEvent(r.Gateway, &inbound.GatewayEvent{
		ChannelID: types.ChannelIDOf(origin),
		Nonce:     nonce,
		MessageID: id,
		Payload:   payload,
	})
	require.NoError(t, err)
	return r.Prove(t, id, origin, l)
}

// Prove includes the log in a new block and proves it.
func (r *Relayer) Prove(t testing.TB, id common.Hash, origin types.Origin, l *inbound.Log) *inbound.Envelope {
	r.block++
	other := &gethtypes.Receipt{
		Type:              gethtypes.LegacyTxType,
		Status:            gethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs:              []*gethtypes.Log{},
	}
	carrier := &gethtypes.Receipt{
		Type:              gethtypes.DynamicFeeTxType,
		Status:            gethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: 121000,
		Logs:              []*gethtypes.Log{{Address: l.Address, Topics: l.Topics, Data: l.Data}},
	}
	receipts := gethtypes.Receipts{other, carrier}
	root, proof, err := inbound.ProveReceipt(receipts, 1)
	require.NoError(t, err)
	header := &gethtypes.Header{
		Number:      big.NewInt(r.block),
		ReceiptHash: root,
		Difficulty:  common.Big0,
		GasLimit:    30_000_000,
		Time:        uint64(r.block) * 12,
	}
	hash := r.Verifier.ImportHeader(header)
	return &inbound.Envelope{
		MessageID:     id,
		OriginChainID: uint64(origin),
		Proof: inbound.Proof{
			BlockHash:    hash,
			TxIndex:      1,
			Log:          *l,
			ReceiptProof: proof,
		},
	}
}
