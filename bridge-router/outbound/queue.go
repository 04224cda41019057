// Package outbound turns locally initiated intents into gateway commands, and queues them per
// channel with gap-free nonces for the delivery fabric to pick up.
package outbound

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	"github.com/mantlenetworkio/ethbridge/op-service/safemath"
)

// Receipt identifies a queued message.
type Receipt struct {
	ChannelID types.ChannelID `json:"channelID"`
	Nonce     uint64          `json:"nonce"`
	MessageID common.Hash     `json:"messageID"`
}

// Message is a queued command, as handed to the delivery fabric.
type Message struct {
	ChannelID types.ChannelID `json:"channelID"`
	Nonce     uint64          `json:"nonce"`
	Command   byte            `json:"command"`
	Params    hexutil.Bytes   `json:"params"`
	ID        common.Hash     `json:"id"`
}

// Encode returns the ABI encoded message.
func (m *Message) Encode() ([]byte, error) {
	return EncodeEnvelope(m.ChannelID, m.Nonce, m.Command, m.Params, m.ID)
}

type storedMessage struct {
	Command uint8
	Params  []byte
	ID      common.Hash
}

func nonceKey(id types.ChannelID) []byte {
	return db.Key(db.PrefixNonce, id[:])
}

func queueKey(id types.ChannelID, nonce uint64) []byte {
	return db.Key(db.PrefixQueue, id[:], db.U64(nonce))
}

// MessageID derives the id of the message queued at nonce.
func MessageID(channelID types.ChannelID, nonce uint64, index byte, params []byte) common.Hash {
	return crypto.Keccak256Hash(channelID[:], binary.BigEndian.AppendUint64(nil, nonce), []byte{index}, params)
}

// Nonce returns the nonce of the last message queued on the channel, zero if there is none.
func Nonce(r db.Reader, channelID types.ChannelID) (uint64, error) {
	return db.GetU64(r, nonceKey(channelID))
}

// CheckChannel verifies that the channel exists and accepts outbound messages.
func CheckChannel(r db.Reader, channelID types.ChannelID) (*registry.Channel, error) {
	ch, err := registry.ChannelByID(r, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNoChannel, channelID)
	}
	if ch.Mode == types.RejectingOutbound {
		return nil, fmt.Errorf("%w: %s", types.ErrChannelClosed, channelID)
	}
	return ch, nil
}

// Enqueue appends cmd to the queue of the channel under the next nonce.
// Nonces start at 1 and increase by one per message.
func Enqueue(kv db.KV, channelID types.ChannelID, cmd Command) (*Receipt, error) {
	if _, err := CheckChannel(kv, channelID); err != nil {
		return nil, err
	}
	params, err := cmd.Params()
	if err != nil {
		return nil, fmt.Errorf("failed to encode command %d: %w", cmd.Index(), err)
	}
	last, err := Nonce(kv, channelID)
	if err != nil {
		return nil, err
	}
	nonce, overflow := safemath.SafeAdd(last, 1)
	if overflow {
		return nil, fmt.Errorf("%w: nonce of channel %s", types.ErrOverflow, channelID)
	}
	id := MessageID(channelID, nonce, cmd.Index(), params)
	if err := db.SetRLP(kv, queueKey(channelID, nonce), &storedMessage{Command: cmd.Index(), Params: params, ID: id}); err != nil {
		return nil, err
	}
	if err := db.SetU64(kv, nonceKey(channelID), nonce); err != nil {
		return nil, err
	}
	return &Receipt{ChannelID: channelID, Nonce: nonce, MessageID: id}, nil
}

// Pending lists up to limit queued messages of the channel, starting at fromNonce, in nonce order.
// A limit of zero means no limit.
func Pending(r db.Reader, channelID types.ChannelID, fromNonce uint64, limit int) ([]Message, error) {
	last, err := Nonce(r, channelID)
	if err != nil {
		return nil, err
	}
	if fromNonce == 0 {
		fromNonce = 1
	}
	var out []Message
	for nonce := fromNonce; nonce <= last; nonce++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		var stored storedMessage
		ok, err := db.GetRLP(r, queueKey(channelID, nonce), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: message %d of channel %s missing", types.ErrRegistry, nonce, channelID)
		}
		out = append(out, Message{
			ChannelID: channelID,
			Nonce:     nonce,
			Command:   stored.Command,
			Params:    stored.Params,
			ID:        stored.ID,
		})
	}
	return out, nil
}
