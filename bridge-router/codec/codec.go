// Package codec implements the versioned wire format of messages sent from the Ethereum gateway
// to the local chain. Integers are little-endian and fixed width, unions carry a one byte tag.
// Tags are a wire contract: new variants get new tags, existing tags are never reused.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

var (
	ErrUnknownVariant = errors.New("unknown variant")
	ErrTruncated      = errors.New("truncated input")
	ErrTrailingBytes  = errors.New("trailing bytes after value")
)

const (
	MessageVersionV1 = byte(0)
)

const (
	RegisterTokenIndex = byte(0)
	SendTokenIndex     = byte(1)
	// index 2 belonged to a retired command and stays reserved
	CreateAgentIndex   = byte(3)
	CreateChannelIndex = byte(4)
)

const (
	AccountID32Index        = byte(0)
	ForeignAccountID32Index = byte(1)
)

// VersionedMessage is a message of a specific wire version.
type VersionedMessage interface {
	Version() byte
	encode(buf []byte) []byte
}

// MessageV1 is the first message version.
type MessageV1 struct {
	ChainID uint64
	Command Command
}

func (m *MessageV1) Version() byte {
	return MessageVersionV1
}

func (m *MessageV1) encode(buf []byte) []byte {
	buf = append(buf, m.Version())
	buf = binary.LittleEndian.AppendUint64(buf, m.ChainID)
	return m.Command.encode(buf)
}

// Command is one of the commands the gateway can send.
type Command interface {
	Index() byte
	encode(buf []byte) []byte
}

type RegisterToken struct {
	Token common.Address
	// Fee is the execution fee paid on the local chain, in local native units.
	Fee types.Balance
}

func (c *RegisterToken) Index() byte { return RegisterTokenIndex }

func (c *RegisterToken) encode(buf []byte) []byte {
	buf = append(buf, c.Index())
	buf = append(buf, c.Token[:]...)
	return appendBalance(buf, c.Fee)
}

type SendToken struct {
	Token       common.Address
	Destination Destination
	Amount      types.Balance
	Fee         types.Balance
}

func (c *SendToken) Index() byte { return SendTokenIndex }

func (c *SendToken) encode(buf []byte) []byte {
	buf = append(buf, c.Index())
	buf = append(buf, c.Token[:]...)
	buf = c.Destination.encode(buf)
	buf = appendBalance(buf, c.Amount)
	return appendBalance(buf, c.Fee)
}

type CreateAgent struct{}

func (c *CreateAgent) Index() byte { return CreateAgentIndex }

func (c *CreateAgent) encode(buf []byte) []byte {
	return append(buf, c.Index())
}

type CreateChannel struct {
	Mode types.OperatingMode
}

func (c *CreateChannel) Index() byte { return CreateChannelIndex }

func (c *CreateChannel) encode(buf []byte) []byte {
	return append(buf, c.Index(), byte(c.Mode))
}

// Destination is the final recipient of a token transfer.
type Destination interface {
	Index() byte
	encode(buf []byte) []byte
}

// AccountID32 is an account on the local chain.
type AccountID32 struct {
	ID types.AccountID
}

func (d *AccountID32) Index() byte { return AccountID32Index }

func (d *AccountID32) encode(buf []byte) []byte {
	buf = append(buf, d.Index())
	return append(buf, d.ID[:]...)
}

// ForeignAccountID32 is an account on a sibling parachain, reached by forwarding
// the transfer and paying Fee for execution on that parachain.
type ForeignAccountID32 struct {
	ParaID uint32
	ID     types.AccountID
	Fee    types.Balance
}

func (d *ForeignAccountID32) Index() byte { return ForeignAccountID32Index }

func (d *ForeignAccountID32) encode(buf []byte) []byte {
	buf = append(buf, d.Index())
	buf = binary.LittleEndian.AppendUint32(buf, d.ParaID)
	buf = append(buf, d.ID[:]...)
	return appendBalance(buf, d.Fee)
}

func appendBalance(buf []byte, v types.Balance) []byte {
	le := v.LE()
	return append(buf, le[:]...)
}

func EncodeMessage(m VersionedMessage) []byte {
	return m.encode(make([]byte, 0, 128))
}

func EncodeCommand(c Command) []byte {
	return c.encode(make([]byte, 0, 96))
}

func EncodeDestination(d Destination) []byte {
	return d.encode(make([]byte, 0, 56))
}

// DecodeMessage decodes a complete versioned message. The input must contain nothing else.
func DecodeMessage(data []byte) (VersionedMessage, error) {
	d := &decoder{data: data}
	m, err := d.message()
	if err != nil {
		return nil, err
	}
	return m, d.finish()
}

// DecodeCommand decodes a complete command. The input must contain nothing else.
func DecodeCommand(data []byte) (Command, error) {
	d := &decoder{data: data}
	c, err := d.command()
	if err != nil {
		return nil, err
	}
	return c, d.finish()
}

// DecodeDestination decodes a complete destination. The input must contain nothing else.
func DecodeDestination(data []byte) (Destination, error) {
	d := &decoder{data: data}
	dest, err := d.destination()
	if err != nil {
		return nil, err
	}
	return dest, d.finish()
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int, what string) ([]byte, error) {
	if len(d.data)-d.off < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrTruncated, what, n, d.off, len(d.data)-d.off)
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) finish() error {
	if rem := len(d.data) - d.off; rem != 0 {
		return fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, rem)
	}
	return nil
}

func (d *decoder) u8(what string) (byte, error) {
	b, err := d.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32(what string) (uint32, error) {
	b, err := d.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64(what string) (uint64, error) {
	b, err := d.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) balance(what string) (types.Balance, error) {
	b, err := d.take(types.BalanceLen, what)
	if err != nil {
		return types.ZeroBalance, err
	}
	return types.BalanceFromLE([types.BalanceLen]byte(b)), nil
}

func (d *decoder) address(what string) (common.Address, error) {
	b, err := d.take(common.AddressLength, what)
	if err != nil {
		return common.Address{}, err
	}
	return common.Address(b), nil
}

func (d *decoder) account(what string) (types.AccountID, error) {
	b, err := d.take(types.AccountIDLen, what)
	if err != nil {
		return types.AccountID{}, err
	}
	return types.AccountID(b), nil
}

func (d *decoder) message() (VersionedMessage, error) {
	version, err := d.u8("message version")
	if err != nil {
		return nil, err
	}
	switch version {
	case MessageVersionV1:
		var m MessageV1
		if m.ChainID, err = d.u64("chain id"); err != nil {
			return nil, err
		}
		if m.Command, err = d.command(); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: message version %d", ErrUnknownVariant, version)
	}
}

func (d *decoder) command() (Command, error) {
	index, err := d.u8("command index")
	if err != nil {
		return nil, err
	}
	switch index {
	case RegisterTokenIndex:
		var c RegisterToken
		if c.Token, err = d.address("token"); err != nil {
			return nil, err
		}
		if c.Fee, err = d.balance("fee"); err != nil {
			return nil, err
		}
		return &c, nil
	case SendTokenIndex:
		var c SendToken
		if c.Token, err = d.address("token"); err != nil {
			return nil, err
		}
		if c.Destination, err = d.destination(); err != nil {
			return nil, err
		}
		if c.Amount, err = d.balance("amount"); err != nil {
			return nil, err
		}
		if c.Fee, err = d.balance("fee"); err != nil {
			return nil, err
		}
		return &c, nil
	case CreateAgentIndex:
		return &CreateAgent{}, nil
	case CreateChannelIndex:
		mode, err := d.u8("operating mode")
		if err != nil {
			return nil, err
		}
		if !types.OperatingMode(mode).Valid() {
			return nil, fmt.Errorf("%w: operating mode %d", ErrUnknownVariant, mode)
		}
		return &CreateChannel{Mode: types.OperatingMode(mode)}, nil
	default:
		return nil, fmt.Errorf("%w: command %d", ErrUnknownVariant, index)
	}
}

func (d *decoder) destination() (Destination, error) {
	index, err := d.u8("destination index")
	if err != nil {
		return nil, err
	}
	switch index {
	case AccountID32Index:
		var dest AccountID32
		if dest.ID, err = d.account("account id"); err != nil {
			return nil, err
		}
		return &dest, nil
	case ForeignAccountID32Index:
		var dest ForeignAccountID32
		if dest.ParaID, err = d.u32("para id"); err != nil {
			return nil, err
		}
		if dest.ID, err = d.account("account id"); err != nil {
			return nil, err
		}
		if dest.Fee, err = d.balance("destination fee"); err != nil {
			return nil, err
		}
		return &dest, nil
	default:
		return nil, fmt.Errorf("%w: destination %d", ErrUnknownVariant, index)
	}
}
