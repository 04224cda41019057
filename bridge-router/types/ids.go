package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

const AccountIDLen = 32

// AccountID is a 32 byte account on the local chain.
type AccountID [AccountIDLen]byte

func (a AccountID) String() string {
	return hexutil.Encode(a[:])
}

func (a AccountID) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

func (a *AccountID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("AccountID", input, a[:])
}

// Origin identifies a consensus system attached to the local relay chain, by its parachain id.
type Origin uint64

func (o Origin) String() string {
	return fmt.Sprintf("para(%d)", uint64(o))
}

// AgentID identifies the on-chain representative of an origin on the remote chain.
type AgentID = common.Hash

// ChannelID identifies a bidirectional messaging channel.
type ChannelID = common.Hash

var (
	// PrimaryGovernanceChannel carries governance commands of the bridge hub itself.
	PrimaryGovernanceChannel = ChannelID{31: 1}
	// SecondaryGovernanceChannel carries lower priority governance commands.
	SecondaryGovernanceChannel = ChannelID{31: 2}
)

// AgentIDOf derives the agent of an origin.
func AgentIDOf(origin Origin) AgentID {
	return crypto.Keccak256Hash([]byte("agent"), binary.LittleEndian.AppendUint64(nil, uint64(origin)))
}

// ChannelIDOf derives the channel owned by an origin.
func ChannelIDOf(origin Origin) ChannelID {
	return crypto.Keccak256Hash([]byte("para"), binary.LittleEndian.AppendUint64(nil, uint64(origin)))
}

// SiblingSovereign returns the account that represents a sibling parachain on the local chain:
// "sibl" followed by the little-endian parachain id, zero padded.
func SiblingSovereign(origin Origin) (out AccountID) {
	copy(out[:4], "sibl")
	binary.LittleEndian.PutUint32(out[4:8], uint32(origin))
	return
}

// EthereumSovereign returns the account that represents an Ethereum chain on the local chain.
func EthereumSovereign(chainID uint64) AccountID {
	preimage := append([]byte("ethereum-chain"), binary.LittleEndian.AppendUint64(nil, chainID)...)
	return blake2b.Sum256(preimage)
}

// AssetKey is the canonical location of a remote token:
// the token contract address within the Ethereum chain that holds its reserve.
type AssetKey struct {
	ChainID uint64         `json:"chainID" toml:"chain_id"`
	Token   common.Address `json:"token" toml:"token"`
}

func (k AssetKey) String() string {
	return fmt.Sprintf("ethereum(%d)/%s", k.ChainID, k.Token)
}

// Bytes returns the 28 byte storage encoding: big-endian chain id followed by the token address.
func (k AssetKey) Bytes() []byte {
	out := binary.BigEndian.AppendUint64(make([]byte, 0, 8+common.AddressLength), k.ChainID)
	return append(out, k.Token[:]...)
}
