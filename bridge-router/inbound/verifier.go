package inbound

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Verifier is the proof oracle.
type Verifier interface {
	// VerifyHeader checks that the block is part of the trusted header state.
	VerifyHeader(blockHash common.Hash) error
	// VerifyLogIncluded checks that the log of the proof is included in the block.
	VerifyLogIncluded(proof *Proof) error
}

// DefaultHeaderCapacity bounds the number of trusted execution headers kept.
const DefaultHeaderCapacity = 8192

// ReceiptProofVerifier checks receipt inclusion proofs against a bounded set of trusted headers.
// Headers are imported by whatever follows finality of the remote chain.
type ReceiptProofVerifier struct {
	log     log.Logger
	headers *lru.Cache[common.Hash, common.Hash]
}

var _ Verifier = (*ReceiptProofVerifier)(nil)

func NewReceiptProofVerifier(logger log.Logger, capacity int) (*ReceiptProofVerifier, error) {
	if capacity <= 0 {
		capacity = DefaultHeaderCapacity
	}
	headers, err := lru.New[common.Hash, common.Hash](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create header cache: %w", err)
	}
	return &ReceiptProofVerifier{log: logger, headers: headers}, nil
}

// ImportHeader trusts the given execution header. The oldest header is evicted when full.
func (v *ReceiptProofVerifier) ImportHeader(h *gethtypes.Header) common.Hash {
	hash := h.Hash()
	if evicted := v.headers.Add(hash, h.ReceiptHash); evicted {
		v.log.Debug("evicted oldest execution header")
	}
	v.log.Info("imported execution header", "number", h.Number, "hash", hash)
	return hash
}

func (v *ReceiptProofVerifier) VerifyHeader(blockHash common.Hash) error {
	if !v.headers.Contains(blockHash) {
		return fmt.Errorf("%w: unknown block %s", types.ErrProofInvalid, blockHash)
	}
	return nil
}

func (v *ReceiptProofVerifier) VerifyLogIncluded(proof *Proof) error {
	root, ok := v.headers.Peek(proof.BlockHash)
	if !ok {
		return fmt.Errorf("%w: unknown block %s", types.ErrProofInvalid, proof.BlockHash)
	}
	nodes := memorydb.New()
	for _, node := range proof.ReceiptProof {
		if err := nodes.Put(crypto.Keccak256(node), node); err != nil {
			return err
		}
	}
	key, err := rlp.EncodeToBytes(proof.TxIndex)
	if err != nil {
		return err
	}
	value, err := trie.VerifyProof(root, key, nodes)
	if err != nil {
		return fmt.Errorf("%w: bad receipt proof: %w", types.ErrProofInvalid, err)
	}
	if value == nil {
		return fmt.Errorf("%w: no receipt at index %d", types.ErrProofInvalid, proof.TxIndex)
	}
	var receipt gethtypes.Receipt
	if err := receipt.UnmarshalBinary(value); err != nil {
		return fmt.Errorf("%w: bad receipt: %w", types.ErrProofInvalid, err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: receipt of failed transaction", types.ErrProofInvalid)
	}
	for _, l := range receipt.Logs {
		if proof.Log.matches(l) {
			return nil
		}
	}
	return fmt.Errorf("%w: log not in receipt", types.ErrProofInvalid)
}
