package inbound

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
)

// ProveReceipt builds the receipt trie of a block and returns its root together with the
// inclusion proof of the receipt at index. Relayers use it to assemble envelopes.
func ProveReceipt(receipts gethtypes.Receipts, index uint64) (common.Hash, []hexutil.Bytes, error) {
	if index >= uint64(len(receipts)) {
		return common.Hash{}, nil, fmt.Errorf("receipt index %d out of range, block has %d receipts", index, len(receipts))
	}
	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	var buf bytes.Buffer
	for i := range receipts {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return common.Hash{}, nil, err
		}
		buf.Reset()
		receipts.EncodeIndex(i, &buf)
		if err := tr.Update(key, common.CopyBytes(buf.Bytes())); err != nil {
			return common.Hash{}, nil, fmt.Errorf("failed to insert receipt %d: %w", i, err)
		}
	}
	root := tr.Hash()

	key, err := rlp.EncodeToBytes(index)
	if err != nil {
		return common.Hash{}, nil, err
	}
	nodes := memorydb.New()
	if err := tr.Prove(key, nodes); err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to prove receipt %d: %w", index, err)
	}
	var proof []hexutil.Bytes
	it := nodes.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		proof = append(proof, common.CopyBytes(it.Value()))
	}
	return root, proof, it.Error()
}
