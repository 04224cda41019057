// Package assets registers tokens whose reserve lives on the remote chain, and moves them
// across the bridge: minted locally on the way in, burned locally on the way out.
package assets

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

var ErrBelowMinimum = errors.New("balance below asset minimum")

type Asset struct {
	Key        types.AssetKey  `json:"key"`
	Admin      types.AccountID `json:"admin"`
	MinBalance types.Balance   `json:"minBalance"`
}

type storedAsset struct {
	Admin      types.AccountID
	MinBalance *uint256.Int
}

func assetKey(key types.AssetKey) []byte {
	return db.Key(db.PrefixAsset, key.Bytes())
}

// Get returns the registered asset, or nil.
func Get(r db.Reader, key types.AssetKey) (*Asset, error) {
	var stored storedAsset
	ok, err := db.GetRLP(r, assetKey(key), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &Asset{Key: key, Admin: stored.Admin, MinBalance: types.Balance(*stored.MinBalance)}, nil
}

func Exists(r db.Reader, key types.AssetKey) (bool, error) {
	a, err := Get(r, key)
	return a != nil, err
}

// Register creates the asset if it is not registered yet, and reports whether it did.
// An existing registration is never changed.
func Register(kv db.KV, key types.AssetKey, admin types.AccountID, minBalance types.Balance) (bool, error) {
	existing, err := Get(kv, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := db.SetRLP(kv, assetKey(key), &storedAsset{Admin: admin, MinBalance: minBalance.ToU256()}); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all registered assets in key order.
func List(r db.Reader) ([]Asset, error) {
	var out []Asset
	prefix := db.Key(db.PrefixAsset)
	err := r.Iterate(prefix, func(k, v []byte) error {
		raw := k[len(prefix):]
		if len(raw) != 8+common.AddressLength {
			return &db.CorruptValueError{Key: k, Len: len(v)}
		}
		key := types.AssetKey{ChainID: db.BigEndianU64(raw[:8]), Token: common.Address(raw[8:])}
		a, err := Get(r, key)
		if err != nil {
			return err
		}
		out = append(out, *a)
		return nil
	})
	return out, err
}

func BalanceOf(r db.Reader, key types.AssetKey, account types.AccountID) (types.Balance, error) {
	return ledger.BalanceOf(r, ledger.Foreign(key), account)
}

func Supply(r db.Reader, key types.AssetKey) (types.Balance, error) {
	return ledger.Supply(r, ledger.Foreign(key))
}

// Credit mints amount of a registered asset to recipient.
func Credit(kv db.KV, key types.AssetKey, recipient types.AccountID, amount types.Balance) error {
	a, err := Get(kv, key)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: %s", types.ErrUnknownAsset, key)
	}
	bal, err := BalanceOf(kv, key, recipient)
	if err != nil {
		return err
	}
	if newBal, overflow := bal.AddOverflow(amount); !overflow && newBal.Lt(a.MinBalance) {
		return fmt.Errorf("%w: %s of %s for %s, minimum %s", ErrBelowMinimum, newBal, key, recipient, a.MinBalance)
	}
	return ledger.Mint(kv, ledger.Foreign(key), recipient, amount)
}

// ReserveAndForward burns amount of the asset held by sender, and returns the command that makes
// the agent holding the reserve release the same amount to the beneficiary on the remote chain.
func ReserveAndForward(kv db.KV, key types.AssetKey, sender types.AccountID, amount types.Balance, agent types.AgentID, beneficiary common.Address) (outbound.Command, error) {
	a, err := Get(kv, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownAsset, key)
	}
	if err := ledger.Burn(kv, ledger.Foreign(key), sender, amount); err != nil {
		return nil, err
	}
	return &outbound.AgentExecute{
		AgentID: agent,
		Command: &outbound.TransferToken{
			Token:     key.Token,
			Recipient: beneficiary,
			Amount:    amount,
		},
	}, nil
}
