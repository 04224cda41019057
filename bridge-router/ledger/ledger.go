// Package ledger keeps fungible balances and total supplies, of the native currency and of
// foreign assets, on top of a state transaction.
package ledger

import (
	"fmt"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// AssetID is the storage identity of an asset.
type AssetID string

// Native is the local native currency.
const Native AssetID = ""

// Foreign returns the identity of a registered foreign asset.
func Foreign(key types.AssetKey) AssetID {
	return AssetID(key.Bytes())
}

func (a AssetID) String() string {
	if a == Native {
		return "native"
	}
	return fmt.Sprintf("%x", string(a))
}

func balanceKey(asset AssetID, account types.AccountID) []byte {
	return db.Key(db.PrefixBalance, []byte{byte(len(asset))}, []byte(asset), account[:])
}

func supplyKey(asset AssetID) []byte {
	return db.Key(db.PrefixSupply, []byte(asset))
}

func getBalance(r db.Reader, key []byte) (types.Balance, error) {
	v, ok, err := r.Get(key)
	if err != nil || !ok {
		return types.ZeroBalance, err
	}
	if len(v) != types.BalanceLen {
		return types.ZeroBalance, &db.CorruptValueError{Key: key, Len: len(v)}
	}
	return types.BalanceFromLE([types.BalanceLen]byte(v)), nil
}

func setBalance(kv db.KV, key []byte, v types.Balance) error {
	if v.IsZero() {
		return kv.Delete(key)
	}
	le := v.LE()
	return kv.Set(key, le[:])
}

// BalanceOf returns the balance of account in asset.
func BalanceOf(r db.Reader, asset AssetID, account types.AccountID) (types.Balance, error) {
	return getBalance(r, balanceKey(asset, account))
}

// Supply returns the total issuance of asset.
func Supply(r db.Reader, asset AssetID) (types.Balance, error) {
	return getBalance(r, supplyKey(asset))
}

// CanWithdraw checks that account holds at least amount, without changing anything.
func CanWithdraw(r db.Reader, asset AssetID, account types.AccountID, amount types.Balance) error {
	bal, err := BalanceOf(r, asset, account)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return &types.InsufficientBalanceError{Account: account, Available: bal, Requested: amount}
	}
	return nil
}

// Mint issues amount to account. The total supply may never exceed the 128 bit ceiling.
func Mint(kv db.KV, asset AssetID, account types.AccountID, amount types.Balance) error {
	supply, err := Supply(kv, asset)
	if err != nil {
		return err
	}
	newSupply, overflow := supply.AddOverflow(amount)
	if overflow {
		return fmt.Errorf("%w: minting %s of %s on supply %s", types.ErrOverflow, amount, asset, supply)
	}
	bal, err := BalanceOf(kv, asset, account)
	if err != nil {
		return err
	}
	// bounded by the supply check
	newBal, _ := bal.AddOverflow(amount)
	if err := setBalance(kv, supplyKey(asset), newSupply); err != nil {
		return err
	}
	return setBalance(kv, balanceKey(asset, account), newBal)
}

// Burn destroys amount held by account.
func Burn(kv db.KV, asset AssetID, account types.AccountID, amount types.Balance) error {
	bal, err := BalanceOf(kv, asset, account)
	if err != nil {
		return err
	}
	newBal, underflow := bal.SubUnderflow(amount)
	if underflow {
		return &types.InsufficientBalanceError{Account: account, Available: bal, Requested: amount}
	}
	supply, err := Supply(kv, asset)
	if err != nil {
		return err
	}
	newSupply, underflow := supply.SubUnderflow(amount)
	if underflow {
		return fmt.Errorf("%w: supply %s of %s below burned balance", types.ErrRegistry, supply, asset)
	}
	if err := setBalance(kv, supplyKey(asset), newSupply); err != nil {
		return err
	}
	return setBalance(kv, balanceKey(asset, account), newBal)
}

// Transfer moves amount from one account to another. The supply is unchanged.
func Transfer(kv db.KV, asset AssetID, from, to types.AccountID, amount types.Balance) error {
	if from == to {
		return CanWithdraw(kv, asset, from, amount)
	}
	fromBal, err := BalanceOf(kv, asset, from)
	if err != nil {
		return err
	}
	newFrom, underflow := fromBal.SubUnderflow(amount)
	if underflow {
		return &types.InsufficientBalanceError{Account: from, Available: fromBal, Requested: amount}
	}
	toBal, err := BalanceOf(kv, asset, to)
	if err != nil {
		return err
	}
	newTo, overflow := toBal.AddOverflow(amount)
	if overflow {
		return fmt.Errorf("%w: balance of %s in %s", types.ErrOverflow, to, asset)
	}
	if err := setBalance(kv, balanceKey(asset, from), newFrom); err != nil {
		return err
	}
	return setBalance(kv, balanceKey(asset, to), newTo)
}
