package assets

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	"github.com/mantlenetworkio/ethbridge/op-service/testlog"
)

var (
	wethKey     = types.AssetKey{ChainID: 11155111, Token: common.HexToAddress("0x87d1f7fdfEe7f651FaBc8bFCB6E086C278b77A7d")}
	admin       = types.EthereumSovereign(11155111)
	recipient   = types.AccountID{0x42}
	beneficiary = common.HexToAddress("0x44a57ee2f2FCcb85FDa2B0B18EBD0D8D2333700e")
)

func newTx(t *testing.T) *db.Tx {
	d, err := db.OpenInMemory(testlog.Logger(t, log.LevelInfo))
	require.NoError(t, err)
	tx, err := d.Begin()
	require.NoError(t, err)
	t.Cleanup(func() {
		tx.Discard()
		require.NoError(t, d.Close())
	})
	return tx
}

func TestRegisterIsIdempotent(t *testing.T) {
	tx := newTx(t)
	created, err := Register(tx, wethKey, admin, types.NewBalance(1))
	require.NoError(t, err)
	require.True(t, created)

	created, err = Register(tx, wethKey, types.AccountID{0xff}, types.NewBalance(5))
	require.NoError(t, err)
	require.False(t, created)

	a, err := Get(tx, wethKey)
	require.NoError(t, err)
	require.Equal(t, &Asset{Key: wethKey, Admin: admin, MinBalance: types.NewBalance(1)}, a, "admin is never changed")

	list, err := List(tx)
	require.NoError(t, err)
	require.Equal(t, []Asset{*a}, list, "exactly one entry")
}

func TestCredit(t *testing.T) {
	tx := newTx(t)
	err := Credit(tx, wethKey, recipient, types.NewBalance(10))
	require.ErrorIs(t, err, types.ErrUnknownAsset)

	_, err = Register(tx, wethKey, admin, types.NewBalance(1))
	require.NoError(t, err)
	require.NoError(t, Credit(tx, wethKey, recipient, types.NewBalance(1_000_000_000)))

	bal, err := BalanceOf(tx, wethKey, recipient)
	require.NoError(t, err)
	require.Equal(t, types.NewBalance(1_000_000_000), bal)

	require.ErrorIs(t, Credit(tx, wethKey, recipient, types.MaxBalance), types.ErrOverflow)
	require.ErrorIs(t, Credit(tx, wethKey, types.AccountID{0x01}, types.ZeroBalance), ErrBelowMinimum)

	supply, err := Supply(tx, wethKey)
	require.NoError(t, err)
	require.Equal(t, types.NewBalance(1_000_000_000), supply)
}

func TestReserveAndForward(t *testing.T) {
	tx := newTx(t)
	agent := types.AgentIDOf(1000)
	_, err := ReserveAndForward(tx, wethKey, recipient, types.NewBalance(1), agent, beneficiary)
	require.ErrorIs(t, err, types.ErrUnknownAsset)

	_, err = Register(tx, wethKey, admin, types.NewBalance(1))
	require.NoError(t, err)
	require.NoError(t, Credit(tx, wethKey, recipient, types.NewBalance(100)))

	_, err = ReserveAndForward(tx, wethKey, recipient, types.NewBalance(101), agent, beneficiary)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	cmd, err := ReserveAndForward(tx, wethKey, recipient, types.NewBalance(60), agent, beneficiary)
	require.NoError(t, err)
	require.Equal(t, &outbound.AgentExecute{
		AgentID: agent,
		Command: &outbound.TransferToken{Token: wethKey.Token, Recipient: beneficiary, Amount: types.NewBalance(60)},
	}, cmd)

	bal, err := BalanceOf(tx, wethKey, recipient)
	require.NoError(t, err)
	require.Equal(t, types.NewBalance(40), bal)
	supply, err := Supply(tx, wethKey)
	require.NoError(t, err)
	require.Equal(t, types.NewBalance(40), supply)
}
