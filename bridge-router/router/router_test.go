package router_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mantlenetworkio/ethbridge/bridge-router/codec"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/metrics"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/router"
	"github.com/mantlenetworkio/ethbridge/bridge-router/testutils"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	"github.com/mantlenetworkio/ethbridge/op-service/testlog"
)

const (
	chainID   = uint64(11155111)
	bridgeHub = types.Origin(1013)
	assetHub  = types.Origin(1000)
	penpal    = types.Origin(2000)
)

var (
	gateway     = common.HexToAddress("0xEDa338E4dC46038493b885327842fD3E301CaB39")
	weth        = common.HexToAddress("0x87d1f7fdfEe7f651FaBc8bFCB6E086C278b77A7d")
	beneficiary = common.HexToAddress("0x44a57ee2f2FCcb85FDa2B0B18EBD0D8D2333700e")
	wethKey     = types.AssetKey{ChainID: chainID, Token: weth}

	treasury = types.AccountID{0x70, 0x79}
	relayer  = types.AccountID{0x4e}
	alice    = types.AccountID{0xa1}
	bob      = types.AccountID{0xb0}

	executionCost = types.NewBalance(1_000_000)
	registerFee   = types.NewBalance(4_000_000_000)
	endowment     = types.Units(1, 18)
)

type testRouter struct {
	*router.Router
	relayer    *testutils.Relayer
	dispatcher *router.QueueDispatcher
	store      *db.DB
}

func genesis() *router.Genesis {
	return &router.Genesis{
		Gateway: gateway,
		Pricing: types.DefaultPricingParameters(),
		Mode:    types.Normal,
		Allocations: []router.Allocation{
			{Account: types.SiblingSovereign(assetHub), Amount: endowment},
			{Account: types.SiblingSovereign(bridgeHub), Amount: endowment},
			{Account: alice, Amount: endowment},
		},
	}
}

func newRouter(t *testing.T) *testRouter {
	logger := testlog.Logger(t, log.LevelInfo)
	store, err := db.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	verifier, err := inbound.NewReceiptProofVerifier(logger, 64)
	require.NoError(t, err)
	cfg := &router.Config{
		Inbound: inbound.Config{
			EthereumChainID:        chainID,
			BridgeHub:              bridgeHub,
			AssetHub:               assetHub,
			MinExecutionFee:        map[types.Origin]types.Balance{penpal: types.NewBalance(5_000)},
			DefaultMinExecutionFee: types.NewBalance(1_000_000_000),
		},
		Treasury:      treasury,
		ExecutionCost: executionCost,
	}
	dispatcher := router.NewQueueDispatcher()
	r, err := router.New(logger, cfg, store, verifier, dispatcher, metrics.NoopMetrics)
	require.NoError(t, err)
	require.NoError(t, r.Init(genesis()))
	return &testRouter{Router: r, relayer: testutils.NewRelayer(gateway, verifier), dispatcher: dispatcher, store: store}
}

func v1(cmd codec.Command) *codec.MessageV1 {
	return &codec.MessageV1{ChainID: chainID, Command: cmd}
}

func sub(t *testing.T, a, b types.Balance) types.Balance {
	out, underflow := a.SubUnderflow(b)
	require.False(t, underflow)
	return out
}

func add(t *testing.T, a, b types.Balance) types.Balance {
	out, overflow := a.AddOverflow(b)
	require.False(t, overflow)
	return out
}

func (tr *testRouter) native(t *testing.T, account types.AccountID) types.Balance {
	b, err := tr.NativeBalance(account)
	require.NoError(t, err)
	return b
}

func (tr *testRouter) weth(t *testing.T, account types.AccountID) types.Balance {
	b, err := tr.Balance(wethKey, account)
	require.NoError(t, err)
	return b
}

func (tr *testRouter) processed(t *testing.T, id common.Hash) bool {
	ok, err := tr.IsProcessed(id)
	require.NoError(t, err)
	return ok
}

func (tr *testRouter) register(t *testing.T, nonce uint64) {
	env := tr.relayer.Envelope(t, assetHub, nonce, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))
	res, err := tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	require.True(t, res.Success)
}

func (tr *testRouter) send(t *testing.T, nonce uint64, dest codec.Destination, amount types.Balance) *router.Result {
	env := tr.relayer.Envelope(t, assetHub, nonce, v1(&codec.SendToken{Token: weth, Destination: dest, Amount: amount, Fee: registerFee}))
	res, err := tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	return res
}

func kinds(events []types.Event) []types.EventKind {
	out := make([]types.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestRegisterToken(t *testing.T) {
	tr := newRouter(t)
	sovereign := types.SiblingSovereign(assetHub)
	reward := types.DefaultPricingParameters().Rewards.Local

	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))
	res, err := tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, env.MessageID, res.MessageID)
	require.Equal(t, assetHub, res.Dest)
	require.Equal(t, []types.EventKind{
		types.EventMessageReceived,
		types.EventBurned,
		types.EventAssetCreated,
		types.EventMinted,
		types.EventMessageProcessed,
	}, kinds(res.Events))

	a, err := tr.Asset(wethKey)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Equal(t, types.EthereumSovereign(chainID), a.Admin)

	require.Equal(t, reward, tr.native(t, relayer))
	require.Equal(t, sub(t, sub(t, endowment, reward), registerFee), tr.native(t, sovereign))
	require.Equal(t, executionCost, tr.native(t, treasury))
	require.Equal(t, sub(t, registerFee, executionCost), tr.native(t, types.EthereumSovereign(chainID)))
	require.True(t, tr.processed(t, env.MessageID))
	require.Zero(t, tr.dispatcher.Len())
}

func TestSendToken(t *testing.T) {
	tr := newRouter(t)
	tr.register(t, 1)

	res := tr.send(t, 2, &codec.AccountID32{ID: alice}, types.NewBalance(1_000_000_000))
	require.True(t, res.Success)
	require.Equal(t, types.NewBalance(1_000_000_000), tr.weth(t, alice))
	require.Zero(t, res.Deliveries)

	t.Run("forwarded", func(t *testing.T) {
		dest := &codec.ForeignAccountID32{ParaID: uint32(penpal), ID: bob, Fee: types.NewBalance(6_000)}
		res := tr.send(t, 3, dest, types.NewBalance(500))
		require.True(t, res.Success)
		require.Equal(t, 1, res.Deliveries)
		require.Equal(t, types.NewBalance(500), tr.weth(t, types.SiblingSovereign(penpal)), "reserve moves to the sovereign of the destination")
		require.True(t, tr.weth(t, bob).IsZero())

		deliveries := tr.dispatcher.Drain()
		require.Len(t, deliveries, 1)
		require.Equal(t, penpal, deliveries[0].Dest)
		require.Equal(t, res.MessageID, deliveries[0].MessageID)
		require.Zero(t, tr.dispatcher.Len())
	})
}

func TestTransferToEthereum(t *testing.T) {
	tr := newRouter(t)
	tr.register(t, 1)
	tr.send(t, 2, &codec.AccountID32{ID: alice}, types.NewBalance(1_000_000_000))
	intent := &router.TransferIntent{
		Sender:      alice,
		Origin:      assetHub,
		Token:       weth,
		Amount:      types.NewBalance(400_000_000),
		Beneficiary: beneficiary,
		Fee:         endowment,
	}

	_, err := tr.TransferToEthereum(intent)
	require.ErrorIs(t, err, types.ErrNoChannel)

	offered := types.Units(1, 17)
	res, err := tr.CreateAgent(assetHub, offered)
	require.NoError(t, err)
	require.NotNil(t, res.Receipt)
	require.Equal(t, types.PrimaryGovernanceChannel, res.Receipt.ChannelID)
	res, err = tr.CreateChannel(assetHub, types.Normal, offered)
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Receipt.Nonce)
	state, err := tr.State(assetHub)
	require.NoError(t, err)
	require.Equal(t, registry.ChannelCreated, state)

	quote, err := tr.QuoteFee(&outbound.AgentExecute{
		AgentID: types.AgentIDOf(assetHub),
		Command: &outbound.TransferToken{Token: weth, Recipient: beneficiary, Amount: intent.Amount},
	})
	require.NoError(t, err)
	total, err := quote.Total()
	require.NoError(t, err)
	// alice also holds the fee surplus refunded by the inbound transfer
	aliceBefore := tr.native(t, alice)

	t.Run("fee not covered", func(t *testing.T) {
		low := *intent
		low.Fee = sub(t, total, types.NewBalance(1))
		treasuryBefore := tr.native(t, treasury)
		_, err := tr.TransferToEthereum(&low)
		require.ErrorIs(t, err, types.ErrInsufficientFee)
		require.Equal(t, aliceBefore, tr.native(t, alice))
		require.Equal(t, types.NewBalance(1_000_000_000), tr.weth(t, alice))
		require.Equal(t, treasuryBefore, tr.native(t, treasury))
		nonce, err := tr.Nonce(types.ChannelIDOf(assetHub))
		require.NoError(t, err)
		require.Zero(t, nonce)
	})

	t.Run("more than held", func(t *testing.T) {
		big := *intent
		big.Amount = types.NewBalance(2_000_000_000)
		_, err := tr.TransferToEthereum(&big)
		require.ErrorIs(t, err, types.ErrInsufficientBalance)
		require.Equal(t, aliceBefore, tr.native(t, alice), "fee is not charged when the burn fails")
	})

	treasuryBefore := tr.native(t, treasury)
	remoteBefore := tr.native(t, types.EthereumSovereign(chainID))
	out, err := tr.TransferToEthereum(intent)
	require.NoError(t, err)
	require.Equal(t, quote, out.Fee)
	require.Equal(t, types.ChannelIDOf(assetHub), out.Receipt.ChannelID)
	require.Equal(t, uint64(1), out.Receipt.Nonce)
	require.Equal(t, types.NewBalance(600_000_000), tr.weth(t, alice))
	require.Equal(t, sub(t, aliceBefore, total), tr.native(t, alice))
	require.Equal(t, add(t, treasuryBefore, quote.Local), tr.native(t, treasury))
	require.Equal(t, add(t, remoteBefore, quote.Remote), tr.native(t, types.EthereumSovereign(chainID)))

	pending, err := tr.Pending(types.ChannelIDOf(assetHub), 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, outbound.AgentExecuteIndex, pending[0].Command)
	require.Equal(t, out.Receipt.MessageID, pending[0].ID)
}

func TestInsufficientFeeConsumesMessage(t *testing.T) {
	tr := newRouter(t)
	sovereign := types.SiblingSovereign(assetHub)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: types.NewBalance(1000)}))

	res, err := tr.SubmitEnvelope(relayer, env)
	require.ErrorIs(t, err, types.ErrInsufficientFee)
	require.NotNil(t, res)
	require.False(t, res.Success)
	require.True(t, tr.processed(t, env.MessageID))
	require.True(t, tr.native(t, relayer).IsZero(), "relayer is not paid for a rejected message")
	require.Equal(t, endowment, tr.native(t, sovereign))
	exists, err := tr.AssetExists(wethKey)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = tr.SubmitEnvelope(relayer, env)
	require.ErrorIs(t, err, types.ErrReplay)
}

func TestInsufficientBalanceRollsBack(t *testing.T) {
	tr := newRouter(t)
	sovereign := types.SiblingSovereign(assetHub)
	fee := types.Units(2, 18)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: fee}))
	events, err := tr.Events(0, 0)
	require.NoError(t, err)

	res, err := tr.SubmitEnvelope(relayer, env)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	require.Nil(t, res)
	require.False(t, tr.processed(t, env.MessageID), "message stays resubmittable")
	require.Equal(t, endowment, tr.native(t, sovereign))
	require.True(t, tr.native(t, relayer).IsZero())
	exists, err := tr.AssetExists(wethKey)
	require.NoError(t, err)
	require.False(t, exists)
	after, err := tr.Events(0, 0)
	require.NoError(t, err)
	require.Equal(t, events, after)

	require.NoError(t, tr.store.Update(func(kv db.KV) error {
		return ledger.Mint(kv, ledger.Native, sovereign, fee)
	}))
	res, err = tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, tr.processed(t, env.MessageID))
	exists, err = tr.AssetExists(wethKey)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestReplay(t *testing.T) {
	tr := newRouter(t)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))
	_, err := tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	relayerBalance := tr.native(t, relayer)
	events, err := tr.Events(0, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := tr.SubmitEnvelope(relayer, env)
		require.ErrorIs(t, err, types.ErrReplay)
	}
	require.Equal(t, relayerBalance, tr.native(t, relayer))
	after, err := tr.Events(0, 0)
	require.NoError(t, err)
	require.Equal(t, events, after)
}

func TestConcurrentReplay(t *testing.T) {
	tr := newRouter(t)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))

	var accepted, replayed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := tr.SubmitEnvelope(relayer, env)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, types.ErrReplay):
				replayed.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), accepted.Load())
	require.Equal(t, int32(7), replayed.Load())
	require.Len(t, tr.dispatcher.Drain(), 0, "token registration dispatches nothing")
}

func TestInvalidProofLeavesMessageUnprocessed(t *testing.T) {
	tr := newRouter(t)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))

	forged := *env
	forged.Proof.Log.Data = append(hexutil.Bytes{}, env.Proof.Log.Data...)
	forged.Proof.Log.Data[len(forged.Proof.Log.Data)-1] ^= 0xff
	_, err := tr.SubmitEnvelope(relayer, &forged)
	require.ErrorIs(t, err, types.ErrProofInvalid)
	require.False(t, tr.processed(t, env.MessageID))
	events, err := tr.Events(0, 0)
	require.NoError(t, err)
	require.Empty(t, events)

	res, err := tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestWrongGateway(t *testing.T) {
	tr := newRouter(t)
	env := tr.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: registerFee}))
	require.NoError(t, tr.SetGateway(common.Address{0x01}))
	_, err := tr.SubmitEnvelope(relayer, env)
	require.ErrorIs(t, err, types.ErrProofInvalid)

	require.NoError(t, tr.SetGateway(gateway))
	_, err = tr.SubmitEnvelope(relayer, env)
	require.NoError(t, err)
}

func TestExecutionFailureConsumesMessage(t *testing.T) {
	tr := newRouter(t)
	tr.register(t, 1)
	tr.send(t, 2, &codec.AccountID32{ID: alice}, types.MaxBalance)
	sovereign := types.SiblingSovereign(assetHub)
	sovereignBefore := tr.native(t, sovereign)
	relayerBefore := tr.native(t, relayer)
	treasuryBefore := tr.native(t, treasury)

	res := tr.send(t, 3, &codec.AccountID32{ID: bob}, types.NewBalance(1))
	require.False(t, res.Success)
	require.Contains(t, res.Error, types.ErrOverflow.Error())
	require.True(t, tr.processed(t, res.MessageID))

	reward := types.DefaultPricingParameters().Rewards.Local
	require.Equal(t, add(t, relayerBefore, reward), tr.native(t, relayer), "relayer is paid")
	require.Equal(t, sub(t, sub(t, sovereignBefore, reward), registerFee), tr.native(t, sovereign), "fee is burned")
	require.Equal(t, treasuryBefore, tr.native(t, treasury), "execution is rolled back")
	require.True(t, tr.weth(t, bob).IsZero())
	require.Equal(t, []types.EventKind{
		types.EventMessageReceived,
		types.EventBurned,
		types.EventMessageProcessed,
	}, kinds(res.Events))
	require.False(t, *res.Events[2].Success)
}

func TestControlMessages(t *testing.T) {
	tr := newRouter(t)
	env := tr.relayer.Envelope(t, penpal, 1, v1(&codec.CreateChannel{Mode: types.Normal}))
	_, err := tr.SubmitEnvelope(relayer, env)
	require.ErrorIs(t, err, types.ErrNoAgent)

	res, err := tr.SubmitEnvelope(relayer, tr.relayer.Envelope(t, penpal, 2, v1(&codec.CreateAgent{})))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, bridgeHub, res.Dest)
	exists, err := tr.AgentExists(penpal)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = tr.SubmitEnvelope(relayer, tr.relayer.Envelope(t, penpal, 3, v1(&codec.CreateChannel{Mode: types.RejectingOutbound})))
	require.NoError(t, err)
	mode, err := tr.ChannelMode(penpal)
	require.NoError(t, err)
	require.Equal(t, types.RejectingOutbound, mode)
}

func TestCreateAgentTwice(t *testing.T) {
	tr := newRouter(t)
	sovereign := types.SiblingSovereign(assetHub)
	offered := types.Units(1, 17)
	first, err := tr.CreateAgent(assetHub, offered)
	require.NoError(t, err)
	paid := tr.native(t, sovereign)
	require.Equal(t, sub(t, endowment, mustTotal(t, first)), paid)

	again, err := tr.CreateAgent(assetHub, offered)
	require.NoError(t, err)
	require.Nil(t, again.Receipt)
	require.Equal(t, paid, tr.native(t, sovereign), "no fee for an existing agent")
	nonce, err := tr.Nonce(types.PrimaryGovernanceChannel)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	_, err = tr.UpdateChannel(assetHub, types.Normal, offered)
	require.ErrorIs(t, err, types.ErrNoChannel)
}

func mustTotal(t *testing.T, res *router.OutboundResult) types.Balance {
	total, err := res.Fee.Total()
	require.NoError(t, err)
	return total
}

func TestOperatingMode(t *testing.T) {
	tr := newRouter(t)
	receipt, err := tr.SetOperatingMode(types.RejectingOutbound)
	require.NoError(t, err)
	require.Equal(t, types.PrimaryGovernanceChannel, receipt.ChannelID)

	_, err = tr.CreateAgent(assetHub, endowment)
	require.ErrorIs(t, err, types.ErrHalted)
	_, err = tr.TransferToEthereum(&router.TransferIntent{Sender: alice, Origin: assetHub, Token: weth, Amount: types.NewBalance(1), Fee: endowment})
	require.ErrorIs(t, err, types.ErrHalted)

	// inbound messages and governance keep flowing
	tr.register(t, 1)
	pricing := types.DefaultPricingParameters()
	pricing.FeePerGas = types.GWei(30)
	receipt, err = tr.SetPricingParameters(&pricing)
	require.NoError(t, err)
	require.Equal(t, uint64(2), receipt.Nonce)
	stored, err := tr.Pricing()
	require.NoError(t, err)
	require.Equal(t, pricing, *stored)

	_, err = tr.SetOperatingMode(types.Normal)
	require.NoError(t, err)
	_, err = tr.CreateAgent(assetHub, endowment)
	require.NoError(t, err)

	pending, err := tr.Pending(types.PrimaryGovernanceChannel, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{
		outbound.SetOperatingModeIndex,
		outbound.SetPricingParametersIndex,
		outbound.SetOperatingModeIndex,
		outbound.CreateAgentIndex,
	}, []byte{pending[0].Command, pending[1].Command, pending[2].Command, pending[3].Command})
}

func TestInvalidPricing(t *testing.T) {
	tr := newRouter(t)
	pricing := types.DefaultPricingParameters()
	pricing.ExchangeRate = types.FixedU128{}
	_, err := tr.SetPricingParameters(&pricing)
	require.ErrorIs(t, err, types.ErrInvalidPricing)
	nonce, err := tr.Nonce(types.PrimaryGovernanceChannel)
	require.NoError(t, err)
	require.Zero(t, nonce)
}

func TestEventLogIsOrdered(t *testing.T) {
	tr := newRouter(t)
	tr.register(t, 1)
	tr.send(t, 2, &codec.AccountID32{ID: alice}, types.NewBalance(10))
	_, err := tr.SetOperatingMode(types.RejectingOutbound)
	require.NoError(t, err)

	events, err := tr.Events(0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for i, ev := range events {
		require.Equal(t, uint64(i+1), ev.Seq)
	}

	page, err := tr.Events(3, 2)
	require.NoError(t, err)
	require.Equal(t, events[2:4], page)
}

func TestGenesisAppliedOnce(t *testing.T) {
	tr := newRouter(t)
	g := genesis()
	g.Gateway = common.Address{0x02}
	require.NoError(t, tr.Init(g))
	require.Equal(t, endowment, tr.native(t, alice))
	gw, err := tr.Gateway()
	require.NoError(t, err)
	require.Equal(t, gateway, gw)

	supply, err := tr.NativeSupply()
	require.NoError(t, err)
	require.Equal(t, types.Units(3, 18), supply)
}
