package inbound_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/codec"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/program"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
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
	gateway = common.HexToAddress("0xEDa338E4dC46038493b885327842fD3E301CaB39")
	weth    = common.HexToAddress("0x87d1f7fdfEe7f651FaBc8bFCB6E086C278b77A7d")
	wethKey = types.AssetKey{ChainID: chainID, Token: weth}
)

type harness struct {
	db       *db.DB
	proc     *inbound.Processor
	verifier *inbound.ReceiptProofVerifier
	relayer  *testutils.Relayer
}

func newHarness(t *testing.T) *harness {
	logger := testlog.Logger(t, log.LevelInfo)
	d, err := db.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	v, err := inbound.NewReceiptProofVerifier(logger, 16)
	require.NoError(t, err)
	cfg := &inbound.Config{
		EthereumChainID:        chainID,
		BridgeHub:              bridgeHub,
		AssetHub:               assetHub,
		MinExecutionFee:        map[types.Origin]types.Balance{penpal: types.NewBalance(5_000)},
		DefaultMinExecutionFee: types.NewBalance(1_000_000_000),
	}
	require.NoError(t, cfg.Check())
	return &harness{db: d, proc: inbound.NewProcessor(cfg, v), verifier: v, relayer: testutils.NewRelayer(gateway, v)}
}

func (h *harness) process(t *testing.T, env *inbound.Envelope) (*inbound.Conversion, error) {
	var conv *inbound.Conversion
	err := h.db.View(func(r db.Reader) error {
		var err error
		conv, err = h.proc.Process(r, env, gateway)
		return err
	})
	return conv, err
}

func v1(cmd codec.Command) *codec.MessageV1 {
	return &codec.MessageV1{ChainID: chainID, Command: cmd}
}

func TestProveReceiptMatchesBlockRoot(t *testing.T) {
	receipts := gethtypes.Receipts{
		{Type: gethtypes.LegacyTxType, Status: 1, CumulativeGasUsed: 1, Logs: []*gethtypes.Log{}},
		{Type: gethtypes.DynamicFeeTxType, Status: 1, CumulativeGasUsed: 2, Logs: []*gethtypes.Log{{Address: gateway, Data: []byte{1}}}},
		{Type: gethtypes.LegacyTxType, Status: 0, CumulativeGasUsed: 3, Logs: []*gethtypes.Log{}},
	}
	root, proof, err := inbound.ProveReceipt(receipts, 1)
	require.NoError(t, err)
	require.NotEmpty(t, proof)
	require.Equal(t, gethtypes.DeriveSha(receipts, trie.NewStackTrie(nil)), root, "same root as the block header")

	_, _, err = inbound.ProveReceipt(receipts, 3)
	require.Error(t, err)
}

func TestVerifier(t *testing.T) {
	h := newHarness(t)
	env := h.relayer.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))

	v := h.verifier
	require.NoError(t, v.VerifyHeader(env.Proof.BlockHash))
	require.NoError(t, v.VerifyLogIncluded(&env.Proof))

	t.Run("unknown block", func(t *testing.T) {
		p := env.Proof
		p.BlockHash = common.Hash{0x01}
		require.ErrorIs(t, v.VerifyHeader(p.BlockHash), types.ErrProofInvalid)
		require.ErrorIs(t, v.VerifyLogIncluded(&p), types.ErrProofInvalid)
	})
	t.Run("wrong index", func(t *testing.T) {
		p := env.Proof
		p.TxIndex = 0
		require.ErrorIs(t, v.VerifyLogIncluded(&p), types.ErrProofInvalid)
	})
	t.Run("forged log", func(t *testing.T) {
		p := env.Proof
		p.Log.Data = bytes.Clone(p.Log.Data)
		p.Log.Data[len(p.Log.Data)-1] ^= 0xff
		require.ErrorIs(t, v.VerifyLogIncluded(&p), types.ErrProofInvalid)
	})
	t.Run("missing nodes", func(t *testing.T) {
		p := env.Proof
		p.ReceiptProof = p.ReceiptProof[:0]
		require.ErrorIs(t, v.VerifyLogIncluded(&p), types.ErrProofInvalid)
	})
}

func TestVerifierEvictsOldHeaders(t *testing.T) {
	logger := testlog.Logger(t, log.LevelInfo)
	v, err := inbound.NewReceiptProofVerifier(logger, 2)
	require.NoError(t, err)
	relayer := testutils.NewRelayer(gateway, v)
	first := relayer.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))
	relayer.Envelope(t, assetHub, 2, v1(&codec.CreateAgent{}))
	relayer.Envelope(t, assetHub, 3, v1(&codec.CreateAgent{}))
	require.ErrorIs(t, v.VerifyHeader(first.Proof.BlockHash), types.ErrProofInvalid)
}

func TestGatewayChecks(t *testing.T) {
	h := newHarness(t)

	t.Run("foreign emitter", func(t *testing.T) {
		r := testutils.NewRelayer(common.Address{0x66}, h.verifier)
		env := r.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))
		_, err := h.process(t, env)
		require.ErrorIs(t, err, types.ErrProofInvalid)
	})
	t.Run("message id mismatch", func(t *testing.T) {
		env := h.relayer.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))
		env.MessageID = common.Hash{0x02}
		_, err := h.process(t, env)
		require.ErrorIs(t, err, types.ErrProofInvalid)
	})
	t.Run("channel of another origin", func(t *testing.T) {
		env := h.relayer.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))
		env.OriginChainID = uint64(penpal)
		conv, err := h.process(t, env)
		require.ErrorIs(t, err, types.ErrProofInvalid)
		require.Equal(t, env.MessageID, conv.MessageID, "conversion identifies the message")
	})
	t.Run("other event", func(t *testing.T) {
		l := &inbound.Log{Address: gateway, Topics: []common.Hash{{0x01}, types.ChannelIDOf(assetHub), {0x03}}}
		env := h.relayer.Prove(t, common.Hash{0x03}, assetHub, l)
		_, err := h.process(t, env)
		require.ErrorIs(t, err, types.ErrProofInvalid)
	})
}

func TestReplay(t *testing.T) {
	h := newHarness(t)
	env := h.relayer.Envelope(t, assetHub, 1, v1(&codec.CreateAgent{}))
	_, err := h.process(t, env)
	require.NoError(t, err)

	require.NoError(t, h.db.Update(func(kv db.KV) error {
		return inbound.MarkProcessed(kv, env.MessageID)
	}))
	_, err = h.process(t, env)
	require.ErrorIs(t, err, types.ErrReplay)
}

func TestMalformed(t *testing.T) {
	h := newHarness(t)
	for name, payload := range map[string][]byte{
		"empty":          {},
		"unknown tag":    {0x07},
		"reserved cmd":   append(codec.EncodeMessage(v1(&codec.CreateAgent{}))[:9], 0x02),
		"trailing bytes": append(codec.EncodeMessage(v1(&codec.CreateAgent{})), 0x00),
		"other chain":    codec.EncodeMessage(&codec.MessageV1{ChainID: 1, Command: &codec.CreateAgent{}}),
	} {
		t.Run(name, func(t *testing.T) {
			env := h.relayer.EnvelopePayload(t, assetHub, 1, payload)
			conv, err := h.process(t, env)
			require.ErrorIs(t, err, types.ErrMalformed)
			require.True(t, types.IsPermanent(err))
			require.Nil(t, conv.Command)
		})
	}
}

func TestControlCommands(t *testing.T) {
	h := newHarness(t)
	env := h.relayer.Envelope(t, penpal, 1, v1(&codec.CreateChannel{Mode: types.Normal}))
	_, err := h.process(t, env)
	require.ErrorIs(t, err, types.ErrNoAgent)

	env = h.relayer.Envelope(t, penpal, 2, v1(&codec.CreateAgent{}))
	conv, err := h.process(t, env)
	require.NoError(t, err)
	require.Equal(t, bridgeHub, conv.Dest)
	require.True(t, conv.Fee.IsZero())
	require.Equal(t, program.Program{
		&program.DescendOrigin{Pallet: program.InboundQueuePallet},
		&program.ControlInstruction{Pallet: program.SystemPallet, Call: program.CreateAgentCall, Origin: penpal},
		&program.SetTopic{Topic: env.MessageID},
	}, conv.Program)

	require.NoError(t, h.db.Update(func(kv db.KV) error {
		_, _, err := registry.CreateAgent(kv, penpal)
		return err
	}))
	env = h.relayer.Envelope(t, penpal, 3, v1(&codec.CreateChannel{Mode: types.RejectingOutbound}))
	conv, err = h.process(t, env)
	require.NoError(t, err)
	require.Equal(t, &program.ControlInstruction{
		Pallet: program.SystemPallet,
		Call:   program.CreateChannelCall,
		Origin: penpal,
		Mode:   types.RejectingOutbound,
	}, conv.Program[1])
}

func TestRegisterToken(t *testing.T) {
	h := newHarness(t)
	env := h.relayer.Envelope(t, assetHub, 1, v1(&codec.RegisterToken{Token: weth, Fee: types.NewBalance(1000)}))
	_, err := h.process(t, env)
	require.ErrorIs(t, err, types.ErrInsufficientFee)

	fee := types.NewBalance(4_000_000_000)
	env = h.relayer.Envelope(t, assetHub, 2, v1(&codec.RegisterToken{Token: weth, Fee: fee}))
	conv, err := h.process(t, env)
	require.NoError(t, err)
	require.Equal(t, assetHub, conv.Dest)
	require.Equal(t, fee, conv.Fee)
	require.Equal(t, uint64(2), conv.Nonce)
	owner := types.EthereumSovereign(chainID)
	native := program.Asset{ID: program.NativeAsset, Amount: fee}
	require.Equal(t, program.Program{
		&program.ReceiveTeleportedAsset{Asset: native},
		&program.BuyExecution{Fee: native},
		&program.DescendOrigin{Pallet: program.InboundQueuePallet},
		&program.UniversalOrigin{ChainID: chainID},
		&program.CreateForeignAsset{
			Pallet:     program.ForeignAssetsPallet,
			Call:       program.CreateForeignAssetCall,
			Key:        wethKey,
			Admin:      owner,
			MinBalance: types.NewBalance(1),
		},
		&program.RefundSurplus{},
		&program.DepositAsset{Beneficiary: owner},
		&program.SetTopic{Topic: env.MessageID},
	}, conv.Program)
}

func TestSendToken(t *testing.T) {
	h := newHarness(t)
	recipient := types.AccountID{0x42}
	fee := types.NewBalance(4_000_000_000)
	send := &codec.SendToken{
		Token:       weth,
		Destination: &codec.AccountID32{ID: recipient},
		Amount:      types.NewBalance(1_000_000_000),
		Fee:         fee,
	}
	_, err := h.process(t, h.relayer.Envelope(t, assetHub, 1, v1(send)))
	require.ErrorIs(t, err, types.ErrUnknownAsset)

	require.NoError(t, h.db.Update(func(kv db.KV) error {
		_, err := assets.Register(kv, wethKey, types.EthereumSovereign(chainID), types.NewBalance(1))
		return err
	}))

	env := h.relayer.Envelope(t, assetHub, 2, v1(send))
	conv, err := h.process(t, env)
	require.NoError(t, err)
	require.Equal(t, fee, conv.Fee)
	require.Len(t, conv.Program, 9)
	require.Equal(t, &program.ReserveAssetDeposited{Asset: program.Asset{ID: program.ForeignAsset(wethKey), Amount: send.Amount}}, conv.Program[4])
	require.Equal(t, &program.DepositAsset{Beneficiary: recipient}, conv.Program[7])

	t.Run("forwarded", func(t *testing.T) {
		fwd := *send
		fwd.Destination = &codec.ForeignAccountID32{ParaID: uint32(penpal), ID: recipient, Fee: types.NewBalance(6_000)}
		env := h.relayer.Envelope(t, assetHub, 3, v1(&fwd))
		conv, err := h.process(t, env)
		require.NoError(t, err)
		require.Equal(t, types.NewBalance(4_000_006_000), conv.Fee, "both fees are teleported")
		require.Equal(t, &program.ReceiveTeleportedAsset{Asset: program.Asset{ID: program.NativeAsset, Amount: conv.Fee}}, conv.Program[0])
		require.Equal(t, &program.DepositReserveAsset{
			Dest: penpal,
			Program: program.Program{
				&program.BuyExecution{Fee: program.Asset{ID: program.NativeAsset, Amount: types.NewBalance(6_000)}},
				&program.DepositAsset{Beneficiary: recipient},
				&program.SetTopic{Topic: env.MessageID},
			},
		}, conv.Program[7])
	})
	t.Run("forward fee below destination minimum", func(t *testing.T) {
		fwd := *send
		fwd.Destination = &codec.ForeignAccountID32{ParaID: uint32(penpal), ID: recipient, Fee: types.NewBalance(4_999)}
		_, err := h.process(t, h.relayer.Envelope(t, assetHub, 4, v1(&fwd)))
		require.ErrorIs(t, err, types.ErrInsufficientFee)
	})
	t.Run("fees overflow", func(t *testing.T) {
		fwd := *send
		fwd.Destination = &codec.ForeignAccountID32{ParaID: uint32(penpal), ID: recipient, Fee: types.MaxBalance}
		_, err := h.process(t, h.relayer.Envelope(t, assetHub, 5, v1(&fwd)))
		require.ErrorIs(t, err, types.ErrMalformed)
	})
}
