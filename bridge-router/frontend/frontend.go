// Package frontend exposes the router over JSON-RPC.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/fees"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/router"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
	oprpc "github.com/mantlenetworkio/ethbridge/op-service/rpc"
)

// MaxPendingPerQuery bounds the messages returned by one pendingMessages call.
const MaxPendingPerQuery = 1000

type QueryBackend interface {
	AgentExists(origin types.Origin) (bool, error)
	ChannelMode(origin types.Origin) (types.OperatingMode, error)
	Channel(id types.ChannelID) (*registry.Channel, error)
	Channels() ([]registry.Channel, error)
	State(origin types.Origin) (registry.State, error)
	AssetExists(key types.AssetKey) (bool, error)
	Asset(key types.AssetKey) (*assets.Asset, error)
	Assets() ([]assets.Asset, error)
	NativeBalance(account types.AccountID) (types.Balance, error)
	Balance(key types.AssetKey, account types.AccountID) (types.Balance, error)
	Supply(key types.AssetKey) (types.Balance, error)
	Nonce(channelID types.ChannelID) (uint64, error)
	Pending(channelID types.ChannelID, fromNonce uint64, limit int) ([]outbound.Message, error)
	Events(from uint64, limit int) ([]types.Event, error)
	Pricing() (*types.PricingParameters, error)
	Gateway() (common.Address, error)
	Mode() (types.OperatingMode, error)
	IsProcessed(id common.Hash) (bool, error)
	QuoteFee(cmd outbound.Command) (fees.Fee, error)
	Config() *router.Config
}

type InboundBackend interface {
	SubmitEnvelope(relayer types.AccountID, env *inbound.Envelope) (*router.Result, error)
}

type LocalBackend interface {
	TransferToEthereum(intent *router.TransferIntent) (*router.OutboundResult, error)
	CreateAgent(origin types.Origin, offered types.Balance) (*router.OutboundResult, error)
	CreateChannel(origin types.Origin, mode types.OperatingMode, offered types.Balance) (*router.OutboundResult, error)
	UpdateChannel(origin types.Origin, mode types.OperatingMode, offered types.Balance) (*router.OutboundResult, error)
}

type AdminBackend interface {
	SetPricingParameters(p *types.PricingParameters) (*outbound.Receipt, error)
	SetGateway(addr common.Address) error
	SetOperatingMode(mode types.OperatingMode) (*outbound.Receipt, error)
}

// Backend is everything the frontends serve. *router.Router implements it.
type Backend interface {
	QueryBackend
	InboundBackend
	LocalBackend
	AdminBackend
}

// HeaderImporter trusts execution headers for proof verification.
type HeaderImporter interface {
	ImportHeader(h *gethtypes.Header) common.Hash
}

// DeliverySource hands out the deliveries the router dispatched.
type DeliverySource interface {
	Drain() []*router.Delivery
}

func toJsonError(err error) error {
	if err == nil {
		return nil
	}
	return &rpc.JsonError{
		Code:    types.ErrorCode(err),
		Message: err.Error(),
	}
}

// BridgeFrontend serves relayers and readers. It is safe to expose publicly.
type BridgeFrontend struct {
	Backend interface {
		QueryBackend
		InboundBackend
	}
	// Limiter throttles envelope submissions. Nil means no limit.
	Limiter *rate.Limiter
	// LimiterTimeout bounds the wait for the limiter. Zero waits as long as the request lives.
	LimiterTimeout time.Duration
	Log            log.Logger
}

// SubmitEnvelope processes an envelope delivered by relayer. If the message is consumed
// without effect, the error carries the result as data.
func (b *BridgeFrontend) SubmitEnvelope(ctx context.Context, relayer types.AccountID, env inbound.Envelope) (*router.Result, error) {
	if b.Limiter != nil {
		waitCtx := ctx
		if b.LimiterTimeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, b.LimiterTimeout)
			defer cancel()
		}
		if err := b.Limiter.Wait(waitCtx); err != nil {
			return nil, fmt.Errorf("submission throttled: %w", err)
		}
	}
	res, err := b.Backend.SubmitEnvelope(relayer, &env)
	if err != nil {
		b.Log.Debug("envelope not accepted", "message_id", env.MessageID, "relayer", relayer, "err", err)
		jsonErr := &rpc.JsonError{Code: types.ErrorCode(err), Message: err.Error()}
		if res != nil {
			jsonErr.Data = res
		}
		return nil, jsonErr
	}
	return res, nil
}

func (b *BridgeFrontend) IsProcessed(ctx context.Context, messageID common.Hash) (bool, error) {
	ok, err := b.Backend.IsProcessed(messageID)
	return ok, toJsonError(err)
}

// PendingMessages lists queued outbound messages of a channel, for the delivery fabric.
func (b *BridgeFrontend) PendingMessages(ctx context.Context, channelID types.ChannelID, fromNonce hexutil.Uint64, limit int) ([]outbound.Message, error) {
	if limit <= 0 || limit > MaxPendingPerQuery {
		limit = MaxPendingPerQuery
	}
	msgs, err := b.Backend.Pending(channelID, uint64(fromNonce), limit)
	return msgs, toJsonError(err)
}

func (b *BridgeFrontend) Nonce(ctx context.Context, channelID types.ChannelID) (hexutil.Uint64, error) {
	n, err := b.Backend.Nonce(channelID)
	return hexutil.Uint64(n), toJsonError(err)
}

func (b *BridgeFrontend) AgentExists(ctx context.Context, origin types.Origin) (bool, error) {
	ok, err := b.Backend.AgentExists(origin)
	return ok, toJsonError(err)
}

// ChannelMode returns the mode of the channel of origin.
func (b *BridgeFrontend) ChannelMode(ctx context.Context, origin types.Origin) (types.OperatingMode, error) {
	mode, err := b.Backend.ChannelMode(origin)
	return mode, toJsonError(err)
}

// ChannelState returns where origin is in its agent and channel lifecycle.
func (b *BridgeFrontend) ChannelState(ctx context.Context, origin types.Origin) (string, error) {
	s, err := b.Backend.State(origin)
	if err != nil {
		return "", toJsonError(err)
	}
	return s.String(), nil
}

func (b *BridgeFrontend) Channel(ctx context.Context, id types.ChannelID) (*registry.Channel, error) {
	ch, err := b.Backend.Channel(id)
	if err != nil {
		return nil, toJsonError(err)
	}
	if ch == nil {
		return nil, toJsonError(fmt.Errorf("%w: %s", types.ErrNoChannel, id))
	}
	return ch, nil
}

func (b *BridgeFrontend) Channels(ctx context.Context) ([]registry.Channel, error) {
	chs, err := b.Backend.Channels()
	return chs, toJsonError(err)
}

func (b *BridgeFrontend) assetKey(token common.Address) types.AssetKey {
	return types.AssetKey{ChainID: b.Backend.Config().Inbound.EthereumChainID, Token: token}
}

// AssetExists reports whether the token of the bridged Ethereum chain is registered.
func (b *BridgeFrontend) AssetExists(ctx context.Context, token common.Address) (bool, error) {
	ok, err := b.Backend.AssetExists(b.assetKey(token))
	return ok, toJsonError(err)
}

func (b *BridgeFrontend) Asset(ctx context.Context, token common.Address) (*assets.Asset, error) {
	a, err := b.Backend.Asset(b.assetKey(token))
	if err != nil {
		return nil, toJsonError(err)
	}
	if a == nil {
		return nil, toJsonError(fmt.Errorf("%w: %s", types.ErrUnknownAsset, token))
	}
	return a, nil
}

func (b *BridgeFrontend) Assets(ctx context.Context) ([]assets.Asset, error) {
	list, err := b.Backend.Assets()
	return list, toJsonError(err)
}

// Balance returns the balance of a bridged token held by account.
func (b *BridgeFrontend) Balance(ctx context.Context, token common.Address, account types.AccountID) (types.Balance, error) {
	bal, err := b.Backend.Balance(b.assetKey(token), account)
	return bal, toJsonError(err)
}

func (b *BridgeFrontend) Supply(ctx context.Context, token common.Address) (types.Balance, error) {
	s, err := b.Backend.Supply(b.assetKey(token))
	return s, toJsonError(err)
}

func (b *BridgeFrontend) NativeBalance(ctx context.Context, account types.AccountID) (types.Balance, error) {
	bal, err := b.Backend.NativeBalance(account)
	return bal, toJsonError(err)
}

func (b *BridgeFrontend) Events(ctx context.Context, from hexutil.Uint64, limit int) ([]types.Event, error) {
	events, err := b.Backend.Events(uint64(from), limit)
	return events, toJsonError(err)
}

func (b *BridgeFrontend) PricingParameters(ctx context.Context) (*types.PricingParameters, error) {
	p, err := b.Backend.Pricing()
	return p, toJsonError(err)
}

func (b *BridgeFrontend) Gateway(ctx context.Context) (common.Address, error) {
	addr, err := b.Backend.Gateway()
	return addr, toJsonError(err)
}

func (b *BridgeFrontend) OperatingMode(ctx context.Context) (types.OperatingMode, error) {
	mode, err := b.Backend.Mode()
	return mode, toJsonError(err)
}

// QuoteTransferFee returns the fee of releasing amount of token to beneficiary through the
// channel of origin.
func (b *BridgeFrontend) QuoteTransferFee(ctx context.Context, origin types.Origin, token common.Address, beneficiary common.Address, amount types.Balance) (fees.Fee, error) {
	fee, err := b.Backend.QuoteFee(&outbound.AgentExecute{
		AgentID: types.AgentIDOf(origin),
		Command: &outbound.TransferToken{Token: token, Recipient: beneficiary, Amount: amount},
	})
	return fee, toJsonError(err)
}

func (b *BridgeFrontend) QuoteCreateAgentFee(ctx context.Context, origin types.Origin) (fees.Fee, error) {
	fee, err := b.Backend.QuoteFee(&outbound.CreateAgent{AgentID: types.AgentIDOf(origin)})
	return fee, toJsonError(err)
}

func (b *BridgeFrontend) QuoteCreateChannelFee(ctx context.Context, origin types.Origin, mode types.OperatingMode) (fees.Fee, error) {
	fee, err := b.Backend.QuoteFee(&outbound.CreateChannel{
		ChannelID: types.ChannelIDOf(origin),
		AgentID:   types.AgentIDOf(origin),
		Mode:      mode,
	})
	return fee, toJsonError(err)
}

// LocalFrontend accepts intents from the local chain. Senders are authenticated by the local
// chain, so it must only be served on an authenticated route.
type LocalFrontend struct {
	Backend LocalBackend
}

func (l *LocalFrontend) TransferToEthereum(ctx context.Context, intent router.TransferIntent) (*router.OutboundResult, error) {
	res, err := l.Backend.TransferToEthereum(&intent)
	return res, toJsonError(err)
}

func (l *LocalFrontend) CreateAgent(ctx context.Context, origin types.Origin, offered types.Balance) (*router.OutboundResult, error) {
	res, err := l.Backend.CreateAgent(origin, offered)
	return res, toJsonError(err)
}

func (l *LocalFrontend) CreateChannel(ctx context.Context, origin types.Origin, mode types.OperatingMode, offered types.Balance) (*router.OutboundResult, error) {
	res, err := l.Backend.CreateChannel(origin, mode, offered)
	return res, toJsonError(err)
}

func (l *LocalFrontend) UpdateChannel(ctx context.Context, origin types.Origin, mode types.OperatingMode, offered types.Balance) (*router.OutboundResult, error) {
	res, err := l.Backend.UpdateChannel(origin, mode, offered)
	return res, toJsonError(err)
}

// AdminFrontend serves root operations. It must only be served on an authenticated route.
type AdminFrontend struct {
	*oprpc.CommonAdminAPI

	Backend    AdminBackend
	Headers    HeaderImporter
	Deliveries DeliverySource
}

func (a *AdminFrontend) SetPricingParameters(ctx context.Context, p types.PricingParameters) (*outbound.Receipt, error) {
	receipt, err := a.Backend.SetPricingParameters(&p)
	return receipt, toJsonError(err)
}

func (a *AdminFrontend) SetGateway(ctx context.Context, addr common.Address) error {
	if addr == (common.Address{}) {
		return toJsonError(fmt.Errorf("%w: zero gateway address", types.ErrMalformed))
	}
	return toJsonError(a.Backend.SetGateway(addr))
}

func (a *AdminFrontend) SetOperatingMode(ctx context.Context, mode types.OperatingMode) (*outbound.Receipt, error) {
	receipt, err := a.Backend.SetOperatingMode(mode)
	return receipt, toJsonError(err)
}

// ImportExecutionHeader trusts a finalized header of the Ethereum chain, so that envelopes
// proven against it are accepted.
func (a *AdminFrontend) ImportExecutionHeader(ctx context.Context, header gethtypes.Header) (common.Hash, error) {
	if a.Headers == nil {
		return common.Hash{}, errors.New("header import is not available")
	}
	return a.Headers.ImportHeader(&header), nil
}

// DrainDeliveries returns and forgets the deliveries dispatched since the previous call.
func (a *AdminFrontend) DrainDeliveries(ctx context.Context) ([]*router.Delivery, error) {
	if a.Deliveries == nil {
		return nil, errors.New("deliveries are not queued locally")
	}
	out := a.Deliveries.Drain()
	if out == nil {
		out = []*router.Delivery{}
	}
	return out, nil
}
