package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/ledger"
	"github.com/mantlenetworkio/ethbridge/bridge-router/outbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// Queries read committed state only. They do not take the router lock.

func (r *Router) AgentExists(origin types.Origin) (exists bool, err error) {
	err = r.db.View(func(rd db.Reader) error {
		exists, err = registry.AgentExists(rd, origin)
		return err
	})
	return
}

func (r *Router) ChannelMode(origin types.Origin) (mode types.OperatingMode, err error) {
	err = r.db.View(func(rd db.Reader) error {
		mode, err = registry.ChannelMode(rd, origin)
		return err
	})
	return
}

// Channel returns the channel with the given id, or nil.
func (r *Router) Channel(id types.ChannelID) (ch *registry.Channel, err error) {
	err = r.db.View(func(rd db.Reader) error {
		ch, err = registry.ChannelByID(rd, id)
		return err
	})
	return
}

func (r *Router) Channels() (chs []registry.Channel, err error) {
	err = r.db.View(func(rd db.Reader) error {
		chs, err = registry.Channels(rd)
		return err
	})
	return
}

// State returns where origin is in its agent and channel lifecycle.
func (r *Router) State(origin types.Origin) (state registry.State, err error) {
	err = r.db.View(func(rd db.Reader) error {
		state, err = registry.StateOf(rd, origin)
		return err
	})
	return
}

func (r *Router) AssetExists(key types.AssetKey) (exists bool, err error) {
	err = r.db.View(func(rd db.Reader) error {
		exists, err = assets.Exists(rd, key)
		return err
	})
	return
}

// Asset returns the registered asset, or nil.
func (r *Router) Asset(key types.AssetKey) (a *assets.Asset, err error) {
	err = r.db.View(func(rd db.Reader) error {
		a, err = assets.Get(rd, key)
		return err
	})
	return
}

func (r *Router) Assets() (list []assets.Asset, err error) {
	err = r.db.View(func(rd db.Reader) error {
		list, err = assets.List(rd)
		return err
	})
	return
}

// NativeBalance returns the balance of the local native currency held by account.
func (r *Router) NativeBalance(account types.AccountID) (b types.Balance, err error) {
	err = r.db.View(func(rd db.Reader) error {
		b, err = ledger.BalanceOf(rd, ledger.Native, account)
		return err
	})
	return
}

// Balance returns the balance of a foreign asset held by account.
func (r *Router) Balance(key types.AssetKey, account types.AccountID) (b types.Balance, err error) {
	err = r.db.View(func(rd db.Reader) error {
		b, err = assets.BalanceOf(rd, key, account)
		return err
	})
	return
}

// Supply returns the total issuance of a foreign asset.
func (r *Router) Supply(key types.AssetKey) (b types.Balance, err error) {
	err = r.db.View(func(rd db.Reader) error {
		b, err = assets.Supply(rd, key)
		return err
	})
	return
}

func (r *Router) NativeSupply() (b types.Balance, err error) {
	err = r.db.View(func(rd db.Reader) error {
		b, err = ledger.Supply(rd, ledger.Native)
		return err
	})
	return
}

// Nonce returns the nonce of the last message queued on the channel.
func (r *Router) Nonce(channelID types.ChannelID) (n uint64, err error) {
	err = r.db.View(func(rd db.Reader) error {
		n, err = outbound.Nonce(rd, channelID)
		return err
	})
	return
}

// Pending lists queued messages of the channel starting at fromNonce.
func (r *Router) Pending(channelID types.ChannelID, fromNonce uint64, limit int) (msgs []outbound.Message, err error) {
	err = r.db.View(func(rd db.Reader) error {
		msgs, err = outbound.Pending(rd, channelID, fromNonce, limit)
		return err
	})
	if msgs == nil {
		msgs = []outbound.Message{}
	}
	return
}

// Events returns up to limit events starting at sequence number from.
func (r *Router) Events(from uint64, limit int) (events []types.Event, err error) {
	err = r.db.View(func(rd db.Reader) error {
		events, err = readEvents(rd, from, limit)
		return err
	})
	return
}

func (r *Router) Pricing() (p *types.PricingParameters, err error) {
	err = r.db.View(func(rd db.Reader) error {
		p, err = readPricing(rd)
		return err
	})
	return
}

func (r *Router) Gateway() (addr common.Address, err error) {
	err = r.db.View(func(rd db.Reader) error {
		addr, err = readGateway(rd)
		return err
	})
	return
}

func (r *Router) Mode() (mode types.OperatingMode, err error) {
	err = r.db.View(func(rd db.Reader) error {
		mode, err = readMode(rd)
		return err
	})
	return
}

// IsProcessed reports whether the message ID was consumed.
func (r *Router) IsProcessed(id common.Hash) (done bool, err error) {
	if r.processed.Contains(id) {
		return true, nil
	}
	err = r.db.View(func(rd db.Reader) error {
		done, err = inbound.IsProcessed(rd, id)
		return err
	})
	return
}

// Config returns the router configuration. It must not be modified.
func (r *Router) Config() *Config {
	return r.cfg
}
