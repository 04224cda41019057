// Package registry tracks the agent and the channel of every origin.
//
// Per origin the registry moves from NoAgent to AgentCreated to ChannelCreated, and never back:
// agents and channels are not revoked. A channel cannot be created before the agent of its origin.
package registry

import (
	"fmt"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

type State uint8

const (
	NoAgent State = iota
	AgentCreated
	ChannelCreated
)

func (s State) String() string {
	switch s {
	case NoAgent:
		return "no-agent"
	case AgentCreated:
		return "agent-created"
	case ChannelCreated:
		return "channel-created"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type Channel struct {
	ID      types.ChannelID     `json:"id"`
	AgentID types.AgentID       `json:"agentID"`
	Origin  types.Origin        `json:"origin"`
	Mode    types.OperatingMode `json:"mode"`
}

type storedChannel struct {
	AgentID types.AgentID
	Origin  uint64
	Mode    uint8
}

func agentKey(origin types.Origin) []byte {
	return db.Key(db.PrefixAgent, db.U64(uint64(origin)))
}

func channelKey(id types.ChannelID) []byte {
	return db.Key(db.PrefixChannel, id[:])
}

// Agent returns the agent of origin, if it has one.
func Agent(r db.Reader, origin types.Origin) (types.AgentID, bool, error) {
	v, ok, err := r.Get(agentKey(origin))
	if err != nil || !ok {
		return types.AgentID{}, false, err
	}
	if len(v) != len(types.AgentID{}) {
		return types.AgentID{}, false, &db.CorruptValueError{Key: agentKey(origin), Len: len(v)}
	}
	return types.AgentID(v), true, nil
}

func AgentExists(r db.Reader, origin types.Origin) (bool, error) {
	_, ok, err := Agent(r, origin)
	return ok, err
}

// ChannelByID returns a channel by its id. Governance channels are only reachable this way.
func ChannelByID(r db.Reader, id types.ChannelID) (*Channel, error) {
	var stored storedChannel
	ok, err := db.GetRLP(r, channelKey(id), &stored)
	if err != nil || !ok {
		return nil, err
	}
	mode := types.OperatingMode(stored.Mode)
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: channel %s has unknown mode %d", types.ErrRegistry, id, stored.Mode)
	}
	return &Channel{
		ID:      id,
		AgentID: stored.AgentID,
		Origin:  types.Origin(stored.Origin),
		Mode:    mode,
	}, nil
}

// ChannelOf returns the channel owned by origin, or nil if there is none.
func ChannelOf(r db.Reader, origin types.Origin) (*Channel, error) {
	return ChannelByID(r, types.ChannelIDOf(origin))
}

// ChannelMode returns the operating mode of the channel of origin.
func ChannelMode(r db.Reader, origin types.Origin) (types.OperatingMode, error) {
	ch, err := ChannelOf(r, origin)
	if err != nil {
		return 0, err
	}
	if ch == nil {
		return 0, fmt.Errorf("%w: %s", types.ErrNoChannel, origin)
	}
	return ch.Mode, nil
}

// StateOf returns where origin is in its lifecycle.
func StateOf(r db.Reader, origin types.Origin) (State, error) {
	agent, hasAgent, err := Agent(r, origin)
	if err != nil {
		return NoAgent, err
	}
	ch, err := ChannelOf(r, origin)
	if err != nil {
		return NoAgent, err
	}
	switch {
	case ch != nil && !hasAgent:
		return NoAgent, fmt.Errorf("%w: channel of %s exists without agent", types.ErrRegistry, origin)
	case ch != nil && ch.AgentID != agent:
		return NoAgent, fmt.Errorf("%w: channel of %s is bound to agent %s, expected %s", types.ErrRegistry, origin, ch.AgentID, agent)
	case ch != nil:
		return ChannelCreated, nil
	case hasAgent:
		return AgentCreated, nil
	default:
		return NoAgent, nil
	}
}

// CreateAgent creates the agent of origin. It returns false, and changes nothing,
// if the agent already exists.
func CreateAgent(kv db.KV, origin types.Origin) (types.AgentID, bool, error) {
	agent, ok, err := Agent(kv, origin)
	if err != nil {
		return types.AgentID{}, false, err
	}
	if ok {
		return agent, false, nil
	}
	agent = types.AgentIDOf(origin)
	if err := kv.Set(agentKey(origin), agent[:]); err != nil {
		return types.AgentID{}, false, err
	}
	return agent, true, nil
}

// CreateChannel creates the channel of origin in the given mode. If the channel already exists
// its mode is updated instead, and false is returned.
func CreateChannel(kv db.KV, origin types.Origin, mode types.OperatingMode) (*Channel, bool, error) {
	if !mode.Valid() {
		return nil, false, fmt.Errorf("unknown operating mode %d", uint8(mode))
	}
	state, err := StateOf(kv, origin)
	if err != nil {
		return nil, false, err
	}
	switch state {
	case NoAgent:
		return nil, false, fmt.Errorf("%w: %s", types.ErrNoAgent, origin)
	case ChannelCreated:
		ch, err := UpdateChannel(kv, origin, mode)
		return ch, false, err
	}
	ch := &Channel{
		ID:      types.ChannelIDOf(origin),
		AgentID: types.AgentIDOf(origin),
		Origin:  origin,
		Mode:    mode,
	}
	if err := putChannel(kv, ch); err != nil {
		return nil, false, err
	}
	return ch, true, nil
}

// UpdateChannel changes the mode of the existing channel of origin.
func UpdateChannel(kv db.KV, origin types.Origin, mode types.OperatingMode) (*Channel, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown operating mode %d", uint8(mode))
	}
	ch, err := ChannelOf(kv, origin)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNoChannel, origin)
	}
	ch.Mode = mode
	return ch, putChannel(kv, ch)
}

// Genesis creates the agent of the bridge hub and both governance channels, if missing.
func Genesis(kv db.KV, bridgeHub types.Origin) error {
	agent, _, err := CreateAgent(kv, bridgeHub)
	if err != nil {
		return err
	}
	for _, id := range []types.ChannelID{types.PrimaryGovernanceChannel, types.SecondaryGovernanceChannel} {
		existing, err := ChannelByID(kv, id)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := putChannel(kv, &Channel{ID: id, AgentID: agent, Origin: bridgeHub, Mode: types.Normal}); err != nil {
			return err
		}
	}
	return nil
}

// Channels lists all channels, governance channels included, ordered by id.
func Channels(r db.Reader) ([]Channel, error) {
	var out []Channel
	prefix := db.Key(db.PrefixChannel)
	err := r.Iterate(prefix, func(key, _ []byte) error {
		ch, err := ChannelByID(r, types.ChannelID(key[len(prefix):]))
		if err != nil {
			return err
		}
		out = append(out, *ch)
		return nil
	})
	return out, err
}

func putChannel(kv db.KV, ch *Channel) error {
	return db.SetRLP(kv, channelKey(ch.ID), &storedChannel{
		AgentID: ch.AgentID,
		Origin:  uint64(ch.Origin),
		Mode:    uint8(ch.Mode),
	})
}
