package types

import (
	"github.com/ethereum/go-ethereum/common"
)

type EventKind string

const (
	EventMessageReceived          EventKind = "MessageReceived"
	EventMessageProcessed         EventKind = "MessageProcessed"
	EventAgentCreated             EventKind = "AgentCreated"
	EventChannelCreated           EventKind = "ChannelCreated"
	EventChannelUpdated           EventKind = "ChannelUpdated"
	EventAssetCreated             EventKind = "AssetCreated"
	EventIssued                   EventKind = "Issued"
	EventBurned                   EventKind = "Burned"
	EventMinted                   EventKind = "Minted"
	EventMessageQueued            EventKind = "MessageQueued"
	EventPricingParametersChanged EventKind = "PricingParametersChanged"
	EventGatewayChanged           EventKind = "GatewayChanged"
	EventOperatingModeChanged     EventKind = "OperatingModeChanged"
)

// Event is an entry of the router event log. Fields that do not apply to the kind are left empty.
type Event struct {
	Seq       uint64          `json:"seq"`
	Kind      EventKind       `json:"kind"`
	MessageID common.Hash     `json:"messageID"`
	Origin    Origin          `json:"origin,omitempty"`
	ChannelID ChannelID       `json:"channelID"`
	AgentID   AgentID         `json:"agentID"`
	Asset     *AssetKey       `json:"asset,omitempty"`
	Account   *AccountID      `json:"account,omitempty"`
	Amount    *Balance        `json:"amount,omitempty"`
	Nonce     uint64          `json:"nonce,omitempty"`
	Mode      *OperatingMode  `json:"mode,omitempty"`
	Address   *common.Address `json:"address,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
}
