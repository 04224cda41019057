// Package inbound verifies messages sent by the Ethereum gateway and converts them into
// programs for the local chain. It reads state but never writes it, except for the record of
// processed message IDs which the caller maintains.
package inbound

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/ethbridge/bridge-router/assets"
	"github.com/mantlenetworkio/ethbridge/bridge-router/codec"
	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/program"
	"github.com/mantlenetworkio/ethbridge/bridge-router/registry"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// AssetMinBalance is the minimum balance of foreign assets created by RegisterToken.
var AssetMinBalance = types.NewBalance(1)

type Config struct {
	// EthereumChainID is the chain the gateway is deployed on.
	EthereumChainID uint64
	// BridgeHub receives control commands.
	BridgeHub types.Origin
	// AssetHub receives token registrations and transfers.
	AssetHub types.Origin
	// MinExecutionFee is the minimum fee per destination chain.
	MinExecutionFee map[types.Origin]types.Balance
	// DefaultMinExecutionFee applies to chains without an entry in MinExecutionFee.
	DefaultMinExecutionFee types.Balance
}

func (c *Config) MinFee(dest types.Origin) types.Balance {
	if fee, ok := c.MinExecutionFee[dest]; ok {
		return fee
	}
	return c.DefaultMinExecutionFee
}

func (c *Config) Check() error {
	if c.EthereumChainID == 0 {
		return errors.New("missing Ethereum chain ID")
	}
	if c.BridgeHub == 0 || c.AssetHub == 0 {
		return errors.New("missing bridge hub or asset hub para ID")
	}
	if c.BridgeHub == c.AssetHub {
		return errors.New("bridge hub and asset hub must differ")
	}
	return nil
}

// Conversion is an envelope converted into a program.
type Conversion struct {
	MessageID common.Hash
	// Origin is the chain whose channel carried the message.
	Origin types.Origin
	Nonce  uint64
	// Command is nil when the payload could not be decoded.
	Command codec.Command
	// Dest is the chain the program executes on.
	Dest types.Origin
	// Fee is the amount of native currency teleported along with the program, taken from the
	// sovereign account of Dest.
	Fee     types.Balance
	Program program.Program
}

type Processor struct {
	cfg      *Config
	verifier Verifier
}

func NewProcessor(cfg *Config, verifier Verifier) *Processor {
	return &Processor{cfg: cfg, verifier: verifier}
}

func (p *Processor) Config() *Config {
	return p.cfg
}

func processedKey(id common.Hash) []byte {
	return db.Key(db.PrefixProcessed, id[:])
}

// IsProcessed reports whether the message ID was consumed.
func IsProcessed(r db.Reader, id common.Hash) (bool, error) {
	_, ok, err := r.Get(processedKey(id))
	return ok, err
}

// MarkProcessed consumes the message ID. It is never unmarked.
func MarkProcessed(kv db.KV, id common.Hash) error {
	return kv.Set(processedKey(id), []byte{1})
}

// Verify checks the proof of the envelope and decodes the gateway event it proves.
func (p *Processor) Verify(env *Envelope, gateway common.Address) (*GatewayEvent, error) {
	if err := p.verifier.VerifyHeader(env.Proof.BlockHash); err != nil {
		return nil, wrapProofErr(err)
	}
	if err := p.verifier.VerifyLogIncluded(&env.Proof); err != nil {
		return nil, wrapProofErr(err)
	}
	ev, err := DecodeGatewayEvent(&env.Proof.Log, gateway)
	if err != nil {
		return nil, err
	}
	if ev.MessageID != env.MessageID {
		return nil, fmt.Errorf("%w: log carries message %s, envelope claims %s", types.ErrProofInvalid, ev.MessageID, env.MessageID)
	}
	if want := types.ChannelIDOf(env.Origin()); ev.ChannelID != want {
		return nil, fmt.Errorf("%w: log sent on channel %s, expected %s of %s", types.ErrProofInvalid, ev.ChannelID, want, env.Origin())
	}
	return ev, nil
}

func wrapProofErr(err error) error {
	if errors.Is(err, types.ErrProofInvalid) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrProofInvalid, err)
}

// Process verifies and converts an envelope. On a permanent error the returned conversion,
// when not nil, identifies the message so the caller can mark it processed.
func (p *Processor) Process(r db.Reader, env *Envelope, gateway common.Address) (*Conversion, error) {
	conv := &Conversion{MessageID: env.MessageID, Origin: env.Origin()}
	ev, err := p.Verify(env, gateway)
	if err != nil {
		return conv, err
	}
	conv.Nonce = ev.Nonce

	processed, err := IsProcessed(r, env.MessageID)
	if err != nil {
		return nil, err
	}
	if processed {
		return nil, fmt.Errorf("%w: %s", types.ErrReplay, env.MessageID)
	}

	msg, err := codec.DecodeMessage(ev.Payload)
	if err != nil {
		return conv, fmt.Errorf("%w: %w", types.ErrMalformed, err)
	}
	v1, ok := msg.(*codec.MessageV1)
	if !ok {
		return conv, fmt.Errorf("%w: unsupported message version %d", types.ErrMalformed, msg.Version())
	}
	if v1.ChainID != p.cfg.EthereumChainID {
		return conv, fmt.Errorf("%w: message for chain %d, expected %d", types.ErrMalformed, v1.ChainID, p.cfg.EthereumChainID)
	}
	conv.Command = v1.Command
	if err := p.convert(r, conv); err != nil {
		return conv, err
	}
	return conv, nil
}

func (p *Processor) convert(r db.Reader, conv *Conversion) error {
	topic := &program.SetTopic{Topic: conv.MessageID}
	switch cmd := conv.Command.(type) {
	case *codec.CreateAgent:
		conv.Dest = p.cfg.BridgeHub
		conv.Fee = types.ZeroBalance
		conv.Program = program.Program{
			&program.DescendOrigin{Pallet: program.InboundQueuePallet},
			&program.ControlInstruction{Pallet: program.SystemPallet, Call: program.CreateAgentCall, Origin: conv.Origin},
			topic,
		}
		return nil
	case *codec.CreateChannel:
		ok, err := registry.AgentExists(r, conv.Origin)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrNoAgent, conv.Origin)
		}
		conv.Dest = p.cfg.BridgeHub
		conv.Fee = types.ZeroBalance
		conv.Program = program.Program{
			&program.DescendOrigin{Pallet: program.InboundQueuePallet},
			&program.ControlInstruction{Pallet: program.SystemPallet, Call: program.CreateChannelCall, Origin: conv.Origin, Mode: cmd.Mode},
			topic,
		}
		return nil
	case *codec.RegisterToken:
		if err := p.checkFee(p.cfg.AssetHub, cmd.Fee); err != nil {
			return err
		}
		key := types.AssetKey{ChainID: p.cfg.EthereumChainID, Token: cmd.Token}
		owner := types.EthereumSovereign(p.cfg.EthereumChainID)
		fee := program.Asset{ID: program.NativeAsset, Amount: cmd.Fee}
		conv.Dest = p.cfg.AssetHub
		conv.Fee = cmd.Fee
		conv.Program = program.Program{
			&program.ReceiveTeleportedAsset{Asset: fee},
			&program.BuyExecution{Fee: fee},
			&program.DescendOrigin{Pallet: program.InboundQueuePallet},
			&program.UniversalOrigin{ChainID: p.cfg.EthereumChainID},
			&program.CreateForeignAsset{
				Pallet:     program.ForeignAssetsPallet,
				Call:       program.CreateForeignAssetCall,
				Key:        key,
				Admin:      owner,
				MinBalance: AssetMinBalance,
			},
			&program.RefundSurplus{},
			&program.DepositAsset{Beneficiary: owner},
			topic,
		}
		return nil
	case *codec.SendToken:
		return p.convertSendToken(r, conv, cmd, topic)
	default:
		return fmt.Errorf("%w: unsupported command %T", types.ErrMalformed, cmd)
	}
}

func (p *Processor) convertSendToken(r db.Reader, conv *Conversion, cmd *codec.SendToken, topic *program.SetTopic) error {
	key := types.AssetKey{ChainID: p.cfg.EthereumChainID, Token: cmd.Token}
	exists, err := assets.Exists(r, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", types.ErrUnknownAsset, key)
	}
	if err := p.checkFee(p.cfg.AssetHub, cmd.Fee); err != nil {
		return err
	}
	fee := program.Asset{ID: program.NativeAsset, Amount: cmd.Fee}
	token := program.Asset{ID: program.ForeignAsset(key), Amount: cmd.Amount}

	total := cmd.Fee
	var deposit program.Instruction
	switch dest := cmd.Destination.(type) {
	case *codec.AccountID32:
		deposit = &program.DepositAsset{Beneficiary: dest.ID}
	case *codec.ForeignAccountID32:
		para := types.Origin(dest.ParaID)
		if err := p.checkFee(para, dest.Fee); err != nil {
			return err
		}
		sum, overflow := cmd.Fee.AddOverflow(dest.Fee)
		if overflow {
			return fmt.Errorf("%w: fees overflow", types.ErrMalformed)
		}
		total = sum
		deposit = &program.DepositReserveAsset{
			Dest: para,
			Program: program.Program{
				&program.BuyExecution{Fee: program.Asset{ID: program.NativeAsset, Amount: dest.Fee}},
				&program.DepositAsset{Beneficiary: dest.ID},
				topic,
			},
		}
	default:
		return fmt.Errorf("%w: unsupported destination %T", types.ErrMalformed, dest)
	}

	conv.Dest = p.cfg.AssetHub
	conv.Fee = total
	conv.Program = program.Program{
		&program.ReceiveTeleportedAsset{Asset: program.Asset{ID: program.NativeAsset, Amount: total}},
		&program.BuyExecution{Fee: fee},
		&program.DescendOrigin{Pallet: program.InboundQueuePallet},
		&program.UniversalOrigin{ChainID: p.cfg.EthereumChainID},
		&program.ReserveAssetDeposited{Asset: token},
		&program.ClearOrigin{},
		&program.RefundSurplus{},
		deposit,
		topic,
	}
	return nil
}

func (p *Processor) checkFee(dest types.Origin, fee types.Balance) error {
	if minFee := p.cfg.MinFee(dest); fee.Lt(minFee) {
		return fmt.Errorf("%w: fee %s below minimum %s of %s", types.ErrInsufficientFee, fee, minFee, dest)
	}
	return nil
}
