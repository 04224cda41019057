// Package router composes the bridge components into a deterministic reducer. Every input is
// applied in one database batch: it either commits as a whole or leaves no trace.
package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/fees"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/program"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// DefaultProcessedCacheSize is the number of recently processed message IDs kept in memory.
const DefaultProcessedCacheSize = 4096

// Envelope outcomes, as recorded in metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeReplay   = "replay"
)

type Metrics interface {
	RecordEnvelope(outcome string)
	RecordEvent(kind types.EventKind)
	RecordFees(fee fees.Fee)
	RecordInvariantViolation(op string)
	RecordProcessedCache(hit bool)
}

type Config struct {
	Inbound inbound.Config
	// Treasury receives local fees and execution costs.
	Treasury types.AccountID
	// ExecutionCost is charged by every program that buys execution.
	ExecutionCost      types.Balance
	ProcessedCacheSize int
}

func (c *Config) Check() error {
	if err := c.Inbound.Check(); err != nil {
		return err
	}
	if c.Treasury == (types.AccountID{}) {
		return errors.New("missing treasury account")
	}
	if minFee := c.Inbound.MinFee(c.Inbound.AssetHub); minFee.Lt(c.ExecutionCost) {
		return fmt.Errorf("execution cost %s exceeds minimum execution fee %s", c.ExecutionCost, minFee)
	}
	return nil
}

type Router struct {
	log        log.Logger
	cfg        *Config
	db         *db.DB
	proc       *inbound.Processor
	dispatcher Dispatcher
	metrics    Metrics

	// processed caches message IDs known to be consumed. It only holds committed IDs.
	processed *lru.Cache[common.Hash, struct{}]

	// mu serializes all state transitions.
	mu sync.Mutex
}

func New(logger log.Logger, cfg *Config, store *db.DB, verifier inbound.Verifier, dispatcher Dispatcher, m Metrics) (*Router, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	size := cfg.ProcessedCacheSize
	if size <= 0 {
		size = DefaultProcessedCacheSize
	}
	processed, err := lru.New[common.Hash, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Router{
		log:        logger,
		cfg:        cfg,
		db:         store,
		proc:       inbound.NewProcessor(&cfg.Inbound, verifier),
		dispatcher: dispatcher,
		metrics:    m,
		processed:  processed,
	}, nil
}

// Init applies the genesis state, unless the database was initialized before.
func (r *Router) Init(g *Genesis) error {
	if err := g.Check(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var applied bool
	err := r.db.Update(func(kv db.KV) error {
		var err error
		applied, err = applyGenesis(kv, g, r.cfg.Inbound.BridgeHub)
		return err
	})
	if err != nil {
		return err
	}
	if applied {
		r.log.Info("applied genesis", "gateway", g.Gateway, "allocations", len(g.Allocations))
	} else {
		r.log.Info("state already initialized, genesis ignored")
	}
	return nil
}

func (r *Router) execEnv() *program.Env {
	return &program.Env{
		Sender:        r.cfg.Inbound.BridgeHub,
		ExecutionCost: r.cfg.ExecutionCost,
		Treasury:      r.cfg.Treasury,
	}
}

// commit commits the batch with its events, and reports the events once they are durable.
func (r *Router) commit(tx *db.Tx, events []types.Event) error {
	if err := appendEvents(tx, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	for _, ev := range events {
		r.metrics.RecordEvent(ev.Kind)
	}
	return nil
}

// flag reports invariant violations to the operator. The router keeps running.
func (r *Router) flag(op string, err error) {
	if types.IsInvariantViolation(err) {
		r.log.Error("invariant violation", "op", op, "err", err)
		r.metrics.RecordInvariantViolation(op)
	}
}
