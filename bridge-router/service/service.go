package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/frontend"
	"github.com/mantlenetworkio/ethbridge/bridge-router/inbound"
	"github.com/mantlenetworkio/ethbridge/bridge-router/metrics"
	"github.com/mantlenetworkio/ethbridge/bridge-router/router"
	"github.com/mantlenetworkio/ethbridge/op-service/cliapp"
	"github.com/mantlenetworkio/ethbridge/op-service/httputil"
	opmetrics "github.com/mantlenetworkio/ethbridge/op-service/metrics"
	oprpc "github.com/mantlenetworkio/ethbridge/op-service/rpc"
)

// AdminRoute serves the root and local intent APIs, behind JWT authentication.
const AdminRoute = "/admin"

var ErrAlreadyStopped = errors.New("already stopped")

var _ frontend.Backend = (*router.Router)(nil)

type BridgeRouterService struct {
	Log     log.Logger
	Metrics metrics.Metricer

	Version string

	db         *db.DB
	verifier   *inbound.ReceiptProofVerifier
	dispatcher *router.QueueDispatcher
	Router     *router.Router

	metricsSrv *httputil.HTTPServer
	rpcServer  *oprpc.Server

	stopped atomic.Bool
}

func BridgeRouterServiceFromCLIConfig(ctx context.Context, version string, cfg *CLIConfig, log log.Logger) (*BridgeRouterService, error) {
	var bs BridgeRouterService
	if err := bs.initFromCLIConfig(version, cfg, log); err != nil {
		return nil, errors.Join(err, bs.Stop(ctx))
	}
	return &bs, nil
}

func (bs *BridgeRouterService) initFromCLIConfig(version string, cfg *CLIConfig, log log.Logger) error {
	bs.Version = version
	bs.Log = log

	bs.initMetrics(cfg)

	if err := bs.initDB(cfg); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := bs.initRouter(cfg); err != nil {
		return fmt.Errorf("failed to init router: %w", err)
	}
	if err := bs.initMetricsServer(cfg); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	if err := bs.initRPCServer(cfg); err != nil {
		return fmt.Errorf("failed to start rpc server: %w", err)
	}

	bs.Metrics.RecordInfo(bs.Version)
	bs.Metrics.RecordUp()
	return nil
}

func (bs *BridgeRouterService) initMetrics(cfg *CLIConfig) {
	if cfg.MetricsConfig.Enabled {
		procName := "default"
		bs.Metrics = metrics.NewMetrics(procName)
	} else {
		bs.Metrics = metrics.NoopMetrics
	}
}

func (bs *BridgeRouterService) initDB(cfg *CLIConfig) error {
	var err error
	if cfg.DataDir == MemoryDataDir {
		bs.Log.Warn("using an in-memory database, state is lost on shutdown")
		bs.db, err = db.OpenInMemory(bs.Log)
	} else {
		bs.db, err = db.Open(bs.Log, cfg.DataDir)
	}
	return err
}

func (bs *BridgeRouterService) initRouter(cfg *CLIConfig) error {
	verifier, err := inbound.NewReceiptProofVerifier(bs.Log, cfg.Chain.HeaderCapacity)
	if err != nil {
		return err
	}
	bs.verifier = verifier
	bs.dispatcher = router.NewQueueDispatcher()
	r, err := router.New(bs.Log, cfg.Chain.RouterConfig(), bs.db, verifier, bs.dispatcher, bs.Metrics)
	if err != nil {
		return err
	}
	if err := r.Init(&cfg.Chain.Genesis); err != nil {
		return fmt.Errorf("failed to apply genesis: %w", err)
	}
	bs.Router = r
	return nil
}

func (bs *BridgeRouterService) initMetricsServer(cfg *CLIConfig) error {
	if !cfg.MetricsConfig.Enabled {
		bs.Log.Info("metrics disabled")
		return nil
	}
	m, ok := bs.Metrics.(opmetrics.RegistryMetricer)
	if !ok {
		return fmt.Errorf("metrics were enabled, but metricer %T does not expose registry for metrics-server", bs.Metrics)
	}
	bs.Log.Debug("starting metrics server", "addr", cfg.MetricsConfig.ListenAddr, "port", cfg.MetricsConfig.ListenPort)
	metricsSrv, err := opmetrics.StartServer(m.Registry(), cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	bs.Log.Info("started metrics server", "addr", metricsSrv.Addr())
	bs.metricsSrv = metricsSrv
	return nil
}

func (bs *BridgeRouterService) initRPCServer(cfg *CLIConfig) error {
	opts := []oprpc.Option{
		oprpc.WithLogger(bs.Log),
		oprpc.WithRPCRecorder(bs.Metrics.NewRecorder("main")),
		oprpc.WithWebsocketEnabled(),
	}
	if cfg.RPCConfig.EnableAdmin {
		secret, err := oprpc.ObtainJWTSecret(bs.Log, cfg.RPCConfig.AdminJWTSecretPath, true)
		if err != nil {
			return fmt.Errorf("failed to obtain admin JWT secret: %w", err)
		}
		opts = append(opts, oprpc.WithJWTSecret(secret[:]))
	}
	server := oprpc.NewServer(cfg.RPCConfig.ListenAddr, cfg.RPCConfig.ListenPort, bs.Version, opts...)

	bridgeAPI := &frontend.BridgeFrontend{Backend: bs.Router, Log: bs.Log}
	if cfg.SubmitRateLimit > 0 {
		bridgeAPI.Limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRateLimit), cfg.SubmitBurst)
		bridgeAPI.LimiterTimeout = cfg.SubmitTimeout
	}
	server.AddAPI(rpc.API{
		Namespace: "bridge",
		Service:   bridgeAPI,
	})

	if cfg.RPCConfig.EnableAdmin {
		bs.Log.Info("admin rpc enabled", "route", AdminRoute)
		err := server.AddAuthenticatedAPIs(AdminRoute,
			rpc.API{
				Namespace: "admin",
				Service: &frontend.AdminFrontend{
					CommonAdminAPI: oprpc.NewCommonAdminAPI(bs.Log),
					Backend:        bs.Router,
					Headers:        bs.verifier,
					Deliveries:     bs.dispatcher,
				},
			},
			rpc.API{
				Namespace: "local",
				Service:   &frontend.LocalFrontend{Backend: bs.Router},
			},
		)
		if err != nil {
			return err
		}
	}

	bs.Log.Info("starting json-rpc server")
	if err := server.Start(); err != nil {
		return fmt.Errorf("unable to start rpc server: %w", err)
	}
	bs.rpcServer = server
	return nil
}

// RPCEndpoint returns the HTTP endpoint of the RPC server.
func (bs *BridgeRouterService) RPCEndpoint() string {
	return bs.rpcServer.HTTPEndpoint()
}

// Start does nothing beyond init: the router only reacts to RPC calls.
func (bs *BridgeRouterService) Start(ctx context.Context) error {
	bs.Log.Info("bridge router ready", "rpc", bs.rpcServer.HTTPEndpoint())
	return nil
}

func (bs *BridgeRouterService) Stopped() bool {
	return bs.stopped.Load()
}

func (bs *BridgeRouterService) Kill() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return bs.Stop(ctx)
}

func (bs *BridgeRouterService) Stop(ctx context.Context) error {
	if bs.Stopped() {
		return ErrAlreadyStopped
	}
	var result error

	if bs.rpcServer != nil {
		bs.Log.Info("stopping rpc server")
		if err := bs.rpcServer.Stop(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop rpc server: %w", err))
		}
	}

	if bs.metricsSrv != nil {
		bs.Log.Info("stopping metrics server")
		if err := bs.metricsSrv.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}

	if bs.db != nil {
		if bs.dispatcher != nil && bs.dispatcher.Len() > 0 {
			bs.Log.Warn("undrained deliveries are dropped", "count", bs.dispatcher.Len())
		}
		if err := bs.db.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if result == nil {
		bs.stopped.Store(true)
		bs.Log.Info("stopped all services")
	}
	return result
}

var _ cliapp.Lifecycle = (*BridgeRouterService)(nil)
