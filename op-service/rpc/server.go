package rpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mantlenetworkio/ethbridge/op-service/httputil"
)

const DefaultShutdownTimeout = 5 * time.Second

// Server serves a Handler over HTTP and websocket.
type Server struct {
	httpServer      *httputil.HTTPServer
	shutdownTimeout time.Duration

	*Handler
}

// Endpoint returns the listening address, without scheme.
func (s *Server) Endpoint() string {
	return s.httpServer.Addr().String()
}

func (s *Server) HTTPEndpoint() string {
	return s.httpServer.HTTPEndpoint()
}

func (s *Server) Port() (int, error) {
	return s.httpServer.Port()
}

func (s *Server) Start() error {
	if err := s.httpServer.Start(); err != nil {
		return err
	}
	s.log.Info("Started RPC server", "endpoint", s.httpServer.HTTPEndpoint())
	return nil
}

// Stop closes the listener and waits for in-flight requests, up to the shutdown timeout.
// Open websocket subscriptions are ended by stopping the handler afterwards.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Stop(ctx)
	s.Handler.Stop()
	s.log.Info("Stopped RPC server", "err", err)
	return err
}

// AddAPI adds an API to the root route. It panics on an invalid API.
func (s *Server) AddAPI(api rpc.API) {
	if err := s.Handler.AddAPI(api); err != nil {
		panic(fmt.Errorf("invalid API: %w", err))
	}
}

// AddAuthenticatedAPIs serves apis on a new route that requires the JWT secret of the handler.
func (s *Server) AddAuthenticatedAPIs(route string, apis ...rpc.API) error {
	if err := s.Handler.AddRPCWithAuthentication(route, true); err != nil {
		return err
	}
	for _, api := range apis {
		if err := s.Handler.AddAPIToRPC(route, api); err != nil {
			return fmt.Errorf("failed to add %q API to %s: %w", api.Namespace, route, err)
		}
	}
	return nil
}

type ServerConfig struct {
	HttpOptions []httputil.Option
	RpcOptions  []Option
	Host        string
	Port        int
	AppVersion  string
	// ShutdownTimeout bounds Stop. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

func NewServer(host string, port int, appVersion string, opts ...Option) *Server {
	return ServerFromConfig(&ServerConfig{
		RpcOptions: opts,
		Host:       host,
		Port:       port,
		AppVersion: appVersion,
	})
}

func ServerFromConfig(cfg *ServerConfig) *Server {
	endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	h := NewHandler(cfg.AppVersion, cfg.RpcOptions...)
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Server{
		httpServer:      httputil.NewHTTPServer(endpoint, h, cfg.HttpOptions...),
		shutdownTimeout: timeout,
		Handler:         h,
	}
}
