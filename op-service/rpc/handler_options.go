package rpc

import (
	"github.com/ethereum/go-ethereum/log"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

type Option func(b *Handler)

func WithCORSHosts(hosts []string) Option {
	return func(b *Handler) {
		b.corsHosts = hosts
	}
}

func WithVHosts(hosts []string) Option {
	return func(b *Handler) {
		b.vHosts = hosts
	}
}

// WithWebsocketEnabled allows `ws://host:port/` and `ws://host:port/ws` to be upgraded to a
// websocket JSON RPC connection.
func WithWebsocketEnabled() Option {
	return func(b *Handler) {
		b.wsEnabled = true
	}
}

// WithJWTSecret sets the secret of routes added with authentication.
func WithJWTSecret(secret []byte) Option {
	return func(b *Handler) {
		b.jwtSecret = secret
	}
}

func WithLogger(lgr log.Logger) Option {
	return func(b *Handler) {
		b.log = lgr
	}
}

// WithRPCRecorder records every RPC call served, see metrics.RPCMetricer.
func WithRPCRecorder(recorder gethrpc.Recorder) Option {
	return func(b *Handler) {
		b.recorder = recorder
	}
}
