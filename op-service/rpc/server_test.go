package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/ethbridge/op-service/testlog"
)

type testAPI struct{}

func (t *testAPI) Frobnicate(n int) int {
	return n * 2
}

func startServer(t *testing.T, opts ...Option) *Server {
	logger := testlog.Logger(t, log.LevelInfo)
	server := ServerFromConfig(&ServerConfig{
		RpcOptions: append([]Option{WithLogger(logger), WithWebsocketEnabled()}, opts...),
		Host:       "127.0.0.1",
		Port:       0,
		AppVersion: "test",
	})
	server.AddAPI(rpc.API{Namespace: "test", Service: new(testAPI)})
	require.NoError(t, server.Start(), "must start")
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
	})
	return server
}

func TestBaseServer(t *testing.T) {
	server := startServer(t)

	t.Run("supports 0 port", func(t *testing.T) {
		_, portStr, err := net.SplitHostPort(server.Endpoint())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)
		require.Greater(t, port, 0)
	})

	require.NoError(t, server.AddRPC("/extra"))
	require.NoError(t, server.AddAPIToRPC("/extra", rpc.API{Namespace: "test2", Service: new(testAPI)}))
	require.Error(t, server.AddRPC("/extra"), "routes are unique")
	require.Error(t, server.AddRPC("/slash/"))

	t.Run("regular", func(t *testing.T) {
		testServer(t, server.Endpoint(), "test", "test")
	})
	t.Run("extra route", func(t *testing.T) {
		testServer(t, server.Endpoint()+"/extra", "test", "test2")
	})
}

func testServer(t *testing.T, endpoint string, appVersion string, namespace string) {
	httpRPCClient, err := rpc.Dial("http://" + endpoint)
	require.NoError(t, err)
	t.Cleanup(httpRPCClient.Close)

	t.Run("supports GET /healthz", func(t *testing.T) {
		res, err := http.Get("http://" + endpoint + "/healthz")
		require.NoError(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.EqualValues(t, fmt.Sprintf("{\"version\":\"%s\"}\n", appVersion), string(body))
	})

	t.Run("supports health_status", func(t *testing.T) {
		var res string
		require.NoError(t, httpRPCClient.Call(&res, "health_status"))
		require.Equal(t, appVersion, res)
	})

	t.Run("supports additional RPC APIs", func(t *testing.T) {
		var res int
		require.NoError(t, httpRPCClient.Call(&res, namespace+"_frobnicate", 2))
		require.Equal(t, 4, res)
	})

	t.Run("supports websocket", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		wsCl, err := rpc.DialContext(ctx, "ws://"+endpoint)
		require.NoError(t, err)
		t.Cleanup(wsCl.Close)
		var res int
		require.NoError(t, wsCl.Call(&res, namespace+"_frobnicate", 42))
		require.Equal(t, 42*2, res)
	})
}

func TestAuthenticatedRoute(t *testing.T) {
	secret := common.Hash{0x42}
	server := startServer(t, WithJWTSecret(secret[:]))
	require.NoError(t, server.AddAuthenticatedAPIs("/admin",
		rpc.API{Namespace: "admin", Service: new(testAPI)},
		rpc.API{Namespace: "local", Service: new(testAPI)},
	))
	require.Error(t, server.AddAuthenticatedAPIs("/admin"), "routes are unique")
	endpoint := "http://" + server.Endpoint() + "/admin"

	t.Run("rejects missing token", func(t *testing.T) {
		cl, err := rpc.Dial(endpoint)
		require.NoError(t, err)
		defer cl.Close()
		var res int
		require.Error(t, cl.Call(&res, "admin_frobnicate", 1))
	})

	t.Run("accepts signed token", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cl, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPAuth(node.NewJWTAuth(secret)))
		require.NoError(t, err)
		defer cl.Close()
		var res int
		require.NoError(t, cl.Call(&res, "admin_frobnicate", 3))
		require.Equal(t, 6, res)
		require.NoError(t, cl.Call(&res, "local_frobnicate", 4))
		require.Equal(t, 8, res)
	})

	t.Run("requires a secret", func(t *testing.T) {
		h := NewHandler("test", WithLogger(testlog.Logger(t, log.LevelInfo)))
		require.Error(t, h.AddRPCWithAuthentication("/admin", true))
	})
}
