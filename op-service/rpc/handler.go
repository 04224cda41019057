package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
)

// the root is "", since the "/" prefix is already stripped.
const rootRoute = ""

var wildcardHosts = []string{"*"}

// Handler is an http.Handler serving a JSON-RPC server on the root path, and optionally more
// RPC servers on sub-routes. Every route serves the health namespace and a /healthz endpoint.
type Handler struct {
	appVersion string
	corsHosts  []string
	vHosts     []string
	jwtSecret  []byte
	wsEnabled  bool

	log      log.Logger
	recorder rpc.Recorder

	rpcRoutes     map[string]*rpc.Server
	rpcRoutesLock sync.Mutex

	mux *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(appVersion string, opts ...Option) *Handler {
	h := &Handler{
		appVersion: appVersion,
		corsHosts:  wildcardHosts,
		vHosts:     wildcardHosts,
		log:        log.Root(),
		mux:        new(http.ServeMux),
		rpcRoutes:  make(map[string]*rpc.Server),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.AddRPC(rootRoute); err != nil {
		panic(fmt.Errorf("failed to register root RPC server: %w", err))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// AddAPI adds a backend to the given RPC namespace, on the root route.
func (h *Handler) AddAPI(api rpc.API) error {
	return h.AddAPIToRPC(rootRoute, api)
}

// AddAPIToRPC adds a backend to the given RPC namespace, on the given route.
func (h *Handler) AddAPIToRPC(route string, api rpc.API) error {
	h.rpcRoutesLock.Lock()
	defer h.rpcRoutesLock.Unlock()
	server, ok := h.rpcRoutes[route]
	if !ok {
		return fmt.Errorf("route %q not found", route)
	}
	if err := server.RegisterName(api.Namespace, api.Service); err != nil {
		return fmt.Errorf("failed to register API namespace %s on route %q: %w", api.Namespace, route, err)
	}
	h.log.Info("registered API", "route", route, "namespace", api.Namespace)
	return nil
}

// AddRPC creates an unauthenticated RPC server at the given route.
func (h *Handler) AddRPC(route string) error {
	return h.AddRPCWithAuthentication(route, false)
}

// AddRPCWithAuthentication creates an RPC server at the given route. Authenticated routes
// require a JWT signed with the secret of the handler, and cannot be added without one.
// The route must not end with "/".
func (h *Handler) AddRPCWithAuthentication(route string, authenticated bool) error {
	h.rpcRoutesLock.Lock()
	defer h.rpcRoutesLock.Unlock()
	if strings.HasSuffix(route, "/") {
		return fmt.Errorf("routes must not have a / suffix, got %q", route)
	}
	if _, ok := h.rpcRoutes[route]; ok {
		return fmt.Errorf("route %q already exists", route)
	}
	var secret []byte
	if authenticated {
		if len(h.jwtSecret) == 0 {
			return fmt.Errorf("route %q requires authentication, but no JWT secret is set", route)
		}
		secret = h.jwtSecret
	}

	srv := rpc.NewServer()
	if h.recorder != nil {
		srv.SetRecorder(h.recorder)
	}
	if err := srv.RegisterName("health", &healthzAPI{appVersion: h.appVersion}); err != nil {
		return fmt.Errorf("failed to setup default health RPC namespace: %w", err)
	}

	var handler http.Handler = http.HandlerFunc(http.NotFound)
	httpHandler := node.NewHTTPHandlerStack(srv, h.corsHosts, h.vHosts, secret)
	handler = pathHandler(func(path string) bool { return path == "" }, httpHandler, handler)
	if h.wsEnabled {
		wsHandler := node.NewWSHandlerStack(srv.WebsocketHandler(h.corsHosts), secret)
		handler = pathHandler(func(path string) bool { return path == "" || path == "ws" || path == "ws/" },
			onlyWebsocket(wsHandler, handler), handler)
	}
	handler = pathHandler(func(path string) bool { return path == "healthz" || path == "healthz/" },
		healthzHandler(h.appVersion), handler)

	h.rpcRoutes[route] = srv
	h.mux.Handle(route+"/", http.StripPrefix(route+"/", handler))
	if route != "" {
		h.mux.Handle(route, http.StripPrefix(route, handler))
	}
	return nil
}

// pathHandler serves requests whose stripped path matches with match, and the rest with next.
func pathHandler(match func(path string) bool, matched, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if match(r.URL.Path) {
			matched.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func onlyWebsocket(ws, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			ws.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) Stop() {
	h.rpcRoutesLock.Lock()
	defer h.rpcRoutesLock.Unlock()
	for route, s := range h.rpcRoutes {
		h.log.Debug("Stopping RPC", "route", route)
		s.Stop()
	}
}

type HealthzResponse struct {
	Version string `json:"version"`
}

func healthzHandler(appVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&HealthzResponse{Version: appVersion})
	}
}

type healthzAPI struct {
	appVersion string
}

func (h *healthzAPI) Status() string {
	return h.appVersion
}

func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
