package service

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theapemachine/agui-go/pkg/auth"
	"github.com/theapemachine/agui-go/pkg/hub"
	"github.com/theapemachine/agui-go/pkg/jsonrpc"
	"github.com/theapemachine/agui-go/pkg/metrics"
	"github.com/theapemachine/agui-go/pkg/session"
	"github.com/theapemachine/agui-go/pkg/stores"
	"github.com/theapemachine/agui-go/pkg/upstream"
)

/*
BridgeServer exposes the session bridge over HTTP: a JSON-RPC control
surface, a per-session SSE stream, and an ingest endpoint for inbound
agent events. It is safe for concurrent use because Registry and Hub
are.
*/
type BridgeServer struct {
	app       *fiber.App
	hub       *hub.Hub
	registry  *session.Registry
	rpc       *jsonrpc.Server
	forwarder *upstream.Forwarder
	messages  stores.MessageLog
	archive   stores.Archiver
	auth      *auth.Service
	metrics   *metrics.Bridge
	addr      string
	testMode  bool
}

type Option func(*BridgeServer)

// WithAddr sets the listen address, default ":3210".
func WithAddr(addr string) Option {
	return func(srv *BridgeServer) {
		srv.addr = addr
	}
}

// WithForwarder wires the upstream agent the control surface talks to.
func WithForwarder(forwarder *upstream.Forwarder) Option {
	return func(srv *BridgeServer) {
		srv.forwarder = forwarder
	}
}

// WithAuth guards the mutating RPC methods. Without it every call is
// allowed.
func WithAuth(authService *auth.Service) Option {
	return func(srv *BridgeServer) {
		srv.auth = authService
	}
}

func WithMetrics(m *metrics.Bridge) Option {
	return func(srv *BridgeServer) {
		srv.metrics = m
	}
}

func WithMessageLog(log stores.MessageLog) Option {
	return func(srv *BridgeServer) {
		srv.messages = log
	}
}

func WithArchive(archive stores.Archiver) Option {
	return func(srv *BridgeServer) {
		srv.archive = archive
	}
}

// WithTestMode shortens the SSE heartbeat interval for tests.
func WithTestMode() Option {
	return func(srv *BridgeServer) {
		srv.testMode = true
	}
}

/*
NewBridgeServer constructs the server and its collaborators. Options
replace the defaults; a server without a forwarder still serves the
read surface but refuses methods that need the upstream agent.
*/
func NewBridgeServer(opts ...Option) *BridgeServer {
	srv := &BridgeServer{
		app: fiber.New(fiber.Config{
			AppName:           "agui-go bridge",
			ServerHeader:      "AGUI-Bridge-Server",
			StreamRequestBody: true,
		}),
		addr: ":3210",
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.hub = hub.New(hub.WithMetrics(srv.metrics))
	srv.registry = session.NewRegistry(srv.hub, session.WithMetrics(srv.metrics))
	srv.rpc = jsonrpc.NewServer(srv.handleMethod)

	if srv.messages == nil {
		srv.messages = stores.NewInMemoryMessageLog()
	}

	if srv.archive == nil {
		srv.archive = stores.NewSessionArchive()
	}

	srv.routes()

	return srv
}

// Registry exposes the session registry, mainly for the sweeper loop.
func (srv *BridgeServer) Registry() *session.Registry {
	return srv.registry
}

// Archive exposes the snapshot archive the sweeper feeds.
func (srv *BridgeServer) Archive() stores.Archiver {
	return srv.archive
}

func (srv *BridgeServer) routes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the stream endpoint to reduce noise
		Next: func(c fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/events")
		},
	}), healthcheck.New())

	srv.app.Get("/", srv.handleRoot)
	srv.app.Post("/rpc", srv.handleRPC)
	srv.app.Get("/sessions/:id/events", srv.handleEvents)
	srv.app.Post("/ingest", srv.handleIngest)
	srv.app.Get("/metrics", fiberadaptor.HTTPHandler(promhttp.Handler()))
}

func (srv *BridgeServer) Start() error {
	return srv.app.Listen(srv.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *BridgeServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}
