package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
)

// ItemService defines item operations needed by MCP.
type ItemService interface {
	Ingest(ctx context.Context, req item.IngestRequest) (*item.IngestResult, error)
	List(ctx context.Context, opts item.ListOptions) ([]item.Ref, error)
}

// ApprovalService defines voting operations needed by MCP.
type ApprovalService interface {
	CastVote(ctx context.Context, req vote.CastRequest) (*approval.CastResult, error)
	Moderate(ctx context.Context, req approval.ModerateRequest) (*approval.CastResult, error)
	GetState(ctx context.Context, hash string) (*approval.State, error)
}

// StreamReader defines stream reads needed by MCP.
type StreamReader interface {
	Read(ctx context.Context, stream eventlog.Stream, after int64, limit int) ([]eventlog.Entry, error)
	Head(ctx context.Context, stream eventlog.Stream) (int64, error)
}

// Trainer runs the training consumer.
type Trainer interface {
	Run(ctx context.Context, cfg training.RunConfig) (*training.RunResult, error)
}

// Services contains all domain services needed by MCP. Trainer may be nil.
type Services struct {
	Items    ItemService
	Approval ApprovalService
	Streams  StreamReader
	Trainer  Trainer
}

// Config contains server configuration. TransportMode is "stdio" or "http".
type Config struct {
	Services      Services
	Resolver      PrincipalResolver
	AuthEnabled   bool
	TransportMode string
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "semantix",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Later middleware runs first, so auth wraps logging and the logged
	// requests carry the principal. Stdio is local and never authenticates.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}

	registerTools(server, cfg.Services)

	return server
}
