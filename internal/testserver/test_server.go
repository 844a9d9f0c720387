// Package testserver runs the full HTTP stack over an in-memory database.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/mcp"
	"github.com/rpggio/semantix/internal/sqlite"
	"github.com/rpggio/semantix/internal/transport"
)

// Options configures a test server. Auth is enabled when Token is set.
type Options struct {
	Token     string
	Principal string
	Policy    *vote.Policy
}

type TestServer struct {
	Server    *httptest.Server
	DB        *sqlite.DB
	Token     string
	Principal string
	Items     *item.Service
	Approval  *approval.Service
	Log       *eventlog.Log
	Fanout    *eventlog.Fanout
	Artifacts *artifact.Writer
	Trainer   *training.Consumer
	MCP       *sdkmcp.Server
}

func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	policy := vote.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	policy, err = policy.Validate()
	require.NoError(t, err)

	checkpoints, err := checkpoint.Open("")
	require.NoError(t, err)
	artifacts, err := artifact.NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	fanout := eventlog.NewFanout()
	log := eventlog.NewLog(sqlite.NewStreamRepository(db), fanout, nil)
	itemRepo := sqlite.NewItemRepository(db)
	ledger := vote.NewLedger(sqlite.NewVoteRepository(db), nil)
	items := item.NewService(itemRepo, log, 0, nil)
	approvalSvc := approval.NewService(itemRepo, ledger, sqlite.NewDecisionRepository(db), log, policy, nil)
	trainer := training.NewConsumer(items, log, artifacts, checkpoints, nil, nil)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	authEnabled := opts.Token != ""
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Items:    items,
			Approval: approvalSvc,
			Streams:  log,
			Trainer:  trainer,
		},
		Resolver:      apiKeys,
		AuthEnabled:   authEnabled,
		TransportMode: "http",
	})

	var httpOpts transport.Options
	if authEnabled {
		httpOpts.Auth = transport.AuthMiddleware(apiKeys)
	}
	httpOpts.MCP = sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return mcpServer }, nil)
	server := httptest.NewServer(transport.NewServer(transport.Services{
		Items:     items,
		Approval:  approvalSvc,
		Streams:   log,
		Trainer:   trainer,
		Artifacts: artifacts,
		Events:    fanout,
	}, httpOpts))

	ts := &TestServer{
		Server:    server,
		DB:        db,
		Token:     opts.Token,
		Principal: opts.Principal,
		Items:     items,
		Approval:  approvalSvc,
		Log:       log,
		Fanout:    fanout,
		Artifacts: artifacts,
		Trainer:   trainer,
		MCP:       mcpServer,
	}

	if authEnabled {
		principal := opts.Principal
		if principal == "" {
			principal = "tester"
			ts.Principal = principal
		}
		require.NoError(t, ts.AddAPIKey(opts.Token, principal))
	}

	t.Cleanup(func() {
		server.Close()
		_ = checkpoints.Close()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey registers token for principal.
func (ts *TestServer) AddAPIKey(token, principal string) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), token, principal, "test")
}
