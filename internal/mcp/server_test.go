package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/testserver"
)

func connect(t *testing.T, ts *testserver.TestServer) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()

	serverSession, err := ts.MCP.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_ListsTools(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	session := connect(t, ts)

	require.Equal(t, "semantix", session.InitializeResult().ServerInfo.Name)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{"ingest_item", "get_item", "list_items", "cast_vote", "moderate_item", "read_stream", "start_training"} {
		require.True(t, names[name], "missing tool %s", name)
	}
}

func TestServer_VotingFlow(t *testing.T) {
	policy := vote.DefaultPolicy()
	policy.VoteThreshold = 2
	ts := testserver.New(t, testserver.Options{Policy: &policy})
	session := connect(t, ts)

	res := call(t, session, "ingest_item", map[string]any{"text": "an agent submitted this"})
	require.False(t, res.IsError, text(t, res))
	var ingested struct {
		Item struct {
			Hash string `json:"hash"`
		} `json:"item"`
		Created bool `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &ingested))
	require.True(t, ingested.Created)
	hash := ingested.Item.Hash

	res = call(t, session, "cast_vote", map[string]any{"hash": hash, "voter_id": "agent-1", "label": "positive", "delta": 2, "quality": 1})
	require.False(t, res.IsError, text(t, res))
	var cast struct {
		Status  string `json:"status"`
		Decided bool   `json:"decided"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &cast))
	require.Equal(t, "approved", cast.Status)
	require.True(t, cast.Decided)

	res = call(t, session, "read_stream", map[string]any{"stream": "approved"})
	require.False(t, res.IsError, text(t, res))
	var stream struct {
		Head    int64 `json:"head"`
		Entries []struct {
			ItemHash string `json:"item_hash"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &stream))
	require.Len(t, stream.Entries, 1)
	require.Equal(t, hash, stream.Entries[0].ItemHash)

	res = call(t, session, "start_training", map[string]any{"quality_min": 1})
	require.False(t, res.IsError, text(t, res))
	var run struct {
		Processed int `json:"processed"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &run))
	require.Equal(t, 1, run.Processed)
}

func TestServer_ToolErrors(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	session := connect(t, ts)

	res := call(t, session, "get_item", map[string]any{"hash": "missing"})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "ITEM_NOT_FOUND")

	hash := ingest(t, session, "label check")
	res = call(t, session, "cast_vote", map[string]any{"hash": hash, "voter_id": "a", "label": "Not A Label!", "delta": 1})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "INVALID_LABEL")

	res = call(t, session, "moderate_item", map[string]any{"hash": hash, "action": "shelve"})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "INVALID_INPUT")

	res = call(t, session, "moderate_item", map[string]any{"hash": hash, "action": "reject", "reason": "spam"})
	require.False(t, res.IsError, text(t, res))
	res = call(t, session, "moderate_item", map[string]any{"hash": hash, "action": "approve"})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "ALREADY_DECIDED")
}

func TestServer_ReadsDocs(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	session := connect(t, ts)

	res, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "semantix://docs/voting"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "score")
}

func TestServer_HTTPRequiresToken(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: "secret"})

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	_, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{Endpoint: ts.Server.URL + "/mcp"}, nil)
	require.Error(t, err)

	authed := &http.Client{Transport: bearer{token: "secret"}}
	session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{Endpoint: ts.Server.URL + "/mcp", HTTPClient: authed}, nil)
	require.NoError(t, err)
	defer session.Close()

	res := call(t, session, "ingest_item", map[string]any{"text": "over http"})
	require.False(t, res.IsError, text(t, res))
}

type bearer struct {
	token string
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func ingest(t *testing.T, session *sdkmcp.ClientSession, body string) string {
	t.Helper()
	res := call(t, session, "ingest_item", map[string]any{"text": body})
	require.False(t, res.IsError, text(t, res))
	var out struct {
		Item struct {
			Hash string `json:"hash"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out.Item.Hash
}
