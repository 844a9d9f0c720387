package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
)

type tools struct {
	svc Services
}

func registerTools(server *sdkmcp.Server, svc Services) {
	t := &tools{svc: svc}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "ingest_item",
		Description: "Submit text for voting. Returns the stored item and whether it was new.",
	}, t.ingestItem)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_item",
		Description: "Get an item with its vote tally, contributions and current evaluation.",
	}, t.getItem)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_items",
		Description: "List item refs, optionally filtered by status.",
	}, t.listItems)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cast_vote",
		Description: "Cast or replace your vote for a label on an item. May approve or reject it.",
	}, t.castVote)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "moderate_item",
		Description: "Approve or reject an item that is still in voting, bypassing the thresholds.",
	}, t.moderateItem)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "read_stream",
		Description: "Read entries of an event stream after an offset.",
	}, t.readStream)
	if svc.Trainer != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "start_training",
			Description: "Consume newly approved items into dataset artifacts and report the batches written.",
		}, t.startTraining)
	}
}

func (t *tools) ingestItem(ctx context.Context, _ *sdkmcp.CallToolRequest, in IngestItemParams) (*sdkmcp.CallToolResult, any, error) {
	res, err := t.svc.Items.Ingest(ctx, item.IngestRequest{
		Text:    in.Text,
		Source:  in.Source,
		Mime:    in.Mime,
		RawPath: in.RawPath,
	})
	if err != nil {
		return nil, nil, toolError(err)
	}
	return jsonResult(res)
}

func (t *tools) getItem(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetItemParams) (*sdkmcp.CallToolResult, any, error) {
	state, err := t.svc.Approval.GetState(ctx, in.Hash)
	if err != nil {
		return nil, nil, toolError(err)
	}
	return jsonResult(state)
}

func (t *tools) listItems(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListItemsParams) (*sdkmcp.CallToolResult, any, error) {
	refs, err := t.svc.Items.List(ctx, item.ListOptions{
		Status: item.Status(in.Status),
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return nil, nil, toolError(err)
	}
	if refs == nil {
		refs = []item.Ref{}
	}
	return jsonResult(map[string]any{"items": refs})
}

func (t *tools) castVote(ctx context.Context, _ *sdkmcp.CallToolRequest, in CastVoteParams) (*sdkmcp.CallToolResult, any, error) {
	voter := in.VoterID
	if principal := getPrincipal(ctx); principal != "" {
		voter = principal
	}
	res, err := t.svc.Approval.CastVote(ctx, vote.CastRequest{
		ItemHash: in.Hash,
		VoterID:  voter,
		Label:    in.Label,
		Delta:    in.Delta,
		Quality:  in.Quality,
	})
	if err != nil {
		return nil, nil, toolError(err)
	}
	return jsonResult(res)
}

func (t *tools) moderateItem(ctx context.Context, _ *sdkmcp.CallToolRequest, in ModerateItemParams) (*sdkmcp.CallToolResult, any, error) {
	actor := getPrincipal(ctx)
	if actor == "" {
		actor = "mcp"
	}
	res, err := t.svc.Approval.Moderate(ctx, approval.ModerateRequest{
		ItemHash: in.Hash,
		Action:   in.Action,
		Actor:    actor,
		Reason:   in.Reason,
	})
	if err != nil {
		return nil, nil, toolError(err)
	}
	return jsonResult(res)
}

func (t *tools) readStream(ctx context.Context, _ *sdkmcp.CallToolRequest, in ReadStreamParams) (*sdkmcp.CallToolResult, any, error) {
	stream := eventlog.Stream(in.Stream)
	entries, err := t.svc.Streams.Read(ctx, stream, in.After, in.Limit)
	if err != nil {
		return nil, nil, toolError(err)
	}
	head, err := t.svc.Streams.Head(ctx, stream)
	if err != nil {
		return nil, nil, toolError(err)
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	return jsonResult(ReadStreamResult{Stream: stream, Head: head, Entries: entries})
}

func (t *tools) startTraining(ctx context.Context, _ *sdkmcp.CallToolRequest, in StartTrainingParams) (*sdkmcp.CallToolResult, any, error) {
	res, err := t.svc.Trainer.Run(ctx, training.RunConfig{
		LabelFilter: in.LabelFilter,
		QualityMin:  in.QualityMin,
		MaxRecords:  in.MaxRecords,
		BatchSize:   in.BatchSize,
	})
	if err != nil {
		return nil, nil, toolError(err)
	}
	return jsonResult(res)
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
