package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `semantix collects votes on text items and turns approved items into training datasets.

Core concepts:
- Item: text identified by the sha256 of its normalized content. Ingesting the same text twice is a no-op.
- Status: every item starts in voting and moves once to approved or rejected. Decisions are final.
- Vote: (voter, label, delta). Re-voting the same label replaces your previous delta.
- Labels: positive raises the score, negative lowers it, quality records your quality rating, anything else is a topic tag.
- Approval: score >= vote threshold and aggregate quality >= quality minimum.

Workflow:
1) ingest_item to submit text, or list_items to find items in voting.
2) get_item to see the current tally and evaluation.
3) cast_vote with a label and delta. Include quality when you can judge it.
4) read_stream on approved or rejected to follow decisions by offset.
5) start_training to export approved items into a versioned dataset artifact.

Docs:
- semantix://docs/voting
- semantix://docs/training
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "semantix://docs/voting",
		Name:        "docs_voting",
		Title:       "Voting and approval",
		Description: "Label kinds, scoring and the approval rule.",
		Content: `# Voting

Each voter holds one slot per (item, label). Casting again overwrites the slot, so a voter
can never count twice for the same label.

## Labels

| label    | effect                                              |
|----------|-----------------------------------------------------|
| positive | delta added to the score                            |
| negative | magnitude of delta subtracted from the score        |
| quality  | delta recorded as the voter's quality rating        |
| other    | counted as a topic tag, no effect on the score      |

A vote with any label may carry a quality value; it replaces the voter's quality rating.

## Decision

    score   = positive - |negative|
    quality = aggregate of each voter's latest rating

The item is approved once score reaches the vote threshold and quality reaches the quality
minimum. With the symmetric reject rule it is rejected once score falls to minus the reject
threshold. Votes on decided items are stored but do not change the decision.
`,
	},
	{
		URI:         "semantix://docs/training",
		Name:        "docs_training",
		Title:       "Training runs",
		Description: "How approved items become dataset artifacts.",
		Content: `# Training

A run reads the approved stream in offset order, starting after its checkpoint. A run
configuration (label filter, quality minimum, record limit) has its own checkpoint.

- label_filter keeps items whose tally has a positive count for that label.
- quality_min keeps items whose aggregate quality reaches it.
- batch_size records make one artifact. The artifact version is the sha256 of the item
  hashes in order, so the same batch always produces the same file.

Artifacts are Parquet files named <version>.parquet. Progress for each committed batch is
appended to the training-progress stream.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
