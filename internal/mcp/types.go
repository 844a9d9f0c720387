package mcp

import "github.com/rpggio/semantix/internal/domain/eventlog"

type IngestItemParams struct {
	Text    string `json:"text" jsonschema:"the item text"`
	Source  string `json:"source,omitempty" jsonschema:"where the text came from"`
	Mime    string `json:"mime,omitempty" jsonschema:"text/plain (default) or text/html"`
	RawPath string `json:"raw_path,omitempty" jsonschema:"path of the original file, if any"`
}

type GetItemParams struct {
	Hash string `json:"hash" jsonschema:"content hash of the item"`
}

type ListItemsParams struct {
	Status string `json:"status,omitempty" jsonschema:"voting, approved or rejected"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of items"`
	Offset int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

type CastVoteParams struct {
	Hash    string `json:"hash" jsonschema:"content hash of the item"`
	VoterID string `json:"voter_id,omitempty" jsonschema:"voter identity, ignored when authenticated"`
	Label   string `json:"label" jsonschema:"positive, negative, quality or a topic label"`
	Delta   int    `json:"delta" jsonschema:"vote weight; for quality the rating"`
	Quality *int   `json:"quality,omitempty" jsonschema:"optional quality rating recorded with the vote"`
}

type ModerateItemParams struct {
	Hash   string `json:"hash" jsonschema:"content hash of the item"`
	Action string `json:"action" jsonschema:"approve or reject"`
	Reason string `json:"reason,omitempty" jsonschema:"why the item was moderated"`
}

type ReadStreamParams struct {
	Stream string `json:"stream" jsonschema:"ingest, approved, rejected or training-progress"`
	After  int64  `json:"after,omitempty" jsonschema:"return entries with offsets greater than this"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of entries"`
}

type StartTrainingParams struct {
	LabelFilter string `json:"label_filter,omitempty" jsonschema:"only items with a positive count for this label"`
	QualityMin  int    `json:"quality_min,omitempty" jsonschema:"minimum aggregate quality"`
	MaxRecords  int    `json:"max_records,omitempty" jsonschema:"stop after this many records"`
	BatchSize   int    `json:"batch_size,omitempty" jsonschema:"records per artifact"`
}

type ReadStreamResult struct {
	Stream  eventlog.Stream  `json:"stream"`
	Head    int64            `json:"head"`
	Entries []eventlog.Entry `json:"entries"`
}
