package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
)

const maxBodyBytes = 4 << 20

// ItemService ingests and reads items.
type ItemService interface {
	Ingest(ctx context.Context, req item.IngestRequest) (*item.IngestResult, error)
	List(ctx context.Context, opts item.ListOptions) ([]item.Ref, error)
	Counts(ctx context.Context) (item.StatusCounts, error)
}

// ApprovalService votes on and moderates items.
type ApprovalService interface {
	CastVote(ctx context.Context, req vote.CastRequest) (*approval.CastResult, error)
	Moderate(ctx context.Context, req approval.ModerateRequest) (*approval.CastResult, error)
	GetState(ctx context.Context, hash string) (*approval.State, error)
}

// StreamReader reads the append-only streams.
type StreamReader interface {
	Read(ctx context.Context, stream eventlog.Stream, after int64, limit int) ([]eventlog.Entry, error)
	Head(ctx context.Context, stream eventlog.Stream) (int64, error)
}

// Trainer runs the training consumer.
type Trainer interface {
	Run(ctx context.Context, cfg training.RunConfig) (*training.RunResult, error)
}

// ArtifactStore lists and reads published artifacts.
type ArtifactStore interface {
	List() ([]artifact.Artifact, error)
	Lookup(version string) (*artifact.Artifact, error)
	Read(version string) ([]artifact.Record, error)
}

// EventSource is the live notification fan-out.
type EventSource interface {
	Subscribe(streams ...eventlog.Stream) eventlog.Subscription
	Stats() eventlog.FanoutStats
}

// Services groups the domain services exposed over HTTP. Trainer,
// Artifacts and Events may be nil.
type Services struct {
	Items     ItemService
	Approval  ApprovalService
	Streams   StreamReader
	Trainer   Trainer
	Artifacts ArtifactStore
	Events    EventSource
}

// Options configures the router. Auth, when set, guards /api and /mcp, and
// the principal it resolves becomes the voter and moderator identity. MCP is
// mounted at /mcp when set.
type Options struct {
	Auth   func(http.Handler) http.Handler
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	svc    Services
	logger *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(svc Services, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}

		r.Route("/api", func(r chi.Router) {
			r.Post("/ingest", srv.handleIngest)
			r.Get("/items", srv.handleListItems)
			r.Get("/items/{hash}", srv.handleGetItem)
			r.Post("/items/{hash}/votes", srv.handleCastVote)
			r.Post("/items/{hash}/moderate", srv.handleModerate)
			r.Get("/streams/{stream}", srv.handleReadStream)
			r.Get("/metrics", srv.handleMetrics)
			r.Get("/events", srv.handleEvents)
			r.Post("/train", srv.handleTrain)
			r.Get("/artifacts", srv.handleListArtifacts)
			r.Get("/artifacts/{version}", srv.handleGetArtifact)
		})

		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
			r.Handle("/mcp/*", opts.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type ingestBody struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Mime    string `json:"mime"`
	RawPath string `json:"raw_path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body ingestBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.svc.Items.Ingest(r.Context(), item.IngestRequest(body))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type listItemsResponse struct {
	Items  []item.Ref        `json:"items"`
	Counts item.StatusCounts `json:"counts"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := item.ListOptions{Status: item.Status(q.Get("status"))}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	refs, err := s.svc.Items.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.svc.Items.Counts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if refs == nil {
		refs = []item.Ref{}
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Items: refs, Counts: counts})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Approval.GetState(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type voteBody struct {
	VoterID string `json:"voter_id"`
	Label   string `json:"label"`
	Delta   int    `json:"delta"`
	Quality *int   `json:"quality,omitempty"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var body voteBody
	if !decodeBody(w, r, &body) {
		return
	}
	voter := body.VoterID
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		voter = principal
	}
	res, err := s.svc.Approval.CastVote(r.Context(), vote.CastRequest{
		ItemHash: chi.URLParam(r, "hash"),
		VoterID:  voter,
		Label:    body.Label,
		Delta:    body.Delta,
		Quality:  body.Quality,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type moderateBody struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	var body moderateBody
	if !decodeBody(w, r, &body) {
		return
	}
	actor := body.Actor
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		actor = principal
	}
	res, err := s.svc.Approval.Moderate(r.Context(), approval.ModerateRequest{
		ItemHash: chi.URLParam(r, "hash"),
		Action:   body.Action,
		Actor:    actor,
		Reason:   body.Reason,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type streamResponse struct {
	Stream  eventlog.Stream  `json:"stream"`
	Head    int64            `json:"head"`
	Entries []eventlog.Entry `json:"entries"`
}

func (s *Server) handleReadStream(w http.ResponseWriter, r *http.Request) {
	stream := eventlog.Stream(chi.URLParam(r, "stream"))
	q := r.URL.Query()
	after, err := int64Param(q.Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	entries, err := s.svc.Streams.Read(r.Context(), stream, after, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	head, err := s.svc.Streams.Head(r.Context(), stream)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	writeJSON(w, http.StatusOK, streamResponse{Stream: stream, Head: head, Entries: entries})
}

type metricsResponse struct {
	Items   item.StatusCounts         `json:"items"`
	Streams map[eventlog.Stream]int64 `json:"stream_heads"`
	Fanout  *eventlog.FanoutStats     `json:"fanout,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.Items.Counts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := metricsResponse{Items: counts, Streams: map[eventlog.Stream]int64{}}
	for _, stream := range eventlog.Streams {
		head, err := s.svc.Streams.Head(r.Context(), stream)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Streams[stream] = head
	}
	if s.svc.Events != nil {
		stats := s.svc.Events.Stats()
		resp.Fanout = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if s.svc.Trainer == nil {
		writeError(w, http.StatusNotImplemented, "training disabled")
		return
	}
	var cfg training.RunConfig
	if !decodeBody(w, r, &cfg) {
		return
	}
	res, err := s.svc.Trainer.Run(r.Context(), cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.svc.Artifacts == nil {
		writeError(w, http.StatusNotImplemented, "training disabled")
		return
	}
	arts, err := s.svc.Artifacts.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if arts == nil {
		arts = []artifact.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": arts})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if s.svc.Artifacts == nil {
		writeError(w, http.StatusNotImplemented, "training disabled")
		return
	}
	version := chi.URLParam(r, "version")
	art, err := s.svc.Artifacts.Lookup(version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]any{"artifact": art}
	if r.URL.Query().Get("records") == "true" {
		records, err := s.svc.Artifacts.Read(version)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp["records"] = records
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	if err := json.NewDecoder(reader).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func intParam(v string) (int, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func int64Param(v string) (int64, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
