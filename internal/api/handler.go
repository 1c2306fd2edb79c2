// Package api exposes the ingestion pipeline and query layer over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftline/reddit-ingest/internal/ingest"
	"github.com/driftline/reddit-ingest/internal/model"
	"github.com/driftline/reddit-ingest/internal/query"
	"github.com/driftline/reddit-ingest/internal/store"
)

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	ingestor *ingest.Ingestor
	reader   *query.Reader
}

func NewHandler(ing *ingest.Ingestor, reader *query.Reader) *Handler {
	return &Handler{ingestor: ing, reader: reader}
}

// ingestRequest is the POST /ingest body: the operation that produced
// the response, the raw response itself, and optional call metadata.
type ingestRequest struct {
	Operation string             `json:"operation"`
	Response  json.RawMessage    `json:"response"`
	Metadata  model.CallMetadata `json:"metadata,omitempty"`
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Operation == "" {
		respondError(w, http.StatusBadRequest, "operation is required")
		return
	}
	if len(req.Response) == 0 {
		respondError(w, http.StatusBadRequest, "response is required")
		return
	}

	outcome, err := h.ingestor.ProcessAndStore(r.Context(), req.Response, req.Operation, req.Metadata)
	if err != nil {
		zap.L().Error("ingest failed", zap.String("operation", req.Operation), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	filter := store.BatchFilter{
		Status:    model.BatchStatus(r.URL.Query().Get("status")),
		Operation: r.URL.Query().Get("operation"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}
	batches, err := h.reader.Batches(r.Context(), filter)
	if err != nil {
		zap.L().Error("list batches failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list batches failed")
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	b, err := h.reader.Batch(r.Context(), batchID)
	if err != nil {
		zap.L().Error("get batch failed", zap.String("batch_id", batchID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get batch failed")
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) GetBatchEntities(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	b, err := h.reader.Batch(r.Context(), batchID)
	if err != nil {
		zap.L().Error("get batch failed", zap.String("batch_id", batchID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get batch failed")
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	set, err := h.reader.ByBatch(r.Context(), batchID)
	if err != nil {
		zap.L().Error("get batch entities failed", zap.String("batch_id", batchID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get batch entities failed")
		return
	}
	respondJSON(w, http.StatusOK, set)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	kind := model.EntityKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() && !kind.IsCapture() {
		respondError(w, http.StatusBadRequest, "unknown entity kind")
		return
	}
	set, err := h.reader.Recent(r.Context(), kind, queryInt(r, "limit"))
	if err != nil {
		zap.L().Error("recent failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "recent failed")
		return
	}
	respondJSON(w, http.StatusOK, set)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Stats(r.Context())
	if err != nil {
		zap.L().Error("stats failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
