package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/kura-kb/kura/internal/chunker"
	"github.com/kura-kb/kura/internal/converter"
	"github.com/kura-kb/kura/internal/knowledge"
	"github.com/kura-kb/kura/internal/parser"
)

// Request validation constants.
const (
	// maxMultipartMemory bounds the in-memory portion of file uploads;
	// larger parts spill to disk.
	maxMultipartMemory = 32 << 20

	// maxUploadBytes bounds the whole insert request body.
	maxUploadBytes = 64 << 20

	// DefaultQueryK is the result count when the caller omits k.
	DefaultQueryK = 10

	// MaxQueryK caps the result count per query.
	MaxQueryK = 100
)

// DocumentsHandler handles knowledge base HTTP endpoints.
type DocumentsHandler struct {
	svc    *knowledge.Service
	logger *slog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc *knowledge.Service, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents/insert", h.insert)
	mux.HandleFunc("GET /api/documents/query", h.query)
	mux.HandleFunc("GET /api/documents/stats", h.stats)
	mux.HandleFunc("GET /api/documents/supported-types", h.supportedTypes)
	mux.HandleFunc("GET /api/documents/{id}", h.get)
	mux.HandleFunc("PUT /api/documents/{id}", h.update)
	mux.HandleFunc("DELETE /api/documents/{id}", h.delete)
}

// ProcessingSummary reports per-file ingestion outcomes for a batch
// insert. Files fail independently; one corrupt upload never blocks the
// rest of the batch.
type ProcessingSummary struct {
	FilesProcessed int               `json:"files_processed"`
	ChunksInserted int               `json:"chunks_inserted"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// InsertResponse is the response body for POST /api/documents/insert.
type InsertResponse struct {
	InsertedIDs []string          `json:"inserted_ids"`
	Summary     ProcessingSummary `json:"processing_summary"`
}

// insert ingests documents from a multipart form. Two part kinds are
// accepted and may be combined in one request:
//   - "documents": a JSON array of {text, metadata} chunks inserted
//     directly
//   - "files": uploaded files run through the parsing pipeline
func (h *DocumentsHandler) insert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form data")
		return
	}

	// Start non-nil so the response always serializes a JSON array.
	insertedIDs := []string{}
	summary := ProcessingSummary{Errors: map[string]string{}}

	if raw := r.FormValue("documents"); raw != "" {
		var entries []knowledge.Entry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "documents field must be a JSON array of chunks")
			return
		}
		ids, err := h.svc.IngestChunks(r.Context(), entries)
		insertedIDs = append(insertedIDs, ids...)
		summary.ChunksInserted += len(ids)
		if err != nil {
			h.logger.Error("chunk ingestion failed", "error", err)
			summary.Errors["documents"] = publicMessage(err)
		}
	}

	files := r.MultipartForm.File["files"]
	for _, header := range files {
		content, err := readUpload(header)
		if err != nil {
			summary.Errors[header.Filename] = "failed to read uploaded file"
			continue
		}

		ids, err := h.svc.IngestFile(r.Context(), content, header.Filename, nil)
		insertedIDs = append(insertedIDs, ids...)
		summary.ChunksInserted += len(ids)
		if err != nil {
			h.logger.Error("file ingestion failed", "filename", header.Filename, "error", err)
			summary.Errors[header.Filename] = publicMessage(err)
			continue
		}
		summary.FilesProcessed++
	}

	if r.FormValue("documents") == "" && len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no documents or files provided")
		return
	}

	status := http.StatusOK
	if len(insertedIDs) == 0 && len(summary.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	if len(summary.Errors) == 0 {
		summary.Errors = nil
	}
	writeJSON(w, status, InsertResponse{InsertedIDs: insertedIDs, Summary: summary})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// QueryResponse is the response body for GET /api/documents/query.
type QueryResponse struct {
	Query     string             `json:"query"`
	Count     int                `json:"count"`
	Results   []knowledge.Result `json:"results"`
	Formatted string             `json:"formatted,omitempty"`
}

// query runs a similarity search.
// Query parameters:
//   - q: query text (required)
//   - k: maximum results (default 10, max 100)
//   - filter: JSON object of metadata equality constraints
//   - format: "text" additionally renders a human-readable summary
func (h *DocumentsHandler) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query parameter q is required")
		return
	}

	k := parseIntParam(r, "k", DefaultQueryK, 1, MaxQueryK)

	var filter map[string]string
	if raw := r.URL.Query().Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "filter must be a JSON object of string pairs")
			return
		}
	}

	results, err := h.svc.Search(r.Context(), q, k, filter)
	if err != nil {
		h.respondError(w, err, "search failed")
		return
	}

	resp := QueryResponse{Query: q, Count: len(results), Results: results}
	if r.URL.Query().Get("format") == "text" {
		resp.Formatted = knowledge.FormatResults(q, results)
	}
	writeJSON(w, http.StatusOK, resp)
}

// get returns one stored chunk by id.
func (h *DocumentsHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRequest is the request body for PUT /api/documents/{id}. Both
// fields are optional; omitted fields stay unchanged.
type UpdateRequest struct {
	Text     string            `json:"text,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// update applies a partial update to one stored chunk.
func (h *DocumentsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	rec, err := h.svc.Update(r.Context(), r.PathValue("id"), req.Text, req.Metadata)
	if err != nil {
		h.respondError(w, err, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteResponse is the response body for DELETE /api/documents/{id}.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// delete removes one stored chunk. Deleting an unknown id reports
// deleted=false rather than an error.
func (h *DocumentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Deleted: deleted})
}

// stats returns collection aggregates.
func (h *DocumentsHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.respondError(w, err, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SupportedTypesResponse lists the ingestable file extensions.
type SupportedTypesResponse struct {
	SupportedExtensions []string `json:"supported_extensions"`
}

// supportedTypes returns the file extension allow-list.
func (h *DocumentsHandler) supportedTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SupportedTypesResponse{
		SupportedExtensions: h.svc.SupportedExtensions(),
	})
}

// respondError maps a service error to a status code and a stable kind
// tag. The full error is logged; the caller only sees a sanitized
// message.
func (h *DocumentsHandler) respondError(w http.ResponseWriter, err error, logMsg string) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(logMsg, "error", err)
	} else {
		h.logger.Debug(logMsg, "error", err)
	}
	writeError(w, status, kind, publicMessage(err))
}

// statusFor classifies service errors into HTTP status codes and stable
// error kind tags.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, converter.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, parser.ErrEmptyContent):
		return http.StatusBadRequest, "empty_content"
	case errors.Is(err, chunker.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, knowledge.ErrBatchSizeMismatch):
		return http.StatusBadRequest, "batch_size_mismatch"
	case errors.Is(err, knowledge.ErrInvalidTopK):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, converter.ErrConversionFailed):
		return http.StatusUnprocessableEntity, "conversion_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// publicMessage returns a caller-safe message for err. Validation errors
// carry their own wording; anything unclassified collapses to a generic
// message so backend diagnostics never leak.
func publicMessage(err error) string {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
