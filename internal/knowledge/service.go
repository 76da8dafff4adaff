package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kura-kb/kura/internal/parser"
)

// Metadata key marking chunks inserted as raw text rather than parsed
// from a file.
const sourceTypeKey = "source_type"

// maxFormattedContent bounds per-result content in FormatResults output.
const maxFormattedContent = 1000

// DocumentParser converts file bytes into chunks. Defined by the
// consumer so the service can be tested with a fake pipeline.
type DocumentParser interface {
	Parse(ctx context.Context, content []byte, filename string, base map[string]string) ([]parser.Chunk, error)
	SupportedExtensions() []string
}

// VectorStore is the persistence capability the service depends on.
type VectorStore interface {
	Insert(ctx context.Context, entries []Entry, ids []string) ([]string, error)
	Query(ctx context.Context, text string, opts ...SearchOption) ([]Result, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, id string, text string, metadata map[string]string) (Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service ties the parsing pipeline to the vector store. It is the
// single entry point route handlers call.
type Service struct {
	parser DocumentParser
	store  VectorStore
	logger *slog.Logger
}

// NewService wires a parser and a store together. A nil logger falls
// back to slog.Default.
func NewService(p DocumentParser, store VectorStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{parser: p, store: store, logger: logger}
}

// IngestFile parses a file and inserts the resulting chunks. Returns
// the assigned chunk ids; on a mid-batch storage failure the ids
// persisted before the failure are returned with the error.
func (s *Service) IngestFile(ctx context.Context, content []byte, filename string, base map[string]string) ([]string, error) {
	chunks, err := s.parser.Parse(ctx, content, filename, withSourceType(base, "uploaded_file"))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", filename, err)
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{Text: c.Text, Metadata: c.Metadata}
	}

	ids, err := s.store.Insert(ctx, entries, nil)
	if err != nil {
		return ids, fmt.Errorf("insert chunks of %q: %w", filename, err)
	}

	s.logger.Info("ingested document", "filename", filename, "chunks", len(ids))
	return ids, nil
}

// IngestChunks inserts pre-chunked text entries directly, bypassing the
// file pipeline. Blank entries are skipped. Each stored entry is tagged
// source_type=json_input unless the caller already set one.
func (s *Service) IngestChunks(ctx context.Context, entries []Entry) ([]string, error) {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		kept = append(kept, Entry{Text: e.Text, Metadata: withSourceType(e.Metadata, "json_input")})
	}
	if len(kept) == 0 {
		return nil, nil
	}

	ids, err := s.store.Insert(ctx, kept, nil)
	if err != nil {
		return ids, fmt.Errorf("insert chunks: %w", err)
	}

	s.logger.Info("ingested chunks", "count", len(ids), "skipped", len(entries)-len(kept))
	return ids, nil
}

// Search runs a similarity query with an optional metadata filter.
func (s *Service) Search(ctx context.Context, text string, k int, filter map[string]string) ([]Result, error) {
	opts := []SearchOption{WithTopK(k)}
	if len(filter) > 0 {
		opts = append(opts, WithFilterMap(filter))
	}
	return s.store.Query(ctx, text, opts...)
}

// Get returns the chunk stored under id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.Get(ctx, id)
}

// Update applies a partial update to the chunk stored under id.
func (s *Service) Update(ctx context.Context, id string, text string, metadata map[string]string) (Record, error) {
	return s.store.Update(ctx, id, text, metadata)
}

// Delete removes the chunk stored under id, reporting whether anything
// was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// Stats returns store aggregates.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// withSourceType copies meta and fills in source_type when the caller
// did not set one. The input map is never mutated.
func withSourceType(meta map[string]string, sourceType string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if out[sourceTypeKey] == "" {
		out[sourceTypeKey] = sourceType
	}
	return out
}

// SupportedExtensions returns the file extensions IngestFile accepts.
func (s *Service) SupportedExtensions() []string {
	return s.parser.SupportedExtensions()
}

// FormatResults renders search results as human-readable text, one
// numbered block per hit with relevance (1 minus distance) and source
// metadata. Content longer than maxFormattedContent runes is truncated
// with an ellipsis.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s) for query: %q\n", len(results), query)

	for i, r := range results {
		content := r.Text
		if runes := []rune(content); len(runes) > maxFormattedContent {
			content = string(runes[:maxFormattedContent]) + "..."
		}

		fmt.Fprintf(&b, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&b, "Relevance: %.4f\n", 1-r.Distance)
		if src := r.Metadata[parser.MetaSourceFilename]; src != "" {
			fmt.Fprintf(&b, "Source: %s\n", src)
		}
		if created := r.Metadata[MetaCreatedAt]; created != "" {
			fmt.Fprintf(&b, "Created: %s\n", created)
		}
		fmt.Fprintf(&b, "Content: %s\n", content)
	}

	return b.String()
}
