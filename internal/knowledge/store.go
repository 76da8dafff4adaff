// Package knowledge manages the persistent vector collection behind the
// knowledge base: chunk insertion with embedding, similarity search with
// metadata filtering, and full chunk lifecycle (get, update, delete,
// stats).
//
// The store wraps a single chromem-go collection. chromem serializes
// per-document mutations internally; this package adds a process-level
// directory lock so two processes never share one storage path. Batch
// insert is not atomic: on failure the already persisted prefix stays
// queryable and its ids are returned alongside the error.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// Reserved lifecycle metadata keys stamped by the store.
const (
	MetaCreatedAt = "created_at"
	MetaUpdatedAt = "updated_at"
)

const lockFileName = ".kura.lock"

// Store owns one persistent chromem-go collection.
//
// Store is safe for concurrent use by multiple goroutines; cross-call
// transactions spanning multiple ids are not supported.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	name       string
	lock       *flock.Flock
	logger     *slog.Logger
}

// Open creates or reopens the persistent collection at path. The
// directory is created when missing. An exclusive file lock guards the
// directory; Open fails with ErrStoreLocked when another process holds
// it. embed is the externally supplied embedding function.
func Open(path, collectionName string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory %q: %w", path, err)
	}

	lock := flock.New(filepath.Join(path, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire storage lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open vector database at %q: %w", path, err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{
		"description": "knowledge base chunks",
	}, embed)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	logger.Info("knowledge store opened",
		"path", path,
		"collection", collectionName,
		"chunks", collection.Count())

	return &Store{
		db:         db,
		collection: collection,
		path:       path,
		name:       collectionName,
		lock:       lock,
		logger:     logger,
	}, nil
}

// Close releases the storage directory lock. The collection itself needs
// no teardown; chromem persists on every mutation.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release storage lock: %w", err)
	}
	s.lock = nil
	return nil
}

// Insert embeds and persists the given entries. When ids is nil an id is
// generated per entry; when supplied its length must match entries or
// the call fails with ErrBatchSizeMismatch before any write.
//
// The batch is not atomic: on a mid-batch failure the ids persisted so
// far are returned together with the error so callers can reconcile.
func (s *Store) Insert(ctx context.Context, entries []Entry, ids []string) ([]string, error) {
	if ids != nil && len(ids) != len(entries) {
		return nil, fmt.Errorf("%w: %d texts, %d ids", ErrBatchSizeMismatch, len(entries), len(ids))
	}
	if len(entries) == 0 {
		return nil, nil
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	inserted := make([]string, 0, len(entries))

	for i, entry := range entries {
		id := uuid.NewString()
		if ids != nil {
			id = ids[i]
		}

		meta := make(map[string]string, len(entry.Metadata)+1)
		for k, v := range entry.Metadata {
			meta[k] = v
		}
		meta[MetaCreatedAt] = createdAt

		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       id,
			Content:  entry.Text,
			Metadata: meta,
		})
		if err != nil {
			return inserted, fmt.Errorf("insert chunk %d of %d: %w", i+1, len(entries), err)
		}
		inserted = append(inserted, id)
	}

	s.logger.Debug("inserted chunks", "count", len(inserted))
	return inserted, nil
}

// Query returns up to topK chunks ranked by ascending distance to text.
// A topK larger than the collection returns all available results. An
// empty collection, or a filter nothing matches, yields an empty slice.
func (s *Store) Query(ctx context.Context, text string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, cfg.topK)
	}

	total := s.collection.Count()
	if total == 0 {
		return []Result{}, nil
	}

	k := cfg.topK
	if k > total {
		k = total
	}

	hits, err := s.collection.Query(ctx, text, k, cfg.filter, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Record: Record{
				ID:       hit.ID,
				Text:     hit.Content,
				Metadata: hit.Metadata,
			},
			Distance: 1 - hit.Similarity,
		})
	}
	return results, nil
}

// Get returns the chunk stored under id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Record{ID: doc.ID, Text: doc.Content, Metadata: doc.Metadata}, nil
}

// Update modifies an existing chunk in place. A non-empty text replaces
// the content and triggers re-embedding; metadata keys are merged over
// the stored ones. Either change stamps updated_at. Update never
// creates: a missing id fails with ErrNotFound.
func (s *Store) Update(ctx context.Context, id string, text string, metadata map[string]string) (Record, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if text == "" && len(metadata) == 0 {
		return Record{ID: doc.ID, Text: doc.Content, Metadata: doc.Metadata}, nil
	}

	meta := make(map[string]string, len(doc.Metadata)+len(metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaUpdatedAt] = time.Now().UTC().Format(time.RFC3339)

	updated := chromem.Document{
		ID:       id,
		Content:  doc.Content,
		Metadata: meta,
		// Carrying the stored embedding skips re-embedding on
		// metadata-only updates.
		Embedding: doc.Embedding,
	}
	if text != "" && text != doc.Content {
		updated.Content = text
		updated.Embedding = nil
	}

	if err := s.collection.AddDocument(ctx, updated); err != nil {
		return Record{}, fmt.Errorf("update chunk %q: %w", id, err)
	}

	s.logger.Debug("updated chunk", "id", id, "re_embedded", updated.Embedding == nil)
	return Record{ID: id, Text: updated.Content, Metadata: meta}, nil
}

// Delete removes the chunk with the given id. Deleting a missing id is
// not an error; the boolean reports whether a chunk was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.collection.GetByID(ctx, id); err != nil {
		return false, nil
	}

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete chunk %q: %w", id, err)
	}

	s.logger.Debug("deleted chunk", "id", id)
	return true, nil
}

// Stats returns a read-only aggregate over the collection.
func (s *Store) Stats(_ context.Context) (Stats, error) {
	return Stats{
		TotalChunks:    s.collection.Count(),
		CollectionName: s.name,
		Path:           s.path,
	}, nil
}
