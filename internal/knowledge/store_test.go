package knowledge

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
)

// testEmbedding is a deterministic bag-of-words embedding. Shared words
// between two texts raise their cosine similarity, which is enough to
// exercise ranking without a real model.
func testEmbedding(_ context.Context, text string) ([]float32, error) {
	const dims = 32
	vec := make([]float32, dims)
	vec[0] = 0.1 // bias keeps the vector non-zero for normalization
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?\"'")))
		vec[1+h.Sum32()%(dims-1)]++
	}
	return vec, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), "test_collection", testEmbedding, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{
		{Text: "first chunk", Metadata: map[string]string{"source": "a.txt"}},
		{Text: "second chunk"},
	}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
	if ids[0] == ids[1] {
		t.Error("generated ids collide")
	}

	rec, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Text != "first chunk" {
		t.Errorf("Text = %q", rec.Text)
	}
	if rec.Metadata["source"] != "a.txt" {
		t.Errorf("metadata source = %q", rec.Metadata["source"])
	}
	if rec.Metadata[MetaCreatedAt] == "" {
		t.Error("created_at not stamped")
	}
}

func TestStore_Insert_ExplicitIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{{Text: "pinned"}}, []string{"chunk-1"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "chunk-1" {
		t.Fatalf("ids = %v, want [chunk-1]", ids)
	}

	if _, err := store.Get(ctx, "chunk-1"); err != nil {
		t.Errorf("Get(chunk-1) error = %v", err)
	}
}

func TestStore_Insert_BatchSizeMismatch(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Insert(context.Background(), []Entry{{Text: "a"}, {Text: "b"}}, []string{"only-one"})
	if !errors.Is(err, ErrBatchSizeMismatch) {
		t.Fatalf("error = %v, want ErrBatchSizeMismatch", err)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d, mismatch must fail before any write", stats.TotalChunks)
	}
}

func TestStore_Query_Ranking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, []Entry{
		{Text: "the quick brown fox jumps"},
		{Text: "databases index rows by key"},
		{Text: "a lazy dog sleeps all day"},
	}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	results, err := store.Query(ctx, "quick brown fox", WithTopK(3))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if !strings.Contains(results[0].Text, "fox") {
		t.Errorf("top result = %q, want the fox chunk", results[0].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order at %d", i)
		}
	}
}

func TestStore_Query_TopKLargerThanCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, []Entry{{Text: "only chunk"}}, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	results, err := store.Query(ctx, "anything", WithTopK(50))
	if err != nil {
		t.Fatalf("Query() error = %v, oversized k must not error", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
}

func TestStore_Query_EmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), "anything", WithTopK(5))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestStore_Query_InvalidTopK(t *testing.T) {
	store := newTestStore(t)

	for _, k := range []int{0, -3} {
		_, err := store.Query(context.Background(), "q", WithTopK(k))
		if !errors.Is(err, ErrInvalidTopK) {
			t.Errorf("Query(k=%d) error = %v, want ErrInvalidTopK", k, err)
		}
	}
}

func TestStore_Query_MetadataFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{
		{Text: "alpha document", Metadata: map[string]string{"category": "x"}},
		{Text: "beta document", Metadata: map[string]string{"category": "y"}},
		{Text: "gamma document", Metadata: map[string]string{"category": "x"}},
	}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	results, err := store.Query(ctx, "document", WithTopK(3), WithFilter("category", "x"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	want := map[string]bool{ids[0]: true, ids[2]: true}
	for _, r := range results {
		if !want[r.ID] {
			t.Errorf("result %s outside the filtered set", r.ID)
		}
		if r.Metadata["category"] != "x" {
			t.Errorf("result category = %q", r.Metadata["category"])
		}
	}
}

func TestStore_Query_FilterMatchesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, []Entry{{Text: "something"}}, nil); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	results, err := store.Query(ctx, "something", WithTopK(1), WithFilter("category", "missing"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestStore_Update_MetadataOnlyKeepsText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{{Text: "original text", Metadata: map[string]string{"a": "1"}}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	rec, err := store.Update(ctx, ids[0], "", map[string]string{"reviewed": "true"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.Text != "original text" {
		t.Errorf("Text = %q, metadata-only update must keep text", rec.Text)
	}
	if rec.Metadata["a"] != "1" || rec.Metadata["reviewed"] != "true" {
		t.Errorf("metadata = %v, want merge of old and new", rec.Metadata)
	}
	if rec.Metadata[MetaUpdatedAt] == "" {
		t.Error("updated_at not stamped")
	}
}

func TestStore_Update_TextReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{{Text: "before"}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := store.Update(ctx, ids[0], "after", nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Text != "after" {
		t.Errorf("Text = %q, want %q", rec.Text, "after")
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), "missing", "text", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound, update must never create", err)
	}
}

func TestStore_Delete_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{{Text: "ephemeral"}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	deleted, err := store.Delete(ctx, ids[0])
	if err != nil || !deleted {
		t.Fatalf("first Delete() = (%v, %v), want (true, nil)", deleted, err)
	}

	deleted, err = store.Delete(ctx, ids[0])
	if err != nil || deleted {
		t.Fatalf("second Delete() = (%v, %v), want (false, nil)", deleted, err)
	}

	if _, err := store.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestStore_Stats_TracksMutations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, []Entry{{Text: "one"}, {Text: "two"}, {Text: "three"}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", stats.TotalChunks)
	}
	if stats.CollectionName != "test_collection" {
		t.Errorf("CollectionName = %q", stats.CollectionName)
	}
	if stats.Path == "" {
		t.Error("Path is empty")
	}

	if _, err := store.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	stats, _ = store.Stats(ctx)
	if stats.TotalChunks != 2 {
		t.Errorf("TotalChunks after delete = %d, want 2", stats.TotalChunks)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, "persist", testEmbedding, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ids, err := store.Insert(ctx, []Entry{{Text: "durable chunk"}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dir, "persist", testEmbedding, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	rec, err := reopened.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if rec.Text != "durable chunk" {
		t.Errorf("Text = %q", rec.Text)
	}
}

func TestStore_DirectoryLock(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, "locked", testEmbedding, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	_, err = Open(dir, "locked", testEmbedding, nil)
	if !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("second Open() error = %v, want ErrStoreLocked", err)
	}
}

func TestStore_EndToEndLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const text = "The quick brown fox. It jumps over the lazy dog."
	ids, err := store.Insert(ctx, []Entry{{Text: text}}, nil)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("len(ids) = %d, want 1", len(ids))
	}

	results, err := store.Query(ctx, "fox", WithTopK(1))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != ids[0] {
		t.Fatalf("query did not return the stored chunk: %+v", results)
	}

	rec, err := store.Update(ctx, ids[0], "", map[string]string{"reviewed": "true"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.Text != text {
		t.Errorf("update with metadata only changed text to %q", rec.Text)
	}

	if deleted, err := store.Delete(ctx, ids[0]); err != nil || !deleted {
		t.Fatalf("Delete() = (%v, %v)", deleted, err)
	}
	if _, err := store.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete = %v, want ErrNotFound", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d, want 0", stats.TotalChunks)
	}
}

// Interface compliance.
var _ VectorStore = (*Store)(nil)
var _ chromem.EmbeddingFunc = testEmbedding
