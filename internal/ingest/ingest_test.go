package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/vector"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hours.txt", "we are open from nine to five on weekdays")
	writeFile(t, dir, "returns.md", "returns are accepted within thirty days of purchase")

	emb := embedding.NewMockEmbedder(8)
	p := NewPipeline(emb, 500, 50, nil)

	storeDir := filepath.Join(t.TempDir(), "vector_store")
	res, err := p.IngestDirectory(context.Background(), dir, storeDir)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if res.Files != 2 {
		t.Fatalf("Files = %d, want 2", res.Files)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(res.Chunks))
	}
	if len(res.Embeddings) != len(res.Chunks) {
		t.Fatalf("embeddings/chunks mismatch: %d vs %d", len(res.Embeddings), len(res.Chunks))
	}

	store, err := vector.NewStore(8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Load(storeDir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Size() != 2 {
		t.Fatalf("persisted store size = %d, want 2", store.Size())
	}
}

func TestIngestMetadataOrdinals(t *testing.T) {
	dir := t.TempDir()

	// Uniform 12-character words so one document crosses the emit threshold
	// exactly once and yields two chunks.
	var b strings.Builder
	for i := 0; b.Len() < 930; i++ {
		b.WriteString("section")
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString("zzz ")
	}
	writeFile(t, dir, "handbook.txt", strings.TrimSpace(b.String()))

	p := NewPipeline(embedding.NewMockEmbedder(4), 500, 50, nil)
	res, err := p.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(res.Chunks))
	}
	for i, m := range res.Metadata {
		if m.Source != "handbook.txt" {
			t.Fatalf("metadata[%d].Source = %q", i, m.Source)
		}
		if m.ChunkIndex != i {
			t.Fatalf("metadata[%d].ChunkIndex = %d", i, m.ChunkIndex)
		}
		if !filepath.IsAbs(m.Path) {
			t.Fatalf("metadata[%d].Path %q is not absolute", i, m.Path)
		}
	}
}

func TestIngestSkipsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "supported content here")
	writeFile(t, dir, "image.png", "\x89PNG")
	writeFile(t, dir, "binary.exe", "MZ")

	p := NewPipeline(embedding.NewMockEmbedder(4), 500, 50, nil)
	res, err := p.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Files != 1 || res.Skipped != 2 {
		t.Fatalf("Files/Skipped = %d/%d, want 1/2", res.Files, res.Skipped)
	}
}

func TestIngestEmptyDirectory(t *testing.T) {
	p := NewPipeline(embedding.NewMockEmbedder(4), 500, 50, nil)

	storeDir := filepath.Join(t.TempDir(), "vector_store")
	res, err := p.IngestDirectory(context.Background(), t.TempDir(), storeDir)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if len(res.Chunks) != 0 {
		t.Fatalf("got %d chunks from empty dir", len(res.Chunks))
	}

	// An empty snapshot is still a complete snapshot.
	store, err := vector.NewStore(4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Load(storeDir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Size() != 0 {
		t.Fatalf("store size = %d, want 0", store.Size())
	}
}

func TestIngestMissingDirectory(t *testing.T) {
	p := NewPipeline(embedding.NewMockEmbedder(4), 500, 50, nil)
	if _, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIngestEmbedFailureKeepsChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "content that should still be chunked")

	p := NewPipeline(&failingEmbedder{dims: 4}, 500, 50, nil)
	res, err := p.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Chunks) == 0 || len(res.Metadata) != len(res.Chunks) {
		t.Fatalf("chunks/metadata not kept: %d/%d", len(res.Chunks), len(res.Metadata))
	}
	if len(res.Embeddings) != 0 {
		t.Fatalf("expected empty embeddings, got %d", len(res.Embeddings))
	}

	if _, err := p.IngestDirectory(context.Background(), dir, filepath.Join(t.TempDir(), "vs")); err == nil {
		t.Fatal("IngestDirectory should fail when embedding fails")
	}
}

func TestRebuildReturnsPopulatedStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha knowledge")
	writeFile(t, dir, "b.txt", "beta knowledge")

	p := NewPipeline(embedding.NewMockEmbedder(6), 500, 50, nil)
	store, res, err := p.Rebuild(context.Background(), dir)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if store.Size() != len(res.Chunks) {
		t.Fatalf("store size %d != chunk count %d", store.Size(), len(res.Chunks))
	}
	if store.Size() != 2 {
		t.Fatalf("store size = %d, want 2", store.Size())
	}
}

type failingEmbedder struct{ dims int }

func (e *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding back-end unavailable")
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding back-end unavailable")
}

func (e *failingEmbedder) Dimensions() int { return e.dims }
func (e *failingEmbedder) Close() error    { return nil }
