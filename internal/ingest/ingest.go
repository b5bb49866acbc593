// Package ingest turns a directory of knowledge documents into an embedded
// vector store snapshot.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/chunker"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/extract"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/vector"
)

// Result carries the three parallel collections produced by one run, ready to
// be handed to the vector store, plus per-file counts. Embeddings may be
// empty while Chunks is not when the embedding back-end failed; check before
// adding to a store.
type Result struct {
	Chunks     []string
	Embeddings [][]float32
	Metadata   []models.Metadata
	Files      int
	Skipped    int
}

// Pipeline reads documents, chunks them and embeds the chunks in one batch.
type Pipeline struct {
	extractor *extract.Extractor
	embedder  embedding.Embedder
	chunkSize int
	overlap   int
	logger    *zap.Logger
}

// NewPipeline builds a pipeline. Non-positive chunk sizes fall back to the
// chunker defaults.
func NewPipeline(embedder embedding.Embedder, chunkSize, overlap int, logger *zap.Logger) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultTargetSize
	}
	if overlap < 0 {
		overlap = chunker.DefaultOverlap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extract.NewExtractor(),
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

// Ingest processes every supported file directly under dir. Files that fail
// to extract are logged and skipped; a single bad document never aborts the
// run. All chunks are embedded in one batch after the last file; if that
// batch fails, Embeddings stays empty while Chunks and Metadata are kept.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	res := &Result{}
	for _, name := range names {
		if !extract.Supported(strings.ToLower(filepath.Ext(name))) {
			p.logger.Warn("skipping unsupported file", zap.String("file", name))
			res.Skipped++
			continue
		}
		path := filepath.Join(dir, name)
		text, err := p.extractor.Extract(path)
		if err != nil {
			p.logger.Warn("skipping unreadable document",
				zap.String("file", name), zap.Error(err))
			res.Skipped++
			continue
		}
		parts := chunker.Chunk(text, p.chunkSize, p.overlap)
		if len(parts) == 0 {
			p.logger.Warn("document produced no chunks", zap.String("file", name))
			res.Skipped++
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		for i, part := range parts {
			res.Chunks = append(res.Chunks, part)
			res.Metadata = append(res.Metadata, models.Metadata{
				Source:     name,
				ChunkIndex: i,
				Path:       abs,
			})
		}
		res.Files++
		p.logger.Info("document chunked",
			zap.String("file", name), zap.Int("chunks", len(parts)))
	}

	if len(res.Chunks) > 0 {
		vectors, err := p.embedder.EmbedBatch(ctx, res.Chunks)
		if err != nil {
			p.logger.Error("batch embedding failed",
				zap.Int("chunks", len(res.Chunks)), zap.Error(err))
		} else {
			res.Embeddings = vectors
		}
	}
	return res, nil
}

// IngestDirectory runs Ingest and persists the populated store to storeDir.
// An embedding failure surfaces here as an error since there is nothing
// useful to persist.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir, storeDir string) (*Result, error) {
	res, err := p.Ingest(ctx, dir)
	if err != nil {
		return nil, err
	}
	store, err := vector.NewStore(p.embedder.Dimensions(), vector.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	if len(res.Chunks) > 0 {
		if len(res.Embeddings) != len(res.Chunks) {
			return res, fmt.Errorf("embedding failed for %d chunks", len(res.Chunks))
		}
		if err := store.Add(ctx, res.Chunks, res.Embeddings, res.Metadata); err != nil {
			return res, err
		}
	}
	if err := store.Save(storeDir); err != nil {
		return res, fmt.Errorf("persist store: %w", err)
	}
	p.logger.Info("ingestion complete",
		zap.Int("files", res.Files),
		zap.Int("skipped", res.Skipped),
		zap.Int("chunks", len(res.Chunks)),
		zap.String("store", storeDir))
	return res, nil
}

// Rebuild ingests dir into a fresh in-memory store without touching disk,
// for watcher-triggered refreshes.
func (p *Pipeline) Rebuild(ctx context.Context, dir string) (*vector.Store, *Result, error) {
	res, err := p.Ingest(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	store, err := vector.NewStore(p.embedder.Dimensions(), vector.WithLogger(p.logger))
	if err != nil {
		return nil, nil, err
	}
	if len(res.Chunks) > 0 {
		if len(res.Embeddings) != len(res.Chunks) {
			return nil, res, fmt.Errorf("embedding failed for %d chunks", len(res.Chunks))
		}
		if err := store.Add(ctx, res.Chunks, res.Embeddings, res.Metadata); err != nil {
			return nil, res, err
		}
	}
	return store, res, nil
}
