// Package vector provides an in-memory flat vector store with k-nearest-neighbor
// search over squared Euclidean distance and snapshot persistence.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/models"
)

// ErrStoreNotFound is returned by Load when either snapshot artifact is missing.
// Callers treat it as "no knowledge yet", not a failure.
var ErrStoreNotFound = errors.New("vector store not found")

// Store holds chunk texts, metadata records, and embedding vectors as three
// parallel collections. Position i in each collection refers to the same
// entry; this ordinal identity is preserved across Save/Load.
type Store struct {
	dimension int
	chunks    []string
	metadata  []models.Metadata
	vectors   [][]float32
	mu        sync.RWMutex
	logger    *zap.Logger // optional; when set, logs degenerate cases
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for observability of degenerate cases (empty adds,
// empty-store searches).
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store with the given embedding dimension.
func NewStore(dimension int, opts ...StoreOption) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	s := &Store{dimension: dimension}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dimension returns the embedding dimension the store was created with.
func (s *Store) Dimension() int {
	return s.dimension
}

// Size returns the number of stored entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Add appends chunks, vectors, and metadata in order. All three slices must
// have equal length and every vector must match the store dimension; a
// violation rejects the whole call without partial insertion. An empty call
// is a no-op.
func (s *Store) Add(ctx context.Context, chunks []string, vectors [][]float32, metadata []models.Metadata) error {
	if len(chunks) != len(vectors) || len(chunks) != len(metadata) {
		return fmt.Errorf("length mismatch: %d chunks, %d vectors, %d metadata",
			len(chunks), len(vectors), len(metadata))
	}
	if len(chunks) == 0 {
		if s.logger != nil {
			s.logger.Warn("add called with no entries")
		}
		return nil
	}
	for i, vec := range vectors {
		if len(vec) != s.dimension {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(vec), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		vec := make([]float32, s.dimension)
		copy(vec, vectors[i])
		s.chunks = append(s.chunks, chunks[i])
		s.metadata = append(s.metadata, metadata[i])
		s.vectors = append(s.vectors, vec)
	}
	if s.logger != nil {
		s.logger.Info("entries added", zap.Int("count", len(chunks)), zap.Int("total", len(s.chunks)))
	}
	return nil
}

// Search returns up to min(k, Size()) entries ordered by ascending squared
// Euclidean distance to query. Equal distances keep insertion order. An empty
// store yields an empty result, never an error.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.RetrievedChunk, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.chunks) == 0 {
		if len(s.chunks) == 0 && s.logger != nil {
			s.logger.Warn("search on empty store")
		}
		return nil, nil
	}

	order := make([]int, len(s.vectors))
	dists := make([]float64, len(s.vectors))
	for i, vec := range s.vectors {
		order[i] = i
		dists[i] = SquaredL2(query, vec)
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	results := make([]models.RetrievedChunk, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		results[i] = models.RetrievedChunk{
			Chunk:    s.chunks[idx],
			Metadata: s.metadata[idx],
			Distance: dists[idx],
		}
	}
	return results, nil
}

// SquaredL2 returns the squared Euclidean distance between two vectors of
// equal length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
