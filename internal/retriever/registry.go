// Package retriever embeds queries and returns the nearest knowledge chunks
// for a named collection, loading persisted stores on first use.
package retriever

import (
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/vector"
)

// storeDirName is the snapshot directory inside each collection directory.
const storeDirName = "vector_store"

// Registry owns one vector store per collection. The first request for a
// collection loads its snapshot from disk exactly once; later requests reuse
// the loaded instance.
type Registry struct {
	dataDir   string
	dimension int
	logger    *zap.Logger

	mu     sync.Mutex
	stores map[string]*storeEntry
}

type storeEntry struct {
	once  sync.Once
	store *vector.Store
	err   error
}

// NewRegistry creates a registry rooted at dataDir. Stores are created with
// the given embedding dimension.
func NewRegistry(dataDir string, dimension int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dataDir:   dataDir,
		dimension: dimension,
		logger:    logger,
		stores:    make(map[string]*storeEntry),
	}
}

// Store returns the vector store for org, loading its persisted snapshot on
// first use. A missing snapshot leaves the store empty; that is "no knowledge
// yet", not an error. Initialization runs at most once per collection even
// under concurrent first use.
func (r *Registry) Store(org string) (*vector.Store, error) {
	r.mu.Lock()
	entry, ok := r.stores[org]
	if !ok {
		entry = &storeEntry{}
		r.stores[org] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		store, err := vector.NewStore(r.dimension, vector.WithLogger(r.logger))
		if err != nil {
			entry.err = err
			return
		}
		dir := filepath.Join(r.dataDir, org, storeDirName)
		if err := store.Load(dir); err != nil {
			if errors.Is(err, vector.ErrStoreNotFound) {
				r.logger.Warn("no persisted store for collection",
					zap.String("org", org), zap.String("dir", dir))
			} else {
				entry.err = err
				return
			}
		} else {
			r.logger.Info("collection store loaded",
				zap.String("org", org), zap.Int("entries", store.Size()))
		}
		entry.store = store
	})
	return entry.store, entry.err
}

// Replace swaps the store held for org, e.g. after a watcher-triggered
// rebuild. Subsequent Store calls return the new instance.
func (r *Registry) Replace(org string, store *vector.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &storeEntry{store: store}
	entry.once.Do(func() {})
	r.stores[org] = entry
}
