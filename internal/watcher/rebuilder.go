package watcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/ingest"
	"github.com/kotaehq/kotae/internal/retriever"
)

// Rebuilder re-ingests a collection's knowledge directory, persists the new
// snapshot and swaps the live store. Rebuilds for the same collection are
// serialized; a change arriving mid-rebuild waits its turn rather than racing
// the ingestion in flight.
type Rebuilder struct {
	pipeline *ingest.Pipeline
	registry *retriever.Registry
	cfg      *config.Config
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRebuilder wires an ingestion pipeline and a store registry together.
func NewRebuilder(pipeline *ingest.Pipeline, registry *retriever.Registry, cfg *config.Config, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{
		pipeline: pipeline,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Rebuild re-ingests org's knowledge directory and swaps the registry's
// store on success. Readers keep the old store until the swap.
func (r *Rebuilder) Rebuild(ctx context.Context, org string) error {
	lock := r.orgLock(org)
	lock.Lock()
	defer lock.Unlock()

	store, res, err := r.pipeline.Rebuild(ctx, r.cfg.KnowledgeDir(org))
	if err != nil {
		r.logger.Error("rebuild failed", zap.String("org", org), zap.Error(err))
		return err
	}
	if err := store.Save(r.cfg.StoreDir(org)); err != nil {
		r.logger.Error("rebuild snapshot save failed", zap.String("org", org), zap.Error(err))
		return err
	}
	r.registry.Replace(org, store)
	r.logger.Info("collection rebuilt",
		zap.String("org", org),
		zap.Int("files", res.Files),
		zap.Int("chunks", len(res.Chunks)))
	return nil
}

func (r *Rebuilder) orgLock(org string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[org]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[org] = lock
	}
	return lock
}
