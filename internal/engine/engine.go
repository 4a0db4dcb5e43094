// Package engine is the registry of indexes. It creates, loads and removes index
// instances and hands out accessors to them.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
	"github.com/gcbaptista/go-search-service/store"
)

const dataDirPerm = 0755

// Engine manages multiple search indexes.
// It implements the services.IndexManager interface.
type Engine struct {
	mu      sync.RWMutex
	indexes map[string]*IndexInstance
	dataDir string
	meta    *store.MetadataStore
	pool    *ants.Pool
	logger  *zap.Logger
}

var _ services.IndexManager = (*Engine)(nil)

// NewEngine creates the registry and loads every index recorded in meta. When dataDir
// is empty index data is kept in memory only. pool is shared by every index for
// document conversion and may be nil.
func NewEngine(dataDir string, meta *store.MetadataStore, pool *ants.Pool, logger *zap.Logger) (*Engine, error) {
	if meta == nil {
		return nil, fmt.Errorf("metadata store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	eng := &Engine{
		indexes: make(map[string]*IndexInstance),
		dataDir: dataDir,
		meta:    meta,
		pool:    pool,
		logger:  logger,
	}
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, dataDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
		}
	}
	if err := eng.loadIndexes(); err != nil {
		return nil, err
	}
	return eng, nil
}

// indexDir returns the directory holding the data of an index.
func (e *Engine) indexDir(name string) string {
	if e.dataDir == "" {
		return ""
	}
	return filepath.Join(e.dataDir, name)
}

// CreateIndex validates def and creates an empty index. The index directory and its
// metadata record are written before the index becomes visible.
func (e *Engine) CreateIndex(ctx context.Context, def config.IndexDefinition) error {
	if conflicts := def.Validate(); len(conflicts) > 0 {
		return internalErrors.NewValidationError("definition", strings.Join(conflicts, "; "))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.indexes[def.Name]; exists {
		return internalErrors.NewIndexAlreadyExistsError(def.Name)
	}

	def = def.Clone()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	rec := store.IndexRecord{Definition: def, CreatedAt: def.CreatedAt, UpdatedAt: def.CreatedAt}

	dir := e.indexDir(def.Name)
	if dir != "" {
		// Leftovers of a deleted index with the same name must not be loaded.
		if err := os.RemoveAll(dir); err != nil {
			return internalErrors.NewEngineError(def.Name, "create", err)
		}
		if err := os.MkdirAll(dir, dataDirPerm); err != nil {
			return internalErrors.NewEngineError(def.Name, "create", err)
		}
	}
	instance, err := newIndexInstance(index.New(def, dir), rec, nil, nil, e.meta, e.pool, e.logger)
	if err != nil {
		return internalErrors.NewEngineError(def.Name, "create", err)
	}
	if err := e.meta.PutIndex(rec); err != nil {
		if dir != "" {
			_ = os.RemoveAll(dir)
		}
		return internalErrors.NewEngineError(def.Name, "create", err)
	}

	e.indexes[def.Name] = instance
	e.logger.Info("index created", zap.String("index", def.Name), zap.Int("fields", len(def.Fields)))
	return nil
}

// GetIndex retrieves an index by its name.
func (e *Engine) GetIndex(name string) (services.IndexAccessor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	instance, exists := e.indexes[name]
	if !exists {
		return nil, internalErrors.NewIndexNotFoundError(name)
	}
	return instance, nil
}

// GetIndexDefinition returns the definition of an index as it was created.
func (e *Engine) GetIndexDefinition(name string) (config.IndexDefinition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	instance, exists := e.indexes[name]
	if !exists {
		return config.IndexDefinition{}, internalErrors.NewIndexNotFoundError(name)
	}
	return instance.Definition(), nil
}

// ListIndexes returns a summary of every index, sorted by name.
func (e *Engine) ListIndexes() []model.IndexInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]model.IndexInfo, 0, len(e.indexes))
	for name, instance := range e.indexes {
		infos = append(infos, model.IndexInfo{
			Name:          name,
			DocumentCount: instance.engine.Snapshot().NumDocs(),
			CreatedAt:     instance.createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// DeleteIndex removes an index together with its documents, rules and metadata.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	instance, exists := e.indexes[name]
	if !exists {
		return internalErrors.NewIndexNotFoundError(name)
	}
	// Writers are stopped before the metadata goes so none can persist rules or
	// documents for a name that no longer exists. A failed delete leaves the index
	// closed and listed; retrying completes it.
	instance.close()
	if err := e.meta.DeleteIndex(name); err != nil {
		return internalErrors.NewEngineError(name, "delete index", err)
	}
	delete(e.indexes, name)

	if err := instance.destroy(); err != nil {
		e.logger.Warn("index data not removed", zap.String("index", name), zap.Error(err))
		return internalErrors.NewEngineError(name, "delete index", err)
	}
	e.logger.Info("index deleted", zap.String("index", name))
	return nil
}
