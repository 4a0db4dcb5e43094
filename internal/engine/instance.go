package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/indexing"
	"github.com/gcbaptista/go-search-service/internal/persistence"
	"github.com/gcbaptista/go-search-service/internal/rules"
	"github.com/gcbaptista/go-search-service/internal/search"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
	"github.com/gcbaptista/go-search-service/store"
)

// IndexInstance holds all components and services for a single search index.
// It implements the services.IndexAccessor interface.
type IndexInstance struct {
	def       config.IndexDefinition
	createdAt time.Time
	engine    *index.Engine
	indexer   *indexing.Service
	searcher  *search.Service
	rules     *rules.Store
	meta      *store.MetadataStore
	logger    *zap.Logger
}

var _ services.IndexAccessor = (*IndexInstance)(nil)

// newIndexInstance wires the indexing, search and rule services around an opened
// index engine. meta may be nil for an instance whose metadata is not persisted.
func newIndexInstance(eng *index.Engine, rec store.IndexRecord, synonyms []model.SynonymGroup, pinned []model.PinnedRule,
	meta *store.MetadataStore, pool *ants.Pool, logger *zap.Logger) (*IndexInstance, error) {
	name := rec.Definition.Name
	logger = logger.With(zap.String("index", name))

	var persister rules.Persister
	if meta != nil {
		persister = meta
	}
	ruleStore := rules.NewStore(name, synonyms, pinned, persister)

	indexer, err := indexing.NewService(eng, pool, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer service: %w", err)
	}
	searcher, err := search.NewService(eng, ruleStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	return &IndexInstance{
		def:       rec.Definition.Clone(),
		createdAt: rec.CreatedAt,
		engine:    eng,
		indexer:   indexer,
		searcher:  searcher,
		rules:     ruleStore,
		meta:      meta,
		logger:    logger,
	}, nil
}

// Definition returns the schema of the index, in declaration order.
func (i *IndexInstance) Definition() config.IndexDefinition {
	return i.def.Clone()
}

// syncMetadata records the current document count after a successful commit. A
// failure leaves the engine state in place and is reported as a MetadataWarning.
func (i *IndexInstance) syncMetadata() error {
	if i.meta == nil {
		return nil
	}
	count := i.engine.Snapshot().NumDocs()
	if err := i.meta.UpdateDocumentCount(i.def.Name, count); err != nil {
		i.logger.Warn("document count not persisted", zap.Int("count", count), zap.Error(err))
		return internalErrors.NewMetadataWarning(i.def.Name, err)
	}
	return nil
}

// IndexDocuments adds or replaces documents.
func (i *IndexInstance) IndexDocuments(ctx context.Context, docs []model.RawDocument) (int, error) {
	n, err := i.indexer.IndexDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	return n, i.syncMetadata()
}

// DeleteDocument removes a single document.
func (i *IndexInstance) DeleteDocument(ctx context.Context, id string) error {
	if err := i.indexer.DeleteDocument(ctx, id); err != nil {
		return err
	}
	return i.syncMetadata()
}

// Bulk applies index and delete operations in one commit.
func (i *IndexInstance) Bulk(ctx context.Context, ops []model.BulkOperation) (model.BulkResponse, error) {
	resp, err := i.indexer.Bulk(ctx, ops)
	if err != nil {
		return resp, err
	}
	if resp.Successful == 0 {
		return resp, nil
	}
	return resp, i.syncMetadata()
}

// GetDocument returns the stored fields of a document.
func (i *IndexInstance) GetDocument(id string) (model.Document, error) {
	return i.indexer.GetDocument(id)
}

// Search delegates to the underlying search service.
func (i *IndexInstance) Search(ctx context.Context, req services.SearchRequest) (services.SearchResult, error) {
	return i.searcher.Search(ctx, req)
}

// MultiSearch delegates to the underlying search service.
func (i *IndexInstance) MultiSearch(ctx context.Context, req services.MultiSearchRequest) (services.MultiSearchResult, error) {
	return i.searcher.MultiSearch(ctx, req)
}

// Suggest delegates to the underlying search service.
func (i *IndexInstance) Suggest(req model.SuggestRequest) (model.SuggestResponse, error) {
	return i.searcher.Suggest(req)
}

// Stats describes the current state of the index.
func (i *IndexInstance) Stats() (model.IndexStats, error) {
	snap := i.engine.Snapshot()
	stats := model.IndexStats{
		Name:          i.def.Name,
		DocumentCount: snap.NumDocs(),
		SegmentCount:  snap.SegmentCount(),
		Fields:        i.def.FieldStats(),
		CreatedAt:     i.createdAt,
	}
	if dir := i.engine.Dir(); dir != "" {
		size, err := persistence.DirSize(dir)
		if err != nil {
			return model.IndexStats{}, internalErrors.NewEngineError(i.def.Name, "stats", err)
		}
		stats.SizeBytes = size
	}
	return stats, nil
}

// close waits for in-flight writers and rejects every later document or rule write,
// so accessors still held by requests cannot outlive a deletion.
func (i *IndexInstance) close() {
	i.rules.Close()
	i.engine.Close()
}

// destroy closes the instance and removes the index data from disk.
func (i *IndexInstance) destroy() error {
	i.close()
	return i.engine.Destroy()
}
