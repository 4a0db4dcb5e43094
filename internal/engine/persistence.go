package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/index"
	"github.com/gcbaptista/go-search-service/store"
)

// loadIndexes opens every index recorded in the metadata store. An index whose data
// cannot be opened is skipped with a warning; the store itself failing is fatal.
func (e *Engine) loadIndexes() error {
	records, err := e.meta.ListIndexes()
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	e.logger.Info("loading indexes", zap.String("data_dir", e.dataDir), zap.Int("count", len(records)))

	for _, rec := range records {
		name := rec.Definition.Name
		instance, err := e.loadIndex(rec)
		if err != nil {
			e.logger.Warn("skipping index", zap.String("index", name), zap.Error(err))
			continue
		}
		e.indexes[name] = instance
		e.reconcile(rec, instance)
	}
	return nil
}

func (e *Engine) loadIndex(rec store.IndexRecord) (*IndexInstance, error) {
	name := rec.Definition.Name
	eng, err := index.Open(rec.Definition, e.indexDir(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open index data: %w", err)
	}
	synonyms, err := e.meta.LoadSynonyms(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load synonyms: %w", err)
	}
	pinned, err := e.meta.LoadPinned(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned rules: %w", err)
	}
	return newIndexInstance(eng, rec, synonyms, pinned, e.meta, e.pool, e.logger)
}

// reconcile writes back the actual document count when the recorded one is stale,
// which happens when the process stopped between an engine commit and its metadata
// update.
func (e *Engine) reconcile(rec store.IndexRecord, instance *IndexInstance) {
	actual := instance.engine.Snapshot().NumDocs()
	if actual == rec.DocumentCount {
		return
	}
	e.logger.Info("reconciling document count",
		zap.String("index", rec.Definition.Name),
		zap.Int("recorded", rec.DocumentCount),
		zap.Int("actual", actual))
	if err := e.meta.UpdateDocumentCount(rec.Definition.Name, actual); err != nil {
		e.logger.Warn("document count not reconciled", zap.String("index", rec.Definition.Name), zap.Error(err))
	}
}
