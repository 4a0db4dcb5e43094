package indexing

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/metrics"
	"github.com/gcbaptista/go-search-service/model"
)

// Service implements the write path of a single index.
// Every mutating call commits before returning.
type Service struct {
	engine *index.Engine
	pool   *ants.Pool
	logger *zap.Logger
}

// NewService creates a new indexing Service. pool may be nil, in which case documents
// are converted sequentially.
func NewService(engine *index.Engine, pool *ants.Pool, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("index engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, pool: pool, logger: logger}, nil
}

func (s *Service) def() *config.IndexDefinition {
	return s.engine.Snapshot().Definition()
}

// IndexDocuments validates every document and then adds or replaces them in one
// commit. Nothing is written when any document is invalid. Within a batch the last
// occurrence of an id wins.
func (s *Service) IndexDocuments(ctx context.Context, raws []model.RawDocument) (int, error) {
	if len(raws) == 0 {
		return 0, internalErrors.NewValidationError("documents", "no documents provided")
	}
	if len(raws) > config.MaxDocumentsPerRequest {
		return 0, internalErrors.NewValidationError("documents",
			fmt.Sprintf("too many documents in one request (%d), maximum is %d", len(raws), config.MaxDocumentsPerRequest))
	}

	def := s.def()
	docs, err := ConvertBatch(s.pool, def, raws)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w := s.engine.Writer()
	for _, doc := range docs {
		w.Add(doc)
	}
	if _, err := w.Commit(); err != nil {
		s.logger.Error("commit failed", zap.String("index", def.Name), zap.Error(err))
		return 0, internalErrors.NewEngineError(def.Name, "commit", err)
	}

	metrics.IndexedDocumentsTotal.WithLabelValues(def.Name).Add(float64(len(docs)))
	s.logger.Debug("documents indexed", zap.String("index", def.Name), zap.Int("count", len(docs)))
	return len(docs), nil
}

// DeleteDocument removes a document by id.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	def := s.def()
	if err := ctx.Err(); err != nil {
		return err
	}

	w := s.engine.Writer()
	if !w.Delete(id) {
		w.Rollback()
		return internalErrors.NewDocumentNotFoundError(id, def.Name)
	}
	if _, err := w.Commit(); err != nil {
		s.logger.Error("commit failed", zap.String("index", def.Name), zap.Error(err))
		return internalErrors.NewEngineError(def.Name, "delete", err)
	}
	return nil
}

// Bulk applies a mixed list of index and delete operations. Each operation is
// validated on its own; invalid operations are reported in the response and every
// valid one is committed together.
func (s *Service) Bulk(ctx context.Context, ops []model.BulkOperation) (model.BulkResponse, error) {
	if len(ops) == 0 {
		return model.BulkResponse{}, internalErrors.NewValidationError("operations", "no operations provided")
	}
	if len(ops) > config.MaxBulkOperations {
		return model.BulkResponse{}, internalErrors.NewValidationError("operations",
			fmt.Sprintf("too many operations in one request (%d), maximum is %d", len(ops), config.MaxBulkOperations))
	}

	def := s.def()
	resp := model.BulkResponse{Total: len(ops)}

	// Convert the documents of every index operation up front, in parallel.
	var raws []model.RawDocument
	var rawPos []int
	for i, op := range ops {
		if op.Operation == "index" && op.Document != nil {
			raws = append(raws, *op.Document)
			rawPos = append(rawPos, i)
		}
	}
	converted := make(map[int]model.Document, len(raws))
	convErrs := make(map[int]error)
	docs, errs := convertEach(s.pool, def, raws)
	for j := range raws {
		if errs[j] != nil {
			convErrs[rawPos[j]] = errs[j]
			continue
		}
		converted[rawPos[j]] = docs[j]
	}

	if err := ctx.Err(); err != nil {
		return model.BulkResponse{}, err
	}

	fail := func(pos int, id, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, model.BulkError{Position: pos, ID: id, Error: reason})
	}

	w := s.engine.Writer()
	added := 0
	for i, op := range ops {
		switch op.Operation {
		case "index":
			if op.Document == nil {
				fail(i, op.ID, "index operation requires a document")
				continue
			}
			if err, bad := convErrs[i]; bad {
				fail(i, op.Document.ID, err.Error())
				continue
			}
			w.Add(converted[i])
			added++
			resp.Successful++
		case "delete":
			id := op.ID
			if id == "" && op.Document != nil {
				id = op.Document.ID
			}
			if id == "" {
				fail(i, "", "delete operation requires an id")
				continue
			}
			if !w.Delete(id) {
				fail(i, id, internalErrors.NewDocumentNotFoundError(id, def.Name).Error())
				continue
			}
			resp.Successful++
		default:
			fail(i, op.ID, fmt.Sprintf("unknown operation '%s' (must be index or delete)", op.Operation))
		}
	}

	if resp.Successful == 0 {
		w.Rollback()
		return resp, nil
	}
	if _, err := w.Commit(); err != nil {
		s.logger.Error("bulk commit failed", zap.String("index", def.Name), zap.Error(err))
		return model.BulkResponse{}, internalErrors.NewEngineError(def.Name, "bulk", err)
	}
	metrics.IndexedDocumentsTotal.WithLabelValues(def.Name).Add(float64(added))
	return resp, nil
}

// GetDocument returns the stored fields of a document.
func (s *Service) GetDocument(id string) (model.Document, error) {
	snap := s.engine.Snapshot()
	key, ok := snap.Lookup(id)
	if !ok {
		return model.Document{}, internalErrors.NewDocumentNotFoundError(id, snap.Definition().Name)
	}
	doc := snap.Doc(key)
	return model.Document{ID: doc.ID, Fields: snap.Definition().StoredFields(doc.Fields)}, nil
}
