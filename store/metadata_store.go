// Package store persists index metadata and query rules in badger.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

const (
	indexPrefix    = "index/"
	synonymsPrefix = "synonyms/"
	pinnedPrefix   = "pinned/"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("metadata not found")

// IndexRecord is the persisted metadata of one index.
type IndexRecord struct {
	Definition    config.IndexDefinition `json:"definition"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	DocumentCount int                    `json:"document_count"`
}

// MetadataStore wraps a badger database holding index records, synonym groups and
// pinned rules.
type MetadataStore struct {
	db        *badger.DB
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.s.Errorf(strings.TrimSpace(msg), items...) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.s.Warnf(strings.TrimSpace(msg), items...) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.s.Debugf(strings.TrimSpace(msg), items...) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.s.Debugf(strings.TrimSpace(msg), items...) }

// OpenMetadataStore opens the badger database at path, creating the directory if it
// does not exist. With inMemory set path is ignored and nothing touches the disk.
func OpenMetadataStore(path string, inMemory bool, logger *zap.Logger) (*MetadataStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return &MetadataStore{db: db, logger: logger}, nil
}

// Close closes the database. Later calls return the result of the first one.
func (s *MetadataStore) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.db.Close() })
	return s.closeErr
}

// HealthCheck reports whether the database can serve reads.
func (s *MetadataStore) HealthCheck() error {
	return s.db.View(func(*badger.Txn) error { return nil })
}

func indexKey(name string) []byte    { return []byte(indexPrefix + name) }
func synonymsKey(name string) []byte { return []byte(synonymsPrefix + name) }
func pinnedKey(name string) []byte   { return []byte(pinnedPrefix + name) }

func (s *MetadataStore) put(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *MetadataStore) get(key []byte, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// PutIndex writes the record of an index.
func (s *MetadataStore) PutIndex(rec IndexRecord) error {
	return s.put(indexKey(rec.Definition.Name), rec)
}

// GetIndex reads the record of an index. A missing index returns ErrNotFound.
func (s *MetadataStore) GetIndex(name string) (IndexRecord, error) {
	var rec IndexRecord
	err := s.get(indexKey(name), &rec)
	return rec, err
}

// ListIndexes returns every index record ordered by name.
func (s *MetadataStore) ListIndexes() ([]IndexRecord, error) {
	var records []IndexRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec IndexRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", item.Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Definition.Name < records[j].Definition.Name
	})
	return records, nil
}

// UpdateDocumentCount sets the document count of an index and bumps its updated_at.
func (s *MetadataStore) UpdateDocumentCount(name string, count int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec IndexRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.DocumentCount = count
		rec.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(indexKey(name), data)
	})
}

// DeleteIndex removes the record, synonyms and pinned rules of an index in one
// transaction.
func (s *MetadataStore) DeleteIndex(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{indexKey(name), synonymsKey(name), pinnedKey(name)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveSynonyms replaces the synonym groups of an index.
func (s *MetadataStore) SaveSynonyms(name string, groups []model.SynonymGroup) error {
	if groups == nil {
		groups = []model.SynonymGroup{}
	}
	return s.put(synonymsKey(name), groups)
}

// LoadSynonyms returns the synonym groups of an index, or none if never saved.
func (s *MetadataStore) LoadSynonyms(name string) ([]model.SynonymGroup, error) {
	var groups []model.SynonymGroup
	if err := s.get(synonymsKey(name), &groups); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return groups, nil
}

// SavePinned replaces the pinned rules of an index.
func (s *MetadataStore) SavePinned(name string, rules []model.PinnedRule) error {
	if rules == nil {
		rules = []model.PinnedRule{}
	}
	return s.put(pinnedKey(name), rules)
}

// LoadPinned returns the pinned rules of an index, or none if never saved.
func (s *MetadataStore) LoadPinned(name string) ([]model.PinnedRule, error) {
	var rules []model.PinnedRule
	if err := s.get(pinnedKey(name), &rules); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return rules, nil
}
