package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/logging"
)

// CacheEntry is a stored summary. It is valid only while Timestamp equals the
// source's current modification time.
type CacheEntry struct {
	Timestamp  float64 `json:"timestamp"`
	Summary    string  `json:"summary"`
	TokenCount int     `json:"token_count"`
}

// CacheStore persists summaries keyed by absolute path.
type CacheStore interface {
	Load(ctx context.Context) (map[string]CacheEntry, error)
	// MergeAndPersist stores each entry whose key is absent or whose
	// timestamp is strictly newer than the stored one. Stored keys are never
	// removed.
	MergeAndPersist(ctx context.Context, entries map[string]CacheEntry) error
}

// Merge applies fresh onto stored with the cache merge rule and reports
// whether anything changed.
func Merge(stored, fresh map[string]CacheEntry) bool {
	changed := false
	for path, entry := range fresh {
		if old, ok := stored[path]; !ok || entry.Timestamp > old.Timestamp {
			stored[path] = entry
			changed = true
		}
	}
	return changed
}

const cacheSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["timestamp", "summary"],
    "properties": {
      "timestamp": {"type": "number"},
      "summary": {"type": "string"},
      "token_count": {"type": "integer", "minimum": 0}
    }
  }
}`

var cacheSchemaLoader = gojsonschema.NewStringLoader(cacheSchema)

// JSONCacheStore keeps the whole cache in one human-readable JSON file that
// is rewritten on every merge.
type JSONCacheStore struct {
	path   string
	logger *zap.Logger
}

// NewJSONCacheStore creates a store backed by path.
func NewJSONCacheStore(path string, logger *zap.Logger) *JSONCacheStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONCacheStore{path: path, logger: logger}
}

// Load reads the cache. A missing file is an empty cache; so is a file that
// does not parse or does not match the cache schema, which is logged.
func (s *JSONCacheStore) Load(ctx context.Context) (map[string]CacheEntry, error) {
	entries := make(map[string]CacheEntry)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	result, err := gojsonschema.Validate(cacheSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		s.logger.Warn("cache file unreadable, starting empty", logging.Key(logging.KeyRetrieve),
			zap.String("path", s.path), zap.Error(err))
		return entries, nil
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		s.logger.Warn("cache file invalid, starting empty", logging.Key(logging.KeyRetrieve),
			zap.String("path", s.path), zap.String("errors", strings.Join(problems, "; ")))
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("cache file unreadable, starting empty", logging.Key(logging.KeyRetrieve),
			zap.String("path", s.path), zap.Error(err))
		return make(map[string]CacheEntry), nil
	}
	return entries, nil
}

// MergeAndPersist re-reads the file, merges entries and writes it back.
func (s *JSONCacheStore) MergeAndPersist(ctx context.Context, entries map[string]CacheEntry) error {
	stored, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if !Merge(stored, entries) {
		return nil
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Cache backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// OpenCacheStore opens the configured backend under dir. On success the
// returned close function is non-nil.
func OpenCacheStore(ctx context.Context, backend, dir string, logger *zap.Logger) (CacheStore, func() error, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONCacheStore(filepath.Join(dir, "cache.json"), logger), func() error { return nil }, nil
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		store, err := NewSQLiteCacheStore(ctx, filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}
