package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/logging"
)

// DefaultChunkTokens is the default segment size used when splitting a source.
const DefaultChunkTokens = 2000

// IngestorConfig configures an Ingestor.
type IngestorConfig struct {
	ChunkTokens int // zero means DefaultChunkTokens
	Lister      ListerConfig
	Logger      *zap.Logger
}

// Ingestor turns a file or directory into one labeled block of summaries.
type Ingestor struct {
	model       Model
	store       CacheStore
	lister      *Lister
	summarizer  *Summarizer
	chunkTokens int
	logger      *zap.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(m Model, store CacheStore, config IngestorConfig) *Ingestor {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Lister.Logger == nil {
		config.Lister.Logger = logger
	}
	chunkTokens := config.ChunkTokens
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}

	return &Ingestor{
		model:       m,
		store:       store,
		lister:      NewLister(config.Lister),
		summarizer:  NewSummarizer(m, logger),
		chunkTokens: chunkTokens,
		logger:      logger,
	}
}

// Ingest summarizes path under tokenBudget and returns the labeled text. It
// never fails: a missing path, an unreadable file or a model error only costs
// that part of the output, and is logged.
func (in *Ingestor) Ingest(ctx context.Context, path string, tokenBudget int) string {
	listing, err := in.lister.List(path)
	if err != nil {
		in.logger.Info(fmt.Sprintf("The path %s does not exist.", path), logging.Key(logging.KeyRetrieve), zap.Error(err))
		return ""
	}
	if len(listing.Sources) == 0 {
		return ""
	}

	cache, err := in.store.Load(ctx)
	if err != nil {
		in.logger.Warn("failed to load cache", logging.Key(logging.KeyRetrieve), zap.Error(err))
		cache = make(map[string]CacheEntry)
	}

	fresh := make(map[string]CacheEntry)
	var blocks strings.Builder
	var included []string
	for _, src := range listing.Sources {
		if ctx.Err() != nil {
			break
		}

		text, err := readText(src.Path)
		if err != nil {
			in.logger.Info(fmt.Sprintf("Skipped %s due to %v", src.Name, err), logging.Key(logging.KeyRetrieve))
			continue
		}

		doc := Document{
			Path:    src.Path,
			Name:    src.Name,
			ModTime: src.ModTime,
			Chunks:  Split(text, in.chunkTokens, in.model.CountTokens),
		}
		entry, outcome, err := in.summarizer.Summarize(ctx, doc, tokenBudget, len(listing.Sources), cache)
		if err != nil {
			in.logger.Info(fmt.Sprintf("Skipped %s due to %v", src.Name, err), logging.Key(logging.KeyRetrieve))
			continue
		}
		if outcome == OutcomeSkipped {
			continue
		}
		if outcome != OutcomeCached {
			fresh[src.Path] = entry
		}

		fmt.Fprintf(&blocks, "--- %s ---\n%s\n\n", src.Name, entry.Summary)
		included = append(included, src.Name)
	}

	if err := in.store.MergeAndPersist(ctx, fresh); err != nil {
		in.logger.Warn("failed to persist cache", logging.Key(logging.KeyRetrieve), zap.Error(err))
	}

	if len(included) == 0 {
		return ""
	}

	var out strings.Builder
	if listing.Dir != "" {
		fmt.Fprintf(&out, "Files in **%s**:\n", filepath.Base(listing.Dir))
		for _, name := range included {
			fmt.Fprintf(&out, "- %s\n", name)
		}
		out.WriteString("\n")
	}
	out.WriteString(blocks.String())
	out.WriteString("---\n\n")
	return out.String()
}
