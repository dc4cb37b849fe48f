package indexer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/logging"
	"github.com/ChamsBouzaiene/vimlm/internal/model"
	"github.com/ChamsBouzaiene/vimlm/internal/prompts"
)

// Model is the part of the model capability the summarizer needs.
type Model interface {
	Reset()
	Generate(ctx context.Context, prompt string, maxNew int, sink io.Writer) (model.Result, error)
	CountTokens(text string) int
}

// Document is a source file split into chunks for one ingestion.
type Document struct {
	Path    string
	Name    string
	ModTime float64
	Chunks  []string
}

// Outcome says how a summary was obtained.
type Outcome int

const (
	OutcomeSkipped  Outcome = iota // no chunks, nothing produced
	OutcomeVerbatim                // single chunk fit the budget
	OutcomeCached                  // valid cache entry reused
	OutcomeFolded                  // produced by the model
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerbatim:
		return "verbatim"
	case OutcomeCached:
		return "cached"
	case OutcomeFolded:
		return "folded"
	default:
		return "skipped"
	}
}

// Summarizer folds a document's chunks into one bounded summary.
type Summarizer struct {
	model  Model
	logger *zap.Logger
}

// NewSummarizer creates a Summarizer using m.
func NewSummarizer(m Model, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{model: m, logger: logger}
}

// Summarize produces the summary of doc. The document's share of tokenBudget
// is tokenBudget/docsInBatch; each chunk-level call gets
// tokenBudget/len(doc.Chunks). cache is only read.
func (s *Summarizer) Summarize(ctx context.Context, doc Document, tokenBudget, docsInBatch int, cache map[string]CacheEntry) (CacheEntry, Outcome, error) {
	if len(doc.Chunks) == 0 {
		return CacheEntry{}, OutcomeSkipped, nil
	}
	if docsInBatch < 1 {
		docsInBatch = 1
	}
	perDoc := max(tokenBudget/docsInBatch, 1)

	if len(doc.Chunks) == 1 {
		if n := s.model.CountTokens(doc.Chunks[0]); n <= perDoc {
			return CacheEntry{Timestamp: doc.ModTime, Summary: doc.Chunks[0], TokenCount: n}, OutcomeVerbatim, nil
		}
	}

	if entry, ok := cache[doc.Path]; ok && entry.Timestamp == doc.ModTime {
		return entry, OutcomeCached, nil
	}

	header := prompts.MustRender(prompts.IngestHeaderID, map[string]string{"name": doc.Name})
	perChunk := max(tokenBudget/len(doc.Chunks), 1)

	var accum strings.Builder
	volat := header
	for i, chunk := range doc.Chunks {
		s.model.Reset()
		prompt := prompts.MustRender(prompts.IngestID, map[string]string{
			"volat":    volat,
			"incoming": strings.TrimSpace(chunk),
		})
		res, err := s.model.Generate(ctx, prompt, perChunk, nil)
		if err != nil {
			return CacheEntry{}, OutcomeSkipped, fmt.Errorf("failed to summarize part %d of %s: %w", i+1, doc.Name, err)
		}

		partial := strings.TrimSpace(res.Text)
		accum.WriteString(partial)
		accum.WriteString(" ...\n")
		volat = prompts.MustRender(prompts.IngestVolatileID, map[string]string{
			"part":    strconv.Itoa(i + 1),
			"name":    doc.Name,
			"summary": partial,
		})
	}

	summary := accum.String()
	tokens := s.model.CountTokens(summary)
	if tokens > perDoc {
		s.model.Reset()
		prompt := prompts.MustRender(prompts.IngestID, map[string]string{
			"volat":    header,
			"incoming": summary,
		})
		res, err := s.model.Generate(ctx, prompt, perDoc, nil)
		if err != nil {
			return CacheEntry{}, OutcomeSkipped, fmt.Errorf("failed to fold summary of %s: %w", doc.Name, err)
		}
		summary = strings.TrimSpace(res.Text)
		tokens = s.model.CountTokens(summary)
	}

	s.logger.Debug("summarized document", logging.Key(logging.KeyRetrieve),
		zap.String("path", doc.Path), zap.Int("chunks", len(doc.Chunks)), zap.Int("tokens", tokens))
	return CacheEntry{Timestamp: doc.ModTime, Summary: summary, TokenCount: tokens}, OutcomeFolded, nil
}
