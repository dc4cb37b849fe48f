package indexer

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/vimlm/internal/model/modeltest"
)

var blockLabel = regexp.MustCompile(`(?m)^--- (.+) ---$`)

func newTestIngestor(t *testing.T, fake *modeltest.Fake, chunkTokens int) (*Ingestor, CacheStore) {
	t.Helper()
	store := NewJSONCacheStore(filepath.Join(t.TempDir(), "cache.json"), nil)
	return NewIngestor(fake, store, IngestorConfig{ChunkTokens: chunkTokens}), store
}

func TestIngestDirectoryTwoSmallFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("beta content\n"))
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("alpha file content\n"))

	fake := &modeltest.Fake{}
	ingestor, _ := newTestIngestor(t, fake, 0)

	out := ingestor.Ingest(context.Background(), dir, 2000)

	labels := blockLabel.FindAllStringSubmatch(out, -1)
	require.Len(t, labels, 2)
	assert.Equal(t, "a.txt", labels[0][1])
	assert.Equal(t, "b.txt", labels[1][1])
	assert.Contains(t, out, "--- a.txt ---\nalpha file content\n")
	assert.True(t, strings.HasPrefix(out, "Files in **"+filepath.Base(dir)+"**:\n- a.txt\n- b.txt\n\n"))
	assert.True(t, strings.HasSuffix(out, "---\n\n"))
	assert.Empty(t, fake.Calls)
}

func TestIngestUnmodifiedFileHitsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.md")
	writeFile(t, path, []byte("one two three\n\nfour five six\n\nseven eight nine\n"))

	fake := &modeltest.Fake{Default: "summary words here"}
	ingestor, store := newTestIngestor(t, fake, 3)
	ctx := context.Background()

	first := ingestor.Ingest(ctx, dir, 4)
	calls := len(fake.Calls)
	require.Positive(t, calls)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, entries, path)

	second := ingestor.Ingest(ctx, dir, 4)
	assert.Equal(t, first, second)
	assert.Len(t, fake.Calls, calls, "re-ingesting an unmodified file must not call the model")
}

func TestIngestSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.txt")
	writeFile(t, path, []byte("just this\n"))
	writeFile(t, filepath.Join(dir, "other.txt"), []byte("not this\n"))

	ingestor, _ := newTestIngestor(t, &modeltest.Fake{}, 0)
	out := ingestor.Ingest(context.Background(), path, 100)

	assert.Equal(t, "--- only.txt ---\njust this\n\n\n---\n\n", out)
}

func TestIngestMissingPath(t *testing.T) {
	ingestor, _ := newTestIngestor(t, &modeltest.Fake{}, 0)
	assert.Empty(t, ingestor.Ingest(context.Background(), filepath.Join(t.TempDir(), "gone"), 100))
}

func TestIngestSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.txt"), nil)
	writeFile(t, filepath.Join(dir, "ok.txt"), []byte("fine\n"))

	ingestor, _ := newTestIngestor(t, &modeltest.Fake{}, 0)
	out := ingestor.Ingest(context.Background(), dir, 100)

	assert.Contains(t, out, "--- ok.txt ---")
	assert.NotContains(t, out, "--- empty.txt ---")
	assert.True(t, strings.HasPrefix(out, "Files in **"+filepath.Base(dir)+"**:\n- ok.txt\n\n"))
	assert.NotContains(t, out, "empty.txt")
}

func TestIngestOnlyEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.txt"), nil)

	ingestor, _ := newTestIngestor(t, &modeltest.Fake{}, 0)
	assert.Empty(t, ingestor.Ingest(context.Background(), dir, 100))
}
