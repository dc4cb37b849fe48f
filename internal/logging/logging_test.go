package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestNewWritesKeyedJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger := New(Options{FilePath: path})

	logger.Info("Ingesting...", Key(KeyToVim))
	logger.Debug("batch detected", Key(KeyDebug))
	logger.Info("prompt", Key(KeyToLLM), zap.Int("tokens", 12))
	_ = logger.Sync()

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ingesting...", entries[0]["log"])
	assert.Equal(t, KeyToVim, entries[0]["key"])
	assert.Equal(t, KeyToLLM, entries[1]["key"])
	assert.EqualValues(t, 12, entries[1]["tokens"])
	assert.Contains(t, entries[0], "timestamp")
}

func TestNewDebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger := New(Options{FilePath: path, Debug: true})

	logger.Debug("batch detected", Key(KeyDebug))
	_ = logger.Sync()

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "debug", entries[0]["level"])
}

func TestNewWithoutSinks(t *testing.T) {
	logger := New(Options{})
	assert.NotPanics(t, func() { logger.Info("dropped") })
}
