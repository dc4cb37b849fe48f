package mailbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBatch(t *testing.T, dir string, values map[string]string) {
	t.Helper()
	for _, name := range RequiredFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(values[name]), 0644))
	}
}

func TestCompleteAndConsume(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Complete(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileFollowup), nil, 0644))
	writeBatch(t, dir, map[string]string{
		FileContext: "package main\n",
		FileYank:    "  x := 1\n",
		FileUser:    "explain\n",
		FileTree:    "/src/main.go\n",
	})
	assert.True(t, Complete(dir))

	b, err := Consume(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "package main", b.Context)
	assert.Equal(t, "x := 1", b.Yank)
	assert.Equal(t, "explain", b.User)
	assert.Equal(t, "/src/main.go", b.Tree)
	assert.True(t, b.Followup)
	assert.False(t, b.Quit)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, Complete(dir))
}

func TestConsumeQuitMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileQuit), nil, 0644))
	writeBatch(t, dir, map[string]string{FileUser: "bye"})

	b, err := Consume(dir)
	require.NoError(t, err)
	assert.True(t, b.Quit)
	assert.False(t, b.Followup)
	assert.Equal(t, "bye", b.User)
	assert.NoFileExists(t, filepath.Join(dir, FileQuit))
}

func TestConsumeMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileContext), nil, 0644))

	_, err := Consume(dir)
	require.Error(t, err)
	// Nothing is deleted when the set cannot be read.
	assert.FileExists(t, filepath.Join(dir, FileContext))
}

func TestTarget(t *testing.T) {
	const response = "/home/u/vimlm/watch_dir/response.md"
	const cwd = "/work"

	tests := []struct {
		name string
		tree string
		want Target
	}{
		{"regular file", "/src/app/main.go", Target{Dir: "/src/app", File: "main.go", Ext: "go"}},
		{"no extension", "/src/Makefile", Target{Dir: "/src", File: "Makefile"}},
		{"placeholder", "/src/.tmp", Target{Dir: "/src"}},
		{"response file", response, Target{Dir: cwd}},
		{"empty", "", Target{Dir: cwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequestBatch{Tree: tt.tree}.Target(response, cwd)
			assert.Equal(t, tt.want, got)
		})
	}
}
