// Package mailbox implements the editor side of the handshake: the editor
// drops one file per request field into a shared directory, and the watcher
// turns a complete set into a RequestBatch.
package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Mailbox file names.
const (
	FileContext  = "context"
	FileYank     = "yank"
	FileUser     = "user"
	FileTree     = "tree"
	FileFollowup = "followup"
	FileQuit     = "quit"

	// ResponseFile is the reply the editor displays.
	ResponseFile = "response.md"
)

// RequiredFiles are the files a batch needs, in the order the editor writes
// them. The last one triggers dispatch.
var RequiredFiles = []string{FileContext, FileYank, FileUser, FileTree}

// Placeholder is the file name an editor opens when there is no real file.
const Placeholder = ".tmp"

// RequestBatch is one request read from the mailbox.
type RequestBatch struct {
	ID       string
	Context  string
	Yank     string
	User     string
	Tree     string
	Followup bool
	Quit     bool
}

// Target is the file a request is about.
type Target struct {
	Dir  string
	File string
	Ext  string
}

// Target derives the current directory, file and extension from b.Tree. A
// tree naming the response file itself, or nothing, means there is no current
// file and dir is cwd. The placeholder name keeps dir but blanks file and ext.
func (b RequestBatch) Target(responsePath, cwd string) Target {
	tree := strings.TrimSpace(b.Tree)
	if tree == "" || filepath.Clean(tree) == filepath.Clean(responsePath) {
		return Target{Dir: cwd}
	}

	t := Target{Dir: filepath.Dir(tree), File: filepath.Base(tree)}
	if t.File == Placeholder {
		t.File = ""
		return t
	}
	t.Ext = strings.TrimPrefix(filepath.Ext(t.File), ".")
	return t
}

// Complete reports whether every required file exists in dir.
func Complete(dir string) bool {
	for _, name := range RequiredFiles {
		if !exists(filepath.Join(dir, name)) {
			return false
		}
	}
	return true
}

// Consume reads every required file and then removes them, along with the
// optional markers. Each value is trimmed.
func Consume(dir string) (RequestBatch, error) {
	values := make(map[string]string, len(RequiredFiles))
	for _, name := range RequiredFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return RequestBatch{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		values[name] = strings.TrimSpace(string(data))
	}
	for _, name := range RequiredFiles {
		if err := remove(filepath.Join(dir, name)); err != nil {
			return RequestBatch{}, err
		}
	}

	b := RequestBatch{
		ID:      uuid.NewString(),
		Context: values[FileContext],
		Yank:    values[FileYank],
		User:    values[FileUser],
		Tree:    values[FileTree],
	}

	var err error
	if b.Followup, err = consumeMarker(dir, FileFollowup); err != nil {
		return b, err
	}
	if b.Quit, err = consumeMarker(dir, FileQuit); err != nil {
		return b, err
	}
	return b, nil
}

// consumeMarker removes an optional marker file, reporting whether it was
// there.
func consumeMarker(dir, name string) (bool, error) {
	path := filepath.Join(dir, name)
	if !exists(path) {
		return false, nil
	}
	if err := remove(path); err != nil {
		return true, err
	}
	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
