package indexer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/docker/go-units"
	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/logging"
)

// binaryProbeSize is how many leading bytes must decode as UTF-8 for a file
// to count as text.
const binaryProbeSize = 1024

// Source is one file picked for ingestion.
type Source struct {
	Path    string  // absolute path
	Name    string  // base name
	ModTime float64 // Unix seconds with sub-second precision
	Size    int64
}

// ListerConfig configures a Lister.
type ListerConfig struct {
	// Ignore holds extra gitignore-style patterns applied on top of the
	// directory's own .gitignore.
	Ignore []string
	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64
	Logger       *zap.Logger
}

// Listing is the result of Lister.List. Dir is set when the listed path was a
// directory.
type Listing struct {
	Dir     string
	Sources []Source
}

// Lister picks the files of a directory that are worth summarizing.
type Lister struct {
	config ListerConfig
	logger *zap.Logger
}

// NewLister creates a Lister.
func NewLister(config ListerConfig) *Lister {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{config: config, logger: logger}
}

// List returns the eligible sources under path. A file path yields just that
// file. For a directory, entries come back in lexical order; hidden names,
// subdirectories, names without an extension, ignored names, oversized files
// and binary files are left out.
func (l *Lister) List(path string) (Listing, error) {
	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return Listing{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Listing{}, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return Listing{Sources: []Source{newSource(abs, info)}}, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return Listing{}, fmt.Errorf("failed to read directory %s: %w", abs, err)
	}

	matcher := l.ignoreMatcher(abs)
	var sources []Source
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.IsDir() || !strings.Contains(name, ".") {
			continue
		}
		if matcher.MatchesPath(name) {
			l.logger.Debug("skipped ignored file", logging.Key(logging.KeyRetrieve), zap.String("name", name))
			continue
		}

		full := filepath.Join(abs, name)
		fi, err := os.Stat(full)
		if err != nil || fi.IsDir() {
			l.logger.Info(fmt.Sprintf("Skipped %s due to %v", name, err), logging.Key(logging.KeyRetrieve))
			continue
		}
		if l.config.MaxFileBytes > 0 && fi.Size() > l.config.MaxFileBytes {
			l.logger.Info(fmt.Sprintf("Skipped %s (%s)", name, units.HumanSize(float64(fi.Size()))),
				logging.Key(logging.KeyRetrieve))
			continue
		}

		binary, err := IsBinary(full)
		if err != nil {
			l.logger.Info(fmt.Sprintf("Skipped %s due to %v", name, err), logging.Key(logging.KeyRetrieve))
			continue
		}
		if binary {
			continue
		}
		sources = append(sources, newSource(full, fi))
	}
	return Listing{Dir: abs, Sources: sources}, nil
}

func (l *Lister) ignoreMatcher(dir string) *gitignore.GitIgnore {
	patterns := append([]string(nil), l.config.Ignore...)
	lines, err := readGitignoreLines(filepath.Join(dir, ".gitignore"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Debug("failed to read .gitignore", zap.String("dir", dir), zap.Error(err))
	}
	patterns = append(patterns, lines...)
	return gitignore.CompileIgnoreLines(patterns...)
}

func newSource(path string, info os.FileInfo) Source {
	return Source{
		Path:    path,
		Name:    filepath.Base(path),
		ModTime: float64(info.ModTime().UnixNano()) / 1e9,
		Size:    info.Size(),
	}
}

// readGitignoreLines reads patterns from a .gitignore file.
func readGitignoreLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// IsBinary reports whether the first 1024 bytes of path fail to decode as
// UTF-8. A rune cut in half by the window does not count against the file.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binaryProbeSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	buf = buf[:n]
	if n == binaryProbeSize {
		buf = trimPartialRune(buf)
	}
	return !utf8.Valid(buf), nil
}

func trimPartialRune(buf []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		if utf8.RuneStart(buf[len(buf)-i]) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				return buf[:len(buf)-i]
			}
			break
		}
	}
	return buf
}

// readText reads a file as UTF-8, dropping invalid sequences.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
