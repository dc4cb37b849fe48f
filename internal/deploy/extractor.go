// Package deploy writes the files a model reply describes to disk.
//
// A deployable reply labels each file with its name in bold on a line of its
// own, followed by a fenced code block holding the file:
//
//	**main.py**
//	```python
//	print("hi")
//	```
package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const fence = "```"

var (
	markerRe     = regexp.MustCompile(`^\*\*(.+)\*\*$`)
	unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// ExtractAndWrite scans response once, writing each labeled fenced block to
// dest/<name>. A label applies to the next block only; blocks with no label
// are dropped. A block that cannot be written does not stop the scan. It
// returns the paths written, in order, and the joined write errors.
func ExtractAndWrite(response, dest string) ([]string, error) {
	var (
		written []string
		errs    []error
		name    string
		block   []string
		inFence bool
	)

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			if !inFence {
				inFence = true
				block = block[:0]
				continue
			}
			inFence = false
			if name == "" {
				continue
			}
			path, err := writeBlock(dest, name, block)
			name = ""
			if err != nil {
				errs = append(errs, err)
				continue
			}
			written = append(written, path)
			continue
		}

		if inFence {
			block = append(block, line)
			continue
		}
		if m := markerRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			name = SanitizeName(m[1])
		}
	}
	return written, errors.Join(errs...)
}

// SanitizeName keeps only letters, digits, dot, underscore and hyphen.
func SanitizeName(name string) string {
	return unsafeNameRe.ReplaceAllString(name, "")
}

func writeBlock(dest, name string, lines []string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dest, base)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}
