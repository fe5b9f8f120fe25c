package reconcile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"
)

// CollectorConfig bounds the corpus walk.
type CollectorConfig struct {
	Root       string
	Extensions []string // e.g. ".go", ".md"
	MaxFile    int      // per-file char cap
	MaxTotal   int      // total content budget
}

// hardIgnored directories are always skipped regardless of .gitignore.
var hardIgnored = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".engram":      true,
}

// Collect walks the corpus root and renders it as a single flat
// document: a file tree followed by truncated file contents, bounded by
// the per-file and total character caps. Honors the root's .gitignore.
func Collect(cfg CollectorConfig) (string, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.MaxFile <= 0 {
		cfg.MaxFile = 5000
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 700000
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	ignore := loadIgnore(cfg.Root)

	type corpusFile struct {
		rel  string
		size int64
	}
	var files []corpusFile

	err := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		rel, relErr := filepath.Rel(cfg.Root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if hardIgnored[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		info, infoErr := d.Info()
		var size int64
		if infoErr == nil {
			size = info.Size()
		}
		files = append(files, corpusFile{rel: rel, size: size})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk corpus: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	var b strings.Builder
	fmt.Fprintf(&b, "# Corpus: %s\n", filepath.Base(absOrSelf(cfg.Root)))
	fmt.Fprintf(&b, "Scanned: %s\n\n", time.Now().Format(time.RFC3339))

	b.WriteString("## File Tree\n")
	for _, f := range files {
		fmt.Fprintf(&b, "  %s (%d bytes)\n", f.rel, f.size)
	}
	fmt.Fprintf(&b, "\nTotal: %d files\n\n", len(files))

	b.WriteString("## File Contents\n")
	total := 0
	for _, f := range files {
		if total > cfg.MaxTotal {
			b.WriteString("\n[truncated: total budget reached]\n")
			break
		}
		content, readErr := os.ReadFile(filepath.Join(cfg.Root, filepath.FromSlash(f.rel)))
		if readErr != nil {
			fmt.Fprintf(&b, "\n[error reading %s: %v]\n", f.rel, readErr)
			continue
		}
		text := string(content)
		if len(text) > cfg.MaxFile {
			text = text[:cfg.MaxFile] + "\n... [truncated]"
		}
		fmt.Fprintf(&b, "\n--- FILE: %s ---\n%s\n", f.rel, text)
		total += len(text)
	}

	return b.String(), nil
}

func loadIgnore(root string) *gitignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
