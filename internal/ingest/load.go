package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

// Metadata keys set on ingested documents.
const (
	MetaPath   = "path"
	MetaSource = "source"
	MetaSize   = "size"
)

const sourceFile = "file"

var (
	// ErrNotDirectory indicates a root that is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrFileTooLarge indicates a file above Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrNotText indicates a file that is not valid UTF-8.
	ErrNotText = errors.New("file is not valid UTF-8 text")
)

// Ingester accepts documents. *orchestrator.ContextManager implements it.
type Ingester interface {
	AddDocuments(ctx context.Context, docs []orchestrator.DocumentInput) ([]string, error)
}

// Config selects and limits ingested files.
type Config struct {
	// Extensions lists accepted file extensions including the dot.
	Extensions []string
	// MaxFileSize skips larger files. 0 means no limit.
	MaxFileSize int64
	// Debounce is the quiet period before a changed file is ingested.
	Debounce time.Duration
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Extensions:  []string{".txt", ".md"},
		MaxFileSize: 10 << 20,
		Debounce:    500 * time.Millisecond,
	}
}

func (c Config) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(c.Extensions, ext)
}

// Skipped records a file LoadDir did not ingest.
type Skipped struct {
	Path string
	Err  error
}

// LoadDir reads every matching file under root in lexical path order.
// Hidden directories are not descended. Files that are too large or not
// text are reported in the skipped list rather than failing the load.
func LoadDir(ctx context.Context, root string, cfg Config) ([]orchestrator.DocumentInput, []Skipped, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var (
		docs    []orchestrator.DocumentInput
		skipped []Skipped
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !cfg.matches(path) {
			return nil
		}

		doc, err := readDocument(root, path, cfg.MaxFileSize)
		if errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrNotText) {
			skipped = append(skipped, Skipped{Path: path, Err: err})
			return nil
		}
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return docs, skipped, nil
}

// IngestDir loads root and adds its documents to target.
func IngestDir(ctx context.Context, target Ingester, root string, cfg Config) ([]string, []Skipped, error) {
	docs, skipped, err := LoadDir(ctx, root, cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return nil, skipped, nil
	}
	ids, err := target.AddDocuments(ctx, docs)
	return ids, skipped, err
}

// LoadFile reads a single file under the same checks LoadDir applies to each
// file: the size limit and UTF-8 validity. The path metadata is path itself.
// Extensions are not filtered.
func LoadFile(path string, cfg Config) (orchestrator.DocumentInput, error) {
	doc, err := readDocument("", path, cfg.MaxFileSize)
	if err != nil {
		return orchestrator.DocumentInput{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return doc, nil
}

// readDocument reads path and records it relative to root. An empty root
// records path unchanged.
func readDocument(root, path string, maxSize int64) (orchestrator.DocumentInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return orchestrator.DocumentInput{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return orchestrator.DocumentInput{}, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return orchestrator.DocumentInput{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return orchestrator.DocumentInput{}, err
	}
	if !utf8.Valid(data) {
		return orchestrator.DocumentInput{}, ErrNotText
	}

	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	return orchestrator.DocumentInput{
		Content: string(data),
		Metadata: map[string]any{
			MetaPath:   filepath.ToSlash(rel),
			MetaSource: sourceFile,
			MetaSize:   info.Size(),
		},
	}, nil
}
