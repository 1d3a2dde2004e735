package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

// recordingIngester stores documents and hands out sequential ids.
type recordingIngester struct {
	mu   sync.Mutex
	docs []orchestrator.DocumentInput
	err  error
}

func (r *recordingIngester) AddDocuments(_ context.Context, docs []orchestrator.DocumentInput) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		r.docs = append(r.docs, d)
		ids[i] = filepath.Base(d.Metadata[MetaPath].(string))
	}
	return ids, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.md"), "Beta notes.")
	writeFile(t, filepath.Join(root, "a.txt"), "Alpha notes.")
	writeFile(t, filepath.Join(root, "sub", "c.TXT"), "Gamma notes.")
	writeFile(t, filepath.Join(root, "image.png"), "not text")
	writeFile(t, filepath.Join(root, ".git", "HEAD.txt"), "hidden")
	writeFile(t, filepath.Join(root, "big.txt"), "this file is larger than the limit")
	writeFile(t, filepath.Join(root, "binary.txt"), "\xff\xfe\x00")

	cfg := DefaultConfig()
	cfg.MaxFileSize = 20

	docs, skipped, err := LoadDir(context.Background(), root, cfg)
	require.NoError(t, err)

	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Metadata[MetaPath].(string))
		assert.Equal(t, sourceFile, d.Metadata[MetaSource])
	}
	assert.Equal(t, []string{"a.txt", "b.md", "sub/c.TXT"}, paths)
	assert.Equal(t, "Alpha notes.", docs[0].Content)
	assert.Equal(t, int64(len("Alpha notes.")), docs[0].Metadata[MetaSize])

	require.Len(t, skipped, 2)
	assert.Equal(t, filepath.Join(root, "big.txt"), skipped[0].Path)
	assert.ErrorIs(t, skipped[0].Err, ErrFileTooLarge)
	assert.Equal(t, filepath.Join(root, "binary.txt"), skipped[1].Path)
	assert.ErrorIs(t, skipped[1].Err, ErrNotText)
}

func TestLoadDir_Errors(t *testing.T) {
	_, _, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), DefaultConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x")
	_, _, err = LoadDir(context.Background(), file, DefaultConfig())
	assert.ErrorIs(t, err, ErrNotDirectory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = LoadDir(ctx, t.TempDir(), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.rst")
	writeFile(t, notes, "Plain notes.")

	doc, err := LoadFile(notes, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "Plain notes.", doc.Content)
	assert.Equal(t, filepath.ToSlash(notes), doc.Metadata[MetaPath])
	assert.Equal(t, sourceFile, doc.Metadata[MetaSource])
	assert.Equal(t, int64(12), doc.Metadata[MetaSize])

	binary := filepath.Join(dir, "binary.txt")
	writeFile(t, binary, "\xff\xfe\x00")
	_, err = LoadFile(binary, DefaultConfig())
	assert.ErrorIs(t, err, ErrNotText)

	_, err = LoadFile(notes, Config{MaxFileSize: 4})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = LoadFile(filepath.Join(dir, "missing.txt"), DefaultConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.txt"), "One.")
	writeFile(t, filepath.Join(root, "two.md"), "Two.")

	target := &recordingIngester{}
	ids, skipped, err := IngestDir(context.Background(), target, root, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{"one.txt", "two.md"}, ids)
	assert.Len(t, target.docs, 2)

	t.Run("empty directory adds nothing", func(t *testing.T) {
		ids, _, err := IngestDir(context.Background(), target, t.TempDir(), DefaultConfig())
		require.NoError(t, err)
		assert.Nil(t, ids)
	})

	t.Run("propagates ingester errors", func(t *testing.T) {
		boom := errors.New("store full")
		_, _, err := IngestDir(context.Background(), &recordingIngester{err: boom}, root, DefaultConfig())
		assert.ErrorIs(t, err, boom)
	})
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion")
		return Event{}
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	target := &recordingIngester{}

	cfg := DefaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	w, err := NewWatcher(dir, target, cfg, nil)
	require.NoError(t, err)
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	writeFile(t, filepath.Join(dir, "ignored.bin"), "binary")
	writeFile(t, filepath.Join(dir, "notes.md"), "Fresh notes.")

	ev := waitEvent(t, w)
	require.NoError(t, ev.Err)
	assert.Equal(t, filepath.Join(dir, "notes.md"), ev.Path)
	assert.Equal(t, "notes.md", ev.DocumentID)

	target.mu.Lock()
	defer target.mu.Unlock()
	require.Len(t, target.docs, 1)
	assert.Equal(t, "Fresh notes.", target.docs[0].Content)
}

func TestWatcher_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("rejected")

	cfg := DefaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	w, err := NewWatcher(dir, &recordingIngester{err: boom}, cfg, nil)
	require.NoError(t, err)
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	writeFile(t, filepath.Join(dir, "a.txt"), "A.")

	ev := waitEvent(t, w)
	assert.ErrorIs(t, ev.Err, boom)
	assert.Empty(t, ev.DocumentID)
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingIngester{}, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), &recordingIngester{}, DefaultConfig(), nil)
	require.NoError(t, err)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
