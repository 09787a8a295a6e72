package docs

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/sealdrop/sealdrop/server/storage"
)

func setup(t *testing.T) (*Library, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewStorageFS(logs.NewTestingLog(t), filepath.Join(root, "blobs"))
	require.NoError(t, err)
	lib, err := NewLibrary(logs.NewTestingLog(t), store, filepath.Join(root, "manifest.json"))
	require.NoError(t, err)
	return lib, root
}

func TestLibrary(t *testing.T) {
	lib, root := setup(t)

	content := []byte("%PDF-1.7 fake document body")
	doc, err := lib.Upload(bytes.NewReader(content), "Contract Final.PDF", "Q1 Contract")
	require.NoError(t, err)
	require.NotEmpty(t, doc.DocumentID)
	require.Equal(t, doc.DocumentID+".pdf", doc.FileName)
	require.Equal(t, "Q1 Contract", doc.Title)
	require.Equal(t, "Q1 Contract", doc.Label())
	require.Equal(t, "application/pdf", doc.ContentType())

	got, err := lib.Get(doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, doc, got)

	_, err = lib.Get("no-such-id")
	require.ErrorIs(t, err, ErrNotFound)

	f, got, err := lib.Open(doc.DocumentID)
	require.NoError(t, err)
	raw, err := readAndClose(f)
	require.NoError(t, err)
	require.Equal(t, content, raw)
	require.Equal(t, doc.FileName, got.FileName)

	require.Len(t, lib.List(), 1)

	// The manifest survives a restart
	store, err := storage.NewStorageFS(logs.NewTestingLog(t), filepath.Join(root, "blobs"))
	require.NoError(t, err)
	lib2, err := NewLibrary(logs.NewTestingLog(t), store, filepath.Join(root, "manifest.json"))
	require.NoError(t, err)
	got, err = lib2.Get(doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, doc, got)

	// Delete is idempotent
	require.NoError(t, lib.Delete(doc.DocumentID))
	require.NoError(t, lib.Delete(doc.DocumentID))
	_, err = lib.Get(doc.DocumentID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, lib.List())
}

func TestLabelFallsBackToFileName(t *testing.T) {
	lib, _ := setup(t)
	doc, err := lib.Upload(bytes.NewReader([]byte("data")), "notes.txt", "")
	require.NoError(t, err)
	require.Equal(t, doc.FileName, doc.Label())
	require.Equal(t, "application/octet-stream", doc.ContentType())
}

func readAndClose(f *storage.File) ([]byte, error) {
	defer f.Reader.Close()
	buf := bytes.Buffer{}
	if _, err := buf.ReadFrom(f.Reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
