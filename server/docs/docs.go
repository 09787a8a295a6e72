// Package docs owns the document manifest: the mapping from document id to
// file name and display title. Binary payloads live in blob storage; the
// manifest and the link records are independent namespaces, joined only at
// read time by document id.
package docs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/sealdrop/sealdrop/server/storage"
)

var ErrNotFound = errors.New("document not found")

// Document is one manifest entry.
type Document struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	Title      string `json:"title,omitempty"`
}

// Label returns the best display name for the document.
func (d *Document) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return d.FileName
}

// Library is the set of uploaded documents. The manifest is a single JSON
// file written with the same temp-then-rename discipline as link records.
type Library struct {
	log          logs.Log
	store        storage.Storage
	manifestPath string

	lock sync.Mutex
	docs map[string]*Document
}

func NewLibrary(log logs.Log, store storage.Storage, manifestPath string) (*Library, error) {
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return nil, fmt.Errorf("Failed to create manifest directory: %w", err)
	}
	l := &Library{
		log:          log,
		store:        store,
		manifestPath: manifestPath,
		docs:         map[string]*Document{},
	}
	raw, err := os.ReadFile(manifestPath)
	if err == nil {
		if err := json.Unmarshal(raw, &l.docs); err != nil {
			return nil, fmt.Errorf("Corrupt document manifest %v: %w", manifestPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return l, nil
}

// Upload stores the document content in the blob store and registers it in
// the manifest. The stored name is <id>.<ext>, with the extension taken from
// the original file name.
func (l *Library) Upload(content io.Reader, originalName, title string) (*Document, error) {
	id := uuid.NewString()
	ext := "bin"
	if i := strings.LastIndexByte(originalName, '.'); i >= 0 && i < len(originalName)-1 {
		ext = strings.ToLower(originalName[i+1:])
	}
	doc := &Document{
		DocumentID: id,
		FileName:   fmt.Sprintf("%v.%v", id, ext),
		Title:      strings.TrimSpace(title),
	}
	if err := storage.WriteFile(l.store, l.blobKey(doc), content); err != nil {
		return nil, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	l.docs[id] = doc
	if err := l.saveManifest(); err != nil {
		return nil, err
	}
	l.log.Infof("Uploaded document %v (%v)", id, originalName)
	return doc, nil
}

func (l *Library) Get(id string) (*Document, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	doc := l.docs[id]
	if doc == nil {
		return nil, ErrNotFound
	}
	c := *doc
	return &c, nil
}

// List returns all documents, newest manifest entries in no guaranteed
// order beyond a stable sort on file name.
func (l *Library) List() []*Document {
	l.lock.Lock()
	defer l.lock.Unlock()
	out := make([]*Document, 0, len(l.docs))
	for _, d := range l.docs {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// Open returns a stream over the document binary.
func (l *Library) Open(id string) (*storage.File, *Document, error) {
	doc, err := l.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := l.store.ReadFile(l.blobKey(doc))
	if err != nil {
		return nil, nil, err
	}
	return f, doc, nil
}

// Delete removes the binary and the manifest entry. Deleting an unknown id
// is not an error.
func (l *Library) Delete(id string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	doc := l.docs[id]
	if doc == nil {
		return nil
	}
	if err := l.store.DeleteFile(l.blobKey(doc)); err != nil {
		return err
	}
	delete(l.docs, id)
	if err := l.saveManifest(); err != nil {
		return err
	}
	l.log.Infof("Deleted document %v", id)
	return nil
}

// ContentType maps the stored file extension onto a MIME type for streaming.
func (d *Document) ContentType() string {
	if strings.HasSuffix(strings.ToLower(d.FileName), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (l *Library) blobKey(doc *Document) string {
	return "uploads/" + doc.FileName
}

// Caller must hold l.lock
func (l *Library) saveManifest() error {
	raw, err := json.MarshalIndent(l.docs, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%v.tmp%v", l.manifestPath, time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.manifestPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
