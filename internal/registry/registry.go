// Package registry implements the Gateway's Document Registry: a
// disk-persistent document_id -> Document mapping plus a name -> index
// map, with a monotonic version counter for optimistic-concurrency
// conflict detection. Grounded on the file-lock + atomic-rename pattern
// gofrs/flock is used for in the sibling pack repo's index store.
package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/config"
	"ragcorpus/internal/model"
)

// Registry is the authoritative metadata store mapping document ids to
// Documents. All operations are serialised by mu; the lock is held only
// across the in-memory mutation and the atomic write, never across
// network I/O (spec §4.4).
type Registry struct {
	mu      sync.Mutex
	cfg     config.RegistryConfig
	log     zerolog.Logger
	docs    map[string]*model.Document
	nameIdx map[string]string // document name (current or original) -> index name
	version int
	flock   *flock.Flock
}

// New constructs a Registry rooted at cfg.Dir, creating the directory
// and loading any existing documents.json + version file.
func New(cfg config.RegistryConfig, log zerolog.Logger) (*Registry, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindFatal, "create registry dir", err)
	}
	r := &Registry{
		cfg:     cfg,
		log:     log,
		docs:    make(map[string]*model.Document),
		nameIdx: make(map[string]string),
		flock:   flock.New(filepath.Join(cfg.Dir, ".registry.lock")),
	}
	if err := r.reloadLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) documentsPath() string { return filepath.Join(r.cfg.Dir, "documents.json") }
func (r *Registry) versionPath() string   { return filepath.Join(r.cfg.Dir, "version") }

type onDiskState struct {
	Documents map[string]*model.Document `json:"documents"`
	NameIndex map[string]string          `json:"name_index"`
}

// ReloadFromDisk re-reads documents.json and version from disk,
// discarding in-memory state. Idempotent under no concurrent writers
// (spec §8).
func (r *Registry) ReloadFromDisk() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked()
}

func (r *Registry) reloadLocked() error {
	b, err := os.ReadFile(r.documentsPath())
	if err != nil {
		if os.IsNotExist(err) {
			r.docs = make(map[string]*model.Document)
			r.nameIdx = make(map[string]string)
			r.version = 0
			return nil
		}
		return apperr.Wrap(apperr.KindFatal, "read registry documents", err)
	}
	var st onDiskState
	if err := json.Unmarshal(b, &st); err != nil {
		return apperr.Wrap(apperr.KindFatal, "parse registry documents", err)
	}
	if st.Documents == nil {
		st.Documents = make(map[string]*model.Document)
	}
	if st.NameIndex == nil {
		st.NameIndex = make(map[string]string)
	}
	r.docs = st.Documents
	r.nameIdx = st.NameIndex

	vb, err := os.ReadFile(r.versionPath())
	if err == nil {
		if v, perr := strconv.Atoi(string(vb)); perr == nil {
			r.version = v
		}
	}
	return nil
}

// persistLocked writes documents.json and version atomically (write a
// temp file, then rename over the target) while holding the advisory
// file lock for the duration of the mutation only.
func (r *Registry) persistLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LockTimeout)
	defer cancel()
	locked, err := r.flock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil || !locked {
		return apperr.Wrap(apperr.KindTransientInfra, "acquire registry lock", err)
	}
	defer r.flock.Unlock()

	st := onDiskState{Documents: r.docs, NameIndex: r.nameIdx}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindFatal, "marshal registry documents", err)
	}
	if err := atomicWrite(r.documentsPath(), b); err != nil {
		return apperr.Wrap(apperr.KindFatal, "write registry documents", err)
	}
	r.version++
	if err := atomicWrite(r.versionPath(), []byte(strconv.Itoa(r.version))); err != nil {
		return apperr.Wrap(apperr.KindFatal, "write registry version", err)
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Add inserts a new Document into the registry.
func (r *Registry) Add(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.DocumentID] = doc
	r.nameIdx[doc.Name] = doc.TextIndex
	if doc.OriginalName != "" {
		r.nameIdx[doc.OriginalName] = doc.TextIndex
	}
	return r.persistLocked()
}

// Get returns the Document for id, or apperr.ErrNotFound.
func (r *Registry) Get(id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// List returns all Documents in no particular order (they come from a
// map); callers that need a stable order sort by a field.
func (r *Registry) List() []*model.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// Update performs a conflict-checked, copy-on-write mutation of the
// Document with id, via fn. expectedVersion is the registry version the
// caller last observed; a mismatch against the current in-memory version
// returns apperr.ErrConflict (spec §4.4 conflict detection) without
// applying fn. The version file on disk is not re-read for the check.
func (r *Registry) Update(id string, expectedVersion int, fn func(*model.Document)) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expectedVersion >= 0 && expectedVersion != r.version {
		return nil, apperr.ErrConflict
	}
	d, ok := r.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *d
	fn(&cp)

	// Rename tolerance: preserve the old name as original_name and make
	// both old and new names resolve to the same index (spec §4.4).
	if cp.Name != d.Name {
		if cp.OriginalName == "" {
			cp.OriginalName = d.Name
		}
		r.nameIdx[cp.Name] = d.TextIndex
		r.nameIdx[cp.OriginalName] = d.TextIndex
	}
	r.docs[id] = &cp
	if err := r.persistLocked(); err != nil {
		return nil, err
	}
	out := cp
	return &out, nil
}

// Remove deletes the Document with id from the registry (the caller is
// responsible for cascading the delete to the Document Store). Idempotent:
// removing an absent id is not an error at the registry layer — callers
// surface 404 based on a prior Get.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		delete(r.nameIdx, d.Name)
		delete(r.nameIdx, d.OriginalName)
	}
	delete(r.docs, id)
	return r.persistLocked()
}

// ResolveIndexName returns the index name a document name (current or
// original) maps to, tolerating renames.
func (r *Registry) ResolveIndexName(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.nameIdx[name]
	return idx, ok
}

// Version returns the current version counter, the value
// CheckForConflicts and Update compare expectedVersion against.
func (r *Registry) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// CheckForConflicts reports whether expectedVersion is stale relative to
// the current in-memory version.
func (r *Registry) CheckForConflicts(expectedVersion int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return expectedVersion != r.version
}
