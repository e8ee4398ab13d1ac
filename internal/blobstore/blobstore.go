// Package blobstore binds the generic objectstore.ObjectStore contract to
// the platform's persisted-state layout: blobs/{doc_id}/{original_filename}
// (spec §6). The append-only-during-ingest policy (spec §5) is enforced
// here: Put always targets a fresh key, and the only mutation path is
// DeleteDocument, which removes a document's blob prefix one key at a
// time. The removal is not atomic: it stops at the first failed delete
// and leaves the remaining keys in place.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"ragcorpus/internal/objectstore"
)

// Store is the raw-file half of the Document Store (spec §4.1's blob
// storage responsibility, kept as a thin adapter over ObjectStore).
type Store struct {
	backend objectstore.ObjectStore
}

func New(backend objectstore.ObjectStore) *Store {
	return &Store{backend: backend}
}

func key(docID, filename string) string {
	return fmt.Sprintf("blobs/%s/%s", docID, filename)
}

// PutSource persists the raw uploaded bytes for a document at intake
// (pipeline step 1). Returns the object's ETag.
func (s *Store) PutSource(ctx context.Context, docID, filename string, r io.Reader, contentType string) (string, error) {
	return s.backend.Put(ctx, key(docID, filename), r, objectstore.PutOptions{
		ContentType: contentType,
	})
}

// GetSource retrieves the raw bytes previously stored for a document.
func (s *Store) GetSource(ctx context.Context, docID, filename string) (objectstore.ObjectAttrs, []byte, error) {
	rc, attrs, err := s.backend.Get(ctx, key(docID, filename))
	if err != nil {
		return objectstore.ObjectAttrs{}, nil, err
	}
	defer rc.Close()
	buf := make([]byte, 0, attrs.Size)
	tmp := make([]byte, 32*1024)
	for {
		n, rerr := rc.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return attrs, buf, nil
}

// DeleteDocument removes every blob stored under a document's prefix,
// the only mutation the blob store permits outside of ingest (spec §5).
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	prefix := fmt.Sprintf("blobs/%s/", docID)
	res, err := s.backend.List(ctx, objectstore.ListOptions{Prefix: prefix})
	if err != nil {
		return err
	}
	for _, obj := range res.Objects {
		if err := s.backend.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}
