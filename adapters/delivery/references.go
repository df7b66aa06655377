// Package docdelivery hands rendered artifacts to the user through transient
// object references that are revoked as soon as the handoff ends.
package docdelivery

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/google/uuid"
)

// Reference is a live handle to a stored artifact.
type Reference struct {
	Key  string
	Meta docgen.ObjectMeta

	once   sync.Once
	err    error
	revoke func() error
}

// Release revokes the reference. Only the first call reaches the store.
func (r *Reference) Release() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		if r.revoke != nil {
			r.err = r.revoke()
		}
	})
	return r.err
}

// References creates and revokes transient object references.
type References struct {
	Store  docgen.ObjectStore
	NewKey func() string
	Prefix string

	live        atomic.Int64
	revocations atomic.Int64
}

// NewReferences creates references backed by store, or by memory when store is nil.
func NewReferences(store docgen.ObjectStore) *References {
	if store == nil {
		store = docgen.NewMemoryStore()
	}
	return &References{Store: store}
}

// Create stores the artifact under a fresh key.
func (r *References) Create(ctx context.Context, artifact docgen.Artifact) (*Reference, error) {
	if r == nil || r.Store == nil {
		return nil, docgen.NewError(docgen.KindValidation, "references require an object store", nil)
	}
	key := r.Prefix + r.newKey()
	ref, err := r.Store.Put(ctx, key, artifact.Reader(), docgen.ObjectMeta{
		ContentType: artifact.ContentType,
		Filename:    artifact.Filename,
	})
	if err != nil {
		return nil, err
	}

	r.live.Add(1)
	return &Reference{
		Key:  ref.Key,
		Meta: ref.Meta,
		revoke: func() error {
			r.live.Add(-1)
			r.revocations.Add(1)
			return r.Store.Delete(context.WithoutCancel(ctx), key)
		},
	}, nil
}

// Open resolves a reference to its bytes.
func (r *References) Open(ctx context.Context, ref *Reference) (io.ReadCloser, docgen.ObjectMeta, error) {
	if ref == nil {
		return nil, docgen.ObjectMeta{}, docgen.NewError(docgen.KindValidation, "reference is nil", nil)
	}
	return r.Store.Open(ctx, ref.Key)
}

// Live reports references created and not yet released.
func (r *References) Live() int64 {
	return r.live.Load()
}

// Revocations reports how many references have been released.
func (r *References) Revocations() int64 {
	return r.revocations.Load()
}

func (r *References) newKey() string {
	if r.NewKey != nil {
		return r.NewKey()
	}
	return uuid.NewString()
}
