package storefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/natefinch/atomic"
)

// Store keeps transient objects on disk under Root.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem-backed object store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put writes the object atomically, then its metadata sidecar.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta docgen.ObjectMeta) (docgen.ObjectRef, error) {
	if err := s.check(key); err != nil {
		return docgen.ObjectRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return docgen.ObjectRef{}, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return docgen.ObjectRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(pathOnDisk), 0o755); err != nil {
		return docgen.ObjectRef{}, err
	}

	counter := &countingReader{r: r}
	if err := atomic.WriteFile(pathOnDisk, counter); err != nil {
		return docgen.ObjectRef{}, docgen.NewError(docgen.KindInternal, fmt.Sprintf("write object %q", key), err)
	}

	meta.Size = counter.count
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}

	if err := s.writeMeta(pathOnDisk, meta); err != nil {
		_ = os.Remove(pathOnDisk)
		return docgen.ObjectRef{}, err
	}

	return docgen.ObjectRef{Key: key, Meta: meta}, nil
}

// Open reads an object from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, docgen.ObjectMeta, error) {
	_ = ctx
	if err := s.check(key); err != nil {
		return nil, docgen.ObjectMeta{}, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, docgen.ObjectMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, docgen.ObjectMeta{}, docgen.NewError(docgen.KindNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return nil, docgen.ObjectMeta{}, err
	}

	meta := s.readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}

	return file, meta, nil
}

// Delete removes an object and its metadata.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if err := s.check(key); err != nil {
		return err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(metaPath(pathOnDisk))
	return nil
}

// Sweep removes objects created before the cutoff, such as leftovers of an
// interrupted process, and returns how many were removed.
func (s *Store) Sweep(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.Root == "" {
		return 0, docgen.NewError(docgen.KindValidation, "store root is required", nil)
	}
	removed := 0
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		created := s.readMeta(p).CreatedAt
		if created.IsZero() {
			created = info.ModTime()
		}
		if created.Before(before) {
			_ = os.Remove(p)
			_ = os.Remove(metaPath(p))
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Store) check(key string) error {
	if s == nil {
		return docgen.NewError(docgen.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return docgen.NewError(docgen.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return docgen.NewError(docgen.KindValidation, "object key is required", nil)
	}
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", docgen.NewError(docgen.KindValidation, "invalid object key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) && target != root {
		return "", docgen.NewError(docgen.KindValidation, "object key escapes root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(pathOnDisk string, meta docgen.ObjectMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return atomic.WriteFile(metaPath(pathOnDisk), bytes.NewReader(payload))
}

func (s *Store) readMeta(pathOnDisk string) docgen.ObjectMeta {
	data, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return docgen.ObjectMeta{}
	}
	var meta docgen.ObjectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return docgen.ObjectMeta{}
	}
	return meta
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

const metaSuffix = ".meta.json"

func metaPath(pathOnDisk string) string {
	return pathOnDisk + metaSuffix
}

type countingReader struct {
	r     io.Reader
	count int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.count += int64(n)
	return n, err
}
