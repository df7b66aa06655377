package render

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-docgen/docgen"
	fileatomic "github.com/natefinch/atomic"
)

// SurfaceFile is the name of the mounted document inside a surface.
const SurfaceFile = "index.html"

// Surface is an isolated scratch directory holding one document while it renders.
type Surface struct {
	Dir  string
	Path string

	once    sync.Once
	err     error
	release func() error
}

// Release removes the surface. Calls after the first return the first result.
func (s *Surface) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if s.release != nil {
			s.err = s.release()
		}
	})
	return s.err
}

// SurfaceProvider allocates render surfaces.
type SurfaceProvider interface {
	Acquire(ctx context.Context, html []byte) (*Surface, error)
}

// ScratchProvider allocates surfaces as temporary directories under Root.
type ScratchProvider struct {
	Root string

	outstanding atomic.Int64
}

// Acquire creates a fresh directory and writes the document into it.
func (p *ScratchProvider) Acquire(ctx context.Context, html []byte) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := p.Root
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "create surface root", err)
	}
	dir, err := os.MkdirTemp(root, "surface-*")
	if err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "create surface", err)
	}

	path := filepath.Join(dir, SurfaceFile)
	if err := fileatomic.WriteFile(path, bytes.NewReader(html)); err != nil {
		_ = os.RemoveAll(dir)
		return nil, docgen.NewError(docgen.KindInternal, "mount document", err)
	}

	p.outstanding.Add(1)
	return &Surface{
		Dir:  dir,
		Path: path,
		release: func() error {
			p.outstanding.Add(-1)
			return os.RemoveAll(dir)
		},
	}, nil
}

// Outstanding reports surfaces acquired and not yet released.
func (p *ScratchProvider) Outstanding() int64 {
	return p.outstanding.Load()
}
