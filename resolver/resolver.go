// Package resolver locates a usable PDF engine by walking an ordered list of
// tiers and keeps the first one that loads for the rest of the process.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
	"github.com/goliatone/go-docgen/docgen"
	"golang.org/x/sync/singleflight"
)

// Tier identifies where an engine came from.
type Tier int

const (
	TierAmbient Tier = iota + 1
	TierModule
	TierComposite
	TierRemote
)

func (t Tier) String() string {
	switch t {
	case TierAmbient:
		return "ambient"
	case TierModule:
		return "module"
	case TierComposite:
		return "composite"
	case TierRemote:
		return "remote"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Loader produces an engine for one tier or fails.
type Loader interface {
	Tier() Tier
	Load(ctx context.Context) (docpdf.Engine, error)
}

// LoaderFunc adapts a function to a Loader for the given tier.
func LoaderFunc(tier Tier, fn func(ctx context.Context) (docpdf.Engine, error)) Loader {
	return loaderFunc{tier: tier, fn: fn}
}

type loaderFunc struct {
	tier Tier
	fn   func(ctx context.Context) (docpdf.Engine, error)
}

func (l loaderFunc) Tier() Tier { return l.tier }

func (l loaderFunc) Load(ctx context.Context) (docpdf.Engine, error) {
	if l.fn == nil {
		return nil, errors.New("loader func is nil")
	}
	return l.fn(ctx)
}

// FirstOf tries alternative loaders for a single tier and keeps the first success.
func FirstOf(tier Tier, loaders ...Loader) Loader {
	return LoaderFunc(tier, func(ctx context.Context) (docpdf.Engine, error) {
		var errs []error
		for _, loader := range loaders {
			if loader == nil {
				continue
			}
			engine, err := loader.Load(ctx)
			if err == nil && engine != nil {
				return engine, nil
			}
			if err == nil {
				err = errors.New("loader returned no engine")
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, fmt.Errorf("%s: no loaders configured", tier)
		}
		return nil, errors.Join(errs...)
	})
}

// Handle is a resolved engine.
type Handle struct {
	Tier       Tier
	Engine     docpdf.Engine
	ResolvedAt time.Time
}

// Attempt records one failed tier of the latest resolution.
type Attempt struct {
	Tier Tier
	Err  error
}

// Resolver memoizes the first engine that loads.
type Resolver struct {
	Loaders     []Loader
	LoadTimeout time.Duration
	Logger      docgen.Logger
	Now         func() time.Time

	mu       sync.Mutex
	handle   *Handle
	attempts []Attempt
	group    singleflight.Group
}

// New creates a resolver over the loaders, in order.
func New(loaders ...Loader) *Resolver {
	return &Resolver{Loaders: loaders}
}

const resolveKey = "engine"

// Resolve returns the cached handle or runs a single in-flight resolution.
func (r *Resolver) Resolve(ctx context.Context) (Handle, error) {
	if r == nil {
		return Handle{}, docgen.NewError(docgen.KindInternal, "resolver is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if handle, ok := r.Cached(); ok {
		return handle, nil
	}

	// the shared resolution must outlive any single waiting caller
	resolveCtx := context.WithoutCancel(ctx)
	result := r.group.DoChan(resolveKey, func() (any, error) {
		return r.resolve(resolveCtx)
	})
	select {
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return Handle{}, res.Err
		}
		return res.Val.(Handle), nil
	}
}

// Cached reports the memoized handle, if any.
func (r *Resolver) Cached() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return Handle{}, false
	}
	return *r.handle, true
}

// Attempts returns the tier failures of the most recent resolution.
func (r *Resolver) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attempt(nil), r.attempts...)
}

// Close drops the cached handle and closes its engine when it holds resources.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	handle := r.handle
	r.handle = nil
	r.mu.Unlock()

	if handle == nil {
		return nil
	}
	if closer, ok := handle.Engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context) (Handle, error) {
	if handle, ok := r.Cached(); ok {
		return handle, nil
	}

	logger := docgen.LoggerOrNop(r.Logger)
	attempts := make([]Attempt, 0, len(r.Loaders))
	errs := make([]error, 0, len(r.Loaders))

	for _, loader := range r.Loaders {
		if loader == nil {
			continue
		}
		tier := loader.Tier()
		engine, err := r.load(ctx, loader)
		if err == nil && engine != nil {
			handle := Handle{Tier: tier, Engine: engine, ResolvedAt: r.now()}
			r.mu.Lock()
			r.handle = &handle
			r.attempts = attempts
			r.mu.Unlock()
			logger.Infof("pdf engine resolved from %s tier", tier)
			return handle, nil
		}
		if err == nil {
			err = errors.New("loader returned no engine")
		}

		loadErr := docgen.NewError(docgen.KindEngineLoad, fmt.Sprintf("%s tier failed to load", tier), err)
		logger.Debugf("%v", loadErr)
		attempts = append(attempts, Attempt{Tier: tier, Err: loadErr})
		errs = append(errs, loadErr)
	}

	r.mu.Lock()
	r.attempts = attempts
	r.mu.Unlock()

	logger.Errorf("no pdf engine available after %d tier(s)", len(attempts))
	return Handle{}, docgen.NewError(docgen.KindEngineUnavailable, "no pdf engine available", errors.Join(errs...))
}

func (r *Resolver) load(ctx context.Context, loader Loader) (engine docpdf.Engine, err error) {
	if r.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.LoadTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			engine = nil
			err = fmt.Errorf("loader panicked: %v", rec)
		}
	}()
	return loader.Load(ctx)
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
