package resolver

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
	"github.com/goliatone/go-docgen/docgen"
)

type countingLoader struct {
	tier   Tier
	err    error
	calls  int32
	delay  time.Duration
	engine docpdf.Engine
}

func (l *countingLoader) Tier() Tier { return l.tier }

func (l *countingLoader) Load(ctx context.Context) (docpdf.Engine, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	if l.engine != nil {
		return l.engine, nil
	}
	return docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		return []byte("%PDF-" + l.tier.String()), nil
	}), nil
}

func (l *countingLoader) Calls() int {
	return int(atomic.LoadInt32(&l.calls))
}

type closingEngine struct {
	closed bool
}

func (e *closingEngine) Render(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
	return []byte("%PDF"), nil
}

func (e *closingEngine) Close() error {
	e.closed = true
	return nil
}

func TestResolver_FirstSuccessfulTierWins(t *testing.T) {
	ambient := &countingLoader{tier: TierAmbient, err: errors.New("no browser")}
	module := &countingLoader{tier: TierModule}
	composite := &countingLoader{tier: TierComposite}
	remote := &countingLoader{tier: TierRemote}
	r := New(ambient, module, composite, remote)

	handle, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if handle.Tier != TierModule {
		t.Fatalf("expected module tier, got %s", handle.Tier)
	}
	if composite.Calls() != 0 || remote.Calls() != 0 {
		t.Fatalf("expected later tiers to stay untouched")
	}

	attempts := r.Attempts()
	if len(attempts) != 1 || attempts[0].Tier != TierAmbient {
		t.Fatalf("expected one failed ambient attempt, got %+v", attempts)
	}
	if docgen.KindFromError(attempts[0].Err) != docgen.KindEngineLoad {
		t.Fatalf("expected engine_load attempt, got %v", attempts[0].Err)
	}
}

func TestResolver_Memoizes(t *testing.T) {
	module := &countingLoader{tier: TierModule}
	r := New(module)

	first, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if module.Calls() != 1 {
		t.Fatalf("expected a single load, got %d", module.Calls())
	}
	if !first.ResolvedAt.Equal(second.ResolvedAt) {
		t.Fatalf("expected the cached handle to be returned")
	}
	if _, ok := r.Cached(); !ok {
		t.Fatalf("expected cached handle")
	}
}

func TestResolver_AllTiersFail(t *testing.T) {
	loaders := []*countingLoader{
		{tier: TierAmbient, err: errors.New("a")},
		{tier: TierModule, err: errors.New("b")},
		{tier: TierComposite, err: errors.New("c")},
		{tier: TierRemote, err: errors.New("d")},
	}
	r := New(loaders[0], loaders[1], loaders[2], loaders[3])

	_, err := r.Resolve(context.Background())
	if !docgen.IsEngineUnavailable(err) {
		t.Fatalf("expected engine unavailable, got %v", err)
	}
	for _, loader := range loaders {
		if loader.Calls() != 1 {
			t.Fatalf("expected every tier to be tried once, %s tried %d", loader.tier, loader.Calls())
		}
		if !errors.Is(err, loader.err) {
			t.Fatalf("expected joined error to include %s failure", loader.tier)
		}
	}
	if _, ok := r.Cached(); ok {
		t.Fatalf("expected nothing cached after failure")
	}
	if len(r.Attempts()) != 4 {
		t.Fatalf("expected four attempts, got %d", len(r.Attempts()))
	}

	loaders[3].err = nil
	handle, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("expected a later resolve to retry, got %v", err)
	}
	if handle.Tier != TierRemote {
		t.Fatalf("expected remote tier, got %s", handle.Tier)
	}
}

func TestResolver_AttemptsFollowTierOrder(t *testing.T) {
	loaders := []*countingLoader{
		{tier: TierAmbient, err: errors.New("no browser endpoint")},
		{tier: TierModule, err: errors.New("no chromium binary")},
		{tier: TierComposite, err: errors.New("no wkhtmltoimage")},
		{tier: TierRemote},
	}
	r := New(loaders[0], loaders[1], loaders[2], loaders[3])

	for i := 0; i < 3; i++ {
		handle, err := r.Resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if handle.Tier != TierRemote {
			t.Fatalf("expected remote tier, got %s", handle.Tier)
		}
	}

	want := []Tier{TierAmbient, TierModule, TierComposite}
	attempts := r.Attempts()
	if len(attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %+v", len(want), attempts)
	}
	for i, attempt := range attempts {
		if attempt.Tier != want[i] {
			t.Fatalf("attempt %d: expected %s, got %s", i, want[i], attempt.Tier)
		}
		if !errors.Is(attempt.Err, loaders[i].err) {
			t.Fatalf("attempt %d: expected %v, got %v", i, loaders[i].err, attempt.Err)
		}
	}
	for _, loader := range loaders {
		if loader.Calls() != 1 {
			t.Fatalf("expected %s loaded once across resolves, got %d", loader.tier, loader.Calls())
		}
	}
}

func TestResolver_LoaderPanicAdvances(t *testing.T) {
	panicking := LoaderFunc(TierAmbient, func(ctx context.Context) (docpdf.Engine, error) {
		panic("boom")
	})
	r := New(panicking, &countingLoader{tier: TierComposite})

	handle, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if handle.Tier != TierComposite {
		t.Fatalf("expected composite tier, got %s", handle.Tier)
	}
}

func TestResolver_ConcurrentCallsShareResolution(t *testing.T) {
	module := &countingLoader{tier: TierModule, delay: 50 * time.Millisecond}
	r := New(module)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background()); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if module.Calls() != 1 {
		t.Fatalf("expected one load for concurrent callers, got %d", module.Calls())
	}
}

func TestResolver_CallerCancellation(t *testing.T) {
	module := &countingLoader{tier: TierModule, delay: 100 * time.Millisecond}
	r := New(module)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestResolver_Close(t *testing.T) {
	engine := &closingEngine{}
	r := New(&countingLoader{tier: TierAmbient, engine: engine})
	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !engine.closed {
		t.Fatalf("expected engine to be closed")
	}
	if _, ok := r.Cached(); ok {
		t.Fatalf("expected cache to be cleared")
	}
}

func TestFirstOf(t *testing.T) {
	first := &countingLoader{tier: TierModule, err: errors.New("configured path missing")}
	second := &countingLoader{tier: TierModule}
	loader := FirstOf(TierModule, first, second)
	if loader.Tier() != TierModule {
		t.Fatalf("expected module tier")
	}
	engine, err := loader.Load(context.Background())
	if err != nil || engine == nil {
		t.Fatalf("expected second loader to succeed, got %v", err)
	}

	failing := FirstOf(TierModule, first)
	if _, err := failing.Load(context.Background()); !errors.Is(err, first.err) {
		t.Fatalf("expected first loader error, got %v", err)
	}
}

func TestAmbientChromium_Unconfigured(t *testing.T) {
	if _, err := AmbientChromium("", ChromiumOptions{}).Load(context.Background()); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}

func TestCompositeWKHTML_MissingBinary(t *testing.T) {
	loader := CompositeWKHTML(docpdf.WKHTMLToImageRasterizer{Command: "/nonexistent/wkhtmltoimage"})
	if loader.Tier() != TierComposite {
		t.Fatalf("expected composite tier")
	}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

type gotenbergStub struct {
	convertOK    atomic.Bool
	screenshotOK atomic.Bool
	converts     atomic.Int32
	screenshots  atomic.Int32
}

func (g *gotenbergStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.WriteHeader(http.StatusOK)
	case "/forms/chromium/convert/html":
		g.converts.Add(1)
		if !g.convertOK.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	case "/forms/chromium/screenshot/html":
		g.screenshots.Add(1)
		if !g.screenshotOK.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 40, 20))
		draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
		_ = jpeg.Encode(w, img, nil)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRemoteGotenberg(t *testing.T) {
	stub := &gotenbergStub{}
	stub.convertOK.Store(true)
	stub.screenshotOK.Store(true)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	r := New(
		AmbientChromium("", ChromiumOptions{}),
		CompositeWKHTML(docpdf.WKHTMLToImageRasterizer{Command: "/nonexistent/wkhtmltoimage"}),
		RemoteGotenberg(docpdf.NewGotenbergClient(srv.URL, time.Second)),
	)
	handle, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if handle.Tier != TierRemote {
		t.Fatalf("expected remote tier, got %s", handle.Tier)
	}
	if _, ok := handle.Engine.(docpdf.GotenbergEngine); !ok {
		t.Fatalf("expected the convert route, got %T", handle.Engine)
	}
	pdf, err := handle.Engine.Render(context.Background(), docpdf.RenderRequest{HTML: []byte("<html></html>")})
	if err != nil || !docpdf.IsPDF(pdf) {
		t.Fatalf("expected remote pdf, got %q %v", pdf, err)
	}
	if stub.screenshots.Load() != 0 {
		t.Fatalf("expected screenshot route untouched, got %d calls", stub.screenshots.Load())
	}
}

func TestRemoteGotenberg_ScreenshotWhenConvertFailsToLoad(t *testing.T) {
	stub := &gotenbergStub{}
	stub.screenshotOK.Store(true)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	handle, err := New(RemoteGotenberg(docpdf.NewGotenbergClient(srv.URL, time.Second))).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := handle.Engine.(docpdf.CompositeEngine); !ok {
		t.Fatalf("expected screenshot composite, got %T", handle.Engine)
	}
	converts := stub.converts.Load()
	pdf, err := handle.Engine.Render(context.Background(), docpdf.RenderRequest{HTML: []byte("<html></html>")})
	if err != nil || !docpdf.IsPDF(pdf) {
		t.Fatalf("expected composed pdf, got %v", err)
	}
	if stub.converts.Load() != converts {
		t.Fatalf("expected no convert call during render")
	}
}

func TestRemoteGotenberg_ConversionFailureIsNotRetried(t *testing.T) {
	stub := &gotenbergStub{}
	stub.convertOK.Store(true)
	stub.screenshotOK.Store(true)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	handle, err := New(RemoteGotenberg(docpdf.NewGotenbergClient(srv.URL, time.Second))).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	stub.convertOK.Store(false)
	stub.screenshotOK.Store(false)
	converts, screenshots := stub.converts.Load(), stub.screenshots.Load()

	if _, err := handle.Engine.Render(context.Background(), docpdf.RenderRequest{HTML: []byte("<html></html>")}); err == nil {
		t.Fatalf("expected conversion error")
	}
	if got := stub.converts.Load() - converts; got != 1 {
		t.Fatalf("expected one convert call, got %d", got)
	}
	if got := stub.screenshots.Load() - screenshots; got != 0 {
		t.Fatalf("expected no screenshot call, got %d", got)
	}
}

func TestRemoteGotenberg_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(RemoteGotenberg(docpdf.NewGotenbergClient(srv.URL, time.Second))).Resolve(context.Background())
	if !docgen.IsEngineUnavailable(err) {
		t.Fatalf("expected engine unavailable, got %v", err)
	}
}
