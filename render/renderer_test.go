package render

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
	"github.com/goliatone/go-docgen/docgen"
	"github.com/goliatone/go-docgen/resolver"
)

type stubSource struct {
	handle resolver.Handle
	err    error
	calls  int
}

func (s *stubSource) Resolve(ctx context.Context) (resolver.Handle, error) {
	_ = ctx
	s.calls++
	return s.handle, s.err
}

func engineSource(tier resolver.Tier, engine docpdf.Engine) *stubSource {
	return &stubSource{handle: resolver.Handle{Tier: tier, Engine: engine}}
}

func TestRenderer_RendersPDF(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	var seen docpdf.RenderRequest
	engine := docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		seen = req
		mounted, err := os.ReadFile(req.SourcePath)
		if err != nil {
			return nil, err
		}
		if string(mounted) != "<html>ok</html>" {
			return nil, errors.New("unexpected mounted document")
		}
		return []byte("%PDF-1.4"), nil
	})
	renderer := Renderer{Engines: engineSource(resolver.TierModule, engine), Surfaces: surfaces}

	artifact, err := renderer.Render(context.Background(), []byte("<html>ok</html>"), "Factura_A-1.pdf")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(artifact.Data) != "%PDF-1.4" || artifact.ContentType != docgen.ContentTypePDF || artifact.Filename != "Factura_A-1.pdf" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if seen.Settings != docgen.DefaultRenderSettings() {
		t.Fatalf("expected default settings, got %+v", seen.Settings)
	}
	if surfaces.Outstanding() != 0 {
		t.Fatalf("expected surface to be released")
	}
	if _, err := os.Stat(seen.SourcePath); !os.IsNotExist(err) {
		t.Fatalf("expected surface files to be removed, got %v", err)
	}
}

func TestRenderer_EngineUnavailableLeavesNoSurface(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	source := &stubSource{err: docgen.NewError(docgen.KindEngineUnavailable, "no pdf engine available", nil)}
	renderer := Renderer{Engines: source, Surfaces: surfaces}

	_, err := renderer.Render(context.Background(), []byte("<html></html>"), "x.pdf")
	if !docgen.IsEngineUnavailable(err) {
		t.Fatalf("expected engine unavailable to pass through, got %v", err)
	}
	if surfaces.Outstanding() != 0 {
		t.Fatalf("expected no orphaned surface, got %d", surfaces.Outstanding())
	}
	entries, err := os.ReadDir(surfaces.Root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty scratch root, got %d entries", len(entries))
	}
}

func TestRenderer_EngineFailure(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	cause := errors.New("tab crashed")
	engine := docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		return nil, cause
	})
	renderer := Renderer{Engines: engineSource(resolver.TierAmbient, engine), Surfaces: surfaces}

	_, err := renderer.Render(context.Background(), []byte("<html></html>"), "x.pdf")
	if !docgen.IsRenderEngine(err) {
		t.Fatalf("expected render engine error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped")
	}
	if !strings.Contains(err.Error(), "ambient") {
		t.Fatalf("expected tier in message, got %q", err.Error())
	}
	if surfaces.Outstanding() != 0 {
		t.Fatalf("expected surface to be released after failure")
	}
}

func TestRenderer_NonPDFPayload(t *testing.T) {
	for name, payload := range map[string][]byte{"empty": nil, "html": []byte("<html>")} {
		surfaces := &ScratchProvider{Root: t.TempDir()}
		engine := docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
			return payload, nil
		})
		renderer := Renderer{Engines: engineSource(resolver.TierComposite, engine), Surfaces: surfaces}

		if _, err := renderer.Render(context.Background(), []byte("<html></html>"), "x.pdf"); !docgen.IsRenderEngine(err) {
			t.Fatalf("%s: expected render engine error, got %v", name, err)
		}
		if surfaces.Outstanding() != 0 {
			t.Fatalf("%s: expected surface release", name)
		}
	}
}

func TestRenderer_EnginePanicReleasesSurface(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	engine := docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		panic("engine bug")
	})
	renderer := Renderer{Engines: engineSource(resolver.TierModule, engine), Surfaces: surfaces}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_, _ = renderer.Render(context.Background(), []byte("<html></html>"), "x.pdf")
	}()
	if surfaces.Outstanding() != 0 {
		t.Fatalf("expected surface release on panic")
	}
}

func TestRenderer_CanceledContext(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	engine := docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		cancel()
		return nil, ctx.Err()
	})
	renderer := Renderer{Engines: engineSource(resolver.TierModule, engine), Surfaces: surfaces}

	_, err := renderer.Render(ctx, []byte("<html></html>"), "x.pdf")
	if docgen.KindFromError(err) != docgen.KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestRenderer_MaxHTMLBytes(t *testing.T) {
	source := engineSource(resolver.TierModule, docpdf.EngineFunc(func(ctx context.Context, req docpdf.RenderRequest) ([]byte, error) {
		return []byte("%PDF"), nil
	}))
	renderer := Renderer{Engines: source, Surfaces: &ScratchProvider{Root: t.TempDir()}, MaxHTMLBytes: 4}

	_, err := renderer.Render(context.Background(), []byte("0123456789"), "x.pdf")
	if docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("expected no engine resolution for oversized input")
	}
}

func TestRenderer_MissingEngineSource(t *testing.T) {
	_, err := Renderer{}.Render(context.Background(), []byte("<html></html>"), "x.pdf")
	if docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSurface_ReleaseIsIdempotent(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	surface, err := surfaces.Acquire(context.Background(), []byte("<html></html>"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if surfaces.Outstanding() != 1 {
		t.Fatalf("expected one outstanding surface")
	}
	for i := 0; i < 3; i++ {
		if err := surface.Release(); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
	if surfaces.Outstanding() != 0 {
		t.Fatalf("expected counter to drop once, got %d", surfaces.Outstanding())
	}
}

func TestScratchProvider_IsolatesSurfaces(t *testing.T) {
	surfaces := &ScratchProvider{Root: t.TempDir()}
	a, err := surfaces.Acquire(context.Background(), []byte("a"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer a.Release()
	b, err := surfaces.Acquire(context.Background(), []byte("b"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer b.Release()
	if a.Dir == b.Dir {
		t.Fatalf("expected distinct surfaces")
	}
}
