package resolver

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
)

var chromeCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// ChromiumOptions carries the browser settings shared by the ambient and module tiers.
type ChromiumOptions struct {
	Args          []string
	RenderTimeout time.Duration
	BaseURL       string
}

// AmbientChromium attaches to a browser already running at a DevTools URL.
func AmbientChromium(remoteURL string, opts ChromiumOptions) Loader {
	return LoaderFunc(TierAmbient, func(ctx context.Context) (docpdf.Engine, error) {
		endpoint := strings.TrimSpace(remoteURL)
		if endpoint == "" {
			return nil, errors.New("no ambient browser endpoint configured")
		}
		return startChromium(ctx, &docpdf.ChromiumEngine{
			RemoteURL: endpoint,
			Timeout:   opts.RenderTimeout,
			BaseURL:   opts.BaseURL,
		})
	})
}

// ModuleChromium launches Chromium from path, CHROME_BIN, or the first browser on PATH.
func ModuleChromium(path string, opts ChromiumOptions) Loader {
	return LoaderFunc(TierModule, func(ctx context.Context) (docpdf.Engine, error) {
		browser, err := findChromium(path)
		if err != nil {
			return nil, err
		}
		return startChromium(ctx, &docpdf.ChromiumEngine{
			BrowserPath: browser,
			Headless:    true,
			Timeout:     opts.RenderTimeout,
			Args:        opts.Args,
			BaseURL:     opts.BaseURL,
		})
	})
}

// CompositeWKHTML pairs wkhtmltoimage with the gofpdf page builder.
func CompositeWKHTML(rasterizer docpdf.WKHTMLToImageRasterizer) Loader {
	return LoaderFunc(TierComposite, func(ctx context.Context) (docpdf.Engine, error) {
		if err := rasterizer.Available(); err != nil {
			return nil, err
		}
		return docpdf.CompositeEngine{Rasterizer: rasterizer, Builder: docpdf.GofpdfBuilder{}}, nil
	})
}

// RemoteGotenberg prefers the convert route and falls back to screenshot plus gofpdf.
// Both routes are checked while loading; a resolved engine never switches route.
func RemoteGotenberg(client *docpdf.GotenbergClient) Loader {
	return FirstOf(TierRemote, GotenbergConvert(client), GotenbergScreenshot(client))
}

// GotenbergConvert loads the all-in-one remote Chromium route.
func GotenbergConvert(client *docpdf.GotenbergClient) Loader {
	return LoaderFunc(TierRemote, func(ctx context.Context) (docpdf.Engine, error) {
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		if err := client.CheckConvert(ctx); err != nil {
			return nil, err
		}
		return docpdf.GotenbergEngine{Client: client}, nil
	})
}

// GotenbergScreenshot pairs the remote screenshot route with the gofpdf page builder.
func GotenbergScreenshot(client *docpdf.GotenbergClient) Loader {
	return LoaderFunc(TierRemote, func(ctx context.Context) (docpdf.Engine, error) {
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		if err := client.CheckScreenshot(ctx); err != nil {
			return nil, err
		}
		return docpdf.CompositeEngine{Rasterizer: docpdf.GotenbergRasterizer{Client: client}, Builder: docpdf.GofpdfBuilder{}}, nil
	})
}

func startChromium(ctx context.Context, engine *docpdf.ChromiumEngine) (docpdf.Engine, error) {
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

func findChromium(path string) (string, error) {
	candidates := []string{strings.TrimSpace(path), strings.TrimSpace(os.Getenv("CHROME_BIN"))}
	candidates = append(candidates, chromeCandidates...)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if found, err := exec.LookPath(candidate); err == nil {
			return found, nil
		}
	}
	return "", errors.New("no chromium binary found")
}
