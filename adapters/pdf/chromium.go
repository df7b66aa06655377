package docpdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-docgen/docgen"
)

// ChromiumEngine renders PDF output through a shared Chromium instance.
// With RemoteURL set it attaches to an already running browser over its
// DevTools endpoint; otherwise it launches BrowserPath.
type ChromiumEngine struct {
	BrowserPath string
	RemoteURL   string
	Headless    bool
	Timeout     time.Duration
	Args        []string
	BaseURL     string

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Start connects to or launches the browser and fails when it cannot be reached.
func (e *ChromiumEngine) Start(ctx context.Context) error {
	if e == nil {
		return docgen.NewError(docgen.KindInternal, "chromium engine is nil", nil)
	}
	if err := e.ensureBrowser(); err != nil {
		return err
	}

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(e.browserCtx)
	}()

	select {
	case err := <-started:
		if err != nil {
			_ = e.Close()
			return fmt.Errorf("chromium start: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = e.Close()
		return ctx.Err()
	}
}

// Render executes Chromium-based HTML-to-PDF rendering.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, docgen.NewError(docgen.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "chromium engine init failed", err)
	}

	htmlInput, err := documentBytes(req)
	if err != nil {
		return nil, err
	}
	settings := settingsOrDefault(req.Settings)
	params, err := buildPrintToPDFParams(settings)
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	htmlInput = injectBaseURL(htmlInput, e.BaseURL)

	var pdf []byte
	actions := []chromedp.Action{}
	if !settings.AllowCrossOrigin {
		actions = append(actions,
			network.Enable(),
			blockRemoteRequests(),
		)
	}

	actions = append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(htmlInput)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		if remote := strings.TrimSpace(e.RemoteURL); remote != "" {
			e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), remote)
		} else {
			options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
			if e.BrowserPath != "" {
				options = append(options, chromedp.ExecPath(e.BrowserPath))
			}
			options = append(options, chromedp.Flag("headless", e.Headless))
			options = append(options, allocatorOptionsFromArgs(e.Args)...)
			e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		}
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func documentBytes(req RenderRequest) ([]byte, error) {
	if len(req.HTML) > 0 {
		return req.HTML, nil
	}
	if req.SourcePath == "" {
		return nil, docgen.NewError(docgen.KindValidation, "render request has no document", nil)
	}
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "read mounted document", err)
	}
	return data, nil
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(baseTag), htmlInput[insertPos:]...)...)
		}
	}

	return append([]byte(baseTag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}

// blockRemoteRequests denies every http and https request; file and data
// URLs still load.
func blockRemoteRequests() *network.SetBlockedURLsParams {
	return network.SetBlockedURLs().WithURLPatterns([]*network.BlockPattern{
		{URLPattern: "http://*:*/*", Block: true},
		{URLPattern: "https://*:*/*", Block: true},
	})
}
