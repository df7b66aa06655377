package docpdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-docgen/docgen"
)

const (
	gotenbergHealthPath     = "/health"
	gotenbergConvertPath    = "/forms/chromium/convert/html"
	gotenbergScreenshotPath = "/forms/chromium/screenshot/html"
	gotenbergIndexFile      = "index.html"
	cssPixelsPerInch        = 96.0
)

var gotenbergCheckDocument = []byte("<!doctype html><html><body></body></html>")

// GotenbergClient talks to a Gotenberg conversion service.
type GotenbergClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewGotenbergClient constructs a client with a bounded timeout.
func NewGotenbergClient(baseURL string, timeout time.Duration) *GotenbergClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GotenbergClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks if the remote service is available.
func (c *GotenbergClient) Ping(ctx context.Context) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return docgen.NewError(docgen.KindValidation, "gotenberg endpoint is not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(gotenbergHealthPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// CheckConvert converts an empty document and fails unless the route answers with a PDF.
func (c *GotenbergClient) CheckConvert(ctx context.Context) error {
	out, err := c.ConvertHTML(ctx, gotenbergCheckDocument, docgen.DefaultRenderSettings())
	if err != nil {
		return err
	}
	if !IsPDF(out) {
		return fmt.Errorf("gotenberg %s returned a non-pdf payload", gotenbergConvertPath)
	}
	return nil
}

// CheckScreenshot captures an empty document and fails unless the route answers with an image.
func (c *GotenbergClient) CheckScreenshot(ctx context.Context) error {
	out, err := c.Screenshot(ctx, gotenbergCheckDocument, docgen.DefaultRenderSettings())
	if err != nil {
		return err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(out)); err != nil {
		return fmt.Errorf("gotenberg %s returned an unreadable image: %w", gotenbergScreenshotPath, err)
	}
	return nil
}

// ConvertHTML converts the document into a PDF.
func (c *GotenbergClient) ConvertHTML(ctx context.Context, htmlInput []byte, settings docgen.RenderSettings) ([]byte, error) {
	settings = settingsOrDefault(settings)
	width, height, err := pageSizeInches(settings.PageSize)
	if err != nil {
		return nil, err
	}
	margin, err := parseLengthInches(settings.Margin)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		"paperWidth":      formatInches(width),
		"paperHeight":     formatInches(height),
		"marginTop":       formatInches(margin),
		"marginBottom":    formatInches(margin),
		"marginLeft":      formatInches(margin),
		"marginRight":     formatInches(margin),
		"landscape":       strconv.FormatBool(settings.Landscape),
		"printBackground": "true",
	}
	return c.post(ctx, gotenbergConvertPath, htmlInput, fields)
}

// Screenshot captures the full document as a JPEG sized to the printable width.
func (c *GotenbergClient) Screenshot(ctx context.Context, htmlInput []byte, settings docgen.RenderSettings) ([]byte, error) {
	settings = settingsOrDefault(settings)
	geo, err := geometryFor(settings)
	if err != nil {
		return nil, err
	}
	widthPx := int(geo.ContentWidth() / mmPerInch * cssPixelsPerInch)
	fields := map[string]string{
		"format":  "jpeg",
		"quality": strconv.Itoa(settings.JPEGQualityPercent()),
		"width":   strconv.Itoa(widthPx),
		"clip":    "false",
	}
	return c.post(ctx, gotenbergScreenshotPath, htmlInput, fields)
}

func (c *GotenbergClient) post(ctx context.Context, path string, htmlInput []byte, fields map[string]string) ([]byte, error) {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return nil, docgen.NewError(docgen.KindValidation, "gotenberg endpoint is not configured", nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", gotenbergIndexFile)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(htmlInput); err != nil {
		return nil, err
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gotenberg %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}

func (c *GotenbergClient) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *GotenbergClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// GotenbergEngine converts through the remote Chromium route.
type GotenbergEngine struct {
	Client *GotenbergClient
}

func (e GotenbergEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	htmlInput, err := documentBytes(req)
	if err != nil {
		return nil, err
	}
	return e.Client.ConvertHTML(ctx, htmlInput, req.Settings)
}

// GotenbergRasterizer captures through the remote screenshot route.
type GotenbergRasterizer struct {
	Client *GotenbergClient
}

func (r GotenbergRasterizer) Rasterize(ctx context.Context, req RenderRequest) ([]byte, error) {
	htmlInput, err := documentBytes(req)
	if err != nil {
		return nil, err
	}
	return r.Client.Screenshot(ctx, htmlInput, req.Settings)
}
