package docpdf

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-docgen/docgen"
)

// WKHTMLToImageRasterizer captures a page with wkhtmltoimage.
type WKHTMLToImageRasterizer struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Available reports whether the command resolves to an executable.
func (r WKHTMLToImageRasterizer) Available() error {
	_, err := exec.LookPath(r.command())
	return err
}

// Rasterize runs wkhtmltoimage against the mounted file, or stdin when the
// request has no source path, and returns the JPEG written to stdout.
func (r WKHTMLToImageRasterizer) Rasterize(ctx context.Context, req RenderRequest) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.arguments(settingsOrDefault(req.Settings))
	input := "-"
	if req.SourcePath != "" {
		input = req.SourcePath
	}
	args = append(args, input, "-")

	cmd := exec.CommandContext(cmdCtx, r.command(), args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	if input == "-" {
		cmd.Stdin = bytes.NewReader(req.HTML)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltoimage failed"
		}
		return nil, docgen.NewError(docgen.KindInternal, message, err)
	}
	return stdout.Bytes(), nil
}

func (r WKHTMLToImageRasterizer) command() string {
	if cmd := strings.TrimSpace(r.Command); cmd != "" {
		return cmd
	}
	return "wkhtmltoimage"
}

func (r WKHTMLToImageRasterizer) arguments(settings docgen.RenderSettings) []string {
	args := []string{
		"--quiet",
		"--format", "jpg",
		"--quality", strconv.Itoa(settings.JPEGQualityPercent()),
		"--zoom", strconv.FormatFloat(settings.RasterScale, 'f', -1, 64),
		"--enable-local-file-access",
	}
	return append(args, r.Args...)
}
