package docdelivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-docgen/docgen"
)

// Mode selects how the user receives the artifact.
type Mode string

const (
	// ModeDownload saves the artifact under its suggested filename.
	ModeDownload Mode = "attachment"
	// ModePreview opens the artifact in a new viewing context.
	ModePreview Mode = "inline"
)

// ParseMode maps a disposition query value to a Mode. Empty means download.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "attachment", "download":
		return ModeDownload, nil
	case "inline", "preview":
		return ModePreview, nil
	default:
		return "", docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported disposition %q", value), nil)
	}
}

// ReferenceHeader carries the transient key of the delivered object.
const ReferenceHeader = "X-Document-Ref"

// Adapter delivers artifacts to an HTTP client.
type Adapter struct {
	References *References
	Logger     docgen.Logger
}

// Download delivers the artifact as an attachment.
func (a Adapter) Download(ctx context.Context, w http.ResponseWriter, artifact docgen.Artifact) error {
	return a.Deliver(ctx, w, artifact, ModeDownload)
}

// Preview delivers the artifact inline.
func (a Adapter) Preview(ctx context.Context, w http.ResponseWriter, artifact docgen.Artifact) error {
	return a.Deliver(ctx, w, artifact, ModePreview)
}

// Deliver creates a reference, streams it to w and releases it exactly once,
// including when streaming fails or panics.
func (a Adapter) Deliver(ctx context.Context, w http.ResponseWriter, artifact docgen.Artifact, mode Mode) error {
	if w == nil {
		return docgen.NewError(docgen.KindValidation, "delivery requires a response writer", nil)
	}
	if len(artifact.Data) == 0 {
		return docgen.NewError(docgen.KindValidation, "nothing to deliver", nil)
	}
	if mode != ModeDownload && mode != ModePreview {
		return docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported delivery mode %q", mode), nil)
	}
	if a.References == nil {
		return docgen.NewError(docgen.KindValidation, "delivery requires references", nil)
	}
	logger := docgen.LoggerOrNop(a.Logger)

	ref, err := a.References.Create(ctx, artifact)
	if err != nil {
		return err
	}
	defer func() {
		if err := ref.Release(); err != nil {
			logger.Errorf("release reference %s: %v", ref.Key, err)
		}
	}()

	reader, meta, err := a.References.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer reader.Close()

	setDeliveryHeaders(w, mode, ref.Key, artifact.Filename, meta)
	w.WriteHeader(http.StatusOK)

	tw := &trackingWriter{writer: w}
	if _, err := io.Copy(tw, reader); err != nil {
		logger.Errorf("deliver %s failed after %d bytes: %v", artifact.Filename, tw.count, err)
		return docgen.NewError(docgen.KindInternal, "delivery interrupted", err)
	}
	logger.Debugf("delivered %s as %s (%d bytes)", artifact.Filename, mode, tw.count)
	return nil
}

func setDeliveryHeaders(w http.ResponseWriter, mode Mode, key, filename string, meta docgen.ObjectMeta) {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := docgen.SanitizeFilename(filename)
	if name == "" {
		name = "document"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=\"%s\"", mode, name))
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(ReferenceHeader, key)
}

type trackingWriter struct {
	writer io.Writer
	count  int64
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	w.count += int64(n)
	return n, err
}
