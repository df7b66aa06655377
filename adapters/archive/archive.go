// Package docarchive bundles a rendered PDF with its stamped XML.
package docarchive

import (
	"bytes"
	"context"
	"time"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/klauspost/compress/zip"
)

// Member is one file of an archive.
type Member struct {
	Name string
	Data []byte
}

// Archiver writes members into a single archive.
type Archiver interface {
	Archive(ctx context.Context, members []Member) ([]byte, error)
}

// ZipArchiver writes deflated ZIP archives.
type ZipArchiver struct {
	// Modified stamps every member; the zero value uses the DOS epoch so
	// identical inputs produce identical archives.
	Modified time.Time
}

func (a ZipArchiver) Archive(ctx context.Context, members []Member) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header := &zip.FileHeader{Name: member.Name, Method: zip.Deflate}
		if !a.Modified.IsZero() {
			header.Modified = a.Modified
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(member.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Assembler produces the PDF+XML package of a document.
type Assembler struct {
	Archiver Archiver
	Logger   docgen.Logger
}

// Assemble zips the bundle as {series}-{folio}.pdf and {series}-{folio}.xml.
func (a Assembler) Assemble(ctx context.Context, bundle docgen.Bundle) (docgen.Artifact, error) {
	if a.Archiver == nil {
		return docgen.Artifact{}, docgen.NewError(docgen.KindPackagingUnavailable, "archive capability is not configured", nil)
	}
	if len(bundle.PDF.Data) == 0 {
		return docgen.Artifact{}, docgen.NewError(docgen.KindValidation, "package requires a rendered pdf", nil)
	}
	if bundle.XML == "" {
		return docgen.Artifact{}, docgen.NewError(docgen.KindValidation, "package requires the stamped xml", nil)
	}

	data, err := a.Archiver.Archive(ctx, []Member{
		{Name: docgen.MemberName(bundle.Series, bundle.Folio, "pdf"), Data: bundle.PDF.Data},
		{Name: docgen.MemberName(bundle.Series, bundle.Folio, "xml"), Data: []byte(bundle.XML)},
	})
	if err != nil {
		return docgen.Artifact{}, docgen.NewError(docgen.KindInternal, "archive failed", err)
	}

	filename := bundle.Filename
	if filename == "" {
		filename = docgen.MemberName(bundle.Series, bundle.Folio, "zip")
	}
	docgen.LoggerOrNop(a.Logger).Debugf("packaged %s (%d bytes)", filename, len(data))
	return docgen.Artifact{Data: data, ContentType: docgen.ContentTypeZIP, Filename: filename}, nil
}
