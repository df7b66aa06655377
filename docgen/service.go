package docgen

import (
	"context"
	"fmt"
)

// Composer maps a document and palette to self-contained HTML.
type Composer interface {
	ComposeInvoice(doc InvoiceDocument, palette ThemePalette) (string, error)
	ComposeCreditNote(note CreditNoteDocument, palette ThemePalette) (string, error)
}

// PDFRenderer converts composed HTML into a PDF artifact.
type PDFRenderer interface {
	Render(ctx context.Context, html []byte, filename string) (Artifact, error)
}

// Packager bundles a PDF and its XML into a single archive.
type Packager interface {
	Assemble(ctx context.Context, bundle Bundle) (Artifact, error)
}

// Service runs the document pipeline: compose, render, and optionally package.
type Service struct {
	Composer  Composer
	Renderer  PDFRenderer
	Packager  Packager
	Filenames *Filenames
	Palette   ThemePalette
	Logger    Logger
}

// RenderInvoice renders an invoice to a PDF artifact.
func (s *Service) RenderInvoice(ctx context.Context, doc InvoiceDocument, palette ThemePalette) (Artifact, error) {
	if err := s.ready(); err != nil {
		return Artifact{}, err
	}
	return s.render(ctx, KindInvoice, doc, func(p ThemePalette) (string, error) {
		return s.Composer.ComposeInvoice(doc, p)
	}, palette)
}

// RenderCreditNote renders a credit note to a PDF artifact.
func (s *Service) RenderCreditNote(ctx context.Context, note CreditNoteDocument, palette ThemePalette) (Artifact, error) {
	if err := s.ready(); err != nil {
		return Artifact{}, err
	}
	return s.render(ctx, KindCreditNote, note.InvoiceDocument, func(p ThemePalette) (string, error) {
		return s.Composer.ComposeCreditNote(note, p)
	}, palette)
}

// PackageInvoice renders an invoice and zips it with its XML.
func (s *Service) PackageInvoice(ctx context.Context, doc InvoiceDocument, palette ThemePalette, xml string) (Artifact, error) {
	if err := s.packagingReady(); err != nil {
		return Artifact{}, err
	}
	pdf, err := s.RenderInvoice(ctx, doc, palette)
	if err != nil {
		return Artifact{}, err
	}
	return s.assemble(ctx, KindInvoice, doc, pdf, xml)
}

// PackageCreditNote renders a credit note and zips it with its XML.
func (s *Service) PackageCreditNote(ctx context.Context, note CreditNoteDocument, palette ThemePalette, xml string) (Artifact, error) {
	if err := s.packagingReady(); err != nil {
		return Artifact{}, err
	}
	pdf, err := s.RenderCreditNote(ctx, note, palette)
	if err != nil {
		return Artifact{}, err
	}
	return s.assemble(ctx, KindCreditNote, note.InvoiceDocument, pdf, xml)
}

func (s *Service) render(ctx context.Context, kind DocumentKind, doc InvoiceDocument, compose func(ThemePalette) (string, error), palette ThemePalette) (Artifact, error) {
	logger := LoggerOrNop(s.Logger)
	if !doc.Balanced() {
		logger.Infof("%s %s-%s total %.2f differs from expected %.2f", kind, doc.Series, doc.Folio, doc.Total, doc.ExpectedTotal())
	}

	filename, err := s.filenames().Name(kind, doc, "pdf")
	if err != nil {
		return Artifact{}, err
	}

	html, err := compose(s.palette(palette))
	if err != nil {
		if KindFromError(err) == KindValidation {
			return Artifact{}, err
		}
		return Artifact{}, NewError(KindInternal, fmt.Sprintf("compose %s failed", kind), err)
	}

	artifact, err := s.Renderer.Render(ctx, []byte(html), filename)
	if err != nil {
		logger.Errorf("render %s failed: %v", filename, err)
		return Artifact{}, err
	}
	logger.Debugf("rendered %s (%d bytes)", artifact.Filename, artifact.Size())
	return artifact, nil
}

func (s *Service) assemble(ctx context.Context, kind DocumentKind, doc InvoiceDocument, pdf Artifact, xml string) (Artifact, error) {
	filename, err := s.filenames().Name(kind, doc, "zip")
	if err != nil {
		return Artifact{}, err
	}
	return s.Packager.Assemble(ctx, Bundle{
		PDF:      pdf,
		XML:      xml,
		Series:   doc.Series,
		Folio:    doc.Folio,
		Filename: filename,
	})
}

func (s *Service) ready() error {
	if s == nil {
		return NewError(KindInternal, "service is nil", nil)
	}
	if s.Composer == nil {
		return NewError(KindValidation, "service requires composer", nil)
	}
	if s.Renderer == nil {
		return NewError(KindValidation, "service requires renderer", nil)
	}
	return nil
}

func (s *Service) packagingReady() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.Packager == nil {
		return NewError(KindPackagingUnavailable, "archive capability is not configured", nil)
	}
	return nil
}

func (s *Service) palette(override ThemePalette) ThemePalette {
	if !override.IsZero() {
		return override
	}
	if !s.Palette.IsZero() {
		return s.Palette
	}
	return DefaultPalette()
}

var defaultFilenames = &Filenames{}

func (s *Service) filenames() *Filenames {
	if s.Filenames == nil {
		return defaultFilenames
	}
	return s.Filenames
}
