package docarchive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/klauspost/compress/zip"
)

func sampleBundle() docgen.Bundle {
	return docgen.Bundle{
		PDF:      docgen.Artifact{Data: []byte("%PDF-1.4 body"), ContentType: docgen.ContentTypePDF},
		XML:      `<cfdi:Comprobante Serie="A" Folio="1"/>`,
		Series:   "A",
		Folio:    "1",
		Filename: "Factura_A-1.zip",
	}
}

func readMembers(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	members := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open member %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read member %s: %v", f.Name, err)
		}
		members[f.Name] = string(body)
	}
	return members
}

func TestAssembler_Assemble(t *testing.T) {
	artifact, err := Assembler{Archiver: ZipArchiver{}}.Assemble(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if artifact.ContentType != docgen.ContentTypeZIP || artifact.Filename != "Factura_A-1.zip" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}

	members := readMembers(t, artifact.Data)
	if len(members) != 2 {
		t.Fatalf("expected exactly two members, got %d", len(members))
	}
	if members["A-1.pdf"] != "%PDF-1.4 body" {
		t.Fatalf("unexpected pdf member %q", members["A-1.pdf"])
	}
	if members["A-1.xml"] != `<cfdi:Comprobante Serie="A" Folio="1"/>` {
		t.Fatalf("unexpected xml member %q", members["A-1.xml"])
	}
}

func TestAssembler_Deterministic(t *testing.T) {
	assembler := Assembler{Archiver: ZipArchiver{}}
	first, err := assembler.Assemble(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	second, err := assembler.Assemble(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("expected identical archives for identical bundles")
	}
}

func TestAssembler_DefaultFilename(t *testing.T) {
	bundle := sampleBundle()
	bundle.Filename = ""
	artifact, err := Assembler{Archiver: ZipArchiver{}}.Assemble(context.Background(), bundle)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if artifact.Filename != "A-1.zip" {
		t.Fatalf("unexpected filename %q", artifact.Filename)
	}
}

func TestAssembler_PackagingUnavailable(t *testing.T) {
	_, err := Assembler{}.Assemble(context.Background(), sampleBundle())
	if !docgen.IsPackagingUnavailable(err) {
		t.Fatalf("expected packaging unavailable, got %v", err)
	}
}

func TestAssembler_Validation(t *testing.T) {
	bundle := sampleBundle()
	bundle.PDF.Data = nil
	if _, err := (Assembler{Archiver: ZipArchiver{}}).Assemble(context.Background(), bundle); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error for empty pdf, got %v", err)
	}

	bundle = sampleBundle()
	bundle.XML = ""
	if _, err := (Assembler{Archiver: ZipArchiver{}}).Assemble(context.Background(), bundle); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error for empty xml, got %v", err)
	}
}

type failingArchiver struct{}

func (failingArchiver) Archive(ctx context.Context, members []Member) ([]byte, error) {
	return nil, errors.New("disk full")
}

func TestAssembler_ArchiverFailure(t *testing.T) {
	_, err := Assembler{Archiver: failingArchiver{}}.Assemble(context.Background(), sampleBundle())
	if docgen.KindFromError(err) != docgen.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
