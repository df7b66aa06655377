package storefs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-docgen/docgen"
)

func TestStore_PutOpenDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	ref, err := store.Put(context.Background(), "refs/abc.pdf", bytes.NewBufferString("%PDF-1.4"), docgen.ObjectMeta{
		ContentType: docgen.ContentTypePDF,
		Filename:    "Factura_A-1.pdf",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 8 {
		t.Fatalf("expected size 8, got %d", ref.Meta.Size)
	}
	if ref.Meta.CreatedAt.IsZero() {
		t.Fatalf("expected created_at set")
	}

	reader, meta, err := store.Open(context.Background(), "refs/abc.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("expected payload, got %q", string(data))
	}
	if meta.Filename != "Factura_A-1.pdf" || meta.ContentType != docgen.ContentTypePDF {
		t.Fatalf("unexpected meta %+v", meta)
	}

	if err := store.Delete(context.Background(), "refs/abc.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(context.Background(), "refs/abc.pdf"); docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "refs", "abc.pdf.meta.json")); !os.IsNotExist(err) {
		t.Fatalf("expected metadata removed")
	}
}

func TestStore_KeyEscapingRootIsContained(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	if _, err := store.Put(context.Background(), "../../outside.pdf", bytes.NewBufferString("x"), docgen.ObjectMeta{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "outside.pdf")); err != nil {
		t.Fatalf("expected key to be cleaned into root: %v", err)
	}
}

func TestStore_Validation(t *testing.T) {
	if _, err := (&Store{}).Put(context.Background(), "k", bytes.NewBufferString("x"), docgen.ObjectMeta{}); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error without root, got %v", err)
	}
	if err := NewStore(t.TempDir()).Delete(context.Background(), ""); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error without key, got %v", err)
	}
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	store.Now = func() time.Time { return now.Add(-time.Hour) }
	if _, err := store.Put(context.Background(), "old", bytes.NewBufferString("old"), docgen.ObjectMeta{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.Now = func() time.Time { return now }
	if _, err := store.Put(context.Background(), "fresh", bytes.NewBufferString("fresh"), docgen.ObjectMeta{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	removed, err := store.Sweep(context.Background(), now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removed object, got %d", removed)
	}
	if _, _, err := store.Open(context.Background(), "old"); docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("expected old object removed")
	}
	reader, _, err := store.Open(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("expected fresh object kept: %v", err)
	}
	_ = reader.Close()
}
