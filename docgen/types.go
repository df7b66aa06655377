package docgen

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance bounds rounding drift when checking document totals.
const Tolerance = 0.005

// Content types produced by the pipeline.
const (
	ContentTypePDF = "application/pdf"
	ContentTypeZIP = "application/zip"
	ContentTypeXML = "application/xml"
)

// DocumentKind names the document type in titles and filenames.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "Factura"
	KindCreditNote DocumentKind = "NotaCredito"
)

// Party identifies an issuer or receiver by RFC.
type Party struct {
	RFC  string `json:"rfc" validate:"required"`
	Name string `json:"name"`
}

// LineItem is a single concept of the document.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

// LineAmount returns Amount, or Quantity*UnitPrice when Amount was not supplied.
func (li LineItem) LineAmount() float64 {
	if li.Amount != 0 {
		return li.Amount
	}
	return decimal.NewFromFloat(li.Quantity).Mul(decimal.NewFromFloat(li.UnitPrice)).InexactFloat64()
}

// DigitalSeals carries the fiscal stamp of a certified document.
type DigitalSeals struct {
	CFDISeal             string    `json:"cfdiSeal"`
	SATSeal              string    `json:"satSeal"`
	CertificateNumber    string    `json:"certificateNumber"`
	SATCertificateNumber string    `json:"satCertificateNumber"`
	StampedAt            time.Time `json:"stampedAt"`
	OriginalString       string    `json:"originalString"`
}

// InvoiceDocument is the render input for a CFDI invoice.
type InvoiceDocument struct {
	UUID          string        `json:"uuid"`
	Series        string        `json:"series" validate:"required"`
	Folio         string        `json:"folio" validate:"required"`
	IssueDate     time.Time     `json:"issueDate"`
	Issuer        Party         `json:"issuer"`
	Receiver      Party         `json:"receiver"`
	Items         []LineItem    `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	TaxAmount     float64       `json:"taxAmount"`
	TaxRate       float64       `json:"taxRate"`
	IEPS          *float64      `json:"ieps,omitempty"`
	Total         float64       `json:"total"`
	PaymentMethod string        `json:"paymentMethod"`
	PaymentForm   string        `json:"paymentForm"`
	CFDIUse       string        `json:"cfdiUse"`
	Currency      string        `json:"currency,omitempty"`
	Seals         *DigitalSeals `json:"seals,omitempty"`
	LogoSource    string        `json:"logoSource,omitempty"`
}

// ExpectedTotal is Subtotal + TaxAmount (+ IEPS).
func (d InvoiceDocument) ExpectedTotal() float64 {
	total := decimal.NewFromFloat(d.Subtotal).Add(decimal.NewFromFloat(d.TaxAmount))
	if d.IEPS != nil {
		total = total.Add(decimal.NewFromFloat(*d.IEPS))
	}
	return total.InexactFloat64()
}

// Balanced reports whether Total matches ExpectedTotal within Tolerance.
func (d InvoiceDocument) Balanced() bool {
	diff := decimal.NewFromFloat(d.Total).Sub(decimal.NewFromFloat(d.ExpectedTotal())).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(Tolerance))
}

// HasTax reports whether the tax line applies.
func (d InvoiceDocument) HasTax() bool {
	return d.TaxAmount != 0 || d.TaxRate != 0
}

// CreditNoteDocument is an invoice document that adjusts a prior invoice.
type CreditNoteDocument struct {
	InvoiceDocument
	ReferenceInvoiceUUID string `json:"referenceInvoiceUuid,omitempty"`
	ReasonCode           string `json:"reasonCode,omitempty"`
}

// HasReference reports whether the reference block applies.
func (n CreditNoteDocument) HasReference() bool {
	return n.ReferenceInvoiceUUID != "" || n.ReasonCode != ""
}

// ThemePalette holds the six CSS colors used by the document template.
type ThemePalette struct {
	Primary       string `json:"primary" validate:"omitempty,iscolor"`
	PrimaryDark   string `json:"primaryDark" validate:"omitempty,iscolor"`
	Secondary     string `json:"secondary" validate:"omitempty,iscolor"`
	SecondaryDark string `json:"secondaryDark" validate:"omitempty,iscolor"`
	Accent        string `json:"accent" validate:"omitempty,iscolor"`
	AccentDark    string `json:"accentDark" validate:"omitempty,iscolor"`
}

// DefaultPalette returns the built-in palette.
func DefaultPalette() ThemePalette {
	return ThemePalette{
		Primary:       "#1f4e79",
		PrimaryDark:   "#163a5a",
		Secondary:     "#e8eef4",
		SecondaryDark: "#c5d3e0",
		Accent:        "#c0392b",
		AccentDark:    "#922b21",
	}
}

// IsZero reports whether no color was supplied.
func (p ThemePalette) IsZero() bool {
	return p == ThemePalette{}
}

// Artifact is a rendered blob owned by the caller until delivered.
type Artifact struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Size returns the artifact length in bytes.
func (a Artifact) Size() int64 {
	return int64(len(a.Data))
}

// Reader returns a fresh reader over the artifact bytes.
func (a Artifact) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// Bundle is the input of packaging: a rendered PDF plus its stamped XML.
type Bundle struct {
	PDF      Artifact
	XML      string
	Series   string
	Folio    string
	Filename string
}

// RenderSettings is the conversion configuration shared by every engine.
type RenderSettings struct {
	Margin           string
	PageSize         string
	Landscape        bool
	RasterScale      float64
	JPEGQuality      float64
	AllowCrossOrigin bool
}

// DefaultRenderSettings returns the fixed A4 portrait configuration.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		Margin:           "10mm",
		PageSize:         "A4",
		Landscape:        false,
		RasterScale:      2,
		JPEGQuality:      0.98,
		AllowCrossOrigin: true,
	}
}

// JPEGQualityPercent converts JPEGQuality to the 1-100 scale used by encoders.
func (s RenderSettings) JPEGQualityPercent() int {
	q := int(s.JPEGQuality*100 + 0.5)
	if q <= 0 || q > 100 {
		return 98
	}
	return q
}

// ObjectMeta describes a stored transient object.
type ObjectMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ObjectRef references a stored transient object.
type ObjectRef struct {
	Key  string
	Meta ObjectMeta
}

// ObjectStore holds blobs behind transient object references.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ObjectMeta) (ObjectRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectMeta, error)
	Delete(ctx context.Context, key string) error
}
