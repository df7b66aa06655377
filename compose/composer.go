package compose

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

// DefaultLogoSource is used when a document carries no logo.
const DefaultLogoSource = "/assets/img/logo.png"

//go:embed templates/document.html
var templateFS embed.FS

var documentTemplate = template.Must(template.ParseFS(templateFS, "templates/document.html"))

// Composer builds the self-contained HTML of invoices and credit notes.
type Composer struct {
	DefaultLogo string
	format      formatter
	tpl         *template.Template
}

// Option configures a Composer.
type Option func(*options)

type options struct {
	logo         string
	symbol       string
	numberLocale language.Tag
	dateLocale   monday.Locale
	dateLayout   string
}

// WithDefaultLogo sets the logo used when a document carries none.
func WithDefaultLogo(src string) Option {
	return func(o *options) {
		if strings.TrimSpace(src) != "" {
			o.logo = src
		}
	}
}

// WithCurrencySymbol sets the prefix of formatted amounts.
func WithCurrencySymbol(symbol string) Option {
	return func(o *options) { o.symbol = symbol }
}

// WithNumberLocale sets the locale used for digit grouping and decimals.
func WithNumberLocale(tag language.Tag) Option {
	return func(o *options) { o.numberLocale = tag }
}

// WithDateLocale sets the locale used for month names.
func WithDateLocale(locale monday.Locale) Option {
	return func(o *options) {
		if locale != "" {
			o.dateLocale = locale
		}
	}
}

// WithDateLayout sets the Go layout used for dates.
func WithDateLayout(layout string) Option {
	return func(o *options) {
		if layout != "" {
			o.dateLayout = layout
		}
	}
}

// New creates a Composer.
func New(opts ...Option) *Composer {
	cfg := options{
		logo:         DefaultLogoSource,
		symbol:       DefaultCurrencySymbol,
		numberLocale: defaultNumberLocale,
		dateLocale:   monday.LocaleEsES,
		dateLayout:   DefaultDateLayout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Composer{
		DefaultLogo: cfg.logo,
		format:      newFormatter(cfg.numberLocale, cfg.symbol, cfg.dateLayout, cfg.dateLocale),
		tpl:         documentTemplate,
	}
}

// ComposeInvoice renders the invoice layout.
func (c *Composer) ComposeInvoice(doc docgen.InvoiceDocument, palette docgen.ThemePalette) (string, error) {
	view, err := c.view("FACTURA", doc, palette)
	if err != nil {
		return "", err
	}
	return c.execute(view)
}

// ComposeCreditNote renders the invoice layout plus the reference block.
func (c *Composer) ComposeCreditNote(note docgen.CreditNoteDocument, palette docgen.ThemePalette) (string, error) {
	view, err := c.view("NOTA DE CRÉDITO", note.InvoiceDocument, palette)
	if err != nil {
		return "", err
	}
	if note.HasReference() {
		view.Reference = &referenceView{
			InvoiceUUID: note.ReferenceInvoiceUUID,
			ReasonCode:  note.ReasonCode,
		}
	}
	return c.execute(view)
}

func (c *Composer) execute(view documentView) (string, error) {
	tpl := c.tpl
	if tpl == nil {
		tpl = documentTemplate
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view); err != nil {
		return "", docgen.NewError(docgen.KindInternal, "document template failed", err)
	}
	return buf.String(), nil
}

type documentView struct {
	Title     string
	UUID      string
	Series    string
	Folio     string
	IssueDate string
	Logo      any
	Issuer    docgen.Party
	Receiver  docgen.Party
	Reference *referenceView
	Items     []itemView
	Totals    totalsView
	Payment   paymentView
	Seals     *sealView
	Palette   paletteView
}

type referenceView struct {
	InvoiceUUID string
	ReasonCode  string
}

type itemView struct {
	Description string
	Quantity    string
	Unit        string
	UnitPrice   string
	Amount      string
}

type totalsView struct {
	Subtotal string
	ShowTax  bool
	TaxRate  string
	Tax      string
	ShowIEPS bool
	IEPS     string
	Total    string
}

type paymentView struct {
	Method   string
	Form     string
	CFDIUse  string
	Currency string
}

type sealView struct {
	CFDISeal             string
	SATSeal              string
	CertificateNumber    string
	SATCertificateNumber string
	StampedAt            string
	OriginalString       string
}

type paletteView struct {
	Primary       template.CSS
	PrimaryDark   template.CSS
	Secondary     template.CSS
	SecondaryDark template.CSS
	Accent        template.CSS
	AccentDark    template.CSS
}

func (c *Composer) view(title string, doc docgen.InvoiceDocument, palette docgen.ThemePalette) (documentView, error) {
	if palette.IsZero() {
		palette = docgen.DefaultPalette()
	}
	colors, err := paletteCSS(palette)
	if err != nil {
		return documentView{}, err
	}
	f := c.format
	if f.printer == nil {
		f = New().format
	}

	items := make([]itemView, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, itemView{
			Description: item.Description,
			Quantity:    f.Quantity(item.Quantity),
			Unit:        item.Unit,
			UnitPrice:   f.Money(item.UnitPrice),
			Amount:      f.Money(item.LineAmount()),
		})
	}

	totals := totalsView{
		Subtotal: f.Money(doc.Subtotal),
		ShowTax:  doc.HasTax(),
		Total:    f.Money(doc.Total),
	}
	if totals.ShowTax {
		totals.TaxRate = f.Rate(doc.TaxRate)
		totals.Tax = f.Money(doc.TaxAmount)
	}
	if doc.IEPS != nil {
		totals.ShowIEPS = true
		totals.IEPS = f.Money(*doc.IEPS)
	}

	view := documentView{
		Title:     title,
		UUID:      doc.UUID,
		Series:    doc.Series,
		Folio:     doc.Folio,
		IssueDate: f.Date(doc.IssueDate),
		Logo:      c.logo(doc.LogoSource),
		Issuer:    doc.Issuer,
		Receiver:  doc.Receiver,
		Items:     items,
		Totals:    totals,
		Payment: paymentView{
			Method:   doc.PaymentMethod,
			Form:     doc.PaymentForm,
			CFDIUse:  doc.CFDIUse,
			Currency: doc.Currency,
		},
		Palette: colors,
	}
	if doc.Seals != nil {
		view.Seals = &sealView{
			CFDISeal:             doc.Seals.CFDISeal,
			SATSeal:              doc.Seals.SATSeal,
			CertificateNumber:    doc.Seals.CertificateNumber,
			SATCertificateNumber: doc.Seals.SATCertificateNumber,
			StampedAt:            f.DateTime(doc.Seals.StampedAt),
			OriginalString:       doc.Seals.OriginalString,
		}
	}
	return view, nil
}

// cssUnsafe are characters that can end a declaration, a rule or the style element.
const cssUnsafe = "<>;{}\"'\\\n\r"

// paletteCSS marks palette colors as trusted CSS once they cannot leave the declaration value.
func paletteCSS(p docgen.ThemePalette) (paletteView, error) {
	var view paletteView
	fields := []struct {
		name  string
		value string
		dst   *template.CSS
	}{
		{"primary", p.Primary, &view.Primary},
		{"primaryDark", p.PrimaryDark, &view.PrimaryDark},
		{"secondary", p.Secondary, &view.Secondary},
		{"secondaryDark", p.SecondaryDark, &view.SecondaryDark},
		{"accent", p.Accent, &view.Accent},
		{"accentDark", p.AccentDark, &view.AccentDark},
	}
	for _, field := range fields {
		if strings.ContainsAny(field.value, cssUnsafe) {
			return paletteView{}, docgen.NewError(docgen.KindValidation, "palette "+field.name+" is not a css color", nil)
		}
		*field.dst = template.CSS(strings.TrimSpace(field.value))
	}
	return view, nil
}

// logo keeps inline image data URIs intact; every other source goes through URL escaping.
func (c *Composer) logo(src string) any {
	src = strings.TrimSpace(src)
	if src == "" {
		src = c.DefaultLogo
	}
	if src == "" {
		src = DefaultLogoSource
	}
	if strings.HasPrefix(strings.ToLower(src), "data:image/") {
		return template.URL(src)
	}
	return src
}
