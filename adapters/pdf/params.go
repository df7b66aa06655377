package docpdf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/goliatone/go-docgen/docgen"
)

const mmPerInch = 25.4

var pdfLengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

var pdfPageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// pageGeometry is the printable layout in millimeters.
type pageGeometry struct {
	Width  float64
	Height float64
	Margin float64
}

func (g pageGeometry) ContentWidth() float64 {
	return g.Width - 2*g.Margin
}

func (g pageGeometry) ContentHeight() float64 {
	return g.Height - 2*g.Margin
}

func geometryFor(settings docgen.RenderSettings) (pageGeometry, error) {
	settings = settingsOrDefault(settings)
	width, height, err := pageSizeInches(settings.PageSize)
	if err != nil {
		return pageGeometry{}, err
	}
	margin, err := parseLengthInches(settings.Margin)
	if err != nil {
		return pageGeometry{}, err
	}
	if settings.Landscape {
		width, height = height, width
	}
	geo := pageGeometry{Width: width * mmPerInch, Height: height * mmPerInch, Margin: margin * mmPerInch}
	if geo.ContentWidth() <= 0 || geo.ContentHeight() <= 0 {
		return pageGeometry{}, docgen.NewError(docgen.KindValidation, fmt.Sprintf("margin %s leaves no printable area", settings.Margin), nil)
	}
	return geo, nil
}

func pageSizeInches(name string) (float64, float64, error) {
	size, ok := pdfPageSizesInches[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported pdf page size: %s", name), nil)
	}
	return size.width, size.height, nil
}

func buildPrintToPDFParams(settings docgen.RenderSettings) (*page.PrintToPDFParams, error) {
	settings = settingsOrDefault(settings)
	width, height, err := pageSizeInches(settings.PageSize)
	if err != nil {
		return nil, err
	}
	margin, err := parseLengthInches(settings.Margin)
	if err != nil {
		return nil, err
	}

	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(settings.Landscape).
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithMarginRight(margin), nil
}

func parseLengthInches(value string) (float64, error) {
	matches := pdfLengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}

	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}

	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / mmPerInch, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported pdf length unit: %s", unit), nil)
	}
}

// formatInches renders a length the way form-based converters accept it.
func formatInches(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}
