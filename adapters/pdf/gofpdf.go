package docpdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/jung-kurt/gofpdf"
)

// GofpdfBuilder slices a tall capture into page-height strips and places one
// strip per page inside the configured margins.
type GofpdfBuilder struct{}

// Build lays the image out on as many pages as its height requires.
func (GofpdfBuilder) Build(ctx context.Context, data []byte, settings docgen.RenderSettings) ([]byte, error) {
	settings = settingsOrDefault(settings)
	geo, err := geometryFor(settings)
	if err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "decode captured image", err)
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, docgen.NewError(docgen.KindInternal, "captured image is empty", nil)
	}

	pxPerMM := float64(bounds.Dx()) / geo.ContentWidth()
	slicePx := int(math.Floor(geo.ContentHeight() * pxPerMM))
	if slicePx < 1 {
		slicePx = 1
	}

	// geometry is already oriented, so the page is always declared portrait
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: geo.Width, Ht: geo.Height},
	})
	pdf.SetMargins(geo.Margin, geo.Margin, geo.Margin)
	pdf.SetAutoPageBreak(false, 0)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	quality := settings.JPEGQualityPercent()
	for page, top := 0, bounds.Min.Y; top < bounds.Max.Y; page, top = page+1, top+slicePx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bottom := top + slicePx
		if bottom > bounds.Max.Y {
			bottom = bounds.Max.Y
		}
		strip, err := encodeStrip(src, image.Rect(bounds.Min.X, top, bounds.Max.X, bottom), quality)
		if err != nil {
			return nil, docgen.NewError(docgen.KindInternal, "encode page strip", err)
		}

		name := fmt.Sprintf("page-%d", page)
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(strip))
		pdf.ImageOptions(name, geo.Margin, geo.Margin, geo.ContentWidth(), float64(bottom-top)/pxPerMM, false, opts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "write paginated pdf", err)
	}
	return out.Bytes(), nil
}

func encodeStrip(src image.Image, rect image.Rectangle, quality int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
