// Package docpdf holds the HTML-to-PDF engines behind the document renderer.
//
// Engines come in two shapes: direct converters (Chromium over the DevTools
// protocol, Gotenberg convert) and composites that rasterize the page to a
// JPEG and paginate it into an A4 PDF with gofpdf.
package docpdf
