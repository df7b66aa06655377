package docgen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// DefaultFilenamePattern yields {DocumentKind}_{series}-{folio}.
const DefaultFilenamePattern = "{{ kind }}_{{ series }}-{{ folio }}"

// Filenames renders suggested artifact filenames from a pongo2 pattern.
// Pattern variables: kind, series, folio, uuid.
type Filenames struct {
	Pattern string

	once sync.Once
	tpl  *pongo2.Template
	err  error
}

// NewFilenames compiles pattern, falling back to DefaultFilenamePattern.
func NewFilenames(pattern string) (*Filenames, error) {
	f := &Filenames{Pattern: pattern}
	if _, err := f.template(); err != nil {
		return nil, err
	}
	return f, nil
}

// Name renders the filename for a document with the given extension.
func (f *Filenames) Name(kind DocumentKind, doc InvoiceDocument, ext string) (string, error) {
	tpl, err := f.template()
	if err != nil {
		return "", err
	}

	out, err := tpl.Execute(pongo2.Context{
		"kind":   string(kind),
		"series": doc.Series,
		"folio":  doc.Folio,
		"uuid":   doc.UUID,
	})
	if err != nil {
		return "", NewError(KindValidation, "filename pattern failed", err)
	}

	result := SanitizeFilename(out)
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	ext = strings.TrimPrefix(ext, ".")
	if ext != "" && !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}

// MemberName is the archive member name {series}-{folio}.ext.
func MemberName(series, folio, ext string) string {
	return SanitizeFilename(fmt.Sprintf("%s-%s", series, folio)) + "." + strings.TrimPrefix(ext, ".")
}

func (f *Filenames) template() (*pongo2.Template, error) {
	if f == nil {
		return nil, NewError(KindInternal, "filenames is nil", nil)
	}
	f.once.Do(func() {
		pattern := strings.TrimSpace(f.Pattern)
		if pattern == "" {
			pattern = DefaultFilenamePattern
		}
		// Filenames are not HTML; escaping would diverge from MemberName.
		f.tpl, f.err = pongo2.FromString("{% autoescape off %}" + pattern + "{% endautoescape %}")
		if f.err != nil {
			f.err = NewError(KindValidation, "invalid filename pattern", f.err)
		}
	})
	return f.tpl, f.err
}

// SanitizeFilename strips characters that break headers and paths.
func SanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
