// Package dochttp exposes the document pipeline over HTTP.
package dochttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	docdelivery "github.com/goliatone/go-docgen/adapters/delivery"
	"github.com/goliatone/go-docgen/docgen"
	"github.com/goliatone/go-docgen/resolver"
	"github.com/unrolled/secure"
)

// DefaultRateLimit is the per-IP render budget per minute.
const DefaultRateLimit = 60

// DocumentService is the pipeline surface used by the handler.
type DocumentService interface {
	RenderInvoice(ctx context.Context, doc docgen.InvoiceDocument, palette docgen.ThemePalette) (docgen.Artifact, error)
	RenderCreditNote(ctx context.Context, note docgen.CreditNoteDocument, palette docgen.ThemePalette) (docgen.Artifact, error)
	PackageInvoice(ctx context.Context, doc docgen.InvoiceDocument, palette docgen.ThemePalette, xml string) (docgen.Artifact, error)
	PackageCreditNote(ctx context.Context, note docgen.CreditNoteDocument, palette docgen.ThemePalette, xml string) (docgen.Artifact, error)
}

// EngineStatus reports the active conversion engine.
type EngineStatus interface {
	Resolve(ctx context.Context) (resolver.Handle, error)
	Attempts() []resolver.Attempt
}

// Handler serves render, package and engine routes.
type Handler struct {
	Service      DocumentService
	Delivery     docdelivery.Adapter
	Engines      EngineStatus
	Logger       docgen.Logger
	RateLimit    int
	MaxBodyBytes int64
	// Assets serves the default logo and other relative document resources.
	Assets http.FileSystem

	validate *validator.Validate
}

// NewHandler creates a handler.
func NewHandler(service DocumentService, delivery docdelivery.Adapter, engines EngineStatus) *Handler {
	return &Handler{
		Service:  service,
		Delivery: delivery,
		Engines:  engines,
		validate: validator.New(),
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	if h.validate == nil {
		h.validate = validator.New()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(h.rateLimit(), time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		// Resolving an engine may launch a browser, so it shares the limit.
		r.Get("/documents/engine", h.engine)
		r.Post("/documents/invoices/pdf", h.invoicePDF)
		r.Post("/documents/invoices/package", h.invoicePackage)
		r.Post("/documents/credit-notes/pdf", h.creditNotePDF)
		r.Post("/documents/credit-notes/package", h.creditNotePackage)
	})

	if h.Assets != nil {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(h.Assets)))
	}
	return r
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.deliver(w, r, func(ctx context.Context) (docgen.Artifact, error) {
		return h.Service.RenderInvoice(ctx, req.Document, req.Palette)
	})
}

func (h *Handler) invoicePackage(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := requireXML(req.XML); err != nil {
		WriteError(w, err)
		return
	}
	h.deliver(w, r, func(ctx context.Context) (docgen.Artifact, error) {
		return h.Service.PackageInvoice(ctx, req.Document, req.Palette, req.XML)
	})
}

func (h *Handler) creditNotePDF(w http.ResponseWriter, r *http.Request) {
	var req CreditNoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	h.deliver(w, r, func(ctx context.Context) (docgen.Artifact, error) {
		return h.Service.RenderCreditNote(ctx, req.Document, req.Palette)
	})
}

func (h *Handler) creditNotePackage(w http.ResponseWriter, r *http.Request) {
	var req CreditNoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := requireXML(req.XML); err != nil {
		WriteError(w, err)
		return
	}
	h.deliver(w, r, func(ctx context.Context) (docgen.Artifact, error) {
		return h.Service.PackageCreditNote(ctx, req.Document, req.Palette, req.XML)
	})
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.Service == nil {
		WriteError(w, docgen.NewError(docgen.KindNotImpl, "document service not configured", nil))
		return false
	}
	if err := decodeJSON(r, h.MaxBodyBytes, dst); err != nil {
		WriteError(w, err)
		return false
	}
	if err := validateStruct(h.validate, dst); err != nil {
		WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request, produce func(context.Context) (docgen.Artifact, error)) {
	logger := docgen.LoggerOrNop(h.Logger)
	mode, err := docdelivery.ParseMode(r.URL.Query().Get("disposition"))
	if err != nil {
		WriteError(w, err)
		return
	}

	artifact, err := produce(r.Context())
	if err != nil {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		WriteError(w, err)
		return
	}

	delivery := h.Delivery
	if delivery.Logger == nil {
		delivery.Logger = h.Logger
	}
	if err := delivery.Deliver(r.Context(), w, artifact, mode); err != nil {
		// Headers may already be on the wire; only report when nothing was written.
		if docgen.KindFromError(err) == docgen.KindValidation {
			WriteError(w, err)
			return
		}
		logger.Errorf("deliver %s: %v", artifact.Filename, err)
	}
}

// EngineResponse reports the resolved engine and failed tiers.
type EngineResponse struct {
	Tier       string           `json:"tier,omitempty"`
	ResolvedAt *time.Time       `json:"resolvedAt,omitempty"`
	Attempts   []AttemptPayload `json:"attempts,omitempty"`
	Error      *ErrorBody       `json:"error,omitempty"`
}

// AttemptPayload is one failed tier.
type AttemptPayload struct {
	Tier  string `json:"tier"`
	Error string `json:"error"`
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) {
	if h.Engines == nil {
		WriteError(w, docgen.NewError(docgen.KindNotImpl, "engine resolver not configured", nil))
		return
	}
	handle, err := h.Engines.Resolve(r.Context())
	resp := EngineResponse{}
	for _, attempt := range h.Engines.Attempts() {
		msg := ""
		if attempt.Err != nil {
			msg = attempt.Err.Error()
		}
		resp.Attempts = append(resp.Attempts, AttemptPayload{Tier: attempt.Tier.String(), Error: msg})
	}
	if err != nil {
		ge := docgen.AsGoError(err)
		resp.Error = &ErrorBody{Message: ge.Message, Code: ge.TextCode}
		writeJSON(w, statusForError(ge), resp)
		return
	}
	resolvedAt := handle.ResolvedAt
	resp.Tier = handle.Tier.String()
	resp.ResolvedAt = &resolvedAt
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) rateLimit() int {
	if h.RateLimit > 0 {
		return h.RateLimit
	}
	return DefaultRateLimit
}

func securityHeaders() func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AssetsDir returns a file system rooted at dir, or nil when dir is empty.
func AssetsDir(dir string) http.FileSystem {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	return http.Dir(dir)
}
