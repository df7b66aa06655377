package cli

import (
	"context"
	"net/http"
	"time"

	docarchive "github.com/goliatone/go-docgen/adapters/archive"
	docdelivery "github.com/goliatone/go-docgen/adapters/delivery"
	dochttp "github.com/goliatone/go-docgen/adapters/http"
	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
	storefs "github.com/goliatone/go-docgen/adapters/store/fs"
	"github.com/goliatone/go-docgen/compose"
	"github.com/goliatone/go-docgen/docgen"
	"github.com/goliatone/go-docgen/render"
	"github.com/goliatone/go-docgen/resolver"
	"github.com/goodsign/monday"
)

// App is the wired pipeline.
type App struct {
	Config     *Config
	Logger     docgen.Logger
	Resolver   *resolver.Resolver
	Service    *docgen.Service
	References *docdelivery.References
	Handler    *dochttp.Handler

	objects *storefs.Store
}

// Loaders returns the engine tiers in resolution order.
func Loaders(cfg *Config) []resolver.Loader {
	opts := resolver.ChromiumOptions{
		Args:          cfg.ChromeArgs,
		RenderTimeout: cfg.RenderTimeout,
		BaseURL:       cfg.BaseURL,
	}
	loaders := []resolver.Loader{
		resolver.AmbientChromium(cfg.ChromeRemoteURL, opts),
		resolver.ModuleChromium(cfg.ChromePath, opts),
		resolver.CompositeWKHTML(docpdf.WKHTMLToImageRasterizer{
			Command: cfg.WKHTMLToImage,
			Timeout: cfg.RenderTimeout,
		}),
	}
	if cfg.GotenbergURL != "" {
		loaders = append(loaders, resolver.RemoteGotenberg(docpdf.NewGotenbergClient(cfg.GotenbergURL, cfg.RenderTimeout)))
	} else {
		loaders = append(loaders, resolver.LoaderFunc(resolver.TierRemote, func(context.Context) (docpdf.Engine, error) {
			return nil, docgen.NewError(docgen.KindValidation, "DOCGEN_GOTENBERG_URL is not set", nil)
		}))
	}
	return loaders
}

// NewApp wires the pipeline from cfg. A nil loaders slice uses Loaders(cfg).
func NewApp(ctx context.Context, cfg *Config, logger docgen.Logger, loaders []resolver.Loader) (*App, error) {
	if cfg == nil {
		return nil, docgen.NewError(docgen.KindValidation, "config is required", nil)
	}
	logger = docgen.LoggerOrNop(logger)
	if loaders == nil {
		loaders = Loaders(cfg)
	}

	filenames, err := docgen.NewFilenames(cfg.FilenamePattern)
	if err != nil {
		return nil, err
	}

	engines := resolver.New(loaders...)
	engines.LoadTimeout = cfg.LoadTimeout
	engines.Logger = logger

	var (
		store docgen.ObjectStore
		disk  *storefs.Store
	)
	if cfg.ObjectDir != "" {
		disk = storefs.NewStore(cfg.ObjectDir)
		store = disk
	}
	refs := docdelivery.NewReferences(store)

	service := &docgen.Service{
		Composer: compose.New(
			compose.WithDefaultLogo(cfg.DefaultLogo),
			compose.WithDateLocale(monday.Locale(cfg.DateLocale)),
		),
		Renderer: render.Renderer{
			Engines:      engines,
			Surfaces:     &render.ScratchProvider{Root: cfg.ScratchDir},
			Settings:     docgen.DefaultRenderSettings(),
			MaxHTMLBytes: cfg.MaxHTMLBytes,
			Logger:       logger,
		},
		Packager:  docarchive.Assembler{Archiver: docarchive.ZipArchiver{}, Logger: logger},
		Filenames: filenames,
		Palette:   cfg.Palette(),
		Logger:    logger,
	}

	handler := dochttp.NewHandler(service, docdelivery.Adapter{References: refs, Logger: logger}, engines)
	handler.Logger = logger
	handler.RateLimit = cfg.RateLimit
	handler.MaxBodyBytes = cfg.MaxBodyBytes
	handler.Assets = dochttp.AssetsDir(cfg.AssetsDir)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Resolver:   engines,
		Service:    service,
		References: refs,
		Handler:    handler,
		objects:    disk,
	}, nil
}

// SweepObjects removes objects created before now from the object
// directory. Only the long-running server owns the directory; one-shot
// commands may share it with a live server.
func (a *App) SweepObjects(ctx context.Context) int {
	if a == nil || a.objects == nil {
		return 0
	}
	// Objects left behind by a crashed process are never delivered again.
	n, err := a.objects.Sweep(ctx, time.Now())
	if err != nil {
		a.Logger.Errorf("sweep %s: %v", a.Config.ObjectDir, err)
		return n
	}
	if n > 0 {
		a.Logger.Infof("swept %d stale objects from %s", n, a.Config.ObjectDir)
	}
	return n
}

// Server returns the HTTP server for the app.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Handler.Routes(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.Config.WriteTimeout,
	}
}

// Close releases the resolved engine.
func (a *App) Close() error {
	if a == nil || a.Resolver == nil {
		return nil
	}
	return a.Resolver.Close()
}
