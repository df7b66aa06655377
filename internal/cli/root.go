// Package cli implements the docgen command line.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/goliatone/go-docgen/resolver"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

// Options customizes how commands load configuration and engines.
type Options struct {
	LoadConfig func() (*Config, error)
	// Loaders overrides the engine tiers built from the config.
	Loaders func(*Config) []resolver.Loader
}

// NewRootCommand builds the docgen command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = LoadConfig
	}
	root := &cobra.Command{
		Use:           "docgen",
		Short:         "Render CFDI invoices and credit notes to PDF and ZIP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(opts), newRenderCmd(opts), newEngineCmd(opts))
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand(Options{})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func (o Options) app(ctx context.Context, cmd *cobra.Command) (*App, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := SlogLogger{Logger: NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)}
	var loaders []resolver.Loader
	if o.Loaders != nil {
		loaders = o.Loaders(cfg)
	}
	return NewApp(ctx, cfg, logger, loaders)
}

func newServeCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the document HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := opts.app(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			app.SweepObjects(ctx)

			srv := app.Server()
			errCh := make(chan error, 1)
			go func() {
				app.Logger.Infof("listening on %s", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			app.Logger.Infof("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
}

type renderFlags struct {
	kind string
	in   string
	out  string
	xml  string
}

func newRenderCmd(opts Options) *cobra.Command {
	flags := renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a document JSON file to PDF, or to ZIP when --xml is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, opts, flags)
		},
	}
	cmd.Flags().StringVar(&flags.kind, "kind", "invoice", "document kind: invoice or credit-note")
	cmd.Flags().StringVar(&flags.in, "in", "-", "document JSON file, - for stdin")
	cmd.Flags().StringVar(&flags.out, "out", "", "output file or directory (default: suggested filename)")
	cmd.Flags().StringVar(&flags.xml, "xml", "", "stamped CFDI XML; produces a ZIP package")
	return cmd
}

func runRender(cmd *cobra.Command, opts Options, flags renderFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := readInput(cmd.InOrStdin(), flags.in)
	if err != nil {
		return err
	}
	var xml string
	if flags.xml != "" {
		data, err := os.ReadFile(flags.xml)
		if err != nil {
			return docgen.NewError(docgen.KindValidation, "read xml", err)
		}
		xml = string(data)
	}

	app, err := opts.app(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var artifact docgen.Artifact
	switch strings.ToLower(flags.kind) {
	case "invoice", "factura":
		var doc docgen.InvoiceDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return docgen.NewError(docgen.KindValidation, "invalid document json", err)
		}
		if xml != "" {
			artifact, err = app.Service.PackageInvoice(ctx, doc, docgen.ThemePalette{}, xml)
		} else {
			artifact, err = app.Service.RenderInvoice(ctx, doc, docgen.ThemePalette{})
		}
	case "credit-note", "notacredito":
		var note docgen.CreditNoteDocument
		if err := json.Unmarshal(raw, &note); err != nil {
			return docgen.NewError(docgen.KindValidation, "invalid document json", err)
		}
		if xml != "" {
			artifact, err = app.Service.PackageCreditNote(ctx, note, docgen.ThemePalette{}, xml)
		} else {
			artifact, err = app.Service.RenderCreditNote(ctx, note, docgen.ThemePalette{})
		}
	default:
		return docgen.NewError(docgen.KindValidation, fmt.Sprintf("unknown kind %q", flags.kind), nil)
	}
	if err != nil {
		return err
	}

	target := outputPath(flags.out, artifact.Filename)
	if err := atomic.WriteFile(target, bytes.NewReader(artifact.Data)); err != nil {
		return docgen.NewError(docgen.KindInternal, "write output", err)
	}
	cmd.Printf("wrote %s (%d bytes)\n", target, artifact.Size())
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, docgen.NewError(docgen.KindValidation, "read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, docgen.NewError(docgen.KindValidation, "read document", err)
	}
	return data, nil
}

func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}

func newEngineCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Resolve the conversion engine and print the winning tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := opts.app(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			handle, err := app.Resolver.Resolve(ctx)
			for _, attempt := range app.Resolver.Attempts() {
				cmd.Printf("%-10s failed: %v\n", attempt.Tier, attempt.Err)
			}
			if err != nil {
				return err
			}
			cmd.Printf("engine: %s\n", handle.Tier)
			return nil
		},
	}
}
