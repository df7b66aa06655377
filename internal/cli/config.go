package cli

import (
	"strings"
	"time"

	"github.com/goliatone/go-docgen/docgen"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "DOCGEN"

// Config holds runtime configuration for the binary.
type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"120s"`
	LogFormat    string        `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`

	ChromeRemoteURL string        `envconfig:"CHROME_REMOTE_URL"`
	ChromePath      string        `envconfig:"CHROME_PATH"`
	ChromeArgs      []string      `envconfig:"CHROME_ARGS"`
	RenderTimeout   time.Duration `envconfig:"RENDER_TIMEOUT" default:"60s"`
	LoadTimeout     time.Duration `envconfig:"LOAD_TIMEOUT" default:"30s"`
	BaseURL         string        `envconfig:"BASE_URL"`
	WKHTMLToImage   string        `envconfig:"WKHTMLTOIMAGE_PATH"`
	GotenbergURL    string        `envconfig:"GOTENBERG_URL"`

	ScratchDir  string `envconfig:"SCRATCH_DIR"`
	ObjectDir   string `envconfig:"OBJECT_DIR"`
	AssetsDir   string `envconfig:"ASSETS_DIR"`
	DefaultLogo string `envconfig:"DEFAULT_LOGO"`
	DateLocale  string `envconfig:"DATE_LOCALE" default:"es_ES"`

	FilenamePattern string `envconfig:"FILENAME_PATTERN"`
	RateLimit       int    `envconfig:"RATE_LIMIT" default:"60"`
	MaxHTMLBytes    int64  `envconfig:"MAX_HTML_BYTES" default:"8388608"`
	MaxBodyBytes    int64  `envconfig:"MAX_BODY_BYTES" default:"4194304"`

	ThemePrimary       string `envconfig:"THEME_PRIMARY"`
	ThemePrimaryDark   string `envconfig:"THEME_PRIMARY_DARK"`
	ThemeSecondary     string `envconfig:"THEME_SECONDARY"`
	ThemeSecondaryDark string `envconfig:"THEME_SECONDARY_DARK"`
	ThemeAccent        string `envconfig:"THEME_ACCENT"`
	ThemeAccentDark    string `envconfig:"THEME_ACCENT_DARK"`
}

// LoadConfig reads configuration from DOCGEN_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, docgen.NewError(docgen.KindValidation, "invalid configuration", err)
	}
	if cfg.RateLimit <= 0 {
		return nil, docgen.NewError(docgen.KindValidation, "DOCGEN_RATE_LIMIT must be positive", nil)
	}
	if cfg.MaxHTMLBytes <= 0 {
		return nil, docgen.NewError(docgen.KindValidation, "DOCGEN_MAX_HTML_BYTES must be positive", nil)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return nil, docgen.NewError(docgen.KindValidation, "DOCGEN_LOG_FORMAT must be text or json", nil)
	}
	return &cfg, nil
}

// Palette returns the configured palette. Unset colors come from the default.
func (c *Config) Palette() docgen.ThemePalette {
	p := docgen.DefaultPalette()
	if c == nil {
		return p
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&p.Primary, c.ThemePrimary)
	set(&p.PrimaryDark, c.ThemePrimaryDark)
	set(&p.Secondary, c.ThemeSecondary)
	set(&p.SecondaryDark, c.ThemeSecondaryDark)
	set(&p.Accent, c.ThemeAccent)
	set(&p.AccentDark, c.ThemeAccentDark)
	return p
}
