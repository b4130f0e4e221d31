// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. QUOTES_DB_DSN.
const EnvPrefix = "QUOTES"

// Config captures every knob of the crawl, load, query and serve commands.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Corpus   CorpusConfig   `mapstructure:"corpus"`
	Export   ExportConfig   `mapstructure:"export"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig describes the site being crawled.
type SourceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	UserAgent     string `mapstructure:"user_agent"`
	RenderJS      bool   `mapstructure:"render_js"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// CrawlerConfig governs pacing and the page ceiling.
type CrawlerConfig struct {
	Delay    time.Duration `mapstructure:"delay"`
	MaxPages int           `mapstructure:"max_pages"`
}

// HTTPConfig configures the plain HTTP fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the Chrome fetcher used when render_js is set.
type HeadlessConfig struct {
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	ExecPath      string `mapstructure:"exec_path"`
}

// DBConfig selects and tunes the relational store.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoaderConfig controls how corpus records are written.
type LoaderConfig struct {
	QuotePolicy string `mapstructure:"quote_policy"`
}

// CorpusConfig names the intermediate JSON files.
type CorpusConfig struct {
	QuotesFile  string `mapstructure:"quotes_file"`
	AuthorsFile string `mapstructure:"authors_file"`
}

// ExportConfig controls the snapshot export.
type ExportConfig struct {
	Path    string `mapstructure:"path"`
	TopTags int    `mapstructure:"top_tags"`
}

// ArchiveConfig enables raw page archiving. Dir and GCSBucket are mutually
// exclusive; leaving both empty disables archiving.
type ArchiveConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds the run notification destination.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the read API.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional file and QUOTES_* environment
// variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "http://quotes.toscrape.com")
	v.SetDefault("source.user_agent", "quotes-crawler/1.0")
	v.SetDefault("source.render_js", false)
	v.SetDefault("source.respect_robots", true)
	v.SetDefault("crawler.delay", "1s")
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "quotes.db")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("loader.quote_policy", "append")
	v.SetDefault("corpus.quotes_file", "quotes.json")
	v.SetDefault("corpus.authors_file", "authors.json")
	v.SetDefault("export.path", "exported_quotes_data.json")
	v.SetDefault("export.top_tags", 10)
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("logging.development", true)
}

func (c *Config) normalize() {
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	c.Loader.QuotePolicy = strings.ToLower(strings.TrimSpace(c.Loader.QuotePolicy))
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("source.base_url must be an absolute http(s) URL, got %q", c.Source.BaseURL))
	}
	if c.Crawler.Delay < 0 {
		errs = append(errs, errors.New("crawler.delay must be >= 0"))
	}
	if c.Crawler.MaxPages < 0 {
		errs = append(errs, errors.New("crawler.max_pages must be >= 0"))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http.timeout_seconds must be > 0"))
	}
	if c.Source.RenderJS && c.Headless.NavTimeoutSec <= 0 {
		errs = append(errs, errors.New("headless.nav_timeout_seconds must be > 0 when source.render_js is set"))
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver))
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		errs = append(errs, errors.New("db.min_conns and db.max_conns must be >= 0 with min <= max"))
	}
	switch c.Loader.QuotePolicy {
	case "append", "skip_existing":
	default:
		errs = append(errs, fmt.Errorf("loader.quote_policy must be append or skip_existing, got %q", c.Loader.QuotePolicy))
	}
	if c.Corpus.QuotesFile == "" || c.Corpus.AuthorsFile == "" {
		errs = append(errs, errors.New("corpus.quotes_file and corpus.authors_file are required"))
	}
	if c.Export.TopTags <= 0 {
		errs = append(errs, errors.New("export.top_tags must be > 0"))
	}
	if c.Archive.Dir != "" && c.Archive.GCSBucket != "" {
		errs = append(errs, errors.New("archive.dir and archive.gcs_bucket are mutually exclusive"))
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		errs = append(errs, errors.New("pubsub.project_id is required when pubsub.topic is set"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server.port must be between 1 and 65535"))
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("server.request_timeout_seconds must be > 0"))
	}
	return errors.Join(errs...)
}

// HTTPTimeout returns the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavigationTimeout returns the headless page load budget.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// RequestTimeout returns the read API handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// CrawlBaseURL is the listing root. The JavaScript-rendered variant of the
// site lives under /js.
func (c Config) CrawlBaseURL() string {
	if c.Source.RenderJS {
		return c.Source.BaseURL + "/js"
	}
	return c.Source.BaseURL
}
