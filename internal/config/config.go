package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the client configuration loaded from flags, environment variables and .env files.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	BaseURL               string        `mapstructure:"base_url"`
	GetPath               string        `mapstructure:"get_path"`
	PostPath              string        `mapstructure:"post_path"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	RenderGetErrors       bool          `mapstructure:"render_get_errors"`

	PageFile        string `mapstructure:"page_file"`
	PageOut         string `mapstructure:"page_out"`
	Name            string `mapstructure:"name"`
	PostName        string `mapstructure:"post_name"`
	NameInputID     string `mapstructure:"name_input_id"`
	PostNameInputID string `mapstructure:"post_name_input_id"`
	GetOutputID     string `mapstructure:"get_output_id"`
	PostOutputID    string `mapstructure:"post_output_id"`

	SinksFile string `mapstructure:"sinks_file"`

	HistoryType            string        `mapstructure:"history_type"`
	HistoryPath            string        `mapstructure:"history_path"`
	HistoryTTLSeconds      int64         `mapstructure:"history_ttl_seconds"`
	HistoryCleanupSeconds  int64         `mapstructure:"history_cleanup_interval_seconds"`
	HistoryTTL             time.Duration `mapstructure:"-"`
	HistoryCleanupInterval time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Flags returns the command line flag set understood by Load. Flag names use
// dashes and map onto the underscore config keys.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("base-url", "", "server base URL")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("name", "", "initial value of the GET name input")
	fs.String("post-name", "", "initial value of the POST name input")
	fs.String("page-file", "", "HTML page providing the input and output elements")
	fs.String("page-out", "", "write the rendered page here on exit")
	fs.String("sinks-file", "", "YAML/JSON file declaring exchange sinks")
	fs.String("history-type", "", "history backend (bbolt, none)")
	fs.String("history-path", "", "bbolt history file")
	fs.Int64("request-timeout-seconds", 0, "per request timeout, 0 disables it")
	fs.Bool("render-get-errors", true, "render GET transport failures into the display")
	fs.String("metrics-addr", "", "listen address for the /metrics endpoint")
	return fs
}

// Load reads configuration from environment variables, config files and the
// optional flag set. Only flags explicitly set on the command line override
// the other sources.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "hello-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_url", "http://localhost:35000")
	v.SetDefault("get_path", "/hello")
	v.SetDefault("post_path", "/hellopost")
	v.SetDefault("request_timeout_seconds", 0) // no timeout
	v.SetDefault("render_get_errors", true)
	v.SetDefault("page_file", "")
	v.SetDefault("page_out", "")
	v.SetDefault("name", "")
	v.SetDefault("post_name", "")
	v.SetDefault("name_input_id", "name")
	v.SetDefault("post_name_input_id", "postname")
	v.SetDefault("get_output_id", "getrespmsg")
	v.SetDefault("post_output_id", "postrespmsg")
	v.SetDefault("sinks_file", "")
	v.SetDefault("history_type", "bbolt")
	v.SetDefault("history_path", "./data/history.db")
	v.SetDefault("history_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("history_cleanup_interval_seconds", int64((time.Hour)/time.Second))
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.Visit(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q (expected scheme://host[:port])", cfg.BaseURL)
	}

	cfg.GetPath = ensureLeadingSlash(cfg.GetPath)
	cfg.PostPath = ensureLeadingSlash(cfg.PostPath)

	if cfg.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.HistoryTTLSeconds <= 0 {
		return fmt.Errorf("invalid history_ttl_seconds (must be positive seconds)")
	}
	if cfg.HistoryCleanupSeconds <= 0 {
		return fmt.Errorf("invalid history_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSeconds) * time.Second
	cfg.HistoryCleanupInterval = time.Duration(cfg.HistoryCleanupSeconds) * time.Second

	return nil
}

func ensureLeadingSlash(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
