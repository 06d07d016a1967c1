// Package config loads crawler settings from a .env file and environment
// variables. Environment variables always win over .env values.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"mxshs/oddsportal/src/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	BaseURL        string
	FeedHost       string
	BookiesHost    string
	BookiesBuildID string
	SeasonCutoff   int
	ListingSettle  time.Duration
	MatchSettle    time.Duration
	MaxPages       int

	MaxRetries       int
	RetryGranularity string
	ProgressEvery    int
	Bookmakers       map[domain.Market]string

	HTTPTimeout time.Duration
	UserAgent   string
	Referer     string
	Headless    bool
	WindowSize  string

	// DBDriver is "postgres" or "sqlite". For sqlite, DatabaseURL is the file path.
	DBDriver    string
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	OutputDir string
	Debug     bool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine, real deployments use the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BASE_URL", "https://www.oddsportal.com")
	v.SetDefault("FEED_HOST", "fb.oddsportal.com")
	v.SetDefault("BOOKIES_HOST", "www.oddsportal.com")
	v.SetDefault("BOOKIES_BUILD_ID", "201014103652")
	v.SetDefault("SEASON_CUTOFF_YEAR", 2013)
	v.SetDefault("LISTING_SETTLE", "3s")
	v.SetDefault("MATCH_SETTLE", "1s")
	v.SetDefault("MAX_PAGES", 0)
	v.SetDefault("MAX_RETRIES", 2)
	v.SetDefault("RETRY_GRANULARITY", "match")
	v.SetDefault("PROGRESS_EVERY", 25)
	v.SetDefault("BOOKMAKER_1X2", "18")
	v.SetDefault("BOOKMAKER_CS", "16")
	v.SetDefault("BOOKMAKER_AHC", "18")
	v.SetDefault("BOOKMAKER_TG", "18")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("USER_AGENT", defaultUserAgent)
	v.SetDefault("REFERER", "https://www.oddsportal.com/")
	v.SetDefault("HEADLESS", true)
	v.SetDefault("WINDOW_SIZE", "1920,1080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "oddsportal")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("OUTPUT_DIR", "out")
	v.SetDefault("DEBUG", false)
}

// reader pulls typed values out of viper and keeps every parse error.
// viper's own getters turn garbage into zero values.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) int(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s must be an integer, got %q", key, r.v.GetString(key)))
	}
	return n
}

func (r *reader) bool(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s must be true or false, got %q", key, r.v.GetString(key)))
	}
	return b
}

// duration requires a unit: cast reads a bare "3" as nanoseconds.
func (r *reader) duration(key string) time.Duration {
	raw := strings.TrimSpace(r.v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s must be a duration like 3s, got %q", key, raw))
	}
	return d
}

func fromViper(v *viper.Viper) (*Config, error) {
	r := &reader{v: v}
	cfg := &Config{
		BaseURL:          strings.TrimSuffix(v.GetString("BASE_URL"), "/"),
		FeedHost:         v.GetString("FEED_HOST"),
		BookiesHost:      v.GetString("BOOKIES_HOST"),
		BookiesBuildID:   v.GetString("BOOKIES_BUILD_ID"),
		SeasonCutoff:     r.int("SEASON_CUTOFF_YEAR"),
		ListingSettle:    r.duration("LISTING_SETTLE"),
		MatchSettle:      r.duration("MATCH_SETTLE"),
		MaxPages:         r.int("MAX_PAGES"),
		MaxRetries:       r.int("MAX_RETRIES"),
		RetryGranularity: strings.ToLower(v.GetString("RETRY_GRANULARITY")),
		ProgressEvery:    r.int("PROGRESS_EVERY"),
		Bookmakers: map[domain.Market]string{
			domain.MarketMatchResult:  v.GetString("BOOKMAKER_1X2"),
			domain.MarketCorrectScore: v.GetString("BOOKMAKER_CS"),
			domain.MarketHandicap:     v.GetString("BOOKMAKER_AHC"),
			domain.MarketTotalGoals:   v.GetString("BOOKMAKER_TG"),
		},
		HTTPTimeout: r.duration("HTTP_TIMEOUT"),
		UserAgent:   v.GetString("USER_AGENT"),
		Referer:     v.GetString("REFERER"),
		Headless:    r.bool("HEADLESS"),
		WindowSize:  v.GetString("WINDOW_SIZE"),
		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		OutputDir:   v.GetString("OUTPUT_DIR"),
		Debug:       r.bool("DEBUG"),
	}

	if err := errors.Join(append(r.errs, cfg.validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.RetryGranularity {
	case "match", "market":
	default:
		errs = append(errs, fmt.Errorf("config: RETRY_GRANULARITY must be match or market, got %q", c.RetryGranularity))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("config: MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.ProgressEvery <= 0 {
		errs = append(errs, fmt.Errorf("config: PROGRESS_EVERY must be positive, got %d", c.ProgressEvery))
	}
	if c.SeasonCutoff <= 0 {
		errs = append(errs, fmt.Errorf("config: SEASON_CUTOFF_YEAR must be positive, got %d", c.SeasonCutoff))
	}
	if c.ListingSettle <= 0 {
		errs = append(errs, fmt.Errorf("config: LISTING_SETTLE must be positive, got %s", c.ListingSettle))
	}
	if c.MatchSettle <= 0 {
		errs = append(errs, fmt.Errorf("config: MATCH_SETTLE must be positive, got %s", c.MatchSettle))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("config: MAX_PAGES must not be negative, got %d", c.MaxPages))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}

	return errors.Join(errs...)
}

// DSN returns the connection string for DBDriver. For postgres DATABASE_URL
// takes precedence over the individual fields.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		if c.DatabaseURL == "" {
			return "oddsportal.db"
		}
		return c.DatabaseURL
	}
	return c.PostgresDSN()
}

func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}
