package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Config holds patcher configuration.
type Config struct {
	InputPath    string // local path or http(s) URL
	CSVPath      string
	OutputFile   string
	ReportFile   string // optional per-block report
	ReportFormat string // csv, json, dual, or empty to pick by extension
	MetricsFile  string // optional Prometheus textfile

	CodeColumn string
	IDColumn   string
	Comma      rune

	ItemSelector  string
	ImageSelector string
	FormSelector  string
	LegacyField   string
	TargetField   string

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string
	Verbose         bool
}

// DefaultConfig returns the defaults for the catalog export format.
func DefaultConfig() *Config {
	return &Config{
		OutputFile:      "updated.html",
		CodeColumn:      "Код артикула",
		IDColumn:        "ID артикула",
		Comma:           ';',
		ItemSelector:    "div.item",
		ImageSelector:   "img",
		FormSelector:    "form.addtocart",
		LegacyField:     "product_id",
		TargetField:     "sku_id",
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	}
}

// IsRemote reports whether the input should be fetched over HTTP.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return fmt.Errorf("html input cannot be empty")
	}
	if strings.TrimSpace(c.CSVPath) == "" {
		return fmt.Errorf("csv path cannot be empty")
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.ReportFormat {
	case "", "csv", "json", "dual":
	default:
		return fmt.Errorf("report format must be csv, json, or dual")
	}
	if c.CodeColumn == "" || c.IDColumn == "" {
		return fmt.Errorf("code and id column names cannot be empty")
	}
	if c.CodeColumn == c.IDColumn {
		return fmt.Errorf("code and id columns must differ")
	}
	if c.Comma == 0 || c.Comma == '"' || c.Comma == '\n' || c.Comma == '\r' {
		return fmt.Errorf("invalid csv delimiter %q", c.Comma)
	}

	selectors := map[string]string{
		"item selector":  c.ItemSelector,
		"image selector": c.ImageSelector,
		"form selector":  c.FormSelector,
	}
	for name, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, sel, err)
		}
	}

	if c.LegacyField == "" || c.TargetField == "" {
		return fmt.Errorf("field names cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
