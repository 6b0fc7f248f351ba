// Package source loads the catalog markup from disk or over HTTP.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/gocolly/colly/v2"
)

// Loader reads catalog pages from local paths or http(s) URLs.
type Loader struct {
	cfg       *config.Config
	collector *colly.Collector
	retries   int

	body   []byte
	status int
}

// NewLoader builds a loader configured from cfg.
func NewLoader(cfg *config.Config) *Loader {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		// A truncated page would be patched and written as if complete.
		colly.MaxBodySize(0),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	l := &Loader{cfg: cfg, collector: collector}
	collector.OnResponse(func(r *colly.Response) {
		l.body = r.Body
		l.status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			l.status = r.StatusCode
		}
	})
	return l
}

// WithTransport replaces the HTTP transport used for remote pages.
func (l *Loader) WithTransport(rt http.RoundTripper) {
	l.collector.WithTransport(rt)
}

// Retries reports how many retry attempts were made so far.
func (l *Loader) Retries() int {
	return l.retries
}

// Load returns the raw bytes of location.
func (l *Loader) Load(ctx context.Context, location string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !config.IsRemote(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, models.IOError{Op: "read", Path: location, Err: err}
		}
		return data, nil
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, models.IOError{Op: "fetch", Path: location, Err: err}
		}

		body, err := l.fetch(location)
		if err == nil {
			return body, nil
		}
		lastErr = err

		category := errorTypeLabel(err)
		slog.Error("fetch error",
			slog.String("url", location),
			slog.String("category", category),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
		if !retryable(err) || attempt >= l.cfg.MaxRetries {
			break
		}

		l.retries++
		select {
		case <-ctx.Done():
			return nil, models.IOError{Op: "fetch", Path: location, Err: ctx.Err()}
		case <-time.After(l.backoff(attempt + 1)):
		}
	}

	return nil, models.IOError{Op: "fetch", Path: location, Err: lastErr}
}

func (l *Loader) fetch(location string) ([]byte, error) {
	l.body, l.status = nil, 0
	if err := l.collector.Visit(location); err != nil {
		return nil, classifyError(err, l.status)
	}
	if l.body == nil {
		return nil, fmt.Errorf("empty response from %s", location)
	}
	return l.body, nil
}

func (l *Loader) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := l.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := l.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FetchError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchError{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FetchError{Kind: KindConnection, Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return FetchError{Kind: KindForbidden, Status: statusCode, Err: wrapped}
		case statusCode == http.StatusNotFound:
			return FetchError{Kind: KindNotFound, Status: statusCode, Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return FetchError{Kind: KindRateLimited, Status: statusCode, Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return FetchError{Kind: KindServer, Status: statusCode, Err: wrapped}
		}
	}

	return err
}
