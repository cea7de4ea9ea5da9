// Package probe performs single reachability checks against target URLs.
//
// A probe is one HEAD request with a fixed deadline. It never retries and
// never returns an error to its caller: transport failures (timeouts,
// refused connections, DNS errors) are reported as an unsuccessful Outcome.
// Any HTTP response counts as reachable, whatever its status code.
//
// The elapsed time is wall-clock time measured around the round trip on the
// client side, so it includes connection setup and TLS handshakes.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/guregu/null/v5"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Outcome is the result of one probe.
type Outcome struct {
	Succeeded bool
	Elapsed   time.Duration
	// Err is the transport error of a failed probe, kept for logging only.
	Err error
}

// ResponseTime returns the elapsed time in seconds, or null if the probe failed.
func (o Outcome) ResponseTime() null.Float {
	if !o.Succeeded {
		return null.Float{}
	}
	return null.FloatFrom(o.Elapsed.Seconds())
}

// Prober performs a single reachability check.
type Prober interface {
	Probe(ctx context.Context, url string) Outcome
}

// HTTPProber probes targets with HEAD requests.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPProber creates a prober with the given timeout. A non-positive
// timeout falls back to DefaultTimeout.
func NewHTTPProber(timeout time.Duration, logger *slog.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProber{
		timeout: timeout,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
			// The first response is the measurement; redirects are not followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe issues one HEAD request against url.
func (p *HTTPProber) Probe(ctx context.Context, url string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		p.logger.Debug("probe request invalid", slog.String("url", url), slog.Any("err", err))
		return Outcome{Err: err}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Debug("probe failed", slog.String("url", url), slog.Any("err", err))
		return Outcome{Err: err}
	}
	resp.Body.Close()

	p.logger.Debug("probe succeeded",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed))
	return Outcome{Succeeded: true, Elapsed: elapsed}
}
