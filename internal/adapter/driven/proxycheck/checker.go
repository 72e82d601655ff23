// Package proxycheck implements the ProxyValidator port with a single HTTP probe.
package proxycheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
	"github.com/ericfisherdev/miniappq/internal/metrics"
)

// Compile-time interface satisfaction check.
var _ driven.ProxyValidator = (*Checker)(nil)

// Probe outcomes, used as the metrics label and in logs.
const (
	resultOK           = "ok"
	resultBadStatus    = "bad_status"
	resultProxyConnect = "proxy_connect"
	resultTimeout      = "timeout"
	resultError        = "error"
)

// Checker probes a proxy by fetching probeURL through it.
type Checker struct {
	probeURL string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChecker creates a Checker. timeout bounds the whole probe request.
func NewChecker(probeURL string, timeout time.Duration, logger *slog.Logger) *Checker {
	return &Checker{
		probeURL: probeURL,
		timeout:  timeout,
		logger:   logger,
	}
}

// Validate returns true only when the probe answers HTTP 200 through the proxy.
// Every other outcome makes the proxy unusable; the outcome kind is only logged.
func (c *Checker) Validate(ctx context.Context, proxy model.Proxy) bool {
	result := c.probe(ctx, proxy)
	metrics.ObserveProxyCheck(result)
	return result == resultOK
}

func (c *Checker) probe(ctx context.Context, proxy model.Proxy) string {
	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyURL(proxy.URL()),
			TLSHandshakeTimeout: c.timeout,
			DisableKeepAlives:   true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		c.logger.Error("proxy probe request invalid", "probe_url", c.probeURL, "error", err)
		return resultError
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		result := classify(err)
		c.logger.Warn("proxy unusable",
			"proxy", proxy.Addr(),
			"result", result,
			"error", err,
		)
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("proxy unusable",
			"proxy", proxy.Addr(),
			"result", resultBadStatus,
			"status", resp.StatusCode,
		)
		return resultBadStatus
	}

	c.logger.Info("proxy ok",
		"proxy", proxy.Addr(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return resultOK
}

// classify maps a transport error to a probe outcome.
func classify(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		return resultProxyConnect
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resultTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resultTimeout
	}

	return resultError
}
