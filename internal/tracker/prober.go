package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coresight/coresight/internal/models"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultHealthPort   = 3001
)

// Prober performs reachability checks. Failures never surface as errors;
// they are reported in the returned ProbeResult.
type Prober struct {
	client     *http.Client
	timeout    time.Duration
	healthPort int
}

func NewProber(timeout time.Duration, healthPort int) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if healthPort <= 0 {
		healthPort = DefaultHealthPort
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Prober{
		client:     &http.Client{Transport: transport, Timeout: timeout},
		timeout:    timeout,
		healthPort: healthPort,
	}
}

// Close drops idle keep-alive connections.
func (p *Prober) Close() {
	p.client.CloseIdleConnections()
}

// Target returns the URL probed for e.
func (p *Prober) Target(e *models.Entity) string {
	if e.MonitorType == models.MonitorWebsite {
		u := e.Config.URL
		if u == "" {
			u = e.Address
		}
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		return u
	}

	port := e.Config.HealthPort
	if port <= 0 {
		port = p.healthPort
	}
	host := e.Address
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/health"
}

// Probe checks e once within the prober's timeout. A website probe over
// https that fails at the transport level is retried over plain http
// inside the same deadline.
func (p *Prober) Probe(ctx context.Context, e *models.Entity) models.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := p.Target(e)
	result := p.get(ctx, e, target)
	if !result.Reachable && result.StatusCode == 0 &&
		e.MonitorType == models.MonitorWebsite && strings.HasPrefix(target, "https://") {
		fallback := p.get(ctx, e, "http://"+strings.TrimPrefix(target, "https://"))
		if fallback.Reachable || fallback.StatusCode != 0 {
			return fallback
		}
	}
	return result
}

func (p *Prober) get(ctx context.Context, e *models.Entity, target string) models.ProbeResult {
	result := models.ProbeResult{
		EntityID:  e.ID,
		CheckedAt: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("invalid target %q: %v", target, err)
		return result
	}
	req.Header.Set("User-Agent", "CoreSight-Probe/1.0")

	start := time.Now()
	resp, err := p.client.Do(req)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		result.ErrorMessage = classifyProbeError(err)
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.StatusCode = resp.StatusCode
	result.Reachable = statusUp(resp.StatusCode, e.Config.ExpectedStatus)
	if !result.Reachable {
		result.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

func statusUp(code, expected int) bool {
	if expected > 0 {
		return code == expected
	}
	return code >= 200 && code < 400
}

func classifyProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: " + err.Error()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns: " + dnsErr.Error()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout: " + err.Error()
	}
	return err.Error()
}
