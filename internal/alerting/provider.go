package alerting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider sends alert notifications to an external service.
type Provider interface {
	Send(ctx context.Context, n *Notice) error
	Validate() error
	Name() string
}

// httpClient is shared by the HTTP-based providers.
var httpClient = &http.Client{Timeout: 15 * time.Second}

// postForm submits form to endpoint. A 4xx or 5xx reply becomes an error
// that quotes the start of the response body.
func postForm(ctx context.Context, service, endpoint string, form url.Values, prepare func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if prepare != nil {
		prepare(req)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s API error (status %d): %s", service, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
