package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/version"
)

// ErrUnauthorized is returned when the server rejects the agent password.
var ErrUnauthorized = errors.New("authentication failed: check your password")

type Reporter struct {
	httpClient *http.Client
	serverURL  string
	password   string
}

func NewReporter(serverURL, password string, insecureSkipTLS bool) *Reporter {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Reporter{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		serverURL: serverURL,
		password:  password,
	}
}

// Send pushes one report to POST /metrics.
func (r *Reporter) Send(ctx context.Context, report *models.MetricsReport) (*models.IngestResponse, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+"/metrics", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Password", r.password)
	req.Header.Set("User-Agent", "coresight-agent/"+version.Version)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, serverMessage(resp.Body))
	}

	var result models.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func serverMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(bytes.TrimSpace(raw))
}
