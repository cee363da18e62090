package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coresight/coresight/internal/models"
)

const testURL = "https://mon.example.com"

func newMockedReporter(t *testing.T) *Reporter {
	t.Helper()
	r := NewReporter(testURL, "secret", false)
	httpmock.ActivateNonDefault(r.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return r
}

func testReport() *models.MetricsReport {
	snap := &models.HealthSnapshot{Hostname: "web-1", CPU: models.CPUStats{Usage: 12.5, Cores: 4}}
	report := snap.Report()
	return &report
}

func TestReporterSend(t *testing.T) {
	r := newMockedReporter(t)

	httpmock.RegisterResponder(http.MethodPost, testURL+"/metrics",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-Client-Password"))
			assert.Contains(t, req.Header.Get("User-Agent"), "coresight-agent/")

			var got models.MetricsReport
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			assert.Equal(t, "web-1", got.Hostname)
			require.NotNil(t, got.CPU.Usage)
			assert.Equal(t, 12.5, *got.CPU.Usage)

			return httpmock.NewJsonResponse(http.StatusOK, models.IngestResponse{
				Message:  "Metrics stored successfully",
				EntityID: "6f1c1d58-3c39-4f3b-9a43-0c1f6f1b2a10",
				AlertIDs: []int64{7},
			})
		})

	resp, err := r.Send(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "6f1c1d58-3c39-4f3b-9a43-0c1f6f1b2a10", resp.EntityID)
	assert.Equal(t, []int64{7}, resp.AlertIDs)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestReporterErrors(t *testing.T) {
	r := newMockedReporter(t)

	httpmock.RegisterResponder(http.MethodPost, testURL+"/metrics",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"unauthorized"}`))
	_, err := r.Send(context.Background(), testReport())
	assert.ErrorIs(t, err, ErrUnauthorized)

	httpmock.RegisterResponder(http.MethodPost, testURL+"/metrics",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"unknown host"}`))
	_, err = r.Send(context.Background(), testReport())
	assert.EqualError(t, err, "server returned status 404: unknown host")

	httpmock.RegisterResponder(http.MethodPost, testURL+"/metrics",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down\n"))
	_, err = r.Send(context.Background(), testReport())
	assert.EqualError(t, err, "server returned status 502: upstream down")
}
