package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// TestBackendRequest is the invocation contract the Test Execution Workflow
// sends to a backend-specific executor (spec §4.10 step 2): given the two
// checked-out working trees plus the test/spec file locations and config, the
// executor reports back pass/fail counts.
type TestBackendRequest struct {
	Backend           string         `json:"backend"` // "python", "matlab", ...
	StudentPath       string         `json:"student_path"`
	ReferencePath     string         `json:"reference_path"`
	TestFile          string         `json:"test_file"`
	SpecFile          string         `json:"spec_file"`
	JobConfig         map[string]any `json:"job_config,omitempty"`
	BackendProperties map[string]any `json:"backend_properties,omitempty"`
}

// TestBackendResult is the executor's response (spec §4.10 step 2/3).
type TestBackendResult struct {
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
	Details map[string]any `json:"details,omitempty"`
}

// TestBackendClient dispatches a prepared test job to the configured
// backend-specific executor over REST, grounded on the same
// http.Client{Timeout}/manual-JSON idiom as GitHostClient (spec §4.4, §4.10).
type TestBackendClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestBackendClient(baseURL string) *TestBackendClient {
	return &TestBackendClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Minute,
		},
	}
}

// Run submits one test job and waits for the synchronous result. The
// underlying executor runs the suite and returns the outcome in the same
// request/response cycle; long-running suites rely on the activity's own
// start-to-close timeout (spec §4.5: 5-20 min for long activities), not on
// polling.
func (c *TestBackendClient) Run(ctx context.Context, req TestBackendRequest) (TestBackendResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TestBackendResult{}, apperrors.Internal("marshaling test backend request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return TestBackendResult{}, apperrors.Internal("building test backend request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TestBackendResult{}, apperrors.Upstream("calling test backend "+req.Backend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TestBackendResult{}, apperrors.Upstream("reading test backend response", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return TestBackendResult{}, apperrors.Upstream(fmt.Sprintf("test backend returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return TestBackendResult{}, apperrors.Validation(fmt.Sprintf("test backend rejected job: %s", string(respBody)), nil)
	}

	var out TestBackendResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return TestBackendResult{}, apperrors.Upstream("decoding test backend response", err)
	}
	return out, nil
}
