// Package backend is the HTTP client for the job marketplace API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// idempotencyNS scopes the idempotency keys derived from payment hashes.
var idempotencyNS = uuid.MustParse("6f1c2f0e-3a5b-4c8e-9d2a-7b4e1f0c9a11")

// Client talks to the /jobs endpoints. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a client rooted at baseURL (e.g. http://localhost:5000/api).
// A zero timeout selects the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SearchJobs runs GET /jobs/search. Only non-empty filters are sent.
// A non-empty token asks the backend to add similarity scores.
func (c *Client) SearchJobs(ctx context.Context, q model.JobQuery, token string) ([]model.JobPosting, error) {
	params := url.Values{}
	setIf(params, "q", q.Text)
	setIf(params, "skills", q.Skills)
	setIf(params, "location", q.Location)
	setIf(params, "tags", q.Tags)

	endpoint := c.baseURL + "/jobs/search"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	jobs := make([]model.JobPosting, 0)
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// SkillSuggestions runs GET /jobs/skills?q=.
func (c *Client) SkillSuggestions(ctx context.Context, query string) ([]string, error) {
	endpoint := c.baseURL + "/jobs/skills?" + url.Values{"q": {query}}.Encode()

	var skills []string
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, nil, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// CreateJob runs POST /jobs. The payment hash doubles as the idempotency key
// so a retried request cannot create a second posting for one payment.
func (c *Client) CreateJob(ctx context.Context, req model.CreateJobRequest, token string) (model.JobPosting, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.JobPosting{}, errors.Wrap(err, "marshal create request")
	}
	headers := http.Header{}
	headers.Set("Idempotency-Key", uuid.NewSHA1(idempotencyNS, []byte(strings.ToLower(req.PaymentTxHash))).String())

	var job model.JobPosting
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/jobs", token, headers, body, &job); err != nil {
		return model.JobPosting{}, err
	}
	return job, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, headers http.Header, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return errors.Wrapf(err, "build %s request", method)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(apperr.ErrNetworkFailure, "%s %s: %v", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	log.WithField("method", method).
		WithField("path", req.URL.Path).
		WithField("status", resp.StatusCode).
		WithField("elapsed", time.Since(start)).
		Debug("backend call")

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Wrapf(&apperr.ServerError{Status: resp.StatusCode, Msg: errorMessage(raw)}, "%s %s", method, req.URL.Path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(apperr.ErrNetworkFailure, "decode %s response: %v", req.URL.Path, err)
	}
	return nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from an error body,
// falling back to the trimmed raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func setIf(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}
