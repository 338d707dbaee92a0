/*
Package feed fetches the daily substitution-plan documents.

PURPOSE:
  Thin HTTP client for the school server that publishes one XML document
  per day under a fixed naming scheme, protected by basic auth. The client
  only moves bytes; parsing lives in package plan.

RESOURCE NAMING:
  <base-url>/VplanKl<YYYYMMDD>.xml

ERROR MODEL:
  A 404 means the day simply has no plan (weekend, holiday, not yet
  published) and is reported as ErrNotFound so callers can skip the day at
  info level. Network failures and 5xx responses are wrapped in
  TransientError; those days are skipped too but logged as errors, and a
  later run will pick them up again.

USAGE:
  client := feed.NewClient(cfg.BaseURL, cfg.Username, cfg.Password)
  raw, err := client.Fetch(ctx, day)
  if errors.Is(err, feed.ErrNotFound) { ... }

SEE ALSO:
  - plan/parser.go: turns the fetched bytes into ScheduleRecords
  - ingest/: decides which days to fetch
*/
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound indicates the server has no document for the requested day.
var ErrNotFound = errors.New("no plan document for this day")

// TransientError wraps a failure worth retrying on a later run: a network
// error or a server-side (5xx) response.
type TransientError struct {
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient feed failure: status %d", e.StatusCode)
	}
	return fmt.Sprintf("transient feed failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Client fetches plan documents over HTTP with basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient creates a feed client. baseURL is taken without a trailing
// slash; credentials may be empty for unprotected servers.
func NewClient(baseURL, username, password string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ResourceName returns the document name the server uses for a given day.
func ResourceName(date time.Time) string {
	return "VplanKl" + date.Format("20060102") + ".xml"
}

// Fetch retrieves the raw plan document for one day.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]byte, error) {
	url := c.baseURL + "/" + ResourceName(date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransientError{Err: err}
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ResourceName(date))
	case resp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: resp.StatusCode}
	default:
		// 401/403 and friends are configuration problems, not transient.
		return nil, fmt.Errorf("feed request for %s failed: status %d", ResourceName(date), resp.StatusCode)
	}
}
