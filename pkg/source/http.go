package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/config"
)

// Compile-time interface check.
var _ Source = (*httpSource)(nil)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError
}

type httpSource struct {
	log     logrus.FieldLogger
	name    string
	url     string
	headers map[string]string
	client  *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
}

// NewHTTPSource creates a Source fetching the tree from a board endpoint.
// Every attempt is bounded by the configured timeout; transport errors
// and 5xx responses are retried a bounded number of times.
func NewHTTPSource(
	log logrus.FieldLogger,
	name string,
	cfg *config.HTTPSourceConfig,
) Source {
	retries := config.DefaultHTTPRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultHTTPTimeout
	}

	return &httpSource{
		log:     log,
		name:    name,
		url:     cfg.TreeURL(),
		headers: cfg.Headers,
		client:  &http.Client{},
		timeout: timeout,
		retries: retries,
		backoff: cfg.RetryBackoff,
	}
}

// Name returns the mount prefix.
func (s *httpSource) Name() string {
	return s.name
}

// Fetch downloads the tree.
func (s *httpSource) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.log.WithError(lastErr).WithField("attempt", attempt+1).
				Warn("Retrying tree fetch")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		data, err := s.fetchOnce(ctx)
		if err == nil {
			return data, nil
		}

		lastErr = err

		if !retryable(ctx, err) {
			break
		}
	}

	return nil, fmt.Errorf("fetching %s: %w", s.url, lastErr)
}

func (s *httpSource) fetchOnce(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.Status)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return data, nil
}

// retryable reports whether a failed attempt should be repeated. Client
// errors are final and so is cancellation of the parent context.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrNotFound) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	return true
}
