package tts

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// poster sends JSON bodies with retry on 429 and 5xx responses.
type poster struct {
	provider   string
	client     *http.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	parseError func(*http.Response) error
}

// post issues a POST and returns the body of the first 200 response.
func (p *poster) post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(p.provider, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(p.provider, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, WrapError(p.provider, err)
			}
			return data, nil
		}

		apiErr := p.parseError(resp)
		resp.Body.Close()
		if !retryable(resp.StatusCode) {
			return nil, apiErr
		}
		lastErr = apiErr
		p.logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", resp.StatusCode,
		)
	}

	return nil, lastErr
}

// get issues a GET and maps non-200 responses through parseError.
func (p *poster) get(ctx context.Context, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(p.provider, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return WrapError(p.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.parseError(resp)
	}
	return nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
