package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const httpTimeout = 5 * time.Second

// HTTPOutput sends logs to a remote URL via POST, newline delimited.
type HTTPOutput struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewHTTPOutput(url string, headers map[string]string) *HTTPOutput {
	return &HTTPOutput{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

func (h *HTTPOutput) WriteBatch(entries [][]byte) error {
	return h.WriteBatchContext(context.Background(), entries)
}

// WriteBatchContext is WriteBatch with a caller-controlled context.
func (h *HTTPOutput) WriteBatchContext(ctx context.Context, entries [][]byte) error {
	body := bytes.Join(entries, []byte("\n"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http output: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http output: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http output failed with status: %d", resp.StatusCode)
	}
	return nil
}
