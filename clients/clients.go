// Package clients holds the thin HTTP clients for the external
// collaborators: the crawler service, the embedding service and the image
// processor. Calls are plain request/response with explicit timeouts;
// response status codes are mapped onto the engine's error taxonomy so the
// retry policy can act on them.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// statusErr converts a non-2xx response into a typed pipeline error:
// 404 completes the item as not-found, other 4xx skip, 5xx retry.
func statusErr(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", service, resp.StatusCode, bytes.TrimSpace(body))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pipeline.NotFoundErr(err)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return pipeline.ValidationErr(err)
	default:
		return pipeline.TransientErr(err)
	}
}

func postJSON(ctx context.Context, hc *http.Client, url string, in, out any, service string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return pipeline.ValidationErr(fmt.Errorf("%s: encode request: %w", service, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pipeline.FatalErr(fmt.Errorf("%s: build request: %w", service, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return pipeline.TransientErr(fmt.Errorf("%s: %w", service, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErr(service, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.TransientErr(fmt.Errorf("%s: decode response: %w", service, err))
	}
	return nil
}
