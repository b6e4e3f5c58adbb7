package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sjsh1623/MoheBatch-sub001/pipeline"
)

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embedding talks to the external embedding service. The service accepts
// an ordered array of strings and returns a same-length array of vectors.
type Embedding struct {
	base string
	hc   *http.Client
}

func NewEmbedding(baseURL string, timeout time.Duration) *Embedding {
	return &Embedding{base: baseURL, hc: newHTTPClient(timeout)}
}

// Embed returns one vector per input text, in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out embedResponse
	if err := postJSON(ctx, e.hc, e.base+"/embed", embedRequest{Texts: texts}, &out, "embedding"); err != nil {
		return nil, err
	}
	// A well-formed reply has exactly one vector per text; anything else
	// is a malformed response, not a fault that retrying would cure.
	if len(out.Vectors) != len(texts) {
		return nil, pipeline.ValidationErr(fmt.Errorf("embedding: got %d vectors for %d texts", len(out.Vectors), len(texts)))
	}
	return out.Vectors, nil
}

// Health probes the service before the embedding job is allowed to start.
func (e *Embedding) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/health", nil)
	if err != nil {
		return pipeline.FatalErr(fmt.Errorf("embedding: build health request: %w", err))
	}
	resp, err := e.hc.Do(req)
	if err != nil {
		return pipeline.TransientErr(fmt.Errorf("embedding: health: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErr("embedding", resp)
	}
	return nil
}
