package clients

import (
	"context"
	"net/http"
	"time"
)

type imageRequest struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

type imageResponse struct {
	FileName string `json:"file_name"`
}

// Image talks to the external image-processor service.
type Image struct {
	base string
	hc   *http.Client
}

func NewImage(baseURL string, timeout time.Duration) *Image {
	return &Image{base: baseURL, hc: newHTTPClient(timeout)}
}

// Store downloads, processes and stores an image, returning the stored
// filename.
func (i *Image) Store(ctx context.Context, url, fileName string) (string, error) {
	var out imageResponse
	if err := postJSON(ctx, i.hc, i.base+"/process", imageRequest{URL: url, FileName: fileName}, &out, "image"); err != nil {
		return "", err
	}
	return out.FileName, nil
}
