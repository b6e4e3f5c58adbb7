package clients

import (
	"context"
	"net/http"
	"time"
)

// PlaceData is the structured result of crawling one place.
type PlaceData struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	ImageURLs   []string `json:"image_urls"`
}

type crawlRequest struct {
	SearchQuery string `json:"search_query"`
	PlaceName   string `json:"place_name"`
}

// Crawler talks to the external crawler service.
type Crawler struct {
	base string
	hc   *http.Client
}

func NewCrawler(baseURL string, timeout time.Duration) *Crawler {
	return &Crawler{base: baseURL, hc: newHTTPClient(timeout)}
}

// Crawl fetches structured place data. A 404 means the place no longer
// exists upstream and surfaces as a not-found error.
func (c *Crawler) Crawl(ctx context.Context, searchQuery, placeName string) (PlaceData, error) {
	var out PlaceData
	err := postJSON(ctx, c.hc, c.base+"/crawl", crawlRequest{
		SearchQuery: searchQuery,
		PlaceName:   placeName,
	}, &out, "crawler")
	return out, err
}

type ingestRegionRequest struct {
	RegionType string `json:"region_type"`
	RegionCode string `json:"region_code"`
	RegionName string `json:"region_name"`
}

type ingestRegionResponse struct {
	Processed int32 `json:"processed"`
}

// IngestRegion asks the crawler service to discover and persist every
// place of one administrative region, returning how many it processed.
// Place creation stays on the crawler's side; this service only tracks
// region progress.
func (c *Crawler) IngestRegion(ctx context.Context, regionType, regionCode, regionName string) (int32, error) {
	var out ingestRegionResponse
	err := postJSON(ctx, c.hc, c.base+"/ingest-region", ingestRegionRequest{
		RegionType: regionType,
		RegionCode: regionCode,
		RegionName: regionName,
	}, &out, "crawler")
	return out.Processed, err
}
