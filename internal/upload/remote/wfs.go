package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

const (
	wfsFetchError = "There was an error downloading the wfs"
	wfsPageSize   = 50
)

type wfsPage struct {
	Features []json.RawMessage `json:"features"`
}

// uploadWFS pages through a WFS endpoint in batches of 50 features until a
// page comes back empty, merges the pages, and direct-loads the result
// under the typeName query parameter. A body containing "ServiceException"
// is a fetch failure even on HTTP 200.
func (c *Client) uploadWFS(ctx context.Context, rawURL string) ([]ingest.Result, error) {
	typeName, err := wfsTypeName(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := c.wfsPage(ctx, fmt.Sprintf("%s&maxFeatures=%d&outputFormat=application%%2Fjson", rawURL, wfsPageSize))
	if err != nil {
		return nil, err
	}

	features := page.Features
	for pages, start := 1, wfsPageSize; pages < maxPages; pages, start = pages+1, start+wfsPageSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting on page rate limit: %w", err)
		}
		next, err := c.wfsPage(ctx, fmt.Sprintf("%s&maxFeatures=%d&startIndex=%d&outputFormat=application%%2Fjson",
			rawURL, wfsPageSize, start))
		if err != nil {
			return nil, err
		}
		if len(next.Features) == 0 {
			break
		}
		features = append(features, next.Features...)
	}

	return c.loadFeatureCollection(ctx, typeName, features)
}

func (c *Client) wfsPage(ctx context.Context, url string) (*wfsPage, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, &ingest.FetchError{Detail: wfsFetchError}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.FetchError{Detail: wfsFetchError}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ingest.FetchError{Detail: wfsFetchError}
	}
	if strings.Contains(string(body), "ServiceException") {
		return nil, &ingest.FetchError{Detail: wfsFetchError}
	}

	var page wfsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &ingest.FetchError{Detail: wfsFetchError}
	}
	return &page, nil
}

func wfsTypeName(rawURL string) (string, error) {
	parts := strings.SplitN(rawURL, "typeName=", 2)
	if len(parts) < 2 {
		parts = strings.SplitN(rawURL, "typename=", 2)
	}
	if len(parts) < 2 {
		return "", &ingest.ValidationError{Detail: "could not determine typeName from url"}
	}
	name := strings.SplitN(parts[1], "&", 2)[0]
	if name == "" {
		return "", &ingest.ValidationError{Detail: "could not determine typeName from url"}
	}
	return name, nil
}
