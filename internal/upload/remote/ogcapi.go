package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

const ogcFetchError = "There was an error downloading the feature collection"

type ogcFeaturePage struct {
	NumberMatched  int               `json:"numberMatched"`
	NumberReturned int               `json:"numberReturned"`
	Features       []json.RawMessage `json:"features"`
}

// uploadOGCFeatures pages through an OGC API - Features collection's /items
// endpoint, merges every page into one FeatureCollection, and direct-loads
// it under the collection id.
func (c *Client) uploadOGCFeatures(ctx context.Context, rawURL string) ([]ingest.Result, error) {
	collectionID, err := ogcCollectionID(rawURL)
	if err != nil {
		return nil, err
	}

	page, err := c.ogcPage(ctx, rawURL+"/items")
	if err != nil {
		return nil, err
	}

	features := page.Features
	returned := page.NumberReturned
	for pages := 1; returned < page.NumberMatched && pages < maxPages; pages++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting on page rate limit: %w", err)
		}
		next, err := c.ogcPage(ctx, fmt.Sprintf("%s/items?offset=%d", rawURL, returned))
		if err != nil {
			return nil, err
		}
		if next.NumberReturned == 0 {
			break
		}
		features = append(features, next.Features...)
		returned += next.NumberReturned
	}

	return c.loadFeatureCollection(ctx, collectionID, features)
}

func (c *Client) ogcPage(ctx context.Context, url string) (*ogcFeaturePage, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, &ingest.FetchError{Detail: ogcFetchError}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.FetchError{Detail: ogcFetchError}
	}

	var page ogcFeaturePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &ingest.FetchError{Detail: ogcFetchError}
	}
	return &page, nil
}

func ogcCollectionID(rawURL string) (string, error) {
	parts := strings.SplitN(rawURL, "collections/", 2)
	if len(parts) < 2 {
		return "", &ingest.ValidationError{Detail: "could not determine collection id from url"}
	}
	id := strings.SplitN(parts[1], "/", 2)[0]
	if id == "" {
		return "", &ingest.ValidationError{Detail: "could not determine collection id from url"}
	}
	return id, nil
}

// loadFeatureCollection materializes merged pages as a GeoJSON file and
// direct-loads it, removing the file regardless of outcome.
func (c *Client) loadFeatureCollection(ctx context.Context, name string, features []json.RawMessage) ([]ingest.Result, error) {
	doc := struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}{Type: "FeatureCollection", Features: features}
	if doc.Features == nil {
		doc.Features = []json.RawMessage{}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding feature collection: %w", err)
	}

	path, cleanup, err := c.materialize(ingest.CleanString(name)+".geojson", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return []ingest.Result{c.ingestor.UploadGeographicFile(ctx, path, name)}, nil
}
