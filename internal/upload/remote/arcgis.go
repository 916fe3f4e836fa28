package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

const arcgisFetchError = "There was an error downloading the service"

type arcgisService struct {
	Error        json.RawMessage `json:"error"`
	Layers       json.RawMessage `json:"layers"`
	ID           json.Number     `json:"id"`
	Name         string          `json:"name"`
	Capabilities string          `json:"capabilities"`
}

type arcgisLayerRef struct {
	ID json.Number `json:"id"`
}

// uploadArcGIS reads the service metadata and direct-loads every queryable
// layer through the bulk loader's native GeoJSON support. Layers without
// "Query" capability are skipped, not errors.
func (c *Client) uploadArcGIS(ctx context.Context, rawURL string) ([]ingest.Result, error) {
	info, err := c.arcgisJSON(ctx, rawURL+"?f=pjson")
	if err != nil {
		return nil, err
	}

	if info.Layers == nil {
		// Same skip rule as individual layers: not queryable means
		// nothing to load, not a failure.
		if !strings.Contains(info.Capabilities, "Query") {
			return []ingest.Result{}, nil
		}
		return []ingest.Result{c.loadArcGISLayer(ctx, rawURL, info.Name)}, nil
	}

	var refs []arcgisLayerRef
	if err := json.Unmarshal(info.Layers, &refs); err != nil {
		return nil, &ingest.FetchError{Detail: arcgisFetchError}
	}

	base := rawURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	results := []ingest.Result{}
	for _, ref := range refs {
		layer, err := c.arcgisJSON(ctx, fmt.Sprintf("%s%s?f=json", base, ref.ID))
		if err != nil {
			return nil, err
		}
		if !strings.Contains(layer.Capabilities, "Query") {
			continue
		}
		results = append(results, c.loadArcGISLayer(ctx, fmt.Sprintf("%s%s", base, layer.ID), layer.Name))
	}
	return results, nil
}

func (c *Client) loadArcGISLayer(ctx context.Context, layerURL, layerName string) ingest.Result {
	query := layerURL + "/query?where=1=1&outfields=*&f=geojson"
	return c.ingestor.UploadGeographicFile(ctx, query, layerName)
}

func (c *Client) arcgisJSON(ctx context.Context, url string) (*arcgisService, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, &ingest.FetchError{Detail: arcgisFetchError}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.FetchError{Detail: arcgisFetchError}
	}

	var info arcgisService
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &ingest.FetchError{Detail: arcgisFetchError}
	}
	if info.Error != nil {
		return nil, &ingest.FetchError{Detail: arcgisFetchError}
	}
	return &info, nil
}
