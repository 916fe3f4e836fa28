package remote

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

const flatFileFetchError = "There was an error downloading the file"

// uploadFlatFile is the fallback fetcher: download the URL verbatim,
// persist the body under the final path segment, and direct-load it with a
// table name derived from that segment. A non-200 fails before any local
// file is written.
func (c *Client) uploadFlatFile(ctx context.Context, rawURL string) ([]ingest.Result, error) {
	fileName := flatFileName(rawURL)
	if fileName == "" {
		return nil, &ingest.ValidationError{Detail: "could not determine file name from url"}
	}

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, &ingest.FetchError{Detail: flatFileFetchError}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.FetchError{Detail: flatFileFetchError}
	}

	saved, cleanup, err := c.materialize(fileName, resp.Body)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return []ingest.Result{c.ingestor.UploadGeographicFile(ctx, saved, ingest.BaseName(fileName))}, nil
}

func flatFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
