package remote

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

const sheetsFetchError = "There was an error downloading the spreadsheet"

// uploadGoogleSheet downloads the CSV export of the first sheet (gid=0;
// multi-sheet export is out of scope) and routes it through the tabular
// router under a name derived from the export's content-disposition.
func (c *Client) uploadGoogleSheet(ctx context.Context, rawURL string) ([]ingest.Result, error) {
	docID, err := sheetDocID(rawURL)
	if err != nil {
		return nil, err
	}

	exportURL := fmt.Sprintf("%s/d/%s/export?format=csv&gid=0", c.sheetsBase, docID)
	resp, err := c.get(ctx, exportURL)
	if err != nil {
		return nil, &ingest.FetchError{Detail: sheetsFetchError}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.FetchError{Detail: sheetsFetchError}
	}

	tableName := sheetTableName(resp.Header.Get("Content-Disposition"), docID)

	path, cleanup, err := c.materialize(docID+".csv", resp.Body)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return []ingest.Result{c.ingestor.UploadCSVFile(ctx, path, tableName)}, nil
}

func sheetDocID(rawURL string) (string, error) {
	parts := strings.SplitN(rawURL, "d/", 2)
	if len(parts) < 2 {
		return "", &ingest.ValidationError{Detail: "could not determine spreadsheet id from url"}
	}
	docID := strings.SplitN(parts[1], "/", 2)[0]
	if docID == "" {
		return "", &ingest.ValidationError{Detail: "could not determine spreadsheet id from url"}
	}
	return docID, nil
}

// sheetTableName derives the destination table from the export's filename,
// falling back to the document id when the header is absent or unreadable.
func sheetTableName(contentDisposition, docID string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := params["filename"]; name != "" {
				return ingest.CleanString(strings.TrimSuffix(name, ".csv"))
			}
		}
	}
	return ingest.CleanString(docID)
}
