package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/ingest"
)

type ingestCall struct {
	source  string
	name    string
	content string
}

// fakeIngestor records delegated loads. Calls that hand over a local file
// capture its content before the client's cleanup removes it.
type fakeIngestor struct {
	csvCalls []ingestCall
	geoCalls []ingestCall
}

func (f *fakeIngestor) UploadCSVFile(ctx context.Context, path, displayName string) ingest.Result {
	data, _ := os.ReadFile(path)
	f.csvCalls = append(f.csvCalls, ingestCall{source: path, name: displayName, content: string(data)})
	return ingest.Result{Status: true, TableName: ingest.CleanString(ingest.BaseName(displayName))}
}

func (f *fakeIngestor) UploadGeographicFile(ctx context.Context, source, displayName string) ingest.Result {
	data, _ := os.ReadFile(source)
	f.geoCalls = append(f.geoCalls, ingestCall{source: source, name: displayName, content: string(data)})
	return ingest.Result{Status: true, TableName: ingest.CleanString(displayName)}
}

func newTestClient(t *testing.T, ingestor *fakeIngestor) (*Client, string) {
	t.Helper()
	mediaDir := t.TempDir()
	return NewClient(ingestor, mediaDir), mediaDir
}

func featureCount(t *testing.T, content string) int {
	t.Helper()
	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		t.Fatalf("delegated payload is not a FeatureCollection: %v", err)
	}
	if doc.Type != "FeatureCollection" {
		t.Fatalf("payload type = %q", doc.Type)
	}
	return len(doc.Features)
}

func TestUpload_FlatFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	results, err := c.Upload(context.Background(), srv.URL+"/data/parcels.geojson")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 || !results[0].Status {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(ingestor.geoCalls) != 1 || ingestor.geoCalls[0].name != "parcels" {
		t.Fatalf("unexpected delegation: %+v", ingestor.geoCalls)
	}
}

// A failed download must not leave anything in the media area.
func TestUpload_FlatFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, mediaDir := newTestClient(t, ingestor)

	_, err := c.Upload(context.Background(), srv.URL+"/data/parcels.geojson")
	var fetchErr *ingest.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *ingest.FetchError, got %v", err)
	}
	if len(ingestor.geoCalls) != 0 {
		t.Error("nothing should be ingested after a failed download")
	}
	entries, readErr := os.ReadDir(mediaDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("media dir not empty after failed download: %v", entries)
	}
}

func TestUpload_WFSPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startIndex") != "" {
			fmt.Fprint(w, `{"features":[]}`)
			return
		}
		fmt.Fprint(w, `{"features":[{"type":"Feature"},{"type":"Feature"}]}`)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	results, err := c.Upload(context.Background(), srv.URL+"/ows?service=WFS&request=GetFeature&typeName=roads")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(ingestor.geoCalls) != 1 || ingestor.geoCalls[0].name != "roads" {
		t.Fatalf("unexpected delegation: %+v", ingestor.geoCalls)
	}
	if n := featureCount(t, ingestor.geoCalls[0].content); n != 2 {
		t.Errorf("merged %d features, want 2", n)
	}
}

// A WFS error document arrives with HTTP 200.
func TestUpload_WFSServiceException(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ServiceExceptionReport><ServiceException>bad typeName</ServiceException></ServiceExceptionReport>`)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	_, err := c.Upload(context.Background(), srv.URL+"/ows?service=WFS&typeName=nope")
	var fetchErr *ingest.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *ingest.FetchError, got %v", err)
	}
	if len(ingestor.geoCalls) != 0 {
		t.Error("nothing should be ingested from an exception document")
	}
}

func TestUpload_WFSMissingTypeName(t *testing.T) {
	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	_, err := c.Upload(context.Background(), "http://example.com/ows?service=wfs")
	var valErr *ingest.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ingest.ValidationError, got %v", err)
	}
}

func TestUpload_OGCFeaturesPaging(t *testing.T) {
	page := func(matched int, features ...string) string {
		return fmt.Sprintf(`{"numberMatched":%d,"numberReturned":%d,"features":[%s]}`,
			matched, len(features), strings.Join(features, ","))
	}
	feature := `{"type":"Feature"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, page(5, feature, feature))
		case "2":
			fmt.Fprint(w, page(5, feature, feature))
		case "4":
			fmt.Fprint(w, page(5, feature))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
			fmt.Fprint(w, page(5))
		}
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	results, err := c.Upload(context.Background(), srv.URL+"/collections/lakes")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if ingestor.geoCalls[0].name != "lakes" {
		t.Errorf("collection name = %q, want lakes", ingestor.geoCalls[0].name)
	}
	if n := featureCount(t, ingestor.geoCalls[0].content); n != 5 {
		t.Errorf("merged %d features, want 5", n)
	}
}

func TestUpload_ArcGISSkipsUnqueryableLayers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/arcgis/rest/services/Demo/FeatureServer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"layers":[{"id":0},{"id":1}]}`)
	})
	mux.HandleFunc("/arcgis/rest/services/Demo/FeatureServer/0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":0,"name":"Parks","capabilities":"Query,Create,Update"}`)
	})
	mux.HandleFunc("/arcgis/rest/services/Demo/FeatureServer/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"name":"Internal","capabilities":"Create"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	results, err := c.Upload(context.Background(), srv.URL+"/arcgis/rest/services/Demo/FeatureServer")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result (unqueryable layer skipped), got %+v", results)
	}
	call := ingestor.geoCalls[0]
	if call.name != "Parks" {
		t.Errorf("layer name = %q, want Parks", call.name)
	}
	if !strings.Contains(call.source, "/0/query?where=1=1") {
		t.Errorf("layer query url = %q", call.source)
	}
}

// A single-layer service without Query capability is skipped like any
// other unqueryable layer, not rejected.
func TestUpload_ArcGISUnqueryableRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":0,"name":"Internal","capabilities":"Create,Update"}`)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	results, err := c.Upload(context.Background(), srv.URL+"/arcgis/rest/services/Demo/FeatureServer/0")
	if err != nil {
		t.Fatalf("unqueryable root must not be an error, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
	if len(ingestor.geoCalls) != 0 {
		t.Error("nothing should be ingested from an unqueryable service")
	}
}

func TestUpload_ArcGISErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":499,"message":"Token Required"}}`)
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)

	_, err := c.Upload(context.Background(), srv.URL+"/arcgis/rest/services/Demo/FeatureServer")
	var fetchErr *ingest.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *ingest.FetchError, got %v", err)
	}
	if fetchErr.Detail != arcgisFetchError {
		t.Errorf("detail = %q", fetchErr.Detail)
	}
}

func TestUpload_GoogleSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/d/abc123/export" {
			t.Errorf("unexpected export path %q", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="My Sheet.csv"`)
		fmt.Fprint(w, "latitude,longitude\n1,2\n")
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)
	c.sheetsBase = srv.URL

	results, err := c.Upload(context.Background(), "https://docs.google.com/spreadsheets/d/abc123/edit#gid=0")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	call := ingestor.csvCalls[0]
	if call.name != "my_sheet" {
		t.Errorf("table name = %q, want my_sheet", call.name)
	}
	if !strings.HasPrefix(call.content, "latitude,longitude") {
		t.Errorf("unexpected materialized content %q", call.content)
	}
}

func TestUpload_GoogleSheetNoDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	c, _ := newTestClient(t, ingestor)
	c.sheetsBase = srv.URL

	if _, err := c.Upload(context.Background(), "https://docs.google.com/spreadsheets/d/abc123/edit"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if ingestor.csvCalls[0].name != "abc123" {
		t.Errorf("expected doc id fallback, got %q", ingestor.csvCalls[0].name)
	}
}

// Route precedence: a spreadsheet URL also containing "collection" must
// still go to the sheets fetcher, and an ArcGIS URL wins over everything.
func TestUpload_RoutePrecedence(t *testing.T) {
	cases := []struct {
		url  string
		want int // index into urlRoutes
	}{
		{"https://host/arcgis/rest/services/X/FeatureServer", 0},
		{"https://docs.google.com/spreadsheets/d/abc/edit", 1},
		{"https://host/collections/lakes", 2},
		{"https://host/ows?service=wfs&typename=roads", 3},
		{"https://host/files/data.geojson", 4},
	}
	for _, c := range cases {
		lower := strings.ToLower(c.url)
		got := -1
		for i, route := range urlRoutes {
			if route.match(lower) {
				got = i
				break
			}
		}
		if got != c.want {
			t.Errorf("url %q routed to %d, want %d", c.url, got, c.want)
		}
	}
}
