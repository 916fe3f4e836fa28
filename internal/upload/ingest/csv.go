package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// NoMatchMessage is the reported (not fatal) outcome for tabular data whose
// columns match no catalog geography.
const NoMatchMessage = "No matching geography found"

// UploadCSVFile is the tabular router: it reads the header row, asks the
// catalog which geography shapes the columns satisfy, and dispatches to the
// matching strategy. The destination table name is the display name before
// its first period, cleaned.
func (s *Service) UploadCSVFile(ctx context.Context, path, displayName string) Result {
	table := CleanString(BaseName(displayName))

	header, err := readHeader(path)
	if err != nil {
		return Result{Status: false, TableName: table, Error: err.Error()}
	}

	matches := MatchGeographies(strings.Split(header, ","), s.Catalog)
	best, ok := BestMatch(matches)
	if !ok {
		return Result{Status: false, TableName: table, Error: NoMatchMessage}
	}

	switch best.Geography.Name {
	case "latitude_and_longitude":
		return s.ImportPointDataset(ctx, path,
			best.FieldMatches["latitude"], best.FieldMatches["longitude"], BaseName(displayName))

	case "geojson_geometry":
		return s.reencodeAndLoad(ctx, path, displayName, best.FieldMatches["geojson"], ConvertGeoJSONColumn)

	case "wkt_geometry":
		return s.reencodeAndLoad(ctx, path, displayName, best.FieldMatches["wkt"], ConvertWKTColumn)

	case "wkb_geometry":
		return s.reencodeAndLoad(ctx, path, displayName, best.FieldMatches["wkb"], ConvertWKBColumn)

	default:
		// Reference layer: the single matched role names the layer's join
		// column, its FieldMatches value names the input column.
		for role, column := range best.FieldMatches {
			return s.JoinToReferenceLayer(ctx, path, BaseName(displayName), best.Geography.Name, column, role)
		}
		return Result{Status: false, TableName: table,
			Error: fmt.Sprintf("geography %s has no join column", best.Geography.Name)}
	}
}

// reencodeAndLoad converts the geometry column to a sibling GeoJSON file,
// loads that, and removes the sibling whether or not the load succeeded.
func (s *Service) reencodeAndLoad(ctx context.Context, path, displayName, column string,
	convert func(path, column string) (string, error)) Result {

	converted, err := convert(path, column)
	if err != nil {
		removeIfExists(converted)
		return Result{Status: false, TableName: CleanString(BaseName(displayName)), Error: err.Error()}
	}
	defer removeIfExists(converted)

	return s.UploadGeographicFile(ctx, converted, BaseName(displayName))
}

// readHeader returns the first line of the file. The router splits it on
// commas rather than using a full CSV parse: geography matching only needs
// the raw column names, and that is what the catalog spellings are written
// against.
func readHeader(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading header: %w", err)
		}
		return "", fmt.Errorf("%s is empty", path)
	}
	return strings.TrimPrefix(scanner.Text(), "\uFEFF"), nil
}
