package ingest

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// The geometry interchange structure is GeoJSON throughout: each strategy
// that cannot hand its input to the loader directly first rewrites it as a
// FeatureCollection the loader understands natively.

// DecodeWKT parses WKT geometry text.
func DecodeWKT(value string) (orb.Geometry, error) {
	geom, err := wkt.Unmarshal(strings.TrimSpace(value))
	if err != nil {
		return nil, &GeometryError{Detail: fmt.Sprintf("invalid WKT geometry %q: %v", value, err)}
	}
	return geom, nil
}

// DecodeWKB parses hex-encoded WKB geometry text.
func DecodeWKB(value string) (orb.Geometry, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, &GeometryError{Detail: fmt.Sprintf("invalid WKB hex: %v", err)}
	}
	geom, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, &GeometryError{Detail: fmt.Sprintf("invalid WKB geometry: %v", err)}
	}
	return geom, nil
}

// DecodeGeoJSON parses a GeoJSON geometry object embedded as text.
func DecodeGeoJSON(value string) (orb.Geometry, error) {
	geom, err := geojson.UnmarshalGeometry([]byte(value))
	if err != nil {
		return nil, &GeometryError{Detail: fmt.Sprintf("invalid GeoJSON geometry: %v", err)}
	}
	return geom.Geometry(), nil
}

// ConvertGeoJSONColumn rewrites a CSV with an embedded-GeoJSON geometry
// column as a sibling .geojson FeatureCollection and returns its path.
func ConvertGeoJSONColumn(path, column string) (string, error) {
	return convertColumn(path, column, DecodeGeoJSON)
}

// ConvertWKTColumn rewrites a CSV with a WKT geometry column as a sibling
// .geojson FeatureCollection and returns its path.
func ConvertWKTColumn(path, column string) (string, error) {
	return convertColumn(path, column, DecodeWKT)
}

// ConvertWKBColumn rewrites a CSV with a hex-WKB geometry column as a
// sibling .geojson FeatureCollection and returns its path.
func ConvertWKBColumn(path, column string) (string, error) {
	return convertColumn(path, column, DecodeWKB)
}

// convertColumn streams the file row by row, building one feature per row
// from the geometry column and carrying every other column across as a
// feature property. The sibling file is transient: callers remove it once
// the subsequent load has reached a terminal outcome. Malformed geometry
// text, or a row too short to carry the geometry column, aborts the
// conversion with a *GeometryError.
func convertColumn(path, column string, decode func(string) (orb.Geometry, error)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return "", fmt.Errorf("reading header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	geomIdx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			geomIdx = i
		}
	}
	if geomIdx < 0 {
		return "", &ValidationError{Detail: fmt.Sprintf("geometry column %q not found in %s", column, filepath.Base(path))}
	}

	fc := geojson.NewFeatureCollection()
	for row := 1; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		if geomIdx >= len(record) {
			return "", &GeometryError{Detail: fmt.Sprintf("row %d of %s has no %s value", row, filepath.Base(path), column)}
		}
		geom, err := decode(record[geomIdx])
		if err != nil {
			return "", err
		}
		feature := geojson.NewFeature(geom)
		props := make(geojson.Properties, len(header))
		for i, h := range header {
			if i == geomIdx || i >= len(record) {
				continue
			}
			props[strings.TrimSpace(h)] = record[i]
		}
		feature.Properties = props
		fc.Append(feature)
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".geojson"
	data, err := json.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("encoding feature collection: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	return out, nil
}
