package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// GeographyField lists the column spellings that can satisfy one required
// role of a geography.
type GeographyField struct {
	PotentialNames []string `json:"potential_names"`
}

// Geography is one catalog entry: a named pattern of required columns that
// tells the router how to build geometry from tabular data. The reserved
// names latitude_and_longitude, geojson_geometry, wkt_geometry and
// wkb_geometry dispatch to geometry-building strategies; any other name is
// treated as a reference layer to join against.
//
// The catalog is loaded once at startup and never written afterward, so it
// is safe to share across concurrent requests.
type Geography struct {
	Name   string                    `json:"name"`
	Rank   int                       `json:"rank"`
	Fields map[string]GeographyField `json:"fields"`
}

// GeographyMatch pairs a matched catalog entry with the input column that
// satisfied each of its roles. It lives for one routing decision only;
// match state is never attached to the shared catalog.
type GeographyMatch struct {
	Geography    Geography
	FieldMatches map[string]string
}

// LoadCatalog reads the geography catalog JSON. A missing or unreadable
// catalog is a startup-fatal condition for the caller.
func LoadCatalog(path string) ([]Geography, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geography catalog: %w", err)
	}
	var catalog []Geography
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing geography catalog %s: %w", path, err)
	}
	return catalog, nil
}

// MatchGeographies returns every catalog entry whose required roles are all
// satisfied by the given column names. A role is satisfied when any column,
// after trimming, equals any of its potential spellings exactly
// (case-sensitive). When several columns satisfy the same role, the last one
// in column order wins. Results follow catalog order, so rank ties resolve
// to the earlier catalog entry.
func MatchGeographies(columnNames []string, catalog []Geography) []GeographyMatch {
	var matches []GeographyMatch
	for _, geo := range catalog {
		fieldMatches := make(map[string]string, len(geo.Fields))
		allSatisfied := true
		for role, field := range geo.Fields {
			satisfied := false
			// Columns drive the outer loop so the last matching column in
			// column order wins the role, whichever spelling it matched.
			for _, column := range columnNames {
				trimmed := strings.TrimSpace(column)
				for _, potential := range field.PotentialNames {
					if trimmed == potential {
						satisfied = true
						fieldMatches[role] = trimmed
					}
				}
			}
			if !satisfied {
				allSatisfied = false
			}
		}
		if allSatisfied {
			matches = append(matches, GeographyMatch{Geography: geo, FieldMatches: fieldMatches})
		}
	}
	return matches
}

// BestMatch selects the lowest-rank match, keeping the first on ties.
func BestMatch(matches []GeographyMatch) (GeographyMatch, bool) {
	if len(matches) == 0 {
		return GeographyMatch{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Geography.Rank < best.Geography.Rank {
			best = m
		}
	}
	return best, true
}
