// Package ingest classifies geographic inputs by content shape and routes
// each to one of four loading strategies: point-from-coordinates,
// geometry-reencode-then-load, reference-layer join, or direct load.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mkeller3/pg-upload-anything-api/internal/upload/loader"
)

// Result is the uniform per-member outcome every strategy and fetcher
// produces. It is never mutated after creation.
type Result struct {
	Status    bool   `json:"status"`
	TableName string `json:"table_name"`
	Error     string `json:"error,omitempty"`
}

// Service wires the routing engine to its collaborators. All fields are set
// once at startup; nothing here is written during a request.
type Service struct {
	Loader   *loader.Loader
	DB       *gorm.DB
	MediaDir string
	Catalog  []Geography
}

// ImportPointDataset loads a delimited file as point geometries built from
// the declared latitude/longitude columns.
func (s *Service) ImportPointDataset(ctx context.Context, path, latitude, longitude, displayName string) Result {
	table := CleanString(displayName)
	if err := s.Loader.LoadPoints(ctx, path, longitude, latitude, table); err != nil {
		s.CleanMedia(table)
		return failure(table, err)
	}
	return Result{Status: true, TableName: table}
}

// UploadGeographicFile loads any source the bulk loader understands
// natively, overwriting an existing table of the same name.
func (s *Service) UploadGeographicFile(ctx context.Context, source, displayName string) Result {
	table := CleanString(displayName)
	if err := s.Loader.Load(ctx, source, table); err != nil {
		s.CleanMedia(table)
		return failure(table, err)
	}
	return Result{Status: true, TableName: table}
}

// JoinToReferenceLayer loads tabular data into a staging table, then builds
// the destination as a LEFT JOIN against a reference layer's geometry. If
// the staging load fails the join is never attempted.
func (s *Service) JoinToReferenceLayer(ctx context.Context, path, displayName, referenceTable, tableMatchColumn, refMatchColumn string) Result {
	table := CleanString(displayName)
	staging := table + "_temp"

	if err := s.Loader.LoadStaging(ctx, path, staging); err != nil {
		s.CleanMedia(table)
		return failure(table, err)
	}

	joinSQL := fmt.Sprintf(
		`CREATE TABLE %s AS
			SELECT a.*, b.%s, b.geom
			FROM %s AS a
			LEFT JOIN %s AS b
			ON LOWER(a.%s) = LOWER(b.%s)`,
		pq.QuoteIdentifier(table),
		pq.QuoteIdentifier(refMatchColumn),
		pq.QuoteIdentifier(staging),
		pq.QuoteIdentifier(referenceTable),
		pq.QuoteIdentifier(tableMatchColumn),
		pq.QuoteIdentifier(refMatchColumn),
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(table)).Error; err != nil {
			return err
		}
		if err := tx.Exec(joinSQL).Error; err != nil {
			return err
		}
		return tx.Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(staging)).Error
	})
	if err != nil {
		s.CleanMedia(table)
		return failure(table, fmt.Errorf("joining %s to %s: %w", table, referenceTable, err))
	}

	return Result{Status: true, TableName: table}
}

// UploadFlatFile routes one materialized file by its extension: CSV through
// the tabular router, XLSX through workbook fan-out, anything else straight
// to the bulk loader.
func (s *Service) UploadFlatFile(ctx context.Context, path, fileName, extension string) []Result {
	switch strings.ToLower(extension) {
	case "csv":
		return []Result{s.UploadCSVFile(ctx, path, fileName)}
	case "xlsx":
		return s.ExpandWorkbook(ctx, path)
	default:
		return []Result{s.UploadGeographicFile(ctx, path, BaseName(fileName))}
	}
}

func failure(table string, err error) Result {
	log.Printf("[upload] load failed for table %s: %v", table, err)
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return Result{Status: false, TableName: table, Error: loadErr.Detail}
	}
	return Result{Status: false, TableName: table, Error: err.Error()}
}

func removeIfExists(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[upload] could not remove %s: %v", path, err)
	}
}
