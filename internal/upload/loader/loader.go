// Package loader wraps the external ogr2ogr bulk loader. Every load is a
// create-or-replace of the destination table with a fixed geometry column
// "geom" and primary key "gid".
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// FriendlyOpenError replaces raw loader stderr when the loader could not
// open its input, so callers never leak tool diagnostics for the common
// "this is not geographic data" case.
const FriendlyOpenError = "The file provided is not a valid geographic file or has invalid geometry."

// LoadError reports an unaccepted loader exit status for one member.
type LoadError struct {
	Table  string
	Detail string
}

func (e *LoadError) Error() string { return e.Detail }

// Runner executes the loader binary. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (exitCode int, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stderr.String(), nil
		}
		return -1, stderr.String(), err
	}
	return 0, stderr.String(), nil
}

// Loader invokes ogr2ogr with a fixed destination database.
type Loader struct {
	cfg    Config
	runner Runner
}

// New creates a Loader that shells out to the configured binary.
func New(cfg Config) *Loader {
	return &Loader{cfg: cfg, runner: execRunner{}}
}

// NewWithRunner creates a Loader with a custom Runner.
func NewWithRunner(cfg Config, r Runner) *Loader {
	return &Loader{cfg: cfg, runner: r}
}

// LoadPoints imports a delimited file as point geometries built from the
// given longitude/latitude columns, assigning SRID 4326.
func (l *Loader) LoadPoints(ctx context.Context, source, longitude, latitude, table string) error {
	return l.run(ctx, table, []string{
		"-f", "PostgreSQL", l.cfg.ConnString(),
		source,
		"-oo", "X_POSSIBLE_NAMES=" + longitude + "*",
		"-oo", "Y_POSSIBLE_NAMES=" + latitude + "*",
		"-nln", table,
		"-a_srs", "EPSG:4326",
		"-lco", "GEOMETRY_NAME=geom",
		"-lco", "FID=gid",
		"-nlt", "POINT",
		"-overwrite",
	})
}

// Load imports any source the loader understands natively, a local file
// path or a URL.
func (l *Loader) Load(ctx context.Context, source, table string) error {
	return l.run(ctx, table, []string{
		"-f", "PostgreSQL", l.cfg.ConnString(),
		source,
		"-nln", table,
		"-lco", "FID=gid",
		"-lco", "GEOMETRY_NAME=geom",
		"-overwrite",
	})
}

// LoadStaging imports tabular data into a staging table for a reference
// join. The staging rows carry no geometry yet, so no geometry column is
// configured.
func (l *Loader) LoadStaging(ctx context.Context, source, table string) error {
	return l.run(ctx, table, []string{
		"-f", "PostgreSQL", l.cfg.ConnString(),
		source,
		"-nln", table,
		"-lco", "FID=gid",
		"-overwrite",
	})
}

func (l *Loader) run(ctx context.Context, table string, args []string) error {
	code, stderr, err := l.runner.Run(ctx, l.cfg.Bin, args...)
	if err != nil {
		return fmt.Errorf("running %s: %w", l.cfg.Bin, err)
	}
	for _, accepted := range l.cfg.AcceptedExitCodes {
		if code == accepted {
			return nil
		}
	}

	log.Printf("[loader] %s exited %d for table %s", l.cfg.Bin, code, table)
	detail := strings.TrimSpace(stderr)
	if strings.Contains(detail, "Unable to open datasource") {
		detail = FriendlyOpenError
	}
	if detail == "" {
		detail = fmt.Sprintf("%s exited with status %d", l.cfg.Bin, code)
	}
	return &LoadError{Table: table, Detail: detail}
}
