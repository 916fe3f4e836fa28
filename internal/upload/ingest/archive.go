package ingest

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// memberMediaTypes maps member file extensions to the media types on the
// upload allow-list. Kept as an explicit table rather than consulting the
// platform mime database, which has no entries for most geographic formats.
var memberMediaTypes = map[string]string{
	"csv":     "text/csv",
	"xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":     "application/vnd.ms-excel",
	"geojson": "application/geo+json",
	"json":    "application/geo+json",
	"gpkg":    "application/geopackage+sqlite3",
	"gml":     "application/gml+xml",
	"gpx":     "application/gpx+xml",
	"kml":     "application/vnd.google-earth.kml+xml",
	"sqlite":  "application/vnd.sqlite3",
	"db":      "application/vnd.sqlite3",
}

// specialMemberExtensions are accepted without a standard media-type
// mapping.
var specialMemberExtensions = map[string]struct{}{
	"gdb": {},
	"tab": {},
	"shp": {},
}

// sidecarExtensions are shapefile/MapInfo companions that travel with an
// accepted member but are never ingested on their own.
var sidecarExtensions = map[string]struct{}{
	"dbf": {}, "shx": {}, "prj": {}, "cpg": {}, "qpj": {},
	"sbn": {}, "sbx": {}, "qix": {}, "dat": {}, "id": {}, "map": {}, "ind": {},
}

// ExpandArchive extracts a zip archive into a collision-free scratch
// directory and attempts ingestion of every accepted member in listing
// order, reporting one outcome per member. If no member has an accepted
// format the whole upload is rejected with a *ValidationError before any
// load is attempted. The scratch directory is removed on every path.
func (s *Service) ExpandArchive(ctx context.Context, path, fileName string) ([]Result, error) {
	scratch := filepath.Join(s.MediaDir, uuid.NewString()+"_"+CleanString(BaseName(fileName)))
	if err := extractZip(path, scratch); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("extracting %s: %w", fileName, err)
	}
	defer os.RemoveAll(scratch)

	members, err := listMembers(scratch)
	if err != nil {
		return nil, err
	}

	anyAccepted := false
	for _, member := range members {
		if memberAccepted(member) {
			anyAccepted = true
			break
		}
	}
	if !anyAccepted {
		return nil, &ValidationError{
			Detail: "Please upload a valid file type within your zip file. " + strings.Join(ValidFileTypes, " ,"),
		}
	}

	var results []Result
	for _, member := range members {
		ext := memberExtension(member)
		if _, sidecar := sidecarExtensions[ext]; sidecar {
			continue
		}
		base := filepath.Base(member)
		if !memberAccepted(member) {
			results = append(results, Result{
				Status:    false,
				TableName: CleanString(BaseName(base)),
				Error:     fmt.Sprintf("unsupported file type: .%s", ext),
			})
			continue
		}
		results = append(results, s.UploadFlatFile(ctx, member, base, ext)...)
	}
	return results, nil
}

func memberExtension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func memberAccepted(path string) bool {
	ext := memberExtension(path)
	if _, ok := specialMemberExtensions[ext]; ok {
		return true
	}
	_, ok := memberMediaTypes[ext]
	return ok
}

// listMembers walks the extraction directory. WalkDir yields lexical
// order, which may differ from the archive's own entry order but is
// deterministic, and every accepted member is attempted regardless. A
// .gdb directory counts as a single member.
func listMembers(root string) ([]string, error) {
	var members []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if memberExtension(path) == "gdb" {
				members = append(members, path)
				return filepath.SkipDir
			}
			return nil
		}
		members = append(members, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive members: %w", err)
	}
	return members, nil
}

func extractZip(src, dest string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.Clean(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive member %q escapes extraction dir", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractMember(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractMember(file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
