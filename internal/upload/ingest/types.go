package ingest

// ValidFileTypes is the declared-content-type allow-list for uploads. It is
// shared by the HTTP handler's rejection check and the archive expander's
// member error message.
var ValidFileTypes = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/geopackage+sqlite3",
	"application/geo+json",
	"application/gml+xml",
	"application/gpx+xml",
	"application/vnd.google-earth.kml+xml",
	"application/vnd.sqlite3",
	"application/vnd.shp",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
}
