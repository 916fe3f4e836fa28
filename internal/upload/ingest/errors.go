package ingest

// ValidationError reports input that can never load: an unsupported content
// type, an unsupported member inside a container, or a URL the dispatcher
// cannot make sense of. The HTTP layer turns it into a 400.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// FetchError reports a failed remote download: non-200 status, malformed
// JSON, or a service-reported error payload.
type FetchError struct {
	Detail string
}

func (e *FetchError) Error() string { return e.Detail }

// GeometryError reports malformed WKT, WKB, or GeoJSON geometry text in a
// row. It fails the member it came from, never the process.
type GeometryError struct {
	Detail string
}

func (e *GeometryError) Error() string { return e.Detail }
