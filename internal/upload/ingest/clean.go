package ingest

import "strings"

var tableNameReplacer = strings.NewReplacer(
	" ", "_",
	"-", "_",
	":", "_",
	".", "",
)

// CleanString turns arbitrary display text into a safe table identifier:
// lowercase, spaces/hyphens/colons replaced with underscores, periods
// removed. Idempotent, so it is safe to clean an already-clean name.
func CleanString(s string) string {
	return strings.ToLower(tableNameReplacer.Replace(s))
}

// BaseName strips everything from the first period onward, so
// "counties.csv" and "counties.tar.gz" both become "counties". File names
// are run through this before CleanString would otherwise swallow the dots.
func BaseName(fileName string) string {
	if i := strings.Index(fileName, "."); i >= 0 {
		return fileName[:i]
	}
	return fileName
}
