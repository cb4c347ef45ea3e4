// Package queryguard screens caller-supplied SQL before it reaches the backend.
//
// The check is a case-insensitive substring scan over a fixed denylist of
// mutating keywords. It over-rejects: a harmless query that merely contains a
// keyword inside an identifier or literal (EXECUTIVE, CREATED_AT) is refused.
// Letting a disguised mutation through is never acceptable, refusing a benign
// query is.
package queryguard

import "strings"

// Denylist holds the keywords whose presence marks a query as unsafe.
var Denylist = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"CREATE",
	"ALTER",
	"TRUNCATE",
	"EXEC",
	"EXECUTE",
}

// IsSafe reports whether query may be forwarded to the backend.
func IsSafe(query string) bool {
	return Match(query) == ""
}

// Match returns the first denylisted keyword found in query, or "" if none.
func Match(query string) string {
	upper := strings.ToUpper(query)
	for _, kw := range Denylist {
		if strings.Contains(upper, kw) {
			return kw
		}
	}
	return ""
}
