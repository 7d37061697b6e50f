package search

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery canonicalizes a keyword for cache lookups: NFKC, case
// folded, whitespace collapsed.
func NormalizeQuery(raw string) string {
	value := norm.NFKC.String(raw)
	value = cases.Fold().String(value)
	return strings.Join(strings.Fields(value), " ")
}

func cacheKey(query string, page, limit int) string {
	return NormalizeQuery(query) + "|" + strconv.Itoa(page) + "|" + strconv.Itoa(limit)
}
