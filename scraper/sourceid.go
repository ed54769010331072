package scraper

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"strings"
)

// SourceIDFromURL derives the deduplication key for a listing URL. The
// derivation must be stable across runs for the same listing and unique
// across distinct listings: an `id` query parameter wins, then the URL's
// final path segment with the query string stripped, then an FNV-64a hash
// of the whole URL. The hash fallback replaces an earlier timestamp-based
// one, which produced a fresh ID on every run and defeated deduplication.
func SourceIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hashID(rawURL)
	}

	if id := u.Query().Get("id"); id != "" {
		return id
	}

	if segment := path.Base(u.Path); segment != "" && segment != "/" && segment != "." {
		return segment
	}

	return hashID(rawURL)
}

func hashID(rawURL string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.TrimSpace(rawURL)))
	return fmt.Sprintf("u%016x", h.Sum64())
}
