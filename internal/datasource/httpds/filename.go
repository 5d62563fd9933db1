package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// filenameCleaner replaces sequences of non-alphanumeric characters
// (dots excepted) with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9.]+`)

// HashString returns a stable SHA1 hex digest of s, used as a deterministic
// filename when a natural one cannot be derived from the URL.
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// FilenameFromURL derives a stable, filesystem-safe filename from a resource
// URL. It prefers the last path segment (catalog download links usually end
// in the published file name); when the path carries no usable segment it
// falls back to the cleaned query string, and finally to hashing the whole
// URL. The result identifies the source file in record provenance, so it must
// be deterministic for a given URL.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}

	if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
		if clean := filenameCleaner.ReplaceAllString(base, "_"); strings.Trim(clean, "_.") != "" {
			return clean
		}
	}
	if clean := filenameCleaner.ReplaceAllString(u.RawQuery, "_"); strings.Trim(clean, "_.") != "" {
		return clean
	}
	return HashString(rawURL)
}
