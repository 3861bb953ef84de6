// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// doiPattern matches a normalized DOI: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixPattern strips resolver URLs and the "doi:" scheme.
var doiPrefixPattern = regexp.MustCompile(`(?i)^(?:https?://(?:dx\.)?doi\.org/|doi:\s*)`)

var braceStripper = strings.NewReplacer("{", "", "}", "")

// NormalizeDOI returns the canonical lowercase form of a DOI, or "" when raw
// does not contain a valid DOI. Accepts resolver URLs, "doi:" prefixes,
// percent-escaping and BibTeX braces.
func NormalizeDOI(raw string) string {
	v := braceStripper.Replace(strings.TrimSpace(raw))
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	v = strings.ReplaceAll(v, `\`, "")
	v = strings.TrimSpace(v)
	v = doiPrefixPattern.ReplaceAllString(v, "")
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	v = strings.ToLower(strings.Trim(strings.TrimSpace(v), "/"))
	if !doiPattern.MatchString(v) {
		return ""
	}
	return v
}

// NormalizeURL returns scheme://host/path[?query] with scheme and host
// lowercased and the fragment dropped. Only http and https URLs are accepted.
func NormalizeURL(raw string) string {
	v := strings.TrimSpace(braceStripper.Replace(strings.TrimSpace(raw)))
	if v == "" {
		return ""
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return ""
	}
	out := scheme + "://" + host + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// CanonicalKey derives the library key for an entry: "doi:<doi>" when the
// entry carries a valid DOI, else "url:<url>". The second return value is
// false when neither is present.
func CanonicalKey(entry types.BibEntry) (string, bool) {
	if doi := NormalizeDOI(entry.Get("doi")); doi != "" {
		return "doi:" + doi, true
	}
	if u := NormalizeURL(entry.Get("url")); u != "" {
		return "url:" + u, true
	}
	return "", false
}

// FallbackKey synthesizes a key for an entry that had none once a PDF has
// been fetched from finalURL.
func FallbackKey(finalURL, entryKey string) string {
	if u := NormalizeURL(finalURL); u != "" {
		return "url:" + u
	}
	return "entry:" + entryKey
}

// RecordID is the stable public identifier of the record stored under key.
func RecordID(key string) string {
	return keyHash(key)[:16]
}

// ManagedFileName is the file name of the library-owned PDF for key.
func ManagedFileName(key string) string {
	return keyHash(key) + ".pdf"
}

func keyHash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
