// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"regexp"
	"strings"
)

// Base URLs for identifier resolution and publisher templates. Declared as
// vars so tests can substitute httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	doiBase      = "https://doi.org/"
	acmBase      = "https://dl.acm.org"
	ieeeBase     = "https://ieeexplore.ieee.org"
)

var (
	// arxivAbsPattern matches abstract pages: "https://arxiv.org/abs/2301.07041v2".
	arxivAbsPattern = regexp.MustCompile(`(?i)^https?://arxiv\.org/abs/([^/?#]+)`)

	// arxivIDPattern matches "2301.07041", "arXiv:2301.07041", "2301.07041v2".
	arxivIDPattern = regexp.MustCompile(`(?i)(?:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)`)

	bareArxivPattern = regexp.MustCompile(`(?i)^\d{4}\.\d{4,5}(?:v\d+)?$`)

	pdfLikePattern = regexp.MustCompile(`(?i)\.pdf($|[?#])`)

	ieeeDocumentPattern  = regexp.MustCompile(`(?i)/document/(\d+)`)
	ieeeArnumberPattern  = regexp.MustCompile(`(?i)[?&]arnumber=(\d+)`)
	ieeeHTMLArnumPattern = regexp.MustCompile(`(?i)["']arnumber["']\s*:\s*["']?(\d+)`)
)

// ArxivPDFURL rewrites an arXiv abstract URL or identifier to its PDF URL.
// It returns "" for anything else, including URLs on other hosts.
func ArxivPDFURL(s string) string {
	text := strings.TrimSpace(s)
	if text == "" {
		return ""
	}
	if u, err := url.Parse(text); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if !strings.Contains(strings.ToLower(u.Host), "arxiv.org") {
			return ""
		}
	}
	if m := arxivAbsPattern.FindStringSubmatch(text); m != nil {
		return arxivPDFBase + m[1] + ".pdf"
	}
	if strings.HasPrefix(strings.ToLower(text), "arxiv:") || bareArxivPattern.MatchString(text) {
		if m := arxivIDPattern.FindStringSubmatch(text); m != nil {
			return arxivPDFBase + m[1] + ".pdf"
		}
	}
	return ""
}

// IsPDFLikeURL reports whether the URL path ends in .pdf.
func IsPDFLikeURL(u string) bool {
	return pdfLikePattern.MatchString(u)
}

// DOIResolverURL returns the doi.org URL for a normalized DOI.
func DOIResolverURL(doi string) string {
	return doiBase + url.PathEscape(doi)
}

// IsACMDOI reports whether doi belongs to the ACM registrant.
func IsACMDOI(doi string) bool {
	return strings.HasPrefix(strings.ToLower(doi), "10.1145/")
}

// publisherTemplate derives direct PDF URLs for DOIs of one registrant.
type publisherTemplate struct {
	matches func(doi string) bool
	build   func(escaped string) []Candidate
}

var publisherTemplates = []publisherTemplate{
	{
		matches: IsACMDOI,
		build: func(q string) []Candidate {
			return []Candidate{
				{URL: acmBase + "/doi/pdf/" + q, Provider: "acm_direct_pdf"},
				{URL: acmBase + "/doi/pdf/" + q + "?download=true", Provider: "acm_direct_pdf"},
				{URL: acmBase + "/doi/epdf/" + q, Provider: "acm_direct_epdf"},
				{URL: acmBase + "/doi/epdf/" + q + "?download=true", Provider: "acm_direct_epdf"},
			}
		},
	},
}

// PublisherCandidates returns direct publisher PDF URLs for doi. The prefix
// is prepended to each provider label (e.g. "browser_").
func PublisherCandidates(doi, prefix string) []Candidate {
	if doi == "" {
		return nil
	}
	var out []Candidate
	q := url.PathEscape(doi)
	for _, t := range publisherTemplates {
		if !t.matches(doi) {
			continue
		}
		for _, c := range t.build(q) {
			c.Provider = prefix + c.Provider
			out = append(out, c)
		}
	}
	return out
}

// IEEEArnumbers extracts IEEE Xplore article numbers from a page URL and,
// optionally, its HTML. Results are deduplicated in discovery order.
func IEEEArnumbers(pageURL, html string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(matches [][]string) {
		for _, m := range matches {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	add(ieeeDocumentPattern.FindAllStringSubmatch(pageURL, -1))
	add(ieeeArnumberPattern.FindAllStringSubmatch(pageURL, -1))
	if html != "" {
		add(ieeeHTMLArnumPattern.FindAllStringSubmatch(html, -1))
	}
	return out
}

// IEEEStampCandidates returns the stamp page and the raw PDF endpoint for an
// IEEE article number.
func IEEEStampCandidates(arnumber, prefix string) []Candidate {
	return []Candidate{
		{URL: ieeeBase + "/stamp/stamp.jsp?tp=&arnumber=" + arnumber, Provider: prefix + "ieee_stamp"},
		{URL: ieeeBase + "/stampPDF/getPDF.jsp?tp=&arnumber=" + arnumber, Provider: prefix + "ieee_stamp_pdf"},
	}
}

func isIEEEHost(host string) bool {
	return strings.Contains(strings.ToLower(host), "ieeexplore.ieee.org")
}

func isACMHost(host string) bool {
	return strings.Contains(strings.ToLower(host), "dl.acm.org")
}
