// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// maxLandingBytes bounds how much of a landing page is read for discovery.
const maxLandingBytes = 8 << 20

// pdfHrefHints mark anchors worth trying on a landing page.
var pdfHrefHints = []string{".pdf", "/doi/pdf/", "stamp/stamp.jsp"}

// publisherLinkHints mark anchors worth trying in a live browser page.
var publisherLinkHints = []string{".pdf", "/doi/pdf/", "/doi/epdf/", "stamp/stamp.jsp", "stamppdf/getpdf.jsp", "download=true"}

// HasPublisherHint reports whether href looks like a publisher PDF link.
func HasPublisherHint(href string) bool {
	return containsAny(strings.ToLower(href), publisherLinkHints)
}

// Discover fetches a landing page and returns further candidates: the final
// URL after redirects, IEEE stamp URLs, ACM templates when the page is on
// dl.acm.org, and PDF links found in the HTML. Labels are derived from
// provider. Failures yield no candidates.
func (g *Generator) Discover(ctx context.Context, pageURL, provider, doi string) []Candidate {
	resp, err := g.client.Get(ctx, pageURL, http.Header{
		"Accept": {"text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8"},
	})
	if err != nil {
		g.log.Debug("landing page fetch failed", "url", pageURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	isHTML := strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html")
	// Oversized pages are truncated, not rejected.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLandingBytes))
	return landingCandidates(finalURL, provider, doi, body, isHTML)
}

// landingCandidates scans body for IEEE article numbers whatever its type;
// PDF links are only parsed out of HTML.
func landingCandidates(finalURL, provider, doi string, body []byte, isHTML bool) []Candidate {
	var out []Candidate
	out = append(out, Candidate{URL: finalURL, Provider: provider + "_landing"})

	u, err := url.Parse(finalURL)
	if err != nil {
		return out
	}
	if isIEEEHost(u.Host) {
		for _, n := range IEEEArnumbers(finalURL, string(body)) {
			out = append(out, IEEEStampCandidates(n, "")...)
		}
	}
	if isACMHost(u.Host) && IsACMDOI(doi) {
		out = append(out, PublisherCandidates(doi, "")...)
	}
	if isHTML {
		for _, link := range ExtractPDFLinks(body, finalURL) {
			out = append(out, Candidate{URL: link, Provider: provider + "_html"})
		}
	}
	return out
}

// ExtractPDFLinks returns citation_pdf_url meta contents and hrefs that look
// like PDF links, resolved against baseURL, in document order.
func ExtractPDFLinks(body []byte, baseURL string) []string {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var metas, hrefs []string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if strings.EqualFold(attr(n, "name"), "citation_pdf_url") {
					metas = append(metas, attr(n, "content"))
				}
			case "a", "link":
				if href := attr(n, "href"); containsAny(strings.ToLower(href), pdfHrefHints) {
					hrefs = append(hrefs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	var out []string
	for _, raw := range append(metas, hrefs...) {
		if resolved := resolveRef(base, raw); resolved != "" {
			out = append(out, resolved)
		}
	}
	return out
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func resolveRef(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
