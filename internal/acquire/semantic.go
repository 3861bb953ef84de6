// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"net/http"
	"net/url"
)

// semanticScholarAPIBase is the Semantic Scholar Graph API paper endpoint.
var semanticScholarAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

type semanticScholarPaper struct {
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	URL string `json:"url"`
}

// semanticScholarURLs returns the open-access PDF URL, then the paper page
// URL, for a DOI. The API key header is sent only when configured.
func (g *Generator) semanticScholarURLs(ctx context.Context, doi string) ([]string, error) {
	apiURL := semanticScholarAPIBase + "DOI:" + url.PathEscape(doi) + "?fields=openAccessPdf,url"

	var header http.Header
	if g.semanticScholarKey != "" {
		header = http.Header{"X-Api-Key": {g.semanticScholarKey}}
	}

	var paper semanticScholarPaper
	if err := g.getJSON(ctx, "Semantic Scholar", apiURL, header, &paper); err != nil {
		return nil, err
	}

	var urls []string
	if paper.OpenAccessPDF != nil {
		urls = append(urls, paper.OpenAccessPDF.URL)
	}
	urls = append(urls, paper.URL)
	return nonEmpty(urls), nil
}
