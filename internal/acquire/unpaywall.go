// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"net/url"
)

// unpaywallAPIBase is the Unpaywall v2 endpoint.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
}

type unpaywallResponse struct {
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

// unpaywallURLs returns the best open-access PDF, then every other
// open-access PDF, for a DOI. Unpaywall requires a contact e-mail; without
// one no request is made.
func (g *Generator) unpaywallURLs(ctx context.Context, doi string) ([]string, error) {
	if g.contactEmail == "" {
		return nil, nil
	}
	apiURL := unpaywallAPIBase + url.PathEscape(doi) + "?email=" + url.QueryEscape(g.contactEmail)

	var resp unpaywallResponse
	if err := g.getJSON(ctx, "Unpaywall", apiURL, nil, &resp); err != nil {
		return nil, err
	}

	var urls []string
	if resp.BestOALocation != nil {
		urls = append(urls, resp.BestOALocation.URLForPDF)
	}
	for _, loc := range resp.OALocations {
		urls = append(urls, loc.URLForPDF)
	}
	return nonEmpty(urls), nil
}
