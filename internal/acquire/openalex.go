// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/pdf-library/internal/httputil"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// maxAPIResponseBytes bounds metadata API responses.
const maxAPIResponseBytes = 4 << 20

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	OpenAccess struct {
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	PrimaryLocation *openAlexLocation  `json:"primary_location"`
	BestOALocation  *openAlexLocation  `json:"best_oa_location"`
	Locations       []openAlexLocation `json:"locations"`
}

// openAlexLocation represents a hosting location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// openAlexURLs queries OpenAlex for a DOI and returns candidate URLs in
// preference order: the open-access URL, the primary location's PDF, the
// best open-access location's PDF, then every other location's PDF.
func (g *Generator) openAlexURLs(ctx context.Context, doi string) ([]string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + url.PathEscape(doi)
	if g.contactEmail != "" {
		apiURL += "?mailto=" + url.QueryEscape(g.contactEmail)
	}

	var oa openAlexResponse
	if err := g.getJSON(ctx, "OpenAlex", apiURL, nil, &oa); err != nil {
		return nil, err
	}

	urls := []string{oa.OpenAccess.OAURL}
	if oa.PrimaryLocation != nil {
		urls = append(urls, oa.PrimaryLocation.PDFURL)
	}
	if oa.BestOALocation != nil {
		urls = append(urls, oa.BestOALocation.PDFURL)
	}
	for _, loc := range oa.Locations {
		urls = append(urls, loc.PDFURL)
	}
	return nonEmpty(urls), nil
}

// getJSON fetches apiURL and decodes a JSON body into v. Non-200 responses
// are errors.
func (g *Generator) getJSON(ctx context.Context, name, apiURL string, header http.Header, v any) error {
	h := http.Header{"Accept": {"application/json"}}
	for k, vs := range header {
		h[k] = vs
	}
	resp, err := g.client.Get(ctx, apiURL, h)
	if err != nil {
		return fmt.Errorf("%s API request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API returned HTTP %d", name, resp.StatusCode)
	}
	data, err := httputil.ReadLimited(resp.Body, maxAPIResponseBytes)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", name, err)
	}
	return nil
}

func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
