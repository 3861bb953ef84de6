// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire produces and fetches candidate PDF URLs for bibliographic
// entries: entry fields, the DOI resolver, publisher URL templates, the
// OpenAlex, Semantic Scholar and Unpaywall APIs, and links discovered on
// landing pages. It also decides whether fetched bytes are the PDF of the
// requested DOI.
package acquire

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pdf-library/internal/httputil"
	"github.com/pdiddy/pdf-library/internal/logger"
	"github.com/pdiddy/pdf-library/pkg/types"
)

// apiRequestsPerSecond is the rate shared by the metadata API lookups.
const apiRequestsPerSecond = 5

// Generator builds the ordered candidate list for an entry.
type Generator struct {
	client             *httputil.Client
	contactEmail       string
	semanticScholarKey string
	log                *logger.Logger
}

// NewGenerator returns a Generator configured from cfg. A nil log discards
// diagnostics.
func NewGenerator(cfg types.FetchConfig, log *logger.Logger) *Generator {
	return &Generator{
		client:             httputil.NewClient(cfg.Timeout, cfg.UserAgent, apiRequestsPerSecond),
		contactEmail:       cfg.UnpaywallEmail,
		semanticScholarKey: cfg.SemanticScholarAPIKey,
		log:                logger.OrNop(log),
	}
}

// Generate returns the candidates for entry in priority order: the entry's
// own url (rewritten to arXiv PDF, then as-is) and eprint, the DOI resolver,
// publisher templates, then OpenAlex, Semantic Scholar and Unpaywall. doi
// must be normalized or empty. Provider failures are logged and yield no
// candidates; Generate never fails.
func (g *Generator) Generate(ctx context.Context, entry types.BibEntry, doi string) []Candidate {
	list := NewCandidateList()

	if entryURL := entry.Get("url"); entryURL != "" {
		if arxiv := ArxivPDFURL(entryURL); arxiv != "" {
			list.Add(arxiv, "entry_arxiv")
		}
		if IsPDFLikeURL(entryURL) {
			list.Add(entryURL, "entry_url_pdf")
		}
		list.Add(entryURL, "entry_url")
	}
	if eprint := entry.Get("eprint"); eprint != "" {
		if arxiv := ArxivPDFURL(eprint); arxiv != "" {
			list.Add(arxiv, "entry_eprint")
		}
	}

	if doi == "" {
		return list.Items()
	}

	list.Add(DOIResolverURL(doi), "doi_resolver")
	list.AddAll(PublisherCandidates(doi, ""))

	for _, r := range g.lookupAPIs(ctx, doi) {
		for _, u := range r.urls {
			list.Add(u, r.provider)
		}
	}
	return list.Items()
}

type apiLookup struct {
	provider string
	fetch    func(context.Context, string) ([]string, error)
	urls     []string
}

// lookupAPIs queries the metadata APIs concurrently. Results keep the fixed
// provider order regardless of completion order.
func (g *Generator) lookupAPIs(ctx context.Context, doi string) []apiLookup {
	lookups := []apiLookup{
		{provider: "openalex", fetch: g.openAlexURLs},
		{provider: "semantic_scholar", fetch: g.semanticScholarURLs},
		{provider: "unpaywall", fetch: g.unpaywallURLs},
	}

	var eg errgroup.Group
	for i := range lookups {
		l := &lookups[i]
		eg.Go(func() error {
			urls, err := l.fetch(ctx, doi)
			if err != nil {
				g.log.Debug("candidate provider failed", "provider", l.provider, "doi", doi, "error", err)
				return nil
			}
			l.urls = urls
			return nil
		})
	}
	_ = eg.Wait()
	return lookups
}
