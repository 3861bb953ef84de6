// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/pdf-library/internal/httputil"
	"github.com/pdiddy/pdf-library/pkg/types"
)

// pdfAccept prefers PDF but lets publishers answer with anything.
const pdfAccept = "application/pdf,application/octet-stream;q=0.9,*/*;q=0.1"

// Candidate rejection reasons returned by Fetcher.
var (
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	ErrTooLarge   = errors.New("pdf exceeds size limit")
	ErrEmptyBody  = errors.New("empty response body")
	ErrNotPDF     = errors.New("response is not a pdf")
)

// Fetched is a successfully downloaded PDF.
type Fetched struct {
	Body        []byte
	FinalURL    string
	ContentType string
}

// Fetcher downloads candidate URLs and accepts only PDF responses within
// the size limit.
type Fetcher struct {
	client   *httputil.Client
	maxBytes int64
}

// NewFetcher returns a Fetcher configured from cfg. Downloads are attempted
// once; a 429 from a publisher is a rejected candidate like any other status.
func NewFetcher(cfg types.FetchConfig) *Fetcher {
	client := httputil.NewClient(cfg.Timeout, cfg.UserAgent, 0)
	client.MaxRetries = httputil.NoRetry
	return &Fetcher{
		client:   client,
		maxBytes: cfg.MaxPDFBytes,
	}
}

// Fetch downloads rawURL, following redirects.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	return f.FetchWith(ctx, rawURL, nil)
}

// FetchWith is Fetch with extra request headers, used to replay a browser
// session's cookies and User-Agent.
func (f *Fetcher) FetchWith(ctx context.Context, rawURL string, header http.Header) (*Fetched, error) {
	h := http.Header{"Accept": {pdfAccept}}
	for k, vs := range header {
		h[k] = vs
	}
	resp, err := f.client.Get(ctx, rawURL, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from %s", ErrHTTPStatus, resp.StatusCode, rawURL)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrTooLarge, resp.ContentLength)
	}

	body, err := httputil.ReadLimited(resp.Body, f.maxBytes)
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	contentType := resp.Header.Get("Content-Type")
	if !LooksLikePDF(contentType, body) {
		return nil, fmt.Errorf("%w: content type %q", ErrNotPDF, contentType)
	}
	return &Fetched{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: contentType,
	}, nil
}

// LooksLikePDF reports whether a response is a PDF by content type or by the
// %PDF- magic bytes.
func LooksLikePDF(contentType string, body []byte) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf") || bytes.HasPrefix(body, []byte("%PDF-"))
}
