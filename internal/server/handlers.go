// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/pkg/types"
)

// recordView is a record as listed by the API.
type recordView struct {
	*types.PdfRecord
	ProjectRefCount int `json:"project_ref_count"`
}

func newRecordView(r *types.PdfRecord) recordView {
	projects := map[string]bool{}
	for _, p := range r.ProjectIDs {
		projects[p] = true
	}
	return recordView{PdfRecord: r, ProjectRefCount: len(projects)}
}

// GET /api/pdf-library?q=&status=
func (s *Server) listRecords(c *gin.Context) {
	idx, err := s.lib.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	records, err := library.Filter(idx.List(), library.Query{
		Status: c.DefaultQuery("status", "all"),
		Text:   c.Query("q"),
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidStatus, err)
		return
	}

	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, newRecordView(r))
	}
	respondOK(c, out)
}

// GET /api/pdf-library/stats
func (s *Server) stats(c *gin.Context) {
	idx, err := s.lib.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	respondOK(c, library.ComputeStats(idx.List()))
}

// GET /api/pdf-library/:id/download
func (s *Server) download(c *gin.Context) {
	rec, ok := s.resolvePDF(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(rec.PDFPath, library.DownloadName(rec, s.entries))
}

// GET /api/pdf-library/:id/view
func (s *Server) view(c *gin.Context) {
	rec, ok := s.resolvePDF(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", library.DownloadName(rec, s.entries)))
	c.File(rec.PDFPath)
}

// DELETE /api/pdf-library/:id?delete_file=true
func (s *Server) deleteRecord(c *gin.Context) {
	deleteFile := true
	if v := c.Query("delete_file"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_delete_file", fmt.Errorf("delete_file must be a boolean, got %q", v))
			return
		}
		deleteFile = b
	}

	res, err := s.lib.Delete(c.Param("id"), deleteFile)
	switch {
	case errors.Is(err, library.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, CodeNotFound, err)
		return
	case err != nil:
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	s.log.Info("pdf record deleted", "record_id", res.RecordID, "removed_file", res.RemovedFile)
	respondOK(c, res)
}

// resolvePDF looks up the record named by :id and checks that its file can
// be served. It writes the error response itself and reports false on
// failure.
func (s *Server) resolvePDF(c *gin.Context) (*types.PdfRecord, bool) {
	id := c.Param("id")
	idx, err := s.lib.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err)
		return nil, false
	}
	_, rec, ok := idx.GetByID(id)
	if !ok {
		respondError(c, http.StatusNotFound, CodeNotFound, fmt.Errorf("%w: %s", library.ErrRecordNotFound, id))
		return nil, false
	}
	if rec.Status != types.StatusFound {
		respondError(c, http.StatusBadRequest, CodeNotAvailable, fmt.Errorf("%w: record %s is %s", library.ErrNotAvailable, id, rec.Status))
		return nil, false
	}
	if rec.PDFPath == "" {
		respondError(c, http.StatusNotFound, CodeNotAvailable, fmt.Errorf("%w: record %s has no path", library.ErrNotAvailable, id))
		return nil, false
	}
	if fi, err := os.Stat(rec.PDFPath); err != nil || fi.IsDir() {
		respondError(c, http.StatusNotFound, CodeNotAvailable, fmt.Errorf("%w: file missing at %s", library.ErrNotAvailable, rec.PDFPath))
		return nil, false
	}
	return rec, true
}
