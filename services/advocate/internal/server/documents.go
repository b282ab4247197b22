package server

import (
	"errors"
	"net/http"
	"strings"

	"advocateai/pkg/domain"
	"advocateai/services/advocate/internal/app"
)

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	docs, err := s.app.ListDocuments(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// /api/documents/{id}
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	docID := pathID(r.URL.Path, "/api/documents/")
	if docID == "" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	doc, err := s.app.GetDocument(r.Context(), id.UserID, docID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

type uploadResponse struct {
	DocumentID string `json:"documentId"`
	URL        string `json:"url"`
	FileName   string `json:"fileName"`
	FileSize   int64  `json:"fileSize"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, s.documentLimiter, "upload", id.UserID) {
		return
	}
	// Leave room for multipart framing around a file at the limit.
	maxBytes := s.app.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file size too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	doc, err := s.app.UploadDocument(r.Context(), id, app.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID: doc.ID,
		URL:        doc.FileURL,
		FileName:   doc.Title,
		FileSize:   doc.FileSize,
	})
}

type processRequest struct {
	DocumentID string `json:"documentId"`
}

type processResponse struct {
	DocumentID string                 `json:"documentId"`
	Status     domain.AnalysisStatus  `json:"status"`
	Analysis   *domain.AnalysisResult `json:"analysis"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeError(w, http.StatusBadRequest, "document id required")
		return
	}
	if !s.allow(w, r, s.documentLimiter, "process", id.UserID) {
		return
	}
	doc, err := s.app.ProcessDocument(r.Context(), id.UserID, req.DocumentID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{
		DocumentID: doc.ID,
		Status:     doc.AnalysisStatus,
		Analysis:   doc.AnalysisResult,
	})
}
