package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"advocateai/internal/util"
	"advocateai/pkg/analysis"
	"advocateai/pkg/domain"
	"advocateai/pkg/extract"
	"advocateai/pkg/store"
)

// Upload is a document file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var allowedTypes = map[string]string{
	extract.MIMEPDF:      "pdf",
	extract.MIMEMSWord:   "doc",
	extract.MIMEDocx:     "docx",
	extract.MIMEText:     "txt",
	extract.MIMEMarkdown: "md",
}

var typesByExt = map[string]string{
	".pdf":      extract.MIMEPDF,
	".doc":      extract.MIMEMSWord,
	".docx":     extract.MIMEDocx,
	".txt":      extract.MIMEText,
	".md":       extract.MIMEMarkdown,
	".markdown": extract.MIMEMarkdown,
}

// UploadDocument stores the file and records a pending document. The stored
// object is removed again when the row cannot be written.
func (a *App) UploadDocument(ctx context.Context, id domain.Identity, up Upload) (domain.Document, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return domain.Document{}, ErrUnauthenticated
	}
	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return domain.Document{}, fmt.Errorf("%w: filename required", ErrInvalidArgument)
	}
	if up.Body == nil || up.Size <= 0 {
		return domain.Document{}, fmt.Errorf("%w: file is empty", ErrInvalidArgument)
	}
	if up.Size > a.maxUploadBytes {
		a.metrics.DocumentUploads.WithLabelValues("too_large").Inc()
		return domain.Document{}, fmt.Errorf("%w: file size too large, maximum %d bytes", ErrInvalidArgument, a.maxUploadBytes)
	}
	fileType := documentType(name, up.ContentType)
	defaultExt, ok := allowedTypes[fileType]
	if !ok {
		a.metrics.DocumentUploads.WithLabelValues("unsupported").Inc()
		return domain.Document{}, fmt.Errorf("%w: file type not supported", ErrInvalidArgument)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		ext = defaultExt
	}

	docID := a.newID()
	key := fmt.Sprintf("documents/%s/%s.%s", id.UserID, a.newID(), ext)
	logger := util.LoggerFromContext(ctx).With("user_id", id.UserID, "document_id", docID)

	if err := a.objects.Put(ctx, key, up.Body, up.Size, fileType); err != nil {
		a.metrics.DocumentUploads.WithLabelValues("error").Inc()
		return domain.Document{}, fmt.Errorf("store file: %w", err)
	}
	cleanup := func(cause error) error {
		if err := a.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.Error("remove orphaned upload failed", "key", key, "err", err)
		}
		a.metrics.DocumentUploads.WithLabelValues("error").Inc()
		return cause
	}
	fileURL, err := a.objects.URL(ctx, key)
	if err != nil {
		return domain.Document{}, cleanup(fmt.Errorf("file url: %w", err))
	}
	now := a.now()
	doc := domain.Document{
		ID:             docID,
		UserID:         id.UserID,
		Title:          name,
		StorageKey:     key,
		FileURL:        fileURL,
		FileType:       fileType,
		FileSize:       up.Size,
		AnalysisStatus: domain.AnalysisPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveDocument(ctx, doc); err != nil {
		return domain.Document{}, cleanup(fmt.Errorf("save document: %w", err))
	}
	a.metrics.DocumentUploads.WithLabelValues("ok").Inc()
	logger.Info("document uploaded", "file_type", fileType, "file_size", up.Size)
	return doc, nil
}

// ProcessDocument runs extraction and analysis on a pending or failed
// document and records the outcome on it. The returned document reflects the
// final state even when an error is returned.
func (a *App) ProcessDocument(ctx context.Context, userID, documentID string) (domain.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Document{}, ErrUnauthenticated
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.Document{}, fmt.Errorf("%w: document id required", ErrInvalidArgument)
	}
	claimedAt := a.now()
	doc, err := a.store.ClaimDocument(ctx, userID, documentID, claimedAt, claimedAt.Add(-(a.generationTimeout + processingGrace)))
	switch {
	case errors.Is(err, store.ErrConflict):
		return doc, fmt.Errorf("%w: document is %s", ErrInvalidState, doc.AnalysisStatus)
	case err != nil:
		return domain.Document{}, notFoundAs(err, "document "+documentID)
	}
	logger := util.LoggerFromContext(ctx).With("user_id", userID, "document_id", doc.ID)
	if doc.AnalysisResult.Failed() {
		logger.Info("retrying failed document", "previous_error", doc.AnalysisResult.Error)
	}
	started := time.Now()
	defer func() { a.metrics.AnalysisSeconds.Observe(time.Since(started).Seconds()) }()

	text, err := a.extractor.Extract(ctx, doc.StorageKey, doc.FileType)
	if err != nil {
		logger.Error("document extraction failed", "file_type", doc.FileType, "err", err)
		return a.failDocument(ctx, doc, ErrExtractionFailed)
	}

	genCtx, cancel := context.WithTimeout(ctx, a.generationTimeout)
	defer cancel()
	report, err := a.analyzer.Analyze(genCtx, text)
	if err != nil {
		logger.Error("document analysis failed", "err", err)
		return a.failDocument(ctx, doc, ErrAnalysisFailed)
	}
	if !report.Structured {
		logger.Warn("analysis reply was not structured JSON, stored fallback sections")
	}

	now := a.now()
	result := analysis.Result(text, report, now)
	if err := a.store.FinishDocument(context.WithoutCancel(ctx), doc.ID, domain.AnalysisCompleted, result, text, now); err != nil {
		a.metrics.DocumentAnalyses.WithLabelValues("error").Inc()
		return domain.Document{}, fmt.Errorf("save analysis: %w", err)
	}
	a.metrics.DocumentAnalyses.WithLabelValues("completed").Inc()
	doc.AnalysisStatus = domain.AnalysisCompleted
	doc.AnalysisResult = result
	doc.Content = text
	doc.UpdatedAt = now
	logger.Info("document analysed", "word_count", result.WordCount, "tokens", report.Usage.TotalTokens)
	return doc, nil
}

func (a *App) failDocument(ctx context.Context, doc domain.Document, cause error) (domain.Document, error) {
	now := a.now()
	result := &domain.AnalysisResult{Error: cause.Error()}
	if err := a.store.FinishDocument(context.WithoutCancel(ctx), doc.ID, domain.AnalysisError, result, "", now); err != nil {
		util.LoggerFromContext(ctx).Error("record document failure", "document_id", doc.ID, "err", err)
	}
	a.metrics.DocumentAnalyses.WithLabelValues(string(domain.AnalysisError)).Inc()
	doc.AnalysisStatus = domain.AnalysisError
	doc.AnalysisResult = result
	doc.UpdatedAt = now
	return doc, cause
}

func (a *App) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	docs, err := a.store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (a *App) GetDocument(ctx context.Context, userID, id string) (domain.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Document{}, ErrUnauthenticated
	}
	doc, err := a.store.GetDocument(ctx, userID, id)
	if err != nil {
		return domain.Document{}, notFoundAs(err, "document "+id)
	}
	return doc, nil
}

// documentType resolves the declared MIME type, falling back to the file
// extension when the client sent none or a generic one.
func documentType(filename, declared string) string {
	base := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(base); err == nil {
		base = parsed
	}
	if base == "text/x-markdown" {
		return extract.MIMEMarkdown
	}
	if base == "" || base == "application/octet-stream" {
		if t, ok := typesByExt[strings.ToLower(filepath.Ext(filename))]; ok {
			return t
		}
	}
	return base
}
