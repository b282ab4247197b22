package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText prefers poppler's pdftotext, which copes better with complex
// layouts, and falls back to the pure-Go reader.
func (e *Extractor) pdfText(ctx context.Context, data []byte) (string, error) {
	if e.pdftotextPath != "" {
		if text, err := e.pdftotext(ctx, data); err == nil && text != "" {
			return text, nil
		}
	}
	return pdfTextGo(data)
}

func (e *Extractor) pdftotext(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "advocate-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, e.pdftotextPath, "-layout", "-enc", "UTF-8", f.Name(), "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return tidy(string(out)), nil
}

func pdfTextGo(data []byte) (text string, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content = tidy(content); content != "" {
			pages = append(pages, content)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdf: %w", ErrNoText)
	}
	return strings.Join(pages, "\n\n"), nil
}
