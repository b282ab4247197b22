// Package extract turns stored documents into plain text for analysis.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	MIMEPDF      = "application/pdf"
	MIMEMSWord   = "application/msword"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

// MaxChars is the analysis input budget in characters.
const MaxChars = 12000

// TruncationMarker is appended to text cut at MaxChars.
const TruncationMarker = "\n\n[Document truncated due to length]"

var (
	// ErrNoText means a PDF or Word file held no extractable text.
	ErrNoText = errors.New("no text extracted")
	// ErrLegacyWord means a pre-2007 binary .doc that is not an OOXML archive.
	ErrLegacyWord = errors.New("legacy binary word documents are not supported")
)

// Source fetches stored object bytes by key.
type Source interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Extractor downloads a document and converts it to text.
type Extractor struct {
	src           Source
	pdftotextPath string
}

type Option func(*Extractor)

// WithPdftotext overrides the pdftotext binary. An empty path disables it
// and forces the pure-Go PDF reader.
func WithPdftotext(path string) Option {
	return func(e *Extractor) { e.pdftotextPath = path }
}

// New returns an Extractor reading from src. pdftotext is used when found
// on PATH.
func New(src Source, opts ...Option) *Extractor {
	e := &Extractor{src: src}
	if path, err := exec.LookPath("pdftotext"); err == nil {
		e.pdftotextPath = path
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads key and returns its text, truncated to MaxChars.
func (e *Extractor) Extract(ctx context.Context, key, mimeType string) (string, error) {
	data, err := e.src.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	text, err := e.FromBytes(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	return Truncate(text), nil
}

// FromBytes converts data by declared MIME type. Unknown types yield "".
func (e *Extractor) FromBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch baseMIME(mimeType) {
	case MIMEText, MIMEMarkdown:
		return decodeText(data, mimeType)
	case MIMEPDF:
		return e.pdfText(ctx, data)
	case MIMEDocx, MIMEMSWord:
		return wordText(data)
	default:
		return "", nil
	}
}

// Truncate cuts text longer than MaxChars and appends TruncationMarker.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxChars]) + TruncationMarker
}

func baseMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// decodeText passes UTF-8 through untouched and transcodes anything else
// using the declared or sniffed charset.
func decodeText(data []byte, mimeType string) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	r, err := charset.NewReader(bytes.NewReader(data), mimeType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

// tidy strips NULs and invalid UTF-8, trims trailing blanks per line, and
// collapses runs of blank lines.
func tidy(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
