package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type mapSource map[string][]byte

func (m mapSource) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxBody)
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestFromBytesText(t *testing.T) {
	e := New(nil, WithPdftotext(""))
	ctx := context.Background()

	raw := "# Plan\n\n  keep   spacing  \n"
	for _, mimeType := range []string{MIMEText, MIMEMarkdown, "text/plain; charset=utf-8"} {
		got, err := e.FromBytes(ctx, []byte(raw), mimeType)
		if err != nil || got != raw {
			t.Fatalf("%s: got %q, %v; want passthrough", mimeType, got, err)
		}
	}

	latin1 := []byte{'c', 'a', 'f', 0xe9}
	got, err := e.FromBytes(ctx, latin1, MIMEText)
	if err != nil {
		t.Fatalf("decode latin1: %v", err)
	}
	if got != "café" {
		t.Fatalf("latin1 decode = %q", got)
	}
}

func TestFromBytesDocx(t *testing.T) {
	e := New(nil, WithPdftotext(""))
	data := buildDocx(t,
		`<w:p><w:r><w:t>Our market</w:t></w:r><w:r><w:t xml:space="preserve"> is huge.</w:t></w:r></w:p>`+
			`<w:p></w:p>`+
			`<w:p><w:r><w:t>Revenue</w:t><w:tab/><w:t>10M</w:t></w:r></w:p>`)

	for _, mimeType := range []string{MIMEDocx, MIMEMSWord} {
		got, err := e.FromBytes(context.Background(), data, mimeType)
		if err != nil {
			t.Fatalf("%s: %v", mimeType, err)
		}
		want := "Our market is huge.\n\nRevenue\t10M"
		if got != want {
			t.Fatalf("%s: got %q, want %q", mimeType, got, want)
		}
	}
}

func TestFromBytesWordFailures(t *testing.T) {
	e := New(nil, WithPdftotext(""))
	ctx := context.Background()

	if _, err := e.FromBytes(ctx, []byte("\xd0\xcf\x11\xe0 legacy ole"), MIMEMSWord); !errors.Is(err, ErrLegacyWord) {
		t.Fatalf("legacy doc: got %v", err)
	}
	if _, err := e.FromBytes(ctx, buildDocx(t, `<w:p></w:p>`), MIMEDocx); !errors.Is(err, ErrNoText) {
		t.Fatalf("empty docx: got %v", err)
	}
}

func TestFromBytesPDFRejectsGarbage(t *testing.T) {
	e := New(nil, WithPdftotext(""))
	if _, err := e.FromBytes(context.Background(), []byte("not a pdf at all"), MIMEPDF); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}

func TestFromBytesUnknownTypeIsEmpty(t *testing.T) {
	e := New(nil, WithPdftotext(""))
	got, err := e.FromBytes(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	if err != nil || got != "" {
		t.Fatalf("got %q, %v; want empty", got, err)
	}
}

func TestTruncate(t *testing.T) {
	exact := strings.Repeat("a", MaxChars)
	if got := Truncate(exact); got != exact {
		t.Fatalf("text at the limit must be untouched")
	}

	long := strings.Repeat("é", MaxChars+1)
	got := Truncate(long)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("missing truncation marker")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, TruncationMarker)); n != MaxChars {
		t.Fatalf("kept %d characters, want %d", n, MaxChars)
	}
}

func TestExtractDownloadsAndTruncates(t *testing.T) {
	src := mapSource{"documents/u1/a.txt": []byte(strings.Repeat("x", MaxChars+10))}
	e := New(src, WithPdftotext(""))

	got, err := e.Extract(context.Background(), "documents/u1/a.txt", MIMEText)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != MaxChars+len(TruncationMarker) {
		t.Fatalf("unexpected length %d", len(got))
	}

	if _, err := e.Extract(context.Background(), "missing", MIMEText); err == nil {
		t.Fatalf("expected download error")
	}
}

func TestTidy(t *testing.T) {
	in := "line one  \r\n\n\n\nline\x00 two\f"
	if got := tidy(in); got != "line one\n\nline two" {
		t.Fatalf("tidy = %q", got)
	}
}
