package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"advocateai/pkg/ai"
)

type stubCompleter struct {
	text string
	err  error
	got  ai.Request
}

func (s *stubCompleter) Complete(_ context.Context, req ai.Request) (ai.Completion, error) {
	s.got = req
	if s.err != nil {
		return ai.Completion{}, s.err
	}
	return ai.Completion{Text: s.text, Usage: ai.Usage{TotalTokens: 42}}, nil
}

func (s *stubCompleter) Stream(ctx context.Context, req ai.Request, _ ai.DeltaFunc) (ai.Completion, error) {
	return s.Complete(ctx, req)
}

func TestParseSectionsStrictJSON(t *testing.T) {
	raw := `{"overview":"Solid","logic":"Circular in 2.1","evidence":"Thin","assumptions":"Market grows",` +
		`"clarity":"Good","objections":"Cost","implementation":"Hiring","recommendations":"Add data"}`
	got, ok := ParseSections(raw)
	if !ok {
		t.Fatalf("expected structured parse")
	}
	if got.Overview != "Solid" || got.Logic != "Circular in 2.1" || got.Recommendations != "Add data" {
		t.Fatalf("unexpected sections %+v", got)
	}
}

func TestParseSectionsMissingAndOddFields(t *testing.T) {
	raw := `{"overview":"Only this","objections":["Too slow","Too costly"],"clarity":{"score":3},"logic":null,"extra":"ignored"}`
	got, ok := ParseSections(raw)
	if !ok {
		t.Fatalf("expected structured parse")
	}
	if got.Overview != "Only this" || got.Evidence != "" || got.Logic != "" {
		t.Fatalf("unexpected sections %+v", got)
	}
	if got.Objections != "Too slow\nToo costly" {
		t.Fatalf("list not joined: %q", got.Objections)
	}
	if got.Clarity != `{"score":3}` {
		t.Fatalf("object not kept as json: %q", got.Clarity)
	}
}

func TestParseSectionsFencedJSON(t *testing.T) {
	raw := "Here is my critique:\n```json\n{\n  \"overview\": \"Weak\",\n  \"logic\": \"Gaps\",\n}\n```\nGood luck."
	got, ok := ParseSections(raw)
	if !ok {
		t.Fatalf("expected fenced json to parse")
	}
	if got.Overview != "Weak" || got.Logic != "Gaps" {
		t.Fatalf("unexpected sections %+v", got)
	}
}

func TestParseSectionsFallback(t *testing.T) {
	raw := strings.Repeat("This document rambles. ", 40)
	got, ok := ParseSections(raw)
	if ok {
		t.Fatalf("prose must not count as structured")
	}
	if got.Overview != "Analysis completed" {
		t.Fatalf("overview = %q", got.Overview)
	}
	if len([]rune(got.Logic)) != 500 || !strings.HasPrefix(raw, got.Logic) {
		t.Fatalf("logic should be the first 500 characters, got %d", len([]rune(got.Logic)))
	}
	others := []string{got.Evidence, got.Assumptions, got.Clarity, got.Objections, got.Implementation, got.Recommendations}
	for i, v := range others {
		if v != "" {
			t.Fatalf("fallback field %d = %q, want empty", i, v)
		}
	}

	short, _ := ParseSections("[1,2,3]")
	if short.Logic != "[1,2,3]" {
		t.Fatalf("non-object json should fall back, got %+v", short)
	}
}

func TestAnalyzeRequestShape(t *testing.T) {
	stub := &stubCompleter{text: `{"overview":"ok"}`}
	report, err := New(stub).Analyze(context.Background(), "My thesis.")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if stub.got.SystemPrompt != SystemPrompt || stub.got.Temperature != 0.3 || stub.got.MaxTokens != 3000 {
		t.Fatalf("unexpected request %+v", stub.got)
	}
	if len(stub.got.Messages) != 1 || stub.got.Messages[0].Content != "Please analyze this document:\n\nMy thesis." {
		t.Fatalf("unexpected user turn %+v", stub.got.Messages)
	}
	if !report.Structured || report.Sections.Overview != "ok" || report.Raw != `{"overview":"ok"}` || report.Usage.TotalTokens != 42 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestAnalyzeFailures(t *testing.T) {
	upstream := errors.New("upstream 503")
	if _, err := New(&stubCompleter{err: upstream}).Analyze(context.Background(), "x"); !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
	if _, err := New(&stubCompleter{text: "  "}).Analyze(context.Background(), "x"); !errors.Is(err, ai.ErrEmptyCompletion) {
		t.Fatalf("expected empty completion error, got %v", err)
	}
}

func TestResult(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	report := Report{Raw: "raw", Sections: fallback("raw")}
	res := Result("héllo  wide world", report, now)

	if res.WordCount != 3 || res.CharacterCount != 17 {
		t.Fatalf("counts = %d words, %d chars", res.WordCount, res.CharacterCount)
	}
	if res.Analysis != "raw" || res.Content != "héllo  wide world" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ParsedAnalysis == nil || res.Sections == nil || *res.ParsedAnalysis != *res.Sections {
		t.Fatalf("parsed_analysis and analysis_sections must match")
	}
	if res.ProcessedAt == nil || !res.ProcessedAt.Equal(now) || res.ProcessedAt.Location() != time.UTC {
		t.Fatalf("processed_at = %v", res.ProcessedAt)
	}
	if res.Failed() {
		t.Fatalf("completed result must not be marked failed")
	}
}
