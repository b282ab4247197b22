// Package analysis runs the structured devil's-advocate critique of a
// document and normalises the model output into eight fixed sections.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"advocateai/pkg/ai"
	"advocateai/pkg/domain"
)

const (
	Temperature = 0.3
	MaxTokens   = 3000

	userPrefix = "Please analyze this document:\n\n"
)

// SystemPrompt asks for the eight-field JSON critique.
const SystemPrompt = `You are a devil's advocate AI designed to provide constructive criticism and analysis.
Analyze the following document and provide detailed feedback across these dimensions.

Return your response as a JSON object with the following structure:
{
  "overview": "Brief overall assessment of the document",
  "logic": "Analysis of logical fallacies, unsupported claims, and reasoning gaps",
  "evidence": "Evaluation of the quality and sufficiency of evidence provided",
  "assumptions": "Challenge underlying assumptions and hidden biases",
  "clarity": "Assessment of organization, clarity, and communication effectiveness",
  "objections": "Anticipated counterarguments and criticisms others might raise",
  "implementation": "Practical obstacles or feasibility issues identified",
  "recommendations": "Specific actionable suggestions for improvement"
}

Provide specific, actionable feedback with examples from the document. Be constructively critical but not harsh.
Focus on helping improve the document rather than just criticizing it.`

// Report is the outcome of one analysis call.
type Report struct {
	Raw        string
	Sections   domain.AnalysisSections
	Structured bool
	Usage      ai.Usage
}

// Analyzer sends documents to a completion provider.
type Analyzer struct {
	completer ai.Completer
}

func New(completer ai.Completer) *Analyzer {
	return &Analyzer{completer: completer}
}

// Analyze critiques text. Only a failed or empty completion is an error; any
// reply the provider does produce is mapped to sections.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Report, error) {
	if a == nil || a.completer == nil {
		return Report{}, errors.New("analyzer not configured")
	}
	out, err := a.completer.Complete(ctx, ai.Request{
		SystemPrompt: SystemPrompt,
		Messages:     []ai.ChatMessage{{Role: string(domain.RoleUser), Content: userPrefix + text}},
		Temperature:  Temperature,
		MaxTokens:    MaxTokens,
	})
	if err != nil {
		return Report{}, fmt.Errorf("analysis completion: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return Report{}, ai.ErrEmptyCompletion
	}
	sections, structured := ParseSections(out.Text)
	return Report{
		Raw:        out.Text,
		Sections:   sections,
		Structured: structured,
		Usage:      out.Usage,
	}, nil
}

// Result assembles the record stored on a completed document.
func Result(text string, report Report, processedAt time.Time) *domain.AnalysisResult {
	sections := report.Sections
	ts := processedAt.UTC()
	return &domain.AnalysisResult{
		Content:        text,
		Analysis:       report.Raw,
		ParsedAnalysis: &sections,
		Sections:       &sections,
		ProcessedAt:    &ts,
		WordCount:      len(strings.Fields(text)),
		CharacterCount: utf8.RuneCountInString(text),
	}
}
