// Package prompt assembles the system prompts that steer the advocate persona.
package prompt

import (
	"fmt"
	"strings"

	"advocateai/pkg/domain"
)

type Intensity string

const (
	IntensityGentle     Intensity = "gentle"
	IntensityStandard   Intensity = "standard"
	IntensityAggressive Intensity = "aggressive"
	IntensityBrutal     Intensity = "brutal"
)

type Context string

const (
	ContextStartup  Context = "startup"
	ContextAcademic Context = "academic"
	ContextCreative Context = "creative"
	ContextPersonal Context = "personal"
)

type Timeframe string

const (
	TimeframeImmediate Timeframe = "immediate"
	TimeframeShortTerm Timeframe = "shortTerm"
	TimeframeLongTerm  Timeframe = "longTerm"
)

var intensityText = map[Intensity]string{
	IntensityGentle:     "Take a supportive but questioning approach. Guide them toward insights.",
	IntensityStandard:   "Apply normal intellectual pressure. Challenge clearly but constructively.",
	IntensityAggressive: "Go hard. This idea needs serious stress testing. Be relentless but fair.",
	IntensityBrutal:     "Academic/professional stakes. Tear it apart like a hostile reviewer would.",
}

var contextText = map[Context]string{
	ContextStartup:  "Focus on market realities, business model, and scaling challenges.",
	ContextAcademic: "Emphasize methodology, evidence quality, and theoretical rigor.",
	ContextCreative: "Balance artistic vision with practical constraints and audience needs.",
	ContextPersonal: "Consider emotional stakes and personal growth alongside logical analysis.",
}

var timeframeText = map[Timeframe]string{
	TimeframeImmediate: "What could go wrong in the next 3 months?",
	TimeframeShortTerm: "12-18 month horizon - what obstacles will emerge?",
	TimeframeLongTerm:  "3-5 year view - how does this evolve and what threatens it?",
}

// Options are the optional modifiers layered on a mode prompt. Zero values
// mean "not supplied".
type Options struct {
	Intensity Intensity
	Context   Context
	Timeframe Timeframe
}

// ParseOptions validates raw wire values. Blank values stay unset.
func ParseOptions(intensity, context, timeframe string) (Options, error) {
	var opts Options
	if v := strings.TrimSpace(intensity); v != "" {
		if _, ok := intensityText[Intensity(v)]; !ok {
			return Options{}, fmt.Errorf("unknown intensity %q", v)
		}
		opts.Intensity = Intensity(v)
	}
	if v := strings.TrimSpace(context); v != "" {
		if _, ok := contextText[Context(v)]; !ok {
			return Options{}, fmt.Errorf("unknown context %q", v)
		}
		opts.Context = Context(v)
	}
	if v := strings.TrimSpace(timeframe); v != "" {
		if _, ok := timeframeText[Timeframe(v)]; !ok {
			return Options{}, fmt.Errorf("unknown timeframe %q", v)
		}
		opts.Timeframe = Timeframe(v)
	}
	return opts, nil
}

// ForMode returns the base prompt for mode, or the challenge prompt for a
// mode that slipped past validation.
func ForMode(mode domain.Mode) string {
	if p, ok := modePrompts[mode]; ok {
		return p
	}
	return modePrompts[domain.DefaultMode]
}

// Build returns the mode prompt followed by one block per supplied modifier,
// in the order intensity, context, timeframe.
func Build(mode domain.Mode, opts Options) string {
	var b strings.Builder
	b.WriteString(ForMode(mode))
	if text, ok := intensityText[opts.Intensity]; ok {
		b.WriteString("\n\n**Intensity Level**: ")
		b.WriteString(text)
	}
	if text, ok := contextText[opts.Context]; ok {
		b.WriteString("\n\n**Context Focus**: ")
		b.WriteString(text)
	}
	if text, ok := timeframeText[opts.Timeframe]; ok {
		b.WriteString("\n\n**Time Horizon**: ")
		b.WriteString(text)
	}
	return b.String()
}

const (
	titleWords     = 6
	titleMaxLen    = 50
	titleKeepChars = 47
)

// GenerateTitle derives a conversation title from the opening user message:
// the first six space-separated words, cut to 47 characters plus "..." when
// longer than 50.
func GenerateTitle(message string) string {
	words := strings.Split(message, " ")
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	title := []rune(strings.Join(words, " "))
	if len(title) > titleMaxLen {
		return string(title[:titleKeepChars]) + "..."
	}
	return string(title)
}
