package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the devil's-advocate persona for a conversation.
type Mode string

const (
	ModeChallenge  Mode = "challenge"
	ModeDebate     Mode = "debate"
	ModeAnalysis   Mode = "analysis"
	ModeDocument   Mode = "document"
	ModeInvestor   Mode = "investor"
	ModeResearcher Mode = "researcher"
)

// DefaultMode applies when a chat request names no mode.
const DefaultMode = ModeChallenge

var modes = []Mode{ModeChallenge, ModeDebate, ModeAnalysis, ModeDocument, ModeInvestor, ModeResearcher}

// Modes lists every supported mode in display order.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// ParseMode validates a wire value. Blank input selects DefaultMode.
func ParseMode(raw string) (Mode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultMode, nil
	}
	for _, m := range Modes() {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisError      AnalysisStatus = "error"
)

// Processable reports whether a document in this state may be (re)processed.
func (s AnalysisStatus) Processable() bool {
	return s == AnalysisPending || s == AnalysisError
}

const (
	TierFree = "free"

	DefaultCredits = 5
)

// Identity is the verified caller as reported by the identity provider.
type Identity struct {
	UserID   string
	Email    string
	Metadata map[string]any
}

// MetadataString returns the first non-blank string value among keys.
func (i Identity) MetadataString(keys ...string) string {
	for _, k := range keys {
		if v, ok := i.Metadata[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	Title        string    `json:"title"`
	Mode         Mode      `json:"mode"`
	SystemPrompt string    `json:"-"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Document struct {
	ID             string          `json:"id"`
	UserID         string          `json:"-"`
	Title          string          `json:"title"`
	StorageKey     string          `json:"-"`
	FileURL        string          `json:"file_url"`
	FileType       string          `json:"file_type"`
	FileSize       int64           `json:"file_size"`
	AnalysisStatus AnalysisStatus  `json:"analysis_status"`
	AnalysisResult *AnalysisResult `json:"analysis_result,omitempty"`
	Content        string          `json:"content,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AnalysisSections is the eight-part critique produced for a document.
type AnalysisSections struct {
	Overview        string `json:"overview"`
	Logic           string `json:"logic"`
	Evidence        string `json:"evidence"`
	Assumptions     string `json:"assumptions"`
	Clarity         string `json:"clarity"`
	Objections      string `json:"objections"`
	Implementation  string `json:"implementation"`
	Recommendations string `json:"recommendations"`
}

// AnalysisResult is stored as JSON on the document row. A failed run carries
// only Error.
type AnalysisResult struct {
	Error string `json:"error,omitempty"`

	Content        string            `json:"content,omitempty"`
	Analysis       string            `json:"analysis,omitempty"`
	ParsedAnalysis *AnalysisSections `json:"parsed_analysis,omitempty"`
	Sections       *AnalysisSections `json:"analysis_sections,omitempty"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
	WordCount      int               `json:"word_count,omitempty"`
	CharacterCount int               `json:"character_count,omitempty"`
}

// Failed reports whether the result records a processing failure.
func (r *AnalysisResult) Failed() bool {
	return r != nil && r.Error != ""
}
