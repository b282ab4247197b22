package store

import (
	"context"
	"errors"
	"time"

	"advocateai/pkg/domain"
)

var (
	// ErrNotFound means the row is absent or not owned by the caller.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means the row exists but is in the wrong state for the
	// requested transition.
	ErrConflict = errors.New("store: state conflict")
)

// Store defines persistence for profiles, conversations, messages and
// documents. Every owner-scoped read or write filters on userID.
type Store interface {
	// profiles
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	// CreateProfile inserts p unless a profile with the same id exists, and
	// returns whichever row is stored afterwards.
	CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
	// DebitCredit takes one credit from a free-tier profile, never going
	// below zero. Other tiers are untouched.
	DebitCredit(ctx context.Context, userID string) error

	// conversations
	CreateConversation(ctx context.Context, c domain.Conversation) error
	GetConversation(ctx context.Context, userID, id string) (domain.Conversation, error)
	// ListConversations returns summaries with MessageCount, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	RenameConversation(ctx context.Context, userID, id, title string, at time.Time) (domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	// DeleteConversation removes the conversation and its messages atomically.
	DeleteConversation(ctx context.Context, userID, id string) error

	// messages
	// AppendMessage returns ErrNotFound when the conversation is gone.
	AppendMessage(ctx context.Context, msg domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// documents
	SaveDocument(ctx context.Context, d domain.Document) error
	GetDocument(ctx context.Context, userID, id string) (domain.Document, error)
	// ListDocuments returns the user's documents, newest first.
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	// ClaimDocument moves an owned document from pending or error to
	// processing. A processing row last updated before staleBefore is taken
	// over as well; a zero staleBefore disables takeover. ErrConflict reports
	// any other current status.
	ClaimDocument(ctx context.Context, userID, id string, at, staleBefore time.Time) (domain.Document, error)
	// FinishDocument records the terminal status, result and extracted content
	// of a processing run.
	FinishDocument(ctx context.Context, id string, status domain.AnalysisStatus, result *domain.AnalysisResult, content string, at time.Time) error
}
