package app

import (
	"context"
	"fmt"
	"strings"

	"advocateai/internal/util"
	"advocateai/pkg/domain"
)

// ConversationDetail is a conversation with its messages in order.
type ConversationDetail struct {
	domain.Conversation
	Messages []domain.Message `json:"messages"`
}

func (a *App) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	items, err := a.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

func (a *App) GetConversation(ctx context.Context, userID, id string) (ConversationDetail, error) {
	if strings.TrimSpace(userID) == "" {
		return ConversationDetail{}, ErrUnauthenticated
	}
	conv, err := a.store.GetConversation(ctx, userID, id)
	if err != nil {
		return ConversationDetail{}, notFoundAs(err, "conversation "+id)
	}
	msgs, err := a.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("list messages: %w", err)
	}
	conv.MessageCount = len(msgs)
	return ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// RenameConversation sets a trimmed, non-blank title.
func (a *App) RenameConversation(ctx context.Context, userID, id, title string) (domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Conversation{}, ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Conversation{}, fmt.Errorf("%w: title required", ErrInvalidArgument)
	}
	conv, err := a.store.RenameConversation(ctx, userID, id, title, a.now())
	if err != nil {
		return domain.Conversation{}, notFoundAs(err, "conversation "+id)
	}
	return conv, nil
}

// DeleteConversation removes an owned conversation together with its
// messages.
func (a *App) DeleteConversation(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: conversation id required", ErrInvalidArgument)
	}
	if err := a.store.DeleteConversation(ctx, userID, id); err != nil {
		return notFoundAs(err, "conversation "+id)
	}
	util.LoggerFromContext(ctx).Info("conversation deleted", "user_id", userID, "conversation_id", id)
	return nil
}
