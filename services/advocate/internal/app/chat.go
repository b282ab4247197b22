package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"advocateai/internal/util"
	"advocateai/pkg/ai"
	"advocateai/pkg/domain"
	"advocateai/pkg/prompt"
)

// TurnRequest is one chat submission. Messages is the full client-side
// history; its last element is the new user message.
type TurnRequest struct {
	ConversationID string
	Mode           domain.Mode
	Options        prompt.Options
	Messages       []ai.ChatMessage
}

// Turn is a submitted turn whose user message is persisted and which is
// ready for generation.
type Turn struct {
	Conversation domain.Conversation
	Profile      domain.Profile
	UserMessage  domain.Message
	SystemPrompt string

	history []ai.ChatMessage
}

// StartTurn checks credits, resolves or creates the conversation and stores
// the user's message. Nothing is written when it returns an error before the
// conversation is resolved.
func (a *App) StartTurn(ctx context.Context, id domain.Identity, req TurnRequest) (*Turn, error) {
	profile, err := a.EnsureProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.SubscriptionTier == domain.TierFree && profile.CreditsRemaining <= 0 {
		a.metrics.ChatTurns.WithLabelValues("no_credits").Inc()
		return nil, ErrPaymentRequired
	}
	history, err := validateHistory(req.Messages)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.DefaultMode
	}
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var conv domain.Conversation
	if cid := strings.TrimSpace(req.ConversationID); cid != "" {
		conv, err = a.store.GetConversation(ctx, id.UserID, cid)
		if err != nil {
			return nil, notFoundAs(err, "conversation "+cid)
		}
	} else {
		now := a.now()
		conv = domain.Conversation{
			ID:           a.newID(),
			UserID:       id.UserID,
			Title:        prompt.GenerateTitle(history[0].Content),
			Mode:         mode,
			SystemPrompt: prompt.Build(mode, req.Options),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	last := history[len(history)-1]
	now := a.now()
	msg := domain.Message{
		ID:             a.newID(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        last.Content,
		CreatedAt:      now,
	}
	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save user message: %w", notFoundAs(err, "conversation "+conv.ID))
	}
	if err := a.store.TouchConversation(ctx, conv.ID, now); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	conv.UpdatedAt = now

	system := conv.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = prompt.ForMode(mode)
	}
	return &Turn{
		Conversation: conv,
		Profile:      profile,
		UserMessage:  msg,
		SystemPrompt: system,
		history:      history,
	}, nil
}

// Generate streams the assistant reply through onDelta. Only a reply that
// streams to completion is stored and charged; on any error the partial
// output is dropped.
func (a *App) Generate(ctx context.Context, turn *Turn, onDelta ai.DeltaFunc) (domain.Message, error) {
	if turn == nil {
		return domain.Message{}, fmt.Errorf("%w: turn not started", ErrInvalidArgument)
	}
	logger := util.LoggerFromContext(ctx).With("user_id", turn.Profile.ID, "conversation_id", turn.Conversation.ID)

	genCtx, cancel := context.WithTimeout(ctx, a.generationTimeout)
	defer cancel()
	completion, err := a.chat.Stream(genCtx, ai.Request{
		SystemPrompt: turn.SystemPrompt,
		Messages:     turn.history,
		Temperature:  chatTemperature,
		MaxTokens:    chatMaxTokens,
	}, onDelta)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		}
		a.metrics.ChatTurns.WithLabelValues(outcome).Inc()
		logger.Warn("chat generation failed", "err", err)
		return domain.Message{}, fmt.Errorf("generate reply: %w", err)
	}

	// The client may disconnect right after the last delta; settle anyway.
	persistCtx := context.WithoutCancel(ctx)
	tokens := completion.Usage.TotalTokens
	msg := domain.Message{
		ID:             a.newID(),
		ConversationID: turn.Conversation.ID,
		Role:           domain.RoleAssistant,
		Content:        completion.Text,
		TokensUsed:     &tokens,
		CreatedAt:      a.now(),
	}
	if err := a.store.AppendMessage(persistCtx, msg); err != nil {
		a.metrics.ChatTurns.WithLabelValues("error").Inc()
		logger.Error("save assistant message failed", "err", err)
		return domain.Message{}, fmt.Errorf("save assistant message: %w", notFoundAs(err, "conversation "+turn.Conversation.ID))
	}
	if err := a.store.TouchConversation(persistCtx, turn.Conversation.ID, msg.CreatedAt); err != nil {
		logger.Warn("touch conversation failed", "err", err)
	}
	a.metrics.ChatTurns.WithLabelValues("ok").Inc()
	a.metrics.TokensUsed.Add(float64(tokens))

	if turn.Profile.SubscriptionTier == domain.TierFree {
		if err := a.store.DebitCredit(persistCtx, turn.Profile.ID); err != nil {
			logger.Error("debit credit failed", "err", err)
		} else {
			a.metrics.CreditsDebited.Inc()
		}
	}
	return msg, nil
}

func validateHistory(messages []ai.ChatMessage) ([]ai.ChatMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: messages required", ErrInvalidArgument)
	}
	out := make([]ai.ChatMessage, 0, len(messages))
	for i, m := range messages {
		role := domain.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		switch role {
		case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		default:
			return nil, fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidArgument, i, m.Role)
		}
		out = append(out, ai.ChatMessage{Role: string(role), Content: m.Content})
	}
	last := out[len(out)-1]
	if last.Role != string(domain.RoleUser) {
		return nil, fmt.Errorf("%w: last message must come from the user", ErrInvalidArgument)
	}
	if strings.TrimSpace(last.Content) == "" {
		return nil, fmt.Errorf("%w: message content required", ErrInvalidArgument)
	}
	return out, nil
}
