package server

import (
	"net/http"

	"advocateai/internal/util"
	"advocateai/pkg/ai"
	"advocateai/pkg/domain"
	"advocateai/pkg/prompt"
	"advocateai/services/advocate/internal/app"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage `json:"messages"`
	ConversationID string        `json:"conversationId"`
	Mode           string        `json:"mode"`
	Intensity      string        `json:"intensity"`
	Context        string        `json:"context"`
	Timeframe      string        `json:"timeframe"`
}

// handleChat streams the assistant reply as plain text. Status and headers,
// including X-Conversation-Id, go out with the first fragment so a failure
// before any output still gets a JSON error.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := prompt.ParseOptions(req.Intensity, req.Context, req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.allow(w, r, s.chatLimiter, "chat", id.UserID) {
		return
	}
	messages := make([]ai.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	ctx := r.Context()
	turn, err := s.app.StartTurn(ctx, id, app.TurnRequest{
		ConversationID: req.ConversationID,
		Mode:           mode,
		Options:        opts,
		Messages:       messages,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("X-Conversation-Id", turn.Conversation.ID)

	flusher, _ := w.(http.Flusher)
	started := false
	onDelta := func(delta string) error {
		if !started {
			started = true
			h := w.Header()
			h.Set("Content-Type", "text/plain; charset=utf-8")
			h.Set("Cache-Control", "no-cache")
			h.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(delta)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}
	if _, err := s.app.Generate(ctx, turn, onDelta); err != nil {
		if started {
			util.LoggerFromContext(ctx).Warn("chat stream aborted", "conversation_id", turn.Conversation.ID, "err", err)
			return
		}
		writeAppError(w, r, err)
		return
	}
	if !started {
		// Provider finished without emitting text.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}
