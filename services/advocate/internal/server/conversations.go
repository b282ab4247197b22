package server

import (
	"net/http"
	"strings"

	"advocateai/pkg/domain"
)

// /api/conversations lists; DELETE with ?id= is the legacy delete form.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListConversations(r.Context(), id.UserID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
	case http.MethodDelete:
		convID := strings.TrimSpace(r.URL.Query().Get("id"))
		if convID == "" {
			writeError(w, http.StatusBadRequest, "conversation id required")
			return
		}
		s.deleteConversation(w, r, id, convID)
	default:
		methodNotAllowed(w)
	}
}

type renameRequest struct {
	Title *string `json:"title"`
}

// /api/conversations/{id}
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	convID := pathID(r.URL.Path, "/api/conversations/")
	if convID == "" {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		detail, err := s.app.GetConversation(r.Context(), id.UserID, convID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation": detail})
	case http.MethodPatch:
		var req renameRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Title == nil {
			writeError(w, http.StatusBadRequest, "title required")
			return
		}
		conv, err := s.app.RenameConversation(r.Context(), id.UserID, convID, *req.Title)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
	case http.MethodDelete:
		s.deleteConversation(w, r, id, convID)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request, id domain.Identity, convID string) {
	if err := s.app.DeleteConversation(r.Context(), id.UserID, convID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
