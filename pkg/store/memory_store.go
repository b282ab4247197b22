package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"advocateai/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs local runs without a
// database and the service tests.
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]domain.Profile
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversation ID -> messages
	documents     map[string]domain.Document
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]domain.Profile),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		documents:     make(map[string]domain.Document),
	}
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) CreateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.ID]; ok {
		return existing, nil
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *MemoryStore) DebitCredit(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok || p.SubscriptionTier != domain.TierFree {
		return nil
	}
	if p.CreditsRemaining > 0 {
		p.CreditsRemaining--
	} else {
		p.CreditsRemaining = 0
	}
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.MessageCount = 0
	m.conversations[c.ID] = c
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, userID, id string) (domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return domain.Conversation{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.UserID != userID {
			continue
		}
		c.MessageCount = len(m.messages[c.ID])
		res = append(res, c)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

func (m *MemoryStore) RenameConversation(_ context.Context, userID, id, title string, at time.Time) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return domain.Conversation{}, ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = at.UTC()
	m.conversations[id] = c
	return c, nil
}

func (m *MemoryStore) TouchConversation(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil
	}
	c.UpdatedAt = at.UTC()
	m.conversations[id] = c
	return nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.messages[conversationID]
	res := make([]domain.Message, len(src))
	copy(res, src)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) SaveDocument(_ context.Context, d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, userID, id string) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok || d.UserID != userID {
		return domain.Document{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.UserID == userID {
			res = append(res, d)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) ClaimDocument(_ context.Context, userID, id string, at, staleBefore time.Time) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.UserID != userID {
		return domain.Document{}, ErrNotFound
	}
	stale := d.AnalysisStatus == domain.AnalysisProcessing && !staleBefore.IsZero() && d.UpdatedAt.Before(staleBefore)
	if !d.AnalysisStatus.Processable() && !stale {
		return d, ErrConflict
	}
	d.AnalysisStatus = domain.AnalysisProcessing
	d.UpdatedAt = at.UTC()
	m.documents[id] = d
	return d, nil
}

func (m *MemoryStore) FinishDocument(_ context.Context, id string, status domain.AnalysisStatus, result *domain.AnalysisResult, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	d.AnalysisStatus = status
	d.AnalysisResult = result
	if status == domain.AnalysisCompleted {
		d.Content = content
	}
	d.UpdatedAt = at.UTC()
	m.documents[id] = d
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
