package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"advocateai/pkg/domain"
)

// GORM models used for persistence.
type ProfileModel struct {
	ID               string `gorm:"primaryKey"`
	Email            string `gorm:"index"`
	FullName         string
	AvatarURL        string
	SubscriptionTier string    `gorm:"not null;default:free"`
	CreditsRemaining int       `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

type ConversationModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index:idx_conversation_user_updated,priority:1"`
	Title        string    `gorm:"not null"`
	Mode         string    `gorm:"not null"`
	SystemPrompt string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null;index:idx_conversation_user_updated,priority:2"`
}

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index:idx_message_conversation_created,priority:1"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	TokensUsed     *int      `gorm:"column:tokens_used"`
	CreatedAt      time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2"`
}

type DocumentModel struct {
	ID             string `gorm:"primaryKey"`
	UserID         string `gorm:"not null;index"`
	Title          string `gorm:"not null"`
	StorageKey     string `gorm:"not null"`
	FileURL        string
	FileType       string `gorm:"not null"`
	FileSize       int64  `gorm:"not null"`
	AnalysisStatus string `gorm:"not null;index"`
	AnalysisResult datatypes.JSON
	Content        string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// conversationRow is a conversation joined with its message count.
type conversationRow struct {
	ConversationModel
	MessageCount int
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		ID:               p.ID,
		Email:            p.Email,
		FullName:         p.FullName,
		AvatarURL:        p.AvatarURL,
		SubscriptionTier: p.SubscriptionTier,
		CreditsRemaining: p.CreditsRemaining,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:               m.ID,
		Email:            m.Email,
		FullName:         m.FullName,
		AvatarURL:        m.AvatarURL,
		SubscriptionTier: m.SubscriptionTier,
		CreditsRemaining: m.CreditsRemaining,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:           c.ID,
		UserID:       c.UserID,
		Title:        c.Title,
		Mode:         string(c.Mode),
		SystemPrompt: c.SystemPrompt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:           m.ID,
		UserID:       m.UserID,
		Title:        m.Title,
		Mode:         domain.Mode(m.Mode),
		SystemPrompt: m.SystemPrompt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.Role(m.Role),
		Content:        m.Content,
		TokensUsed:     m.TokensUsed,
		CreatedAt:      m.CreatedAt,
	}
}

func documentToModel(d domain.Document) (DocumentModel, error) {
	result, err := encodeResult(d.AnalysisResult)
	if err != nil {
		return DocumentModel{}, err
	}
	return DocumentModel{
		ID:             d.ID,
		UserID:         d.UserID,
		Title:          d.Title,
		StorageKey:     d.StorageKey,
		FileURL:        d.FileURL,
		FileType:       d.FileType,
		FileSize:       d.FileSize,
		AnalysisStatus: string(d.AnalysisStatus),
		AnalysisResult: result,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func documentFromModel(m DocumentModel) (domain.Document, error) {
	d := domain.Document{
		ID:             m.ID,
		UserID:         m.UserID,
		Title:          m.Title,
		StorageKey:     m.StorageKey,
		FileURL:        m.FileURL,
		FileType:       m.FileType,
		FileSize:       m.FileSize,
		AnalysisStatus: domain.AnalysisStatus(m.AnalysisStatus),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if len(m.AnalysisResult) > 0 && string(m.AnalysisResult) != "null" {
		var res domain.AnalysisResult
		if err := json.Unmarshal(m.AnalysisResult, &res); err != nil {
			return domain.Document{}, fmt.Errorf("decode analysis result of %s: %w", m.ID, err)
		}
		d.AnalysisResult = &res
	}
	return d, nil
}

func encodeResult(res *domain.AnalysisResult) (datatypes.JSON, error) {
	if res == nil {
		return nil, nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode analysis result: %w", err)
	}
	return datatypes.JSON(raw), nil
}
