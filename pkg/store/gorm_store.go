package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"advocateai/pkg/domain"
)

const migrateLockID int64 = 58141201

// GormStore implements Store using GORM. Production runs on Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens Postgres and runs migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	return OpenGormStore(postgres.Open(dsn))
}

// OpenGormStore opens any GORM dialector and migrates the schema.
func OpenGormStore(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(db *gorm.DB) error {
	run := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ProfileModel{}, &ConversationModel{}, &MessageModel{}, &DocumentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if tx.Dialector.Name() != "postgres" {
			return nil
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM message_models m
				WHERE NOT EXISTS (SELECT 1 FROM conversation_models c WHERE c.id = m.conversation_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'profile_models'
					AND constraint_name = 'profile_models_credits_nonnegative'
				) THEN
					ALTER TABLE profile_models
					ADD CONSTRAINT profile_models_credits_nonnegative CHECK (credits_remaining >= 0);
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() != "postgres" {
		return run(db)
	}
	return withMigrationLock(db, run)
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var model ProfileModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		return domain.Profile{}, notFound(err)
	}
	return profileFromModel(model), nil
}

func (s *GormStore) CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	model := profileToModel(p)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.Profile{}, err
	}
	return s.GetProfile(ctx, p.ID)
}

// DebitCredit decrements a free-tier balance in one statement, flooring at zero.
func (s *GormStore) DebitCredit(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&ProfileModel{}).
		Where("id = ? AND subscription_tier = ?", userID, domain.TierFree).
		Updates(map[string]any{
			"credits_remaining": gorm.Expr("CASE WHEN credits_remaining > 0 THEN credits_remaining - 1 ELSE 0 END"),
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (s *GormStore) CreateConversation(ctx context.Context, c domain.Conversation) error {
	model := conversationToModel(c)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *GormStore) GetConversation(ctx context.Context, userID, id string) (domain.Conversation, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return domain.Conversation{}, notFound(err)
	}
	return conversationFromModel(model), nil
}

func (s *GormStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Select("conversation_models.*, (SELECT COUNT(*) FROM message_models WHERE message_models.conversation_id = conversation_models.id) AS message_count").
		Where("conversation_models.user_id = ?", userID).
		Order("conversation_models.updated_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		c := conversationFromModel(row.ConversationModel)
		c.MessageCount = row.MessageCount
		items = append(items, c)
	}
	return items, nil
}

func (s *GormStore) RenameConversation(ctx context.Context, userID, id, title string, at time.Time) (domain.Conversation, error) {
	res := s.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": at.UTC()})
	if res.Error != nil {
		return domain.Conversation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conversation{}, ErrNotFound
	}
	return s.GetConversation(ctx, userID, id)
}

func (s *GormStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Update("updated_at", at.UTC()).Error
}

func (s *GormStore) DeleteConversation(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ConversationModel
		if err := tx.Select("id").First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

func (s *GormStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv ConversationModel
		if err := tx.Select("id").First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return notFound(err)
		}
		return tx.Create(&model).Error
	})
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

func (s *GormStore) SaveDocument(ctx context.Context, d domain.Document) error {
	model, err := documentToModel(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "file_url", "analysis_status", "analysis_result", "content", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) GetDocument(ctx context.Context, userID, id string) (domain.Document, error) {
	var model DocumentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return domain.Document{}, notFound(err)
	}
	return documentFromModel(model)
}

func (s *GormStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		d, err := documentFromModel(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *GormStore) ClaimDocument(ctx context.Context, userID, id string, at, staleBefore time.Time) (domain.Document, error) {
	claimable := s.db.Where("analysis_status IN ?", []string{string(domain.AnalysisPending), string(domain.AnalysisError)})
	if !staleBefore.IsZero() {
		claimable = claimable.Or("analysis_status = ? AND updated_at < ?", string(domain.AnalysisProcessing), staleBefore.UTC())
	}
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Where(claimable).
		Updates(map[string]any{
			"analysis_status": string(domain.AnalysisProcessing),
			"updated_at":      at.UTC(),
		})
	if res.Error != nil {
		return domain.Document{}, res.Error
	}
	doc, err := s.GetDocument(ctx, userID, id)
	if err != nil {
		return domain.Document{}, err
	}
	if res.RowsAffected == 0 {
		return doc, ErrConflict
	}
	return doc, nil
}

func (s *GormStore) FinishDocument(ctx context.Context, id string, status domain.AnalysisStatus, result *domain.AnalysisResult, content string, at time.Time) error {
	encoded, err := encodeResult(result)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"analysis_status": string(status),
		"analysis_result": encoded,
		"updated_at":      at.UTC(),
	}
	if status == domain.AnalysisCompleted {
		updates["content"] = content
	}
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
