package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/deltapoly/assistant/internal/models"
	"github.com/deltapoly/assistant/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepo interface {
	GetOrCreate(ctx context.Context, conv *models.Conversation) error
	GetBySessionKey(ctx context.Context, sessionKey string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int, includeSystem bool) ([]models.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error
	ArchiveIdle(ctx context.Context, idleBefore time.Time) (int64, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

// GetOrCreate looks up by session key and inserts conv when absent. The
// caller pre-fills identity and defaults; existing rows win.
func (r *conversationRepo) GetOrCreate(ctx context.Context, conv *models.Conversation) error {
	attrs := *conv
	return r.db.WithContext(ctx).
		Where("session_key = ?", conv.SessionKey).
		Attrs(attrs).
		FirstOrCreate(conv).Error
}

func (r *conversationRepo) GetBySessionKey(ctx context.Context, sessionKey string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("session_key = ?", sessionKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

// ListMessages returns the most recent `limit` messages in DESC order; the
// service layer reverses into chronological order.
func (r *conversationRepo) ListMessages(ctx context.Context, conversationID string, limit int, includeSystem bool) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, utils.ErrNotFound
	}

	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !includeSystem {
		q = q.Where("role <> ?", models.RoleSystem)
	}

	var rows []models.Message
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// AppendMessage serializes appends per conversation by taking a FOR UPDATE
// lock on the conversation row inside one transaction, then inserting the
// message and bumping the counters. Two concurrent appends to the same
// conversation cannot interleave.
func (r *conversationRepo) AppendMessage(ctx context.Context, conversationID string, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", conversationID).
			Take(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		if err != nil {
			return err
		}

		msg.ConversationID = conversationID
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]any{
				"message_count":    gorm.Expr("message_count + 1"),
				"last_activity_at": msg.CreatedAt,
			}).Error
	})
}

func (r *conversationRepo) ArchiveIdle(ctx context.Context, idleBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("status = ? AND last_activity_at < ?", models.ConversationActive, idleBefore).
		Update("status", models.ConversationArchived)
	return res.RowsAffected, res.Error
}
