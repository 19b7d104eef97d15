package services

import (
	"context"
	"errors"
	"time"

	"github.com/deltapoly/assistant/internal/models"
	pgrepo "github.com/deltapoly/assistant/internal/repositories/postgres"
	"github.com/deltapoly/assistant/internal/utils"

	"github.com/google/uuid"
)

type ConversationService interface {
	GetOrCreate(ctx context.Context, sessionKey string, customerID *string, locale string) (*models.Conversation, error)
	History(ctx context.Context, conversationID string, limit int, includeSystem bool) ([]models.Message, error)
	HistoryBySession(ctx context.Context, sessionKey string, limit int) (*models.Conversation, []models.Message, error)
	Append(ctx context.Context, conversationID string, msg models.Message) (*models.Message, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos}
}

// GetOrCreate cannot return NotFound by contract: a missing conversation is
// created for the session on the spot.
func (s *conversationService) GetOrCreate(ctx context.Context, sessionKey string, customerID *string, locale string) (*models.Conversation, error) {
	const op = "ConversationService.GetOrCreate"

	if sessionKey == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_key is required", nil)
	}
	if locale == "" {
		locale = "en"
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:             uuid.NewString(),
		SessionKey:     sessionKey,
		CustomerID:     customerID,
		Locale:         locale,
		Status:         models.ConversationActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.convos.GetOrCreate(ctx, conv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	return conv, nil
}

// History returns the most recent `limit` messages in chronological order.
func (s *conversationService) History(ctx context.Context, conversationID string, limit int, includeSystem bool) ([]models.Message, error) {
	const op = "ConversationService.History"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}

	rows, err := s.convos.ListMessages(ctx, conversationID, limit, includeSystem)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}

	// repo returns DESC, callers want chronological
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *conversationService) HistoryBySession(ctx context.Context, sessionKey string, limit int) (*models.Conversation, []models.Message, error) {
	const op = "ConversationService.HistoryBySession"

	if sessionKey == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "session_key is required", nil)
	}

	conv, err := s.convos.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}

	msgs, err := s.History(ctx, conv.ID, limit, false)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// Append persists one immutable message; the repo serializes appends per
// conversation.
func (s *conversationService) Append(ctx context.Context, conversationID string, msg models.Message) (*models.Message, error) {
	const op = "ConversationService.Append"

	if conversationID == "" || msg.Role == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id and role are required", nil)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := s.convos.AppendMessage(ctx, conversationID, &msg); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to append message", err)
	}
	return &msg, nil
}
