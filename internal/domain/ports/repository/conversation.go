package repository

import (
	"context"

	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
)

// ConversationRepository persists the turn engine's aggregate state.
type ConversationRepository interface {
	Save(ctx context.Context, tx Tx, cc *model.ConversationContext) error
	FindByID(ctx context.Context, tx Tx, conversationID string) (*model.ConversationContext, error)
	ListIDsByUser(ctx context.Context, tx Tx, userID string) ([]string, error)
	// ListByUser returns every context owned by the user, newest first.
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.ConversationContext, error)
}
