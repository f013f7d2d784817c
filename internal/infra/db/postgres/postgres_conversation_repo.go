package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*conversationRepo)(nil)

// conversationRepo stores each conversation context as a single JSONB document.
// Updates are whole-document writes (last-writer-wins), which matches the
// append-only, trim-to-N nature of the collections.
type conversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *conversationRepo {
	return &conversationRepo{pool: pool}
}

func (r *conversationRepo) Save(ctx context.Context, tx repository.Tx, cc *model.ConversationContext) error {
	cc.UpdatedAt = time.Now()
	doc, err := json.Marshal(cc)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO conversation_contexts (conversation_id, user_id, context, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (conversation_id) DO UPDATE SET
  context = EXCLUDED.context,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q, cc.ConversationID, cc.UserID, doc, cc.CreatedAt, cc.UpdatedAt)
	return err
}

func (r *conversationRepo) FindByID(ctx context.Context, tx repository.Tx, conversationID string) (*model.ConversationContext, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT context FROM conversation_contexts WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	var cc model.ConversationContext
	if err := json.Unmarshal(doc, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *conversationRepo) ListIDsByUser(ctx context.Context, tx repository.Tx, userID string) ([]string, error) {
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT conversation_id FROM conversation_contexts WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByUser loads every context of the user in one query.
func (r *conversationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.ConversationContext, error) {
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT context FROM conversation_contexts WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ConversationContext
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		var cc model.ConversationContext
		if err := json.Unmarshal(doc, &cc); err != nil {
			return nil, err
		}
		out = append(out, &cc)
	}
	return out, rows.Err()
}
