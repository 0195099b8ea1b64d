// Package db provides the bulk mutation audit log.
package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangeLog records one applied bulk mutation action.
type ChangeLog struct {
	ID        string `db:"id" json:"id"`
	Action    string `db:"action" json:"action"`
	ActorID   int64  `db:"actor_id" json:"actor_id"`
	OwnerID   int64  `db:"owner_id" json:"owner_id"`
	ItemCount int    `db:"item_count" json:"item_count"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// LogChange writes one change log entry.
func (r *Repository) LogChange(ctx context.Context, entry *ChangeLog) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().Unix()
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO change_log (id, action, actor_id, owner_id, item_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.ActorID, entry.OwnerID, entry.ItemCount, entry.CreatedAt)
	return err
}
