// Package db provides the bounded membership sets (clipboard and
// project item sets) and their eviction policy.
package db

import (
	"context"

	"github.com/kimhsiao/refnexus/internal/dbx"
)

// MembershipSet names one of the two many-to-many membership tables.
type MembershipSet struct {
	table       string
	ownerColumn string
}

var (
	// ClipboardSet is the per-user clipboard membership.
	ClipboardSet = MembershipSet{table: "clipboard", ownerColumn: "user_id"}
	// ProjectSet is the per-project item membership.
	ProjectSet = MembershipSet{table: "project_items", ownerColumn: "project_id"}
)

// AddMembers inserts the given items into the owner's set, ignoring
// duplicates, then enforces the capacity bound: only the maxItems
// entries with the highest item ids survive, everything older is
// evicted. Returns whether eviction occurred. Insert and eviction run
// in one transaction scope so no caller ever observes an over-capacity
// set.
//
// The eviction rank is the item id, not insertion or access time:
// the set keeps the most recently created items.
func (r *Repository) AddMembers(ctx context.Context, set MembershipSet, ownerID int64, itemIDs []int64, maxItems int) (bool, error) {
	if len(itemIDs) == 0 {
		return false, nil
	}

	evicted := false
	err := dbx.WithTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		insert := `INSERT OR IGNORE INTO ` + set.table +
			` (` + set.ownerColumn + `, item_id) VALUES (?, ?)`
		for _, itemID := range itemIDs {
			if _, err := tx.ExecContext(ctx, insert, ownerID, itemID); err != nil {
				return err
			}
		}

		evict := `
		DELETE FROM ` + set.table + `
		WHERE ` + set.ownerColumn + ` = ? AND item_id NOT IN (
			SELECT item_id FROM ` + set.table + `
			WHERE ` + set.ownerColumn + ` = ?
			ORDER BY item_id DESC
			LIMIT ?
		)`
		result, err := tx.ExecContext(ctx, evict, ownerID, ownerID, maxItems)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		evicted = affected > 0
		return nil
	})
	return evicted, err
}

// RemoveMembers removes the given items from the owner's set. Missing
// entries are ignored.
func (r *Repository) RemoveMembers(ctx context.Context, set MembershipSet, ownerID int64, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	query := `DELETE FROM ` + set.table + ` WHERE ` + set.ownerColumn +
		` = ? AND item_id IN (` + placeholders(len(itemIDs)) + `)`
	args := append([]interface{}{ownerID}, int64Args(itemIDs)...)
	_, err := r.conn(ctx).ExecContext(ctx, query, args...)
	return err
}

// Members returns the owner's set ordered by item id descending.
func (r *Repository) Members(ctx context.Context, set MembershipSet, ownerID int64) ([]int64, error) {
	query := `SELECT item_id FROM ` + set.table + ` WHERE ` + set.ownerColumn +
		` = ? ORDER BY item_id DESC`
	rows, err := r.conn(ctx).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
