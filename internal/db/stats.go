// Package db provides the stats bookkeeping consulted by the result
// cache and the count endpoints.
package db

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

const statIndexModified = "index_modified"

// TouchIndex records that the search index changed. The stored stamp is
// the generational version every cached search result is keyed to.
func (r *Repository) TouchIndex(ctx context.Context) error {
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO stats (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		statIndexModified, stamp)
	return err
}

// IndexVersion returns the current index version stamp. A database that
// has never indexed anything reports "0".
func (r *Repository) IndexVersion(ctx context.Context) (string, error) {
	var value string
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT value FROM stats WHERE key = ?`, statIndexModified).Scan(&value)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// CountItems returns the total number of items without a full scan of
// item payloads.
func (r *Repository) CountItems(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// CountMembers returns the cardinality of one owner's membership set.
func (r *Repository) CountMembers(ctx context.Context, set MembershipSet, ownerID int64) (int, error) {
	var count int
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+set.table+` WHERE `+set.ownerColumn+` = ?`, ownerID).Scan(&count)
	return count, err
}
