// Package db provides repository operations for the library data models.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kimhsiao/refnexus/internal/dbx"
	"github.com/kimhsiao/refnexus/internal/models"
)

// Repository provides storage operations for all models. Methods that
// run inside a dbx.WithTx scope automatically join the scope's
// transaction via the context.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Conn exposes the raw handle, used by the service layer to open
// transaction scopes.
func (r *Repository) Conn() *sql.DB {
	return r.db
}

// DBTX returns the active transaction when inside a scope, the plain
// handle otherwise. Used by callers that compose their own queries.
func (r *Repository) DBTX(ctx context.Context) dbx.DBTX {
	return r.conn(ctx)
}

// conn returns the active transaction when inside a scope, the plain
// handle otherwise.
func (r *Repository) conn(ctx context.Context) dbx.DBTX {
	if tx := dbx.From(ctx); tx != nil {
		return tx
	}
	return r.db
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// =====================================================
// Item Operations
// =====================================================

const itemColumns = `id, title, abstract, year, month, day, volume, issue, pages,
	publisher, place, custom1, custom2, custom3, custom4, custom5, custom6,
	custom7, custom8, content_hash, collection_id, added_by, created_at, updated_at`

func scanItem(scan func(dest ...interface{}) error) (*models.Item, error) {
	var item models.Item
	var contentHash sql.NullString
	var collectionID sql.NullInt64
	err := scan(
		&item.ID, &item.Title, &item.Abstract, &item.Year, &item.Month, &item.Day,
		&item.Volume, &item.Issue, &item.Pages, &item.Publisher, &item.Place,
		&item.Custom[0], &item.Custom[1], &item.Custom[2], &item.Custom[3],
		&item.Custom[4], &item.Custom[5], &item.Custom[6], &item.Custom[7],
		&contentHash, &collectionID, &item.AddedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contentHash.Valid {
		item.ContentHash = contentHash.String
	}
	if collectionID.Valid {
		item.CollectionID = collectionID.Int64
	}
	return &item, nil
}

// CreateItem creates a new item and builds its index shadow record.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) error {
	now := time.Now().Unix()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
	INSERT INTO items (title, abstract, year, month, day, volume, issue, pages,
		publisher, place, custom1, custom2, custom3, custom4, custom5, custom6,
		custom7, custom8, content_hash, collection_id, added_by, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.conn(ctx).ExecContext(ctx, query,
		item.Title, item.Abstract, item.Year, item.Month, item.Day,
		item.Volume, item.Issue, item.Pages, item.Publisher, item.Place,
		item.Custom[0], item.Custom[1], item.Custom[2], item.Custom[3],
		item.Custom[4], item.Custom[5], item.Custom[6], item.Custom[7],
		nullString(item.ContentHash), nullInt64(item.CollectionID),
		item.AddedBy, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return r.RebuildItemIndex(ctx, id)
}

// UpdateItem updates an existing item and rebuilds its index shadow
// record.
func (r *Repository) UpdateItem(ctx context.Context, item *models.Item) error {
	item.Touch()
	query := `
	UPDATE items
	SET title = ?, abstract = ?, year = ?, month = ?, day = ?, volume = ?,
		issue = ?, pages = ?, publisher = ?, place = ?, custom1 = ?, custom2 = ?,
		custom3 = ?, custom4 = ?, custom5 = ?, custom6 = ?, custom7 = ?,
		custom8 = ?, content_hash = ?, collection_id = ?, updated_at = ?
	WHERE id = ?
	`
	result, err := r.conn(ctx).ExecContext(ctx, query,
		item.Title, item.Abstract, item.Year, item.Month, item.Day,
		item.Volume, item.Issue, item.Pages, item.Publisher, item.Place,
		item.Custom[0], item.Custom[1], item.Custom[2], item.Custom[3],
		item.Custom[4], item.Custom[5], item.Custom[6], item.Custom[7],
		nullString(item.ContentHash), nullInt64(item.CollectionID),
		item.UpdatedAt, item.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return r.RebuildItemIndex(ctx, item.ID)
}

// GetItem retrieves an item by ID.
func (r *Repository) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	row := r.conn(ctx).QueryRowContext(ctx, query, id)
	return scanItem(row.Scan)
}

// ItemsByIDs retrieves the given items, preserving the order of ids
// exactly. Missing ids are skipped.
func (r *Repository) ItemsByIDs(ctx context.Context, ids []int64) ([]*models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.conn(ctx).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*models.Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]*models.Item, 0, len(byID))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// DeleteItems removes items outright; junctions, shadow records, notes
// and annotations follow via cascade.
func (r *Repository) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM items WHERE id IN (` + placeholders(len(ids)) + `)`
	result, err := r.conn(ctx).ExecContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	if affected > 0 {
		if err := r.TouchIndex(ctx); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// =====================================================
// Creator / Keyword / Collection Operations
// =====================================================

// EnsureCreator returns the id of the named creator, inserting it if
// missing.
func (r *Repository) EnsureCreator(ctx context.Context, name string) (int64, error) {
	return r.ensureLookup(ctx, "creators", "name", name)
}

// EnsureKeyword returns the id of the named keyword, inserting it if
// missing.
func (r *Repository) EnsureKeyword(ctx context.Context, name string) (int64, error) {
	return r.ensureLookup(ctx, "keywords", "name", name)
}

func (r *Repository) ensureLookup(ctx context.Context, table, column, value string) (int64, error) {
	conn := r.conn(ctx)
	var id int64
	err := conn.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE `+column+` = ?`, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	result, err := conn.ExecContext(ctx, `INSERT INTO `+table+` (`+column+`) VALUES (?)`, value)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CreateCollection creates a publication-title lookup entry.
func (r *Repository) CreateCollection(ctx context.Context, c *models.Collection) error {
	if c.Kind == 0 {
		c.Kind = 1
	}
	result, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO collections (title, kind) VALUES (?, ?)`, c.Title, c.Kind)
	if err != nil {
		return err
	}
	c.ID, err = result.LastInsertId()
	return err
}

// SetItemCreators replaces the creator list of one role for an item and
// rebuilds the shadow record.
func (r *Repository) SetItemCreators(ctx context.Context, itemID int64, role models.CreatorRole, names []string) error {
	conn := r.conn(ctx)
	if _, err := conn.ExecContext(ctx,
		`DELETE FROM item_creators WHERE item_id = ? AND role = ?`, itemID, role); err != nil {
		return err
	}
	for pos, name := range names {
		creatorID, err := r.EnsureCreator(ctx, name)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_creators (item_id, creator_id, role, position) VALUES (?, ?, ?, ?)`,
			itemID, creatorID, role, pos); err != nil {
			return err
		}
	}
	return r.RebuildItemIndex(ctx, itemID)
}

// SetItemKeywords replaces the keyword set of an item and rebuilds the
// shadow record.
func (r *Repository) SetItemKeywords(ctx context.Context, itemID int64, names []string) error {
	conn := r.conn(ctx)
	if _, err := conn.ExecContext(ctx,
		`DELETE FROM item_keywords WHERE item_id = ?`, itemID); err != nil {
		return err
	}
	for _, name := range names {
		keywordID, err := r.EnsureKeyword(ctx, name)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_keywords (item_id, keyword_id) VALUES (?, ?)`,
			itemID, keywordID); err != nil {
			return err
		}
	}
	return r.RebuildItemIndex(ctx, itemID)
}

// ItemCreatorNames returns the ordered creator names of one role for
// each of the given items.
func (r *Repository) ItemCreatorNames(ctx context.Context, itemIDs []int64, role models.CreatorRole) (map[int64][]string, error) {
	result := make(map[int64][]string)
	if len(itemIDs) == 0 {
		return result, nil
	}
	query := `
	SELECT ic.item_id, c.name
	FROM item_creators ic
	INNER JOIN creators c ON c.id = ic.creator_id
	WHERE ic.role = ? AND ic.item_id IN (` + placeholders(len(itemIDs)) + `)
	ORDER BY ic.item_id, ic.position`
	args := append([]interface{}{role}, int64Args(itemIDs)...)
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID int64
		var name string
		if err := rows.Scan(&itemID, &name); err != nil {
			return nil, err
		}
		result[itemID] = append(result[itemID], name)
	}
	return result, rows.Err()
}

// =====================================================
// Tag Operations
// =====================================================

// CreateTag creates a new tag.
func (r *Repository) CreateTag(ctx context.Context, tag *models.Tag) error {
	tag.CreatedAt = time.Now().Unix()
	result, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO tags (name, color, created_at) VALUES (?, ?, ?)`,
		tag.Name, tag.Color, tag.CreatedAt)
	if err != nil {
		return err
	}
	tag.ID, err = result.LastInsertId()
	return err
}

// TagItems attaches every tag to every item, ignoring duplicates.
func (r *Repository) TagItems(ctx context.Context, itemIDs, tagIDs []int64) error {
	conn := r.conn(ctx)
	for _, tagID := range tagIDs {
		for _, itemID := range itemIDs {
			if _, err := conn.ExecContext(ctx,
				`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`,
				itemID, tagID); err != nil {
				return err
			}
		}
	}
	return nil
}

// UntagItems removes every tag from every item.
func (r *Repository) UntagItems(ctx context.Context, itemIDs, tagIDs []int64) error {
	if len(itemIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	query := `DELETE FROM item_tags WHERE item_id IN (` + placeholders(len(itemIDs)) +
		`) AND tag_id IN (` + placeholders(len(tagIDs)) + `)`
	args := append(int64Args(itemIDs), int64Args(tagIDs)...)
	_, err := r.conn(ctx).ExecContext(ctx, query, args...)
	return err
}

// ItemTagNames returns the tag names attached to each of the given
// items.
func (r *Repository) ItemTagNames(ctx context.Context, itemIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string)
	if len(itemIDs) == 0 {
		return result, nil
	}
	query := `
	SELECT it.item_id, t.name
	FROM item_tags it
	INNER JOIN tags t ON t.id = it.tag_id
	WHERE it.item_id IN (` + placeholders(len(itemIDs)) + `)
	ORDER BY it.item_id, t.name`
	rows, err := r.conn(ctx).QueryContext(ctx, query, int64Args(itemIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID int64
		var name string
		if err := rows.Scan(&itemID, &name); err != nil {
			return nil, err
		}
		result[itemID] = append(result[itemID], name)
	}
	return result, rows.Err()
}

// =====================================================
// Lookup name resolution (facet description lines)
// =====================================================

// TagName resolves a tag id to its display name.
func (r *Repository) TagName(ctx context.Context, id int64) (string, error) {
	return r.lookupName(ctx, `SELECT name FROM tags WHERE id = ?`, id)
}

// CreatorName resolves a creator id to its display name.
func (r *Repository) CreatorName(ctx context.Context, id int64) (string, error) {
	return r.lookupName(ctx, `SELECT name FROM creators WHERE id = ?`, id)
}

// KeywordName resolves a keyword id to its display name.
func (r *Repository) KeywordName(ctx context.Context, id int64) (string, error) {
	return r.lookupName(ctx, `SELECT name FROM keywords WHERE id = ?`, id)
}

// CollectionTitle resolves a collection id to its display title.
func (r *Repository) CollectionTitle(ctx context.Context, id int64) (string, error) {
	return r.lookupName(ctx, `SELECT title FROM collections WHERE id = ?`, id)
}

func (r *Repository) lookupName(ctx context.Context, query string, id int64) (string, error) {
	var name string
	err := r.conn(ctx).QueryRowContext(ctx, query, id).Scan(&name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// =====================================================
// User / Project Operations
// =====================================================

// CreateUser creates a new user.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now().Unix()
	result, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO users (username, is_admin, created_at) VALUES (?, ?, ?)`,
		user.Username, user.Admin, user.CreatedAt)
	if err != nil {
		return err
	}
	user.ID, err = result.LastInsertId()
	return err
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, username, is_admin, created_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Username, &user.Admin, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateProject creates a new project; the creating user becomes its
// first member.
func (r *Repository) CreateProject(ctx context.Context, project *models.Project) error {
	project.CreatedAt = time.Now().Unix()
	conn := r.conn(ctx)
	result, err := conn.ExecContext(ctx,
		`INSERT INTO projects (name, created_by, created_at) VALUES (?, ?, ?)`,
		project.Name, project.CreatedBy, project.CreatedAt)
	if err != nil {
		return err
	}
	project.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`INSERT INTO project_users (project_id, user_id) VALUES (?, ?)`,
		project.ID, project.CreatedBy)
	return err
}

// GetProject retrieves a project by ID.
func (r *Repository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM projects WHERE id = ?`, id).
		Scan(&project.ID, &project.Name, &project.CreatedBy, &project.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// AddProjectUser adds a user to a project.
func (r *Repository) AddProjectUser(ctx context.Context, projectID, userID int64) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO project_users (project_id, user_id) VALUES (?, ?)`,
		projectID, userID)
	return err
}

// IsProjectMember reports whether the user belongs to the project.
func (r *Repository) IsProjectMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM project_users WHERE project_id = ? AND user_id = ?`,
		projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ProjectExists reports whether the project exists.
func (r *Repository) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RunQuery executes an arbitrary compiled id query and returns the ids
// in result order, plus any snippet column the query carries.
func (r *Repository) RunQuery(ctx context.Context, query string, args []interface{}, withSnippet bool) ([]int64, map[int64]string, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var snippets map[int64]string
	if withSnippet {
		snippets = make(map[int64]string)
	}
	for rows.Next() {
		var id int64
		if withSnippet {
			var snippet sql.NullString
			if err := rows.Scan(&id, &snippet); err != nil {
				return nil, nil, err
			}
			if snippet.Valid {
				snippets[id] = snippet.String
			}
		} else {
			if err := rows.Scan(&id); err != nil {
				return nil, nil, err
			}
		}
		ids = append(ids, id)
	}
	return ids, snippets, rows.Err()
}

// CountQuery executes a compiled count query.
func (r *Repository) CountQuery(ctx context.Context, query string, args []interface{}) (int, error) {
	var count int
	err := r.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}
