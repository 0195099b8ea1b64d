package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/kimhsiao/refnexus/internal/dbx"
	apperrors "github.com/kimhsiao/refnexus/internal/errors"
)

// Facets is one resolved facet selection. Every listed value narrows
// the result: values of the same facet type intersect exactly like
// values of different types.
type Facets struct {
	Scope     Scope `json:"scope"`
	UserID    int64 `json:"user_id,omitempty"`
	ProjectID int64 `json:"project_id,omitempty"`

	Tags        []int64 `json:"tags,omitempty"`
	Authors     []int64 `json:"authors,omitempty"`
	Editors     []int64 `json:"editors,omitempty"`
	Keywords    []int64 `json:"keywords,omitempty"`
	Collections []int64 `json:"collections,omitempty"`

	// Custom maps a custom-field number (1..8) to required values.
	Custom map[int][]string `json:"custom,omitempty"`

	Years []int `json:"years,omitempty"`

	NoFile        bool `json:"no_file,omitempty"`
	AddedByMe     bool `json:"added_by_me,omitempty"`
	AddedByOthers bool `json:"added_by_others,omitempty"`

	// Catalog is exclusive: when present, every other facet is
	// discarded and the contiguous id range is the sole predicate.
	Catalog *CatalogRange `json:"catalog,omitempty"`
}

// CatalogRange is a contiguous id window used by the catalog browsing
// view.
type CatalogRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// FacetLine is one human-readable rendering of an applied facet.
type FacetLine struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// subquery is one independent id-set query.
type subquery struct {
	sql  string
	args []interface{}
}

// Intersect resolves a facet selection to the ordered (id descending)
// set of item ids satisfying all facets simultaneously. Each facet
// value runs as its own id subquery; the results intersect as bitmaps.
func Intersect(ctx context.Context, conn dbx.DBTX, f *Facets) ([]int64, error) {
	if f.Catalog != nil {
		// catalog discards all other facets
		return runIDs(ctx, conn, subquery{
			sql:  `SELECT id FROM items WHERE id BETWEEN ? AND ? ORDER BY id DESC`,
			args: []interface{}{f.Catalog.From, f.Catalog.To},
		})
	}

	subs, err := facetSubqueries(f)
	if err != nil {
		return nil, err
	}

	if scope, ok := scopeSubquery(f); ok {
		subs = append(subs, scope)
	}

	if len(subs) == 0 {
		return runIDs(ctx, conn, subquery{sql: `SELECT id FROM items ORDER BY id DESC`})
	}

	var acc *roaring64.Bitmap
	for _, sub := range subs {
		bm, err := runBitmap(ctx, conn, sub)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = bm
			continue
		}
		acc.And(bm)
		if acc.IsEmpty() {
			break
		}
	}

	ascending := acc.ToArray()
	ids := make([]int64, len(ascending))
	for i, v := range ascending {
		ids[len(ascending)-1-i] = int64(v)
	}
	return ids, nil
}

func facetSubqueries(f *Facets) ([]subquery, error) {
	var subs []subquery

	for _, id := range f.Tags {
		subs = append(subs, subquery{
			sql:  `SELECT item_id FROM item_tags WHERE tag_id = ?`,
			args: []interface{}{id},
		})
	}
	for _, id := range f.Authors {
		subs = append(subs, subquery{
			sql:  `SELECT item_id FROM item_creators WHERE creator_id = ? AND role = 1`,
			args: []interface{}{id},
		})
	}
	for _, id := range f.Editors {
		subs = append(subs, subquery{
			sql:  `SELECT item_id FROM item_creators WHERE creator_id = ? AND role = 2`,
			args: []interface{}{id},
		})
	}
	for _, id := range f.Keywords {
		subs = append(subs, subquery{
			sql:  `SELECT item_id FROM item_keywords WHERE keyword_id = ?`,
			args: []interface{}{id},
		})
	}
	for _, id := range f.Collections {
		subs = append(subs, subquery{
			sql:  `SELECT id FROM items WHERE collection_id = ?`,
			args: []interface{}{id},
		})
	}
	for n, values := range f.Custom {
		if n < 1 || n > 8 {
			return nil, apperrors.New(apperrors.ErrInvalidField,
				fmt.Sprintf("custom field out of range: %d", n))
		}
		col := "custom" + strconv.Itoa(n)
		for _, value := range values {
			subs = append(subs, subquery{
				sql:  `SELECT id FROM items WHERE ` + col + ` = ?`,
				args: []interface{}{value},
			})
		}
	}
	for _, year := range f.Years {
		subs = append(subs, subquery{
			sql:  `SELECT id FROM items WHERE year = ?`,
			args: []interface{}{year},
		})
	}
	if f.NoFile {
		subs = append(subs, subquery{
			sql: `SELECT id FROM items WHERE content_hash IS NULL`,
		})
	}
	if f.AddedByMe {
		subs = append(subs, subquery{
			sql:  `SELECT id FROM items WHERE added_by = ?`,
			args: []interface{}{f.UserID},
		})
	}
	if f.AddedByOthers {
		subs = append(subs, subquery{
			sql:  `SELECT id FROM items WHERE added_by != ?`,
			args: []interface{}{f.UserID},
		})
	}

	return subs, nil
}

func scopeSubquery(f *Facets) (subquery, bool) {
	switch f.Scope {
	case ScopeClipboard:
		return subquery{
			sql:  `SELECT item_id FROM clipboard WHERE user_id = ?`,
			args: []interface{}{f.UserID},
		}, true
	case ScopeProject:
		return subquery{
			sql:  `SELECT item_id FROM project_items WHERE project_id = ?`,
			args: []interface{}{f.ProjectID},
		}, true
	}
	return subquery{}, false
}

func runBitmap(ctx context.Context, conn dbx.DBTX, sub subquery) (*roaring64.Bitmap, error) {
	rows, err := conn.QueryContext(ctx, sub.sql, sub.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bm := roaring64.New()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		bm.Add(uint64(id))
	}
	return bm, rows.Err()
}

func runIDs(ctx context.Context, conn dbx.DBTX, sub subquery) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, sub.sql, sub.args...)
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

// NameResolver translates facet ids to display strings.
type NameResolver interface {
	TagName(ctx context.Context, id int64) (string, error)
	CreatorName(ctx context.Context, id int64) (string, error)
	KeywordName(ctx context.Context, id int64) (string, error)
	CollectionTitle(ctx context.Context, id int64) (string, error)
}

// Describe renders the applied facets as name/value pairs for display.
// A facet whose id cannot be translated (deleted concurrently, for
// example) drops its one line; the rest of the request is unaffected.
func Describe(ctx context.Context, resolver NameResolver, f *Facets) []FacetLine {
	var lines []FacetLine
	add := func(name, value string, err error) {
		if err != nil {
			return
		}
		lines = append(lines, FacetLine{Name: name, Value: value})
	}

	if f.Catalog != nil {
		return []FacetLine{{
			Name:  "catalog",
			Value: fmt.Sprintf("%d-%d", f.Catalog.From, f.Catalog.To),
		}}
	}

	for _, id := range f.Tags {
		name, err := resolver.TagName(ctx, id)
		add("tag", name, err)
	}
	for _, id := range f.Authors {
		name, err := resolver.CreatorName(ctx, id)
		add("author", name, err)
	}
	for _, id := range f.Editors {
		name, err := resolver.CreatorName(ctx, id)
		add("editor", name, err)
	}
	for _, id := range f.Keywords {
		name, err := resolver.KeywordName(ctx, id)
		add("keyword", name, err)
	}
	for _, id := range f.Collections {
		title, err := resolver.CollectionTitle(ctx, id)
		add("collection", title, err)
	}
	for n, values := range f.Custom {
		for _, value := range values {
			add("custom"+strconv.Itoa(n), value, nil)
		}
	}
	for _, year := range f.Years {
		add("year", strconv.Itoa(year), nil)
	}
	if f.NoFile {
		add("flag", "no attached file", nil)
	}
	if f.AddedByMe {
		add("flag", "added by me", nil)
	}
	if f.AddedByOthers {
		add("flag", "added by others", nil)
	}
	return lines
}
