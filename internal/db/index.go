// Package db provides index shadow record maintenance.
//
// Every item owns one search_index row holding the accent-folded,
// lower-cased copy of each searchable field, padded with spaces on both
// ends. The padding is part of the word-boundary matching contract:
// search patterns are "% term%", so an unpadded value would make the
// first token of a field unmatchable.
package db

import (
	"context"
	"strings"

	"github.com/kimhsiao/refnexus/internal/fold"
	"github.com/kimhsiao/refnexus/internal/models"
)

// RebuildItemIndex re-derives the shadow record of one item from its
// current fields, creator list, keyword set and collection title, then
// bumps the index version stamp. The full_text column is preserved; it
// is owned by SetItemFullText.
func (r *Repository) RebuildItemIndex(ctx context.Context, itemID int64) error {
	item, err := r.GetItem(ctx, itemID)
	if err != nil {
		return err
	}

	authors, err := r.ItemCreatorNames(ctx, []int64{itemID}, models.RoleAuthor)
	if err != nil {
		return err
	}
	editors, err := r.ItemCreatorNames(ctx, []int64{itemID}, models.RoleEditor)
	if err != nil {
		return err
	}
	keywords, err := r.itemKeywordNames(ctx, itemID)
	if err != nil {
		return err
	}

	collection := ""
	if item.CollectionID != 0 {
		collection, err = r.CollectionTitle(ctx, item.CollectionID)
		if err != nil {
			collection = ""
		}
	}

	query := `
	INSERT INTO search_index (item_id, title, abstract, authors, editors,
		keywords, collection, publisher, place, custom1, custom2, custom3,
		custom4, custom5, custom6, custom7, custom8, full_text)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
	ON CONFLICT(item_id) DO UPDATE SET
		title = excluded.title, abstract = excluded.abstract,
		authors = excluded.authors, editors = excluded.editors,
		keywords = excluded.keywords, collection = excluded.collection,
		publisher = excluded.publisher, place = excluded.place,
		custom1 = excluded.custom1, custom2 = excluded.custom2,
		custom3 = excluded.custom3, custom4 = excluded.custom4,
		custom5 = excluded.custom5, custom6 = excluded.custom6,
		custom7 = excluded.custom7, custom8 = excluded.custom8
	`
	_, err = r.conn(ctx).ExecContext(ctx, query,
		itemID,
		fold.Index(item.Title),
		fold.Index(item.Abstract),
		fold.Index(strings.Join(authors[itemID], " ")),
		fold.Index(strings.Join(editors[itemID], " ")),
		fold.Index(strings.Join(keywords, " ")),
		fold.Index(collection),
		fold.Index(item.Publisher),
		fold.Index(item.Place),
		fold.Index(item.Custom[0]), fold.Index(item.Custom[1]),
		fold.Index(item.Custom[2]), fold.Index(item.Custom[3]),
		fold.Index(item.Custom[4]), fold.Index(item.Custom[5]),
		fold.Index(item.Custom[6]), fold.Index(item.Custom[7]),
	)
	if err != nil {
		return err
	}
	return r.TouchIndex(ctx)
}

// SetItemFullText stores the extracted document text of an item's
// attachment in the shadow record. The extraction itself belongs to an
// external collaborator; this engine only indexes the result.
func (r *Repository) SetItemFullText(ctx context.Context, itemID int64, text string) error {
	result, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE search_index SET full_text = ? WHERE item_id = ?`,
		fold.Index(text), itemID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// shadow record missing; derive it first, then retry once
		if err := r.RebuildItemIndex(ctx, itemID); err != nil {
			return err
		}
		if _, err := r.conn(ctx).ExecContext(ctx,
			`UPDATE search_index SET full_text = ? WHERE item_id = ?`,
			fold.Index(text), itemID); err != nil {
			return err
		}
	}
	return r.TouchIndex(ctx)
}

func (r *Repository) itemKeywordNames(ctx context.Context, itemID int64) ([]string, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `
		SELECT k.name FROM item_keywords ik
		INNER JOIN keywords k ON k.id = ik.keyword_id
		WHERE ik.item_id = ? ORDER BY k.name`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
