package library

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kimhsiao/refnexus/internal/errors"
	"github.com/kimhsiao/refnexus/internal/models"
)

// Display projection names. A request carries exactly one, or an
// action map instead.
const (
	DisplayTitle   = "title"
	DisplaySummary = "summary"
	DisplayRSS     = "rss"
	DisplayExport  = "export"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// clampWindow applies the default and ceiling to a requested window.
func clampWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// window slices an ordered id list to the requested page, preserving
// order.
func window(ids []int64, limit, offset int) []int64 {
	if offset >= len(ids) {
		return nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}

// TitleRecord is the minimal projection.
type TitleRecord struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SummaryRecord is the standard list projection.
type SummaryRecord struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Year     int      `json:"year,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	HasFile  bool     `json:"has_file,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
}

// RSSRecord is the feed projection.
type RSSRecord struct {
	GUID      string    `json:"guid"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	Published time.Time `json:"published"`
}

// ExportRecord is the raw projection consumed by format exporters.
type ExportRecord struct {
	Item    *models.Item `json:"item"`
	Authors []string     `json:"authors,omitempty"`
	Editors []string     `json:"editors,omitempty"`
	Tags    []string     `json:"tags,omitempty"`
}

// materialize hydrates an ordered id window into the requested display
// shape. Input ordering is preserved exactly, including any snippet
// annotation carried alongside an id by the sub-entity compiler.
func (s *Service) materialize(ctx context.Context, ids []int64, display string, snippets map[int64]string) (interface{}, error) {
	if display == "" {
		display = DisplaySummary
	}

	items, err := s.repo.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "item hydration failed", err)
	}

	switch display {
	case DisplayTitle:
		records := make([]TitleRecord, 0, len(items))
		for _, item := range items {
			records = append(records, TitleRecord{ID: item.ID, Title: item.Title})
		}
		return records, nil

	case DisplaySummary:
		authors, err := s.repo.ItemCreatorNames(ctx, ids, models.RoleAuthor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "author hydration failed", err)
		}
		tags, err := s.repo.ItemTagNames(ctx, ids)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "tag hydration failed", err)
		}
		records := make([]SummaryRecord, 0, len(items))
		for _, item := range items {
			records = append(records, SummaryRecord{
				ID:       item.ID,
				Title:    item.Title,
				Abstract: item.Abstract,
				Year:     item.Year,
				Authors:  authors[item.ID],
				Tags:     tags[item.ID],
				HasFile:  item.HasFile(),
				Snippet:  snippets[item.ID],
			})
		}
		return records, nil

	case DisplayRSS:
		records := make([]RSSRecord, 0, len(items))
		for _, item := range items {
			records = append(records, RSSRecord{
				GUID:      fmt.Sprintf("item-%d", item.ID),
				Title:     item.Title,
				Abstract:  item.Abstract,
				Published: item.Published(),
			})
		}
		return records, nil

	case DisplayExport:
		authors, err := s.repo.ItemCreatorNames(ctx, ids, models.RoleAuthor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "author hydration failed", err)
		}
		editors, err := s.repo.ItemCreatorNames(ctx, ids, models.RoleEditor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "editor hydration failed", err)
		}
		tags, err := s.repo.ItemTagNames(ctx, ids)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "tag hydration failed", err)
		}
		records := make([]ExportRecord, 0, len(items))
		for _, item := range items {
			records = append(records, ExportRecord{
				Item:    item,
				Authors: authors[item.ID],
				Editors: editors[item.ID],
				Tags:    tags[item.ID],
			})
		}
		return records, nil

	default:
		return nil, apperrors.New(apperrors.ErrInvalidDisplay,
			fmt.Sprintf("unrecognized display projection: %q", display))
	}
}
