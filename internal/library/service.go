package library

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kimhsiao/refnexus/internal/cache"
	"github.com/kimhsiao/refnexus/internal/config"
	"github.com/kimhsiao/refnexus/internal/db"
	"github.com/kimhsiao/refnexus/internal/dbx"
	apperrors "github.com/kimhsiao/refnexus/internal/errors"
	"github.com/kimhsiao/refnexus/internal/logging"
	"github.com/kimhsiao/refnexus/internal/models"
	"github.com/kimhsiao/refnexus/internal/search"
)

// cache context for compiled search results (generational discipline)
const searchCacheContext = "searches"

// Service resolves collection views into ordered, paged item lists and
// applies bulk mutations. The cache and stats collaborators are
// injected; the service holds no global state.
type Service struct {
	repo  *db.Repository
	cache *cache.Store
	cfg   *config.Config
	log   *logging.Logger
}

// NewService creates a Service.
func NewService(repo *db.Repository, store *cache.Store, cfg *config.Config) *Service {
	return &Service{
		repo:  repo,
		cache: store,
		cfg:   cfg,
		log:   logging.Get(),
	}
}

// Page carries the requested result window and display projection.
// When Actions is set, the request routes to the bulk mutation
// dispatcher instead of rendering.
type Page struct {
	Limit   int
	Offset  int
	Display string
	OrderBy string
	Actions *Actions
}

// Result is the response of Search and ReadFiltered.
type Result struct {
	Items      interface{}        `json:"items,omitempty"`
	TotalCount int                `json:"total_count"`
	Project    *models.Project    `json:"project,omitempty"`
	Filters    []search.FacetLine `json:"filters,omitempty"`

	// MaxCountExceeded reports that a membership add evicted entries.
	MaxCountExceeded bool `json:"max_count_exceeded,omitempty"`
}

// Search resolves a search descriptor to a paged, hydrated result, or
// to bulk side effects when the page carries an action map.
func (s *Service) Search(ctx context.Context, actor Actor, desc *search.Descriptor, page Page) (*Result, error) {
	desc.UserID = actor.UserID

	result := &Result{}
	if desc.Scope == search.ScopeProject {
		if err := s.VerifyProject(ctx, actor.UserID, desc.ProjectID); err != nil {
			return nil, err
		}
		project, err := s.repo.GetProject(ctx, desc.ProjectID)
		if err == nil {
			result.Project = project
		}
	}

	if desc.Cacheable() {
		ids, err := s.cachedIDs(ctx, desc)
		if err != nil {
			return nil, err
		}
		if page.Actions != nil {
			return s.dispatchResult(ctx, actor, ids, page.Actions)
		}
		result.TotalCount = len(ids)
		// windowing happens after the cache fetch, in memory, over the
		// full candidate list
		limit, offset := clampWindow(page.Limit, page.Offset)
		items, err := s.materialize(ctx, window(ids, limit, offset), page.Display, nil)
		if err != nil {
			return nil, err
		}
		result.Items = items
		return result, nil
	}

	compiled, err := search.Compile(desc)
	if err != nil {
		return nil, err
	}

	if page.Actions != nil {
		ids, _, err := s.repo.RunQuery(ctx, compiled.SQL, compiled.Args, compiled.HasSnippet)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "search failed", err)
		}
		return s.dispatchResult(ctx, actor, ids, page.Actions)
	}

	// non-cacheable modes push the window to storage
	limit, offset := clampWindow(page.Limit, page.Offset)
	windowed := compiled.SQL + " LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, compiled.Args...), limit, offset)
	ids, snippets, err := s.repo.RunQuery(ctx, windowed, args, compiled.HasSnippet)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "search failed", err)
	}

	total, err := s.repo.CountQuery(ctx, compiled.CountSQL, compiled.Args)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "search count failed", err)
	}
	result.TotalCount = total

	items, err := s.materialize(ctx, ids, page.Display, snippets)
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// cachedIDs resolves a cacheable descriptor through the result cache,
// recompiling on any miss. The version is the index shadow's
// last-modified stamp, so results go stale exactly when the index
// changes.
func (s *Service) cachedIDs(ctx context.Context, desc *search.Descriptor) ([]int64, error) {
	version, err := s.repo.IndexVersion(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "index version lookup failed", err)
	}
	key := desc.CacheKey()

	if payload, ok := s.cache.Get(searchCacheContext, key, version); ok {
		var ids []int64
		if err := json.Unmarshal(payload, &ids); err == nil {
			return ids, nil
		}
		// damaged payload degrades to recomputation
	}

	compiled, err := search.Compile(desc)
	if err != nil {
		return nil, err
	}

	capped := compiled.SQL + " LIMIT ?"
	args := append(append([]interface{}{}, compiled.Args...), s.cfg.MaxSearchResults)
	ids, _, err := s.repo.RunQuery(ctx, capped, args, false)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "search failed", err)
	}

	if payload, err := json.Marshal(ids); err == nil {
		s.cache.Set(searchCacheContext, key, payload, version)
	}
	return ids, nil
}

// orderKeys maps recognized readFiltered sort keys to SQL ordering.
// Empty means the intersector's id-descending order stands.
var orderKeys = map[string]string{
	"":      "",
	"id":    "",
	"year":  "year DESC, id DESC",
	"title": "title COLLATE NOCASE ASC, id DESC",
}

// ReadFiltered resolves a facet selection to a paged, hydrated result,
// or to bulk side effects when the page carries an action map.
func (s *Service) ReadFiltered(ctx context.Context, actor Actor, facets *search.Facets, page Page) (*Result, error) {
	facets.UserID = actor.UserID

	result := &Result{}
	if facets.Scope == search.ScopeProject {
		if err := s.VerifyProject(ctx, actor.UserID, facets.ProjectID); err != nil {
			return nil, err
		}
		project, err := s.repo.GetProject(ctx, facets.ProjectID)
		if err == nil {
			result.Project = project
		}
	}

	ordering, ok := orderKeys[page.OrderBy]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidSortKey,
			fmt.Sprintf("unrecognized sort key: %q", page.OrderBy))
	}

	ids, err := search.Intersect(ctx, s.repo.DBTX(ctx), facets)
	if err != nil {
		if apperrors.IsQueryError(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "facet intersection failed", err)
	}

	if page.Actions != nil {
		return s.dispatchResult(ctx, actor, ids, page.Actions)
	}

	if ordering != "" {
		ids, err = s.reorder(ctx, ids, ordering)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "reorder failed", err)
		}
	}

	result.TotalCount = len(ids)
	result.Filters = search.Describe(ctx, s.repo, facets)

	limit, offset := clampWindow(page.Limit, page.Offset)
	items, err := s.materialize(ctx, window(ids, limit, offset), page.Display, nil)
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// reorder re-sorts an id set by an item column.
func (s *Service) reorder(ctx context.Context, ids []int64, ordering string) ([]int64, error) {
	if len(ids) == 0 {
		return ids, nil
	}
	query := `SELECT id FROM items WHERE id IN (` + paramList(len(ids)) + `) ORDER BY ` + ordering
	ordered, _, err := s.repo.RunQuery(ctx, query, idArgs(ids), false)
	return ordered, err
}

func (s *Service) dispatchResult(ctx context.Context, actor Actor, ids []int64, actions *Actions) (*Result, error) {
	mutation, err := s.Dispatch(ctx, actor, ids, actions)
	if err != nil {
		return nil, err
	}
	return &Result{
		TotalCount:       len(ids),
		MaxCountExceeded: mutation.MaxCountExceeded,
	}, nil
}

// =====================================================
// Membership and tag operations
// =====================================================

// ClipboardAdd inserts items into the caller's clipboard. The returned
// flag reports whether the capacity bound evicted older entries.
func (s *Service) ClipboardAdd(ctx context.Context, actor Actor, itemIDs []int64) (bool, error) {
	return s.repo.AddMembers(ctx, db.ClipboardSet, actor.UserID, itemIDs, s.cfg.MaxItems)
}

// ClipboardDelete removes items from the caller's clipboard.
func (s *Service) ClipboardDelete(ctx context.Context, actor Actor, itemIDs []int64) error {
	return s.repo.RemoveMembers(ctx, db.ClipboardSet, actor.UserID, itemIDs)
}

// ProjectAdd inserts items into a project's membership set after the
// authorization guard passes. Guard failure aborts with nothing
// written.
func (s *Service) ProjectAdd(ctx context.Context, actor Actor, projectID int64, itemIDs []int64) (bool, error) {
	exceeded := false
	err := dbx.WithTx(ctx, s.repo.Conn(), func(ctx context.Context, _ dbx.DBTX) error {
		if err := s.VerifyProject(ctx, actor.UserID, projectID); err != nil {
			return err
		}
		var err error
		exceeded, err = s.repo.AddMembers(ctx, db.ProjectSet, projectID, itemIDs, s.cfg.MaxItems)
		return err
	})
	return exceeded, err
}

// ProjectDelete removes items from a project's membership set after the
// authorization guard passes.
func (s *Service) ProjectDelete(ctx context.Context, actor Actor, projectID int64, itemIDs []int64) error {
	return dbx.WithTx(ctx, s.repo.Conn(), func(ctx context.Context, _ dbx.DBTX) error {
		if err := s.VerifyProject(ctx, actor.UserID, projectID); err != nil {
			return err
		}
		return s.repo.RemoveMembers(ctx, db.ProjectSet, projectID, itemIDs)
	})
}

// Tag attaches tags to items.
func (s *Service) Tag(ctx context.Context, itemIDs, tagIDs []int64) error {
	return s.repo.TagItems(ctx, itemIDs, tagIDs)
}

// Untag removes tags from items.
func (s *Service) Untag(ctx context.Context, itemIDs, tagIDs []int64) error {
	return s.repo.UntagItems(ctx, itemIDs, tagIDs)
}

func paramList(n int) string {
	if n == 0 {
		return ""
	}
	list := "?"
	for i := 1; i < n; i++ {
		list += ", ?"
	}
	return list
}

func idArgs(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
