package library

import (
	"context"
	"testing"

	"github.com/kimhsiao/refnexus/internal/cache"
	"github.com/kimhsiao/refnexus/internal/config"
	"github.com/kimhsiao/refnexus/internal/db"
	apperrors "github.com/kimhsiao/refnexus/internal/errors"
	"github.com/kimhsiao/refnexus/internal/models"
	"github.com/kimhsiao/refnexus/internal/search"
)

// setupTestService wires a Service over a migrated database and a
// fresh cache directory.
func setupTestService(t *testing.T) (*Service, *db.Repository) {
	t.Helper()
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.NewMigrator(database.DB).Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open test cache: %v", err)
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()

	repo := db.NewRepository(database.DB)
	return NewService(repo, store, cfg), repo
}

func seedActor(t *testing.T, repo *db.Repository, name string, admin bool) Actor {
	t.Helper()
	user := &models.User{Username: name, Admin: admin}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return Actor{UserID: user.ID, Admin: admin}
}

func seedItem(t *testing.T, repo *db.Repository, actor Actor, title string) int64 {
	t.Helper()
	item := &models.Item{Title: title, AddedBy: actor.UserID}
	if err := repo.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("Failed to create item %q: %v", title, err)
	}
	return item.ID
}

func TestSearchReturnsSummaries(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	item := &models.Item{Title: "Graph Theory", ContentHash: "abc123", AddedBy: actor.UserID}
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	result, err := svc.Search(ctx, actor, &search.Descriptor{
		Scope: search.ScopeLibrary,
		Mode:  search.ModeMetadata,
		Query: "graph",
	}, Page{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
	records, ok := result.Items.([]SummaryRecord)
	if !ok {
		t.Fatalf("Items has type %T, want []SummaryRecord", result.Items)
	}
	if len(records) != 1 || records[0].ID != item.ID || records[0].Title != "Graph Theory" {
		t.Errorf("Records = %v, want the seeded item", records)
	}
	if !records[0].HasFile {
		t.Error("Summary should flag the attached file")
	}
}

func TestSearchCacheStalesWithIndex(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	seedItem(t, repo, actor, "Graph Theory")
	desc := &search.Descriptor{Scope: search.ScopeLibrary, Mode: search.ModeMetadata, Query: "graph"}

	result, err := svc.Search(ctx, actor, desc, Page{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}

	// repeat hits the cache and still sees one item
	result, err = svc.Search(ctx, actor, desc, Page{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("Cached TotalCount = %d, want 1", result.TotalCount)
	}

	// any index mutation advances the version stamp; the cached id
	// list must not be served again
	seedItem(t, repo, actor, "Graph Coloring")
	result, err = svc.Search(ctx, actor, desc, Page{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("TotalCount after index change = %d, want 2", result.TotalCount)
	}
}

func TestSearchPagination(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	var ids []int64
	for _, title := range []string{"Graph A", "Graph B", "Graph C", "Graph D", "Graph E"} {
		ids = append(ids, seedItem(t, repo, actor, title))
	}

	result, err := svc.Search(ctx, actor, &search.Descriptor{
		Mode:  search.ModeMetadata,
		Query: "graph",
	}, Page{Limit: 2, Offset: 2, Display: DisplayTitle})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5 regardless of the window", result.TotalCount)
	}
	records := result.Items.([]TitleRecord)
	if len(records) != 2 {
		t.Fatalf("Window = %d records, want 2", len(records))
	}
	// id-descending: page two of size two holds the third and fourth
	// newest items
	if records[0].ID != ids[2] || records[1].ID != ids[1] {
		t.Errorf("Window ids = [%d %d], want [%d %d]", records[0].ID, records[1].ID, ids[2], ids[1])
	}
}

func TestSearchOffsetPastEnd(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)
	seedItem(t, repo, actor, "Graph Theory")

	result, err := svc.Search(ctx, actor, &search.Descriptor{
		Mode:  search.ModeMetadata,
		Query: "graph",
	}, Page{Limit: 10, Offset: 50, Display: DisplayTitle})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
	if records := result.Items.([]TitleRecord); len(records) != 0 {
		t.Errorf("Window past the end = %v, want empty", records)
	}
}

func TestSearchNotesModePaginatesInStorage(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	itemID := seedItem(t, repo, actor, "Annotated")
	if err := repo.SaveNote(ctx, &models.Note{ItemID: itemID, Body: "chapter one summary"}); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}

	result, err := svc.Search(ctx, actor, &search.Descriptor{
		Mode:  search.ModeNotes,
		Query: "chapter",
	}, Page{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
	records := result.Items.([]SummaryRecord)
	if len(records) != 1 || records[0].Snippet == "" {
		t.Errorf("Records = %v, want one record carrying a note snippet", records)
	}
}

func TestSearchNotesPaginationStable(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	older := seedItem(t, repo, actor, "Older")
	newer := seedItem(t, repo, actor, "Newer")
	// several matching notes on one item must not widen its footprint
	// in the page sequence
	for itemID, bodies := range map[int64][]string{
		older: {"chapter overview"},
		newer: {"chapter one draft", "chapter two draft"},
	} {
		for _, body := range bodies {
			if err := repo.SaveNote(ctx, &models.Note{ItemID: itemID, Body: body}); err != nil {
				t.Fatalf("SaveNote failed: %v", err)
			}
		}
	}

	desc := &search.Descriptor{Mode: search.ModeNotes, Query: "chapter"}
	var pages []int64
	for offset := 0; offset < 2; offset++ {
		result, err := svc.Search(ctx, actor, desc, Page{Limit: 1, Offset: offset, Display: DisplayTitle})
		if err != nil {
			t.Fatalf("Search failed at offset %d: %v", offset, err)
		}
		if result.TotalCount != 2 {
			t.Errorf("TotalCount = %d at offset %d, want 2", result.TotalCount, offset)
		}
		for _, record := range result.Items.([]TitleRecord) {
			pages = append(pages, record.ID)
		}
	}

	// concatenated pages cover every item exactly once, id-descending
	if len(pages) != 2 || pages[0] != newer || pages[1] != older {
		t.Errorf("Concatenated pages = %v, want [%d %d]", pages, newer, older)
	}
}

func TestSearchInvalidDisplay(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)
	seedItem(t, repo, actor, "Graph Theory")

	_, err := svc.Search(ctx, actor, &search.Descriptor{
		Mode:  search.ModeMetadata,
		Query: "graph",
	}, Page{Display: "holographic"})
	if !apperrors.Is(err, apperrors.ErrInvalidDisplay) {
		t.Errorf("Expected invalid display error, got %v", err)
	}
}

func TestProjectScopeRequiresMembership(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	owner := seedActor(t, repo, "owner", false)
	outsider := seedActor(t, repo, "outsider", false)

	project := &models.Project{Name: "Survey", CreatedBy: owner.UserID}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	_, err := svc.Search(ctx, outsider, &search.Descriptor{
		Scope:     search.ScopeProject,
		ProjectID: project.ID,
		Mode:      search.ModeMetadata,
		Query:     "anything",
	}, Page{})
	if !apperrors.Is(err, apperrors.ErrNotAuthorized) {
		t.Fatalf("Expected authorization error, got %v", err)
	}
	if appErr := err.(*apperrors.AppError); appErr.HTTPStatus() != 403 {
		t.Errorf("HTTPStatus = %d, want 403", appErr.HTTPStatus())
	}

	_, err = svc.Search(ctx, outsider, &search.Descriptor{
		Scope:     search.ScopeProject,
		ProjectID: 9999,
		Mode:      search.ModeMetadata,
		Query:     "anything",
	}, Page{})
	if !apperrors.Is(err, apperrors.ErrProjectNotFound) {
		t.Errorf("Expected project-not-found error, got %v", err)
	}
}

func TestReadFilteredWithFacets(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	tagged := seedItem(t, repo, actor, "Tagged")
	seedItem(t, repo, actor, "Plain")

	tag := &models.Tag{Name: "classic"}
	if err := repo.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if err := repo.TagItems(ctx, []int64{tagged}, []int64{tag.ID}); err != nil {
		t.Fatalf("TagItems failed: %v", err)
	}

	result, err := svc.ReadFiltered(ctx, actor, &search.Facets{
		Tags: []int64{tag.ID},
	}, Page{Display: DisplayTitle})
	if err != nil {
		t.Fatalf("ReadFiltered failed: %v", err)
	}

	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
	records := result.Items.([]TitleRecord)
	if len(records) != 1 || records[0].ID != tagged {
		t.Errorf("Records = %v, want the tagged item", records)
	}
	if len(result.Filters) != 1 || result.Filters[0].Name != "tag" || result.Filters[0].Value != "classic" {
		t.Errorf("Filters = %v, want the tag description line", result.Filters)
	}
}

func TestReadFilteredOrdering(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	older := &models.Item{Title: "Zeta Functions", Year: 1990, AddedBy: actor.UserID}
	newer := &models.Item{Title: "Algebra", Year: 2005, AddedBy: actor.UserID}
	for _, item := range []*models.Item{older, newer} {
		if err := repo.CreateItem(ctx, item); err != nil {
			t.Fatalf("CreateItem failed: %v", err)
		}
	}

	result, err := svc.ReadFiltered(ctx, actor, &search.Facets{}, Page{OrderBy: "title", Display: DisplayTitle})
	if err != nil {
		t.Fatalf("ReadFiltered failed: %v", err)
	}
	records := result.Items.([]TitleRecord)
	if len(records) != 2 || records[0].Title != "Algebra" {
		t.Errorf("Title ordering = %v, want alphabetical", records)
	}

	result, err = svc.ReadFiltered(ctx, actor, &search.Facets{}, Page{OrderBy: "year", Display: DisplayTitle})
	if err != nil {
		t.Fatalf("ReadFiltered failed: %v", err)
	}
	records = result.Items.([]TitleRecord)
	if len(records) != 2 || records[0].ID != newer.ID {
		t.Errorf("Year ordering = %v, want newest publication first", records)
	}

	_, err = svc.ReadFiltered(ctx, actor, &search.Facets{}, Page{OrderBy: "pagerank"})
	if !apperrors.Is(err, apperrors.ErrInvalidSortKey) {
		t.Errorf("Expected invalid sort key error, got %v", err)
	}
}

func TestClipboardAddReportsEviction(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)
	svc.cfg.MaxItems = 2

	a := seedItem(t, repo, actor, "A")
	b := seedItem(t, repo, actor, "B")
	c := seedItem(t, repo, actor, "C")

	exceeded, err := svc.ClipboardAdd(ctx, actor, []int64{a, b})
	if err != nil {
		t.Fatalf("ClipboardAdd failed: %v", err)
	}
	if exceeded {
		t.Error("No eviction expected while under capacity")
	}

	exceeded, err = svc.ClipboardAdd(ctx, actor, []int64{c})
	if err != nil {
		t.Fatalf("ClipboardAdd failed: %v", err)
	}
	if !exceeded {
		t.Error("Expected the capacity flag when the bound evicts")
	}

	members, err := repo.Members(ctx, db.ClipboardSet, actor.UserID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 || members[0] != c || members[1] != b {
		t.Errorf("Members = %v, want the two highest ids", members)
	}
}

func TestProjectAddRequiresMembership(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	owner := seedActor(t, repo, "owner", false)
	outsider := seedActor(t, repo, "outsider", false)

	project := &models.Project{Name: "Survey", CreatedBy: owner.UserID}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	itemID := seedItem(t, repo, owner, "Paper")

	if _, err := svc.ProjectAdd(ctx, outsider, project.ID, []int64{itemID}); !apperrors.Is(err, apperrors.ErrNotAuthorized) {
		t.Fatalf("Expected authorization error, got %v", err)
	}

	members, err := repo.Members(ctx, db.ProjectSet, project.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("Guard failure must leave the set untouched, got %v", members)
	}

	if _, err := svc.ProjectAdd(ctx, owner, project.ID, []int64{itemID}); err != nil {
		t.Fatalf("ProjectAdd failed for a member: %v", err)
	}
}

func TestDispatchAppliesActionsInOrder(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	admin := seedActor(t, repo, "admin", true)

	itemID := seedItem(t, repo, admin, "Target")
	tag := &models.Tag{Name: "reviewed"}
	if err := repo.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	result, err := svc.Dispatch(ctx, admin, []int64{itemID}, &Actions{
		ClipboardAdd: true,
		AddTags:      []int64{tag.ID},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	want := []string{"clipboard_add", "tag"}
	if len(result.Applied) != len(want) {
		t.Fatalf("Applied = %v, want %v", result.Applied, want)
	}
	for i := range want {
		if result.Applied[i] != want[i] {
			t.Errorf("Applied[%d] = %q, want %q", i, result.Applied[i], want[i])
		}
	}

	members, _ := repo.Members(ctx, db.ClipboardSet, admin.UserID)
	if len(members) != 1 {
		t.Errorf("Clipboard = %v, want the dispatched item", members)
	}
	tags, err := repo.ItemTagNames(ctx, []int64{itemID})
	if err != nil {
		t.Fatalf("ItemTagNames failed: %v", err)
	}
	if len(tags[itemID]) != 1 || tags[itemID][0] != "reviewed" {
		t.Errorf("Tags = %v, want the dispatched tag", tags[itemID])
	}
}

func TestDispatchDeleteRequiresAdmin(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	user := seedActor(t, repo, "user", false)

	itemID := seedItem(t, repo, user, "Survivor")

	result, err := svc.Dispatch(ctx, user, []int64{itemID}, &Actions{
		ClipboardAdd: true,
		Delete:       true,
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	// delete is dropped silently; the rest of the map still applies
	for _, applied := range result.Applied {
		if applied == "delete" {
			t.Error("Delete must not apply for a non-administrator")
		}
	}
	if _, err := repo.GetItem(ctx, itemID); err != nil {
		t.Errorf("Item should survive a non-admin delete request: %v", err)
	}
	members, _ := repo.Members(ctx, db.ClipboardSet, user.UserID)
	if len(members) != 1 {
		t.Errorf("Clipboard add should still apply, got %v", members)
	}
}

func TestDispatchAdminDelete(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	admin := seedActor(t, repo, "admin", true)

	itemID := seedItem(t, repo, admin, "Doomed")

	result, err := svc.Dispatch(ctx, admin, []int64{itemID}, &Actions{Delete: true})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(result.Applied) != 1 || result.Applied[0] != "delete" {
		t.Errorf("Applied = %v, want [delete]", result.Applied)
	}
	if _, err := repo.GetItem(ctx, itemID); err == nil {
		t.Error("Item should be gone after an admin delete")
	}
}

func TestSearchRoutesActionsToDispatcher(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	seedItem(t, repo, actor, "Graph Theory")
	seedItem(t, repo, actor, "Graph Coloring")

	result, err := svc.Search(ctx, actor, &search.Descriptor{
		Mode:  search.ModeMetadata,
		Query: "graph",
	}, Page{Actions: &Actions{ClipboardAdd: true}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want the full resolved set", result.TotalCount)
	}
	if result.Items != nil {
		t.Error("Action requests must not render items")
	}
	members, _ := repo.Members(ctx, db.ClipboardSet, actor.UserID)
	if len(members) != 2 {
		t.Errorf("Clipboard = %v, want both matching items", members)
	}
}

func TestDispatchEmptySet(t *testing.T) {
	svc, repo := setupTestService(t)
	ctx := context.Background()
	actor := seedActor(t, repo, "alice", false)

	result, err := svc.Dispatch(ctx, actor, nil, &Actions{ClipboardAdd: true})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(result.Applied) != 0 {
		t.Errorf("Applied = %v, want nothing for an empty id set", result.Applied)
	}
}
