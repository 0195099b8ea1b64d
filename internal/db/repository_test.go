package db

import (
	"context"
	"strings"
	"testing"

	"github.com/kimhsiao/refnexus/internal/fold"
	"github.com/kimhsiao/refnexus/internal/models"
)

// setupTestDB opens a migrated database in a temporary directory.
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := NewMigrator(database.DB).Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return NewRepository(database.DB)
}

// seedUser creates a user and returns its id.
func seedUser(t *testing.T, repo *Repository, name string, admin bool) int64 {
	t.Helper()
	user := &models.User{Username: name, Admin: admin}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user.ID
}

// seedItem creates an item with the given title and returns its id.
func seedItem(t *testing.T, repo *Repository, userID int64, title string) int64 {
	t.Helper()
	item := &models.Item{Title: title, AddedBy: userID}
	if err := repo.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("Failed to create item %q: %v", title, err)
	}
	return item.ID
}

func TestCreateItemBuildsIndexShadow(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)

	itemID := seedItem(t, repo, userID, "Café Theory")

	var title string
	err := repo.db.QueryRow(`SELECT title FROM search_index WHERE item_id = ?`, itemID).Scan(&title)
	if err != nil {
		t.Fatalf("Failed to read shadow record: %v", err)
	}
	want := fold.Index("Café Theory")
	if title != want {
		t.Errorf("Shadow title = %q, want %q", title, want)
	}

	version, err := repo.IndexVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to read index version: %v", err)
	}
	if version == "0" {
		t.Error("Index version should advance after item creation")
	}
}

func TestUpdateItemRefreshesShadow(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)

	itemID := seedItem(t, repo, userID, "Old Title")
	before, _ := repo.IndexVersion(ctx)

	item, err := repo.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	item.Title = "New Title"
	if err := repo.UpdateItem(ctx, item); err != nil {
		t.Fatalf("Failed to update item: %v", err)
	}

	var title string
	if err := repo.db.QueryRow(`SELECT title FROM search_index WHERE item_id = ?`, itemID).Scan(&title); err != nil {
		t.Fatalf("Failed to read shadow record: %v", err)
	}
	if title != fold.Index("New Title") {
		t.Errorf("Shadow title = %q, want folded new title", title)
	}

	after, _ := repo.IndexVersion(ctx)
	if before == after {
		t.Error("Index version should advance after item update")
	}
}

func TestIndexShadowIncludesCreatorsAndKeywords(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)
	itemID := seedItem(t, repo, userID, "Graphs")

	if err := repo.SetItemCreators(ctx, itemID, models.RoleAuthor, []string{"Léonard Euler"}); err != nil {
		t.Fatalf("Failed to set creators: %v", err)
	}
	if err := repo.SetItemKeywords(ctx, itemID, []string{"Topology"}); err != nil {
		t.Fatalf("Failed to set keywords: %v", err)
	}

	var authors, keywords string
	err := repo.db.QueryRow(`SELECT authors, keywords FROM search_index WHERE item_id = ?`, itemID).
		Scan(&authors, &keywords)
	if err != nil {
		t.Fatalf("Failed to read shadow record: %v", err)
	}
	if !strings.Contains(authors, "leonard euler") {
		t.Errorf("Shadow authors = %q, want folded creator name", authors)
	}
	if !strings.Contains(keywords, "topology") {
		t.Errorf("Shadow keywords = %q, want folded keyword", keywords)
	}
}

func TestItemsByIDsPreservesOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)

	a := seedItem(t, repo, userID, "First")
	b := seedItem(t, repo, userID, "Second")
	c := seedItem(t, repo, userID, "Third")

	items, err := repo.ItemsByIDs(ctx, []int64{b, c, a, 9999})
	if err != nil {
		t.Fatalf("ItemsByIDs failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	got := []int64{items[0].ID, items[1].ID, items[2].ID}
	want := []int64{b, c, a}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Order mismatch at %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDeleteItemsCascades(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)
	itemID := seedItem(t, repo, userID, "Doomed")

	tag := &models.Tag{Name: "pending"}
	if err := repo.CreateTag(ctx, tag); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	if err := repo.TagItems(ctx, []int64{itemID}, []int64{tag.ID}); err != nil {
		t.Fatalf("Failed to tag item: %v", err)
	}
	note := &models.Note{ItemID: itemID, Body: "remember this"}
	if err := repo.SaveNote(ctx, note); err != nil {
		t.Fatalf("Failed to save note: %v", err)
	}

	affected, err := repo.DeleteItems(ctx, []int64{itemID})
	if err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("Expected 1 deleted item, got %d", affected)
	}

	for _, table := range []string{"search_index", "item_tags", "notes"} {
		var count int
		if err := repo.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("Failed to count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("Expected %s to be empty after cascade, got %d rows", table, count)
		}
	}
}

func TestAddMembersEviction(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)

	a := seedItem(t, repo, userID, "A")
	b := seedItem(t, repo, userID, "B")
	c := seedItem(t, repo, userID, "C")

	evicted, err := repo.AddMembers(ctx, ClipboardSet, userID, []int64{a, b}, 2)
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if evicted {
		t.Error("No eviction expected while under capacity")
	}

	evicted, err = repo.AddMembers(ctx, ClipboardSet, userID, []int64{c}, 2)
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if !evicted {
		t.Error("Expected eviction when exceeding capacity")
	}

	members, err := repo.Members(ctx, ClipboardSet, userID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 || members[0] != c || members[1] != b {
		t.Errorf("Members = %v, want [%d %d]", members, c, b)
	}
}

func TestAddMembersRanksByItemID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)

	low := seedItem(t, repo, userID, "Low")
	mid := seedItem(t, repo, userID, "Mid")
	high := seedItem(t, repo, userID, "High")

	// insert the newer items first: insertion order must not matter
	if _, err := repo.AddMembers(ctx, ClipboardSet, userID, []int64{high, mid}, 2); err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	evicted, err := repo.AddMembers(ctx, ClipboardSet, userID, []int64{low}, 2)
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if !evicted {
		t.Error("Adding a low-ranked item to a full set must evict it immediately")
	}

	members, err := repo.Members(ctx, ClipboardSet, userID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 || members[0] != high || members[1] != mid {
		t.Errorf("Members = %v, want the two highest ids", members)
	}
}

func TestAddMembersIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)
	itemID := seedItem(t, repo, userID, "Once")

	for i := 0; i < 2; i++ {
		evicted, err := repo.AddMembers(ctx, ClipboardSet, userID, []int64{itemID}, 5)
		if err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
		if evicted {
			t.Error("Duplicate insert must not evict")
		}
	}

	count, err := repo.CountMembers(ctx, ClipboardSet, userID)
	if err != nil {
		t.Fatalf("CountMembers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 member, got %d", count)
	}
}

func TestRemoveMembers(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)
	a := seedItem(t, repo, userID, "A")
	b := seedItem(t, repo, userID, "B")

	if _, err := repo.AddMembers(ctx, ClipboardSet, userID, []int64{a, b}, 10); err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	// missing ids are ignored
	if err := repo.RemoveMembers(ctx, ClipboardSet, userID, []int64{a, 9999}); err != nil {
		t.Fatalf("RemoveMembers failed: %v", err)
	}

	members, err := repo.Members(ctx, ClipboardSet, userID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 1 || members[0] != b {
		t.Errorf("Members = %v, want [%d]", members, b)
	}
}

func TestSaveNoteStripsMarkdown(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, repo, "alice", false)
	itemID := seedItem(t, repo, userID, "Annotated")

	note := &models.Note{
		ItemID: itemID,
		Body:   "# Chapter Notes\n\nSome **bold** claims and a [reference](http://example.org).",
	}
	if err := repo.SaveNote(ctx, note); err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}

	if strings.Contains(note.BodyPlain, "#") || strings.Contains(note.BodyPlain, "*") {
		t.Errorf("BodyPlain still carries markup: %q", note.BodyPlain)
	}
	if !strings.Contains(note.BodyPlain, " chapter notes ") {
		t.Errorf("BodyPlain = %q, want folded heading text", note.BodyPlain)
	}
	if !strings.Contains(note.BodyPlain, " bold claims ") {
		t.Errorf("BodyPlain = %q, want emphasis stripped to text", note.BodyPlain)
	}
	if !strings.HasPrefix(note.BodyPlain, "   ") || !strings.HasSuffix(note.BodyPlain, "   ") {
		t.Errorf("BodyPlain = %q, want boundary padding", note.BodyPlain)
	}
}

func TestProjectMembership(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "owner", false)
	outsider := seedUser(t, repo, "outsider", false)

	project := &models.Project{Name: "Survey", CreatedBy: owner}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	member, err := repo.IsProjectMember(ctx, project.ID, owner)
	if err != nil {
		t.Fatalf("IsProjectMember failed: %v", err)
	}
	if !member {
		t.Error("Creator should be a member of the new project")
	}

	member, err = repo.IsProjectMember(ctx, project.ID, outsider)
	if err != nil {
		t.Fatalf("IsProjectMember failed: %v", err)
	}
	if member {
		t.Error("Outsider should not be a member")
	}

	exists, err := repo.ProjectExists(ctx, 9999)
	if err != nil {
		t.Fatalf("ProjectExists failed: %v", err)
	}
	if exists {
		t.Error("Unknown project id should not exist")
	}
}

func TestLogChange(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	entry := &ChangeLog{Action: "tag", ActorID: 1, ItemCount: 3}
	if err := repo.LogChange(ctx, entry); err != nil {
		t.Fatalf("LogChange failed: %v", err)
	}
	if len(entry.ID) != 36 {
		t.Errorf("Expected a UUID id, got %q", entry.ID)
	}

	var count int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM change_log`).Scan(&count); err != nil {
		t.Fatalf("Failed to count change log: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 change log row, got %d", count)
	}
}
