package models

// CreatorRole distinguishes authors from editors in the item_creators
// junction.
type CreatorRole int

const (
	RoleAuthor CreatorRole = 1
	RoleEditor CreatorRole = 2
)

// Creator represents a normalized person entry shared by author and
// editor lists.
type Creator struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName returns the table name for Creator.
func (Creator) TableName() string {
	return "creators"
}

// Keyword represents a normalized keyword entry.
type Keyword struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName returns the table name for Keyword.
func (Keyword) TableName() string {
	return "keywords"
}

// Collection represents a normalized publication title (journal, series,
// proceedings).
type Collection struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Kind  int    `db:"kind" json:"kind"` // 1 primary, 2 secondary, 3 tertiary
}

// TableName returns the table name for Collection.
func (Collection) TableName() string {
	return "collections"
}
