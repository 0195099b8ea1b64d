package models

// Tag represents a user-defined label for organizing items.
type Tag struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Color     string `db:"color" json:"color,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Tag.
func (Tag) TableName() string {
	return "tags"
}
