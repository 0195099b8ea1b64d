package models

import "time"

// Note represents a user note attached to an item. Body is markdown;
// BodyPlain is the stripped, normalized form searched by the sub-entity
// query mode.
type Note struct {
	ID        int64  `db:"id" json:"id"`
	ItemID    int64  `db:"item_id" json:"item_id"`
	Body      string `db:"body" json:"body"`
	BodyPlain string `db:"body_plain" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Note.
func (Note) TableName() string {
	return "notes"
}

// Touch updates the UpdatedAt timestamp.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now().Unix()
}

// Annotation represents a PDF annotation attached to an item. BodyPlain
// is the normalized form searched by the sub-entity query mode.
type Annotation struct {
	ID        int64  `db:"id" json:"id"`
	ItemID    int64  `db:"item_id" json:"item_id"`
	Page      int    `db:"page" json:"page"`
	Body      string `db:"body" json:"body"`
	BodyPlain string `db:"body_plain" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Annotation.
func (Annotation) TableName() string {
	return "annotations"
}
