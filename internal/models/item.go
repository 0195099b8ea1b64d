// Package models provides data model definitions for the library engine.
package models

import "time"

// Item represents a bibliographic record. Items are created and updated
// by the item model collaborator; the engine reads them and the
// many-to-many junctions around them.
type Item struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Abstract string `db:"abstract" json:"abstract,omitempty"`

	// Publication date parts; zero means unknown.
	Year  int `db:"year" json:"year,omitempty"`
	Month int `db:"month" json:"month,omitempty"`
	Day   int `db:"day" json:"day,omitempty"`

	Volume    string `db:"volume" json:"volume,omitempty"`
	Issue     string `db:"issue" json:"issue,omitempty"`
	Pages     string `db:"pages" json:"pages,omitempty"`
	Publisher string `db:"publisher" json:"publisher,omitempty"`
	Place     string `db:"place" json:"place,omitempty"`

	// Free-form custom fields, indexed 1..8.
	Custom [8]string `json:"custom,omitempty"`

	// ContentHash identifies an attached file; empty when no file.
	ContentHash string `db:"content_hash" json:"content_hash,omitempty"`

	// CollectionID references the primary publication title lookup.
	CollectionID int64 `db:"collection_id" json:"collection_id,omitempty"`

	AddedBy   int64 `db:"added_by" json:"added_by"`
	CreatedAt int64 `db:"created_at" json:"created_at"`
	UpdatedAt int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return "items"
}

// HasFile reports whether an attachment is present.
func (i *Item) HasFile() bool {
	return i.ContentHash != ""
}

// Published returns the publication date as time.Time; month and day
// default to January 1st when unknown.
func (i *Item) Published() time.Time {
	month := i.Month
	if month == 0 {
		month = 1
	}
	day := i.Day
	if day == 0 {
		day = 1
	}
	return time.Date(i.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Touch updates the UpdatedAt timestamp.
func (i *Item) Touch() {
	i.UpdatedAt = time.Now().Unix()
}
