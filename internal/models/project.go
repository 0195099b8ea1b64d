package models

// Project represents a shared working set of items. Every
// project-scoped operation is gated on membership of the acting user.
type Project struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatedBy int64  `db:"created_by" json:"created_by"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Project.
func (Project) TableName() string {
	return "projects"
}

// User represents an account in the library. Admin grants the delete
// action in bulk mutations.
type User struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Admin     bool   `db:"is_admin" json:"is_admin"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}
