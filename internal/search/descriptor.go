// Package search compiles search and filter descriptors into
// set-returning id queries over the index shadow table.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Scope names the collection a query resolves against.
type Scope string

const (
	// ScopeLibrary is the whole library, unscoped.
	ScopeLibrary Scope = "library"
	// ScopeClipboard joins the caller's clipboard membership set.
	ScopeClipboard Scope = "clipboard"
	// ScopeProject joins a project's membership set; callers must pass
	// the authorization guard before compiling a project-scoped query.
	ScopeProject Scope = "project"
)

// Mode selects the query compilation strategy.
type Mode string

const (
	// ModeIDs treats the query text as a whitespace-separated literal
	// id list.
	ModeIDs Mode = "ids"
	// ModeNotes searches note bodies (sub-entity, never cached).
	ModeNotes Mode = "notes"
	// ModeAnnotations searches PDF annotation bodies (sub-entity,
	// never cached).
	ModeAnnotations Mode = "annotations"
	// ModeMetadata searches every indexed field column.
	ModeMetadata Mode = "metadata"
	// ModeAnywhere searches every indexed field column plus the
	// extracted document text.
	ModeAnywhere Mode = "anywhere"
	// ModeAdvanced composes per-field sub-queries with explicit glue.
	ModeAdvanced Mode = "advanced"
)

// BoolMode controls how the terms of one query string combine.
type BoolMode string

const (
	BoolAnd    BoolMode = "AND"
	BoolOr     BoolMode = "OR"
	BoolPhrase BoolMode = "PHRASE"
)

// Glue joins successive advanced-search sub-queries. NOT is rewritten
// to "AND NOT" before composition. Glue chains evaluate strictly left
// to right with no operator precedence; this is deliberate.
type Glue string

const (
	GlueAnd Glue = "AND"
	GlueOr  Glue = "OR"
	GlueNot Glue = "NOT"
)

// FieldQuery is one advanced-search sub-query: a query string scoped to
// a single declared field type.
type FieldQuery struct {
	Field FieldType `json:"field"`
	Query string    `json:"query"`
	Bool  BoolMode  `json:"bool,omitempty"`
	Glue  Glue      `json:"glue,omitempty"`
}

// Descriptor describes one resolved query. It is never persisted; it
// exists to derive a cache key and to drive compilation.
type Descriptor struct {
	Scope     Scope `json:"scope"`
	UserID    int64 `json:"user_id,omitempty"`
	ProjectID int64 `json:"project_id,omitempty"`

	Mode Mode `json:"mode"`

	// Query and Bool drive the literal-id, sub-entity and free-text
	// modes.
	Query string   `json:"query,omitempty"`
	Bool  BoolMode `json:"bool,omitempty"`

	// Fields drives the advanced mode.
	Fields []FieldQuery `json:"fields,omitempty"`
}

// Cacheable reports whether this descriptor's results may be cached.
// Sub-entity text changes too often to benefit, and literal-id lists
// are cheap to re-resolve.
func (d *Descriptor) Cacheable() bool {
	switch d.Mode {
	case ModeMetadata, ModeAnywhere, ModeAdvanced:
		return true
	}
	return false
}

// CacheKey derives a deterministic key from the fully serialized
// descriptor, including collection and project scope, so distinct
// queries never collide and identical queries always hit.
func (d *Descriptor) CacheKey() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Marshal of this struct cannot fail; guard anyway.
		data = []byte(d.Query)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
