// Package db provides note and annotation storage. Note bodies are
// markdown; the searchable form is the markup-stripped, normalized
// body_plain column.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kimhsiao/refnexus/internal/fold"
	"github.com/kimhsiao/refnexus/internal/models"
)

// SaveNote inserts or updates a note, deriving its searchable plain
// body.
func (r *Repository) SaveNote(ctx context.Context, note *models.Note) error {
	now := time.Now().Unix()
	note.BodyPlain = fold.Pad(fold.Fold(stripMarkdown(note.Body)))

	if note.ID == 0 {
		note.CreatedAt = now
		note.UpdatedAt = now
		result, err := r.conn(ctx).ExecContext(ctx, `
			INSERT INTO notes (item_id, body, body_plain, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			note.ItemID, note.Body, note.BodyPlain, note.CreatedAt, note.UpdatedAt)
		if err != nil {
			return err
		}
		note.ID, err = result.LastInsertId()
		return err
	}

	note.UpdatedAt = now
	_, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE notes SET body = ?, body_plain = ?, updated_at = ? WHERE id = ?`,
		note.Body, note.BodyPlain, note.UpdatedAt, note.ID)
	return err
}

// SaveAnnotation inserts a PDF annotation with its searchable plain
// body.
func (r *Repository) SaveAnnotation(ctx context.Context, a *models.Annotation) error {
	a.CreatedAt = time.Now().Unix()
	a.BodyPlain = fold.Pad(fold.Fold(a.Body))
	result, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO annotations (item_id, page, body, body_plain, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ItemID, a.Page, a.Body, a.BodyPlain, a.CreatedAt)
	if err != nil {
		return err
	}
	a.ID, err = result.LastInsertId()
	return err
}

// stripMarkdown converts markdown to plain text by walking the parsed
// AST and collecting text nodes.
func stripMarkdown(markdown string) string {
	source := []byte(markdown)
	reader := text.NewReader(source)
	doc := goldmark.DefaultParser().Parse(reader)

	var sb strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.AutoLink:
			sb.Write(node.URL(source))
		}
		if _, isBlock := n.(*ast.Paragraph); isBlock {
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
