package search

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/kimhsiao/refnexus/internal/errors"
	"github.com/kimhsiao/refnexus/internal/fold"
)

// Compiled is the output of query compilation: a set-returning id query
// with its ordered parameter list, plus a count variant for the total.
// SQL carries no LIMIT clause; windowing is appended by the caller so
// the cacheable modes can fetch the full candidate list.
type Compiled struct {
	SQL       string
	CountSQL  string
	Args      []interface{}
	Cacheable bool

	// HasSnippet marks sub-entity queries whose rows carry an excerpt
	// column next to the item id.
	HasSnippet bool
}

// likeClause is the word-boundary LIKE predicate. The pattern starts
// with "% " so a term only matches immediately after whitespace in the
// padded column value; mid-word substrings never match.
const likeClause = ` LIKE ? ESCAPE '\'`

// likePattern builds the bound pattern for one term. LIKE wildcards in
// the term itself are escaped.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "% " + escaped + "%"
}

// termGroup is one node of the compiled predicate: a single term
// matched against an ordered column list, rendered as an OR-group.
type termGroup struct {
	columns []string
	term    string
}

func (g termGroup) render(alias string, args *[]interface{}) string {
	parts := make([]string, 0, len(g.columns))
	pattern := likePattern(g.term)
	for _, col := range g.columns {
		parts = append(parts, alias+"."+col+likeClause)
		*args = append(*args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// splitTerms resolves a query string to its term list under the given
// boolean mode. PHRASE treats the whole string as a single term.
func splitTerms(query string, mode BoolMode) ([]string, error) {
	folded := fold.Fold(query)
	if folded == "" {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "empty search query")
	}
	switch mode {
	case BoolPhrase:
		return []string{folded}, nil
	case BoolAnd, BoolOr, "":
		return strings.Fields(folded), nil
	default:
		return nil, apperrors.New(apperrors.ErrInvalidQuery,
			fmt.Sprintf("unrecognized boolean mode: %q", mode))
	}
}

// boolJoiner maps a boolean mode to its SQL join token. PHRASE yields a
// single group, so the joiner is never used for it.
func boolJoiner(mode BoolMode) string {
	if mode == BoolOr {
		return " OR "
	}
	return " AND "
}

// Compile turns a descriptor into a set-returning id query. Results are
// always ordered by item id descending. Unrecognized field types, glue
// values or boolean modes fail fast before any query executes.
func Compile(d *Descriptor) (*Compiled, error) {
	switch d.Mode {
	case ModeIDs:
		return compileIDs(d)
	case ModeNotes:
		return compileSubEntity(d, "notes")
	case ModeAnnotations:
		return compileSubEntity(d, "annotations")
	case ModeMetadata:
		return compileFreeText(d, metadataColumns)
	case ModeAnywhere:
		return compileFreeText(d, anywhereColumns)
	case ModeAdvanced:
		return compileAdvanced(d)
	default:
		return nil, apperrors.New(apperrors.ErrInvalidQuery,
			fmt.Sprintf("unrecognized query mode: %q", d.Mode))
	}
}

// scopeJoin renders the collection membership join for the given id
// column. Library scope is unscoped.
func scopeJoin(d *Descriptor, idColumn string) (string, []interface{}, error) {
	switch d.Scope {
	case ScopeLibrary, "":
		return "", nil, nil
	case ScopeClipboard:
		return "INNER JOIN clipboard cb ON cb.item_id = " + idColumn + " AND cb.user_id = ?",
			[]interface{}{d.UserID}, nil
	case ScopeProject:
		return "INNER JOIN project_items pi ON pi.item_id = " + idColumn + " AND pi.project_id = ?",
			[]interface{}{d.ProjectID}, nil
	default:
		return "", nil, apperrors.New(apperrors.ErrInvalidQuery,
			fmt.Sprintf("unrecognized collection scope: %q", d.Scope))
	}
}

func compileIDs(d *Descriptor) (*Compiled, error) {
	var ids []interface{}
	for _, token := range strings.Fields(d.Query) {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			// non-numeric tokens are dropped, matching lenient entry
			// of pasted id lists
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "id search contains no numeric ids")
	}

	join, joinArgs, err := scopeJoin(d, "i.id")
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT i.id FROM items i")
	if join != "" {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE i.id IN (")
	sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "))
	sb.WriteString(")")

	base := sb.String()
	args := append(joinArgs, ids...)
	return &Compiled{
		SQL:      base + " ORDER BY i.id DESC",
		CountSQL: countWrap(base),
		Args:     args,
	}, nil
}

func compileSubEntity(d *Descriptor, table string) (*Compiled, error) {
	terms, err := splitTerms(d.Query, d.Bool)
	if err != nil {
		return nil, err
	}

	join, joinArgs, err := scopeJoin(d, "n.item_id")
	if err != nil {
		return nil, err
	}

	args := append([]interface{}{}, joinArgs...)
	groups := make([]string, 0, len(terms))
	for _, term := range terms {
		g := termGroup{columns: []string{"body_plain"}, term: term}
		groups = append(groups, g.render("n", &args))
	}

	// One row per item regardless of how many of its notes match, so
	// the caller's LIMIT/OFFSET windows over item ids, never note rows.
	var sb strings.Builder
	sb.WriteString("SELECT n.item_id, substr(MIN(n.body), 1, 200) FROM ")
	sb.WriteString(table)
	sb.WriteString(" n")
	if join != "" {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(groups, boolJoiner(d.Bool)))
	sb.WriteString(" GROUP BY n.item_id")

	base := sb.String()
	return &Compiled{
		SQL:        base + " ORDER BY n.item_id DESC",
		CountSQL:   countWrap(base),
		Args:       args,
		HasSnippet: true,
	}, nil
}

func compileFreeText(d *Descriptor, columns []string) (*Compiled, error) {
	terms, err := splitTerms(d.Query, d.Bool)
	if err != nil {
		return nil, err
	}

	join, joinArgs, err := scopeJoin(d, "si.item_id")
	if err != nil {
		return nil, err
	}

	args := append([]interface{}{}, joinArgs...)
	groups := make([]string, 0, len(terms))
	for _, term := range terms {
		g := termGroup{columns: columns, term: term}
		groups = append(groups, g.render("si", &args))
	}

	base := freeTextBase(join) + strings.Join(groups, boolJoiner(d.Bool))
	return &Compiled{
		SQL:       base + " ORDER BY si.item_id DESC",
		CountSQL:  countWrap(base),
		Args:      args,
		Cacheable: true,
	}, nil
}

func compileAdvanced(d *Descriptor) (*Compiled, error) {
	if len(d.Fields) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "advanced search has no field queries")
	}

	join, joinArgs, err := scopeJoin(d, "si.item_id")
	if err != nil {
		return nil, err
	}

	args := append([]interface{}{}, joinArgs...)
	var predicate strings.Builder
	for i, fq := range d.Fields {
		cols, err := columnsFor(fq.Field)
		if err != nil {
			return nil, err
		}
		terms, err := splitTerms(fq.Query, fq.Bool)
		if err != nil {
			return nil, err
		}

		if i > 0 {
			// Glue composes sub-queries by plain left-to-right
			// concatenation, no grouping parentheses across fields.
			// Mixed AND/OR/NOT chains therefore evaluate strictly left
			// to right; this is deliberate and must be preserved.
			switch fq.Glue {
			case GlueAnd, "":
				predicate.WriteString(" AND ")
			case GlueOr:
				predicate.WriteString(" OR ")
			case GlueNot:
				predicate.WriteString(" AND NOT ")
			default:
				return nil, apperrors.New(apperrors.ErrInvalidGlue,
					fmt.Sprintf("unrecognized glue value: %q", fq.Glue))
			}
		}

		groups := make([]string, 0, len(terms))
		for _, term := range terms {
			g := termGroup{columns: cols, term: term}
			groups = append(groups, g.render("si", &args))
		}
		predicate.WriteString(strings.Join(groups, boolJoiner(fq.Bool)))
	}

	base := freeTextBase(join) + predicate.String()
	return &Compiled{
		SQL:       base + " ORDER BY si.item_id DESC",
		CountSQL:  countWrap(base),
		Args:      args,
		Cacheable: true,
	}, nil
}

func freeTextBase(join string) string {
	var sb strings.Builder
	sb.WriteString("SELECT si.item_id FROM search_index si")
	if join != "" {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	sb.WriteString(" WHERE ")
	return sb.String()
}

func countWrap(base string) string {
	return "SELECT COUNT(*) FROM (" + base + ")"
}
