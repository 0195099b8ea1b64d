package search

import (
	"fmt"

	apperrors "github.com/kimhsiao/refnexus/internal/errors"
)

// FieldType names one searchable field of the advanced mode.
type FieldType string

const (
	FieldTitle      FieldType = "title"
	FieldAbstract   FieldType = "abstract"
	FieldAuthor     FieldType = "author"
	FieldEditor     FieldType = "editor"
	FieldKeyword    FieldType = "keyword"
	FieldCollection FieldType = "collection"
	FieldPublisher  FieldType = "publisher"
	FieldPlace      FieldType = "place"
	FieldCustom1    FieldType = "custom1"
	FieldCustom2    FieldType = "custom2"
	FieldCustom3    FieldType = "custom3"
	FieldCustom4    FieldType = "custom4"
	FieldCustom5    FieldType = "custom5"
	FieldCustom6    FieldType = "custom6"
	FieldCustom7    FieldType = "custom7"
	FieldCustom8    FieldType = "custom8"
)

// fieldColumns maps each field type to the ordered list of index shadow
// columns it searches. Fields covering more than one column (author
// also matches editors, abstract also matches titles) expand to an
// inner OR-group. Built once at startup; never derived from request
// strings.
var fieldColumns = map[FieldType][]string{
	FieldTitle:      {"title"},
	FieldAbstract:   {"title", "abstract"},
	FieldAuthor:     {"authors", "editors"},
	FieldEditor:     {"editors"},
	FieldKeyword:    {"keywords"},
	FieldCollection: {"collection"},
	FieldPublisher:  {"publisher"},
	FieldPlace:      {"place"},
	FieldCustom1:    {"custom1"},
	FieldCustom2:    {"custom2"},
	FieldCustom3:    {"custom3"},
	FieldCustom4:    {"custom4"},
	FieldCustom5:    {"custom5"},
	FieldCustom6:    {"custom6"},
	FieldCustom7:    {"custom7"},
	FieldCustom8:    {"custom8"},
}

// metadataColumns is the fixed, ordered list of field columns searched
// by the metadata mode.
var metadataColumns = []string{
	"title", "abstract", "authors", "editors", "keywords", "collection",
	"publisher", "place",
	"custom1", "custom2", "custom3", "custom4",
	"custom5", "custom6", "custom7", "custom8",
}

// anywhereColumns additionally includes the extracted document text.
var anywhereColumns = append(append([]string{}, metadataColumns...), "full_text")

// columnsFor resolves a field type to its shadow columns, failing fast
// on an unrecognized field.
func columnsFor(field FieldType) ([]string, error) {
	cols, ok := fieldColumns[field]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidField,
			fmt.Sprintf("unrecognized field type: %q", field))
	}
	return cols, nil
}
