// Package segment flattens a filing's nested content tree into an ordered
// list of labeled sections.
package segment

import (
	"errors"
	"strings"
)

var (
	ErrParse         = errors.New("parse failure")
	ErrEmptyDocument = errors.New("empty document")
	ErrNoSections    = errors.New("no sections extracted")
)

const (
	PathSeparator = " > "
	RootLabel     = "(root)"
)

type ContentType string

const (
	ContentTypeText      ContentType = "text"
	ContentTypeTextSmall ContentType = "textsmall"
	ContentTypeTable     ContentType = "table"
)

// Node is one element of a raw document: an optional heading, body text,
// small print, an optional table and ordered children.
type Node struct {
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	TextSmall string `json:"textsmall,omitempty"`
	Table     *Table `json:"table,omitempty"`
	Contents  []Node `json:"contents,omitempty"`
}

type Table struct {
	Title     string     `json:"title,omitempty"`
	Preamble  string     `json:"preamble,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Footnotes []string   `json:"footnotes,omitempty"`
	Postamble string     `json:"postamble,omitempty"`
}

// Format renders the table as newline separated parts with pipe delimited rows.
func (t *Table) Format() string {
	if t == nil {
		return ""
	}

	var parts []string

	if t.Title != "" {
		parts = append(parts, t.Title)
	}

	if t.Preamble != "" {
		parts = append(parts, t.Preamble)
	}

	for _, row := range t.Rows {
		parts = append(parts, strings.Join(row, " | "))
	}

	parts = append(parts, t.Footnotes...)

	if t.Postamble != "" {
		parts = append(parts, t.Postamble)
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

type Section struct {
	DocumentID  string      `json:"document_id"`
	Path        []string    `json:"path"`
	OrderIndex  int         `json:"order_index"`
	ContentType ContentType `json:"content_type"`
	Text        string      `json:"text"`
}

func (s Section) PathString() string {
	return JoinPath(s.Path)
}

func JoinPath(path []string) string {
	if len(path) == 0 {
		return RootLabel
	}

	return strings.Join(path, PathSeparator)
}

func SplitPath(path string) []string {
	if path == "" || path == RootLabel {
		return []string{RootLabel}
	}

	return strings.Split(path, PathSeparator)
}

// Segment walks the content tree depth first and returns its non-blank
// sections in document order.
func Segment(documentID string, nodes []Node) ([]Section, error) {
	if len(nodes) == 0 {
		return nil, errors.Join(ErrParse, ErrEmptyDocument)
	}

	w := &walker{documentID: documentID}
	for _, node := range nodes {
		w.walk(node, nil)
	}

	if len(w.sections) == 0 {
		return nil, errors.Join(ErrParse, ErrNoSections)
	}

	return w.sections, nil
}

type walker struct {
	documentID string
	sections   []Section
}

func (w *walker) walk(node Node, path []string) {
	if title := strings.TrimSpace(node.Title); title != "" {
		next := make([]string, len(path), len(path)+1)
		copy(next, path)
		path = append(next, title)
	}

	w.emit(path, ContentTypeText, node.Text)
	w.emit(path, ContentTypeTextSmall, node.TextSmall)
	w.emit(path, ContentTypeTable, node.Table.Format())

	for _, child := range node.Contents {
		w.walk(child, path)
	}
}

func (w *walker) emit(path []string, contentType ContentType, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if len(path) == 0 {
		path = []string{RootLabel}
	}

	w.sections = append(w.sections, Section{
		DocumentID:  w.documentID,
		Path:        path,
		OrderIndex:  len(w.sections),
		ContentType: contentType,
		Text:        text,
	})
}
