package edgar

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/flarexio/secsearch/segment"
)

var (
	partHeading = regexp.MustCompile(`(?i)^part\s+[ivx]+\b`)
	itemHeading = regexp.MustCompile(`(?i)^item\s+\d+[a-z]?\s*[.:]`)
)

// headings longer than this are treated as body text
const maxHeadingLen = 160

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Section: true,
	atom.Article: true, atom.Blockquote: true, atom.Center: true, atom.Body: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Pre: true,
}

var skipAtoms = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Svg: true, atom.Title: true,
}

// ParseHTML converts a filing's HTML into a content tree. Heading tags and
// "PART I" / "Item 1A." style captions open nested sections, paragraphs become
// section text and tables are kept as structured rows.
func ParseHTML(r io.Reader) ([]segment.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	b := &treeBuilder{
		root:      &htmlSection{},
		hasBlocks: make(map[*html.Node]bool),
	}
	b.stack = []*htmlSection{b.root}

	b.walk(doc)

	return b.root.nodes(), nil
}

type htmlSection struct {
	level    int
	title    string
	text     []string
	table    *segment.Table
	children []*htmlSection
}

func (s *htmlSection) nodes() []segment.Node {
	var nodes []segment.Node

	if len(s.text) > 0 || s.title != "" || s.table != nil {
		node := segment.Node{
			Title: s.title,
			Text:  strings.Join(s.text, "\n"),
			Table: s.table,
		}

		for _, child := range s.children {
			node.Contents = append(node.Contents, child.nodes()...)
		}

		return []segment.Node{node}
	}

	for _, child := range s.children {
		nodes = append(nodes, child.nodes()...)
	}

	return nodes
}

type treeBuilder struct {
	root      *htmlSection
	stack     []*htmlSection
	hasBlocks map[*html.Node]bool
}

func (b *treeBuilder) top() *htmlSection {
	return b.stack[len(b.stack)-1]
}

func (b *treeBuilder) heading(level int, title string) {
	for len(b.stack) > 1 && b.top().level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}

	s := &htmlSection{level: level, title: title}
	b.top().children = append(b.top().children, s)
	b.stack = append(b.stack, s)
}

func (b *treeBuilder) text(t string) {
	if t == "" {
		return
	}

	if level := captionLevel(t); level > 0 {
		b.heading(level, t)
		return
	}

	top := b.top()
	top.text = append(top.text, t)
}

func (b *treeBuilder) table(t *segment.Table) {
	top := b.top()
	top.children = append(top.children, &htmlSection{level: top.level + 1, table: t})
}

func (b *treeBuilder) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skipAtoms[n.DataAtom] || hidden(n) {
			return
		}

		switch n.DataAtom {
		case atom.Table:
			if t := parseTable(n); t != nil {
				b.table(t)
			}
			return

		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if title := collapse(textOf(n)); title != "" {
				b.heading(headingLevel(n.DataAtom), title)
			}
			return
		}

		if blockAtoms[n.DataAtom] && !b.containsBlocks(n) {
			b.text(collapse(textOf(n)))
			return
		}
	}

	var inline strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode || (c.Type == html.ElementNode && !blockAtoms[c.DataAtom] && !skipAtoms[c.DataAtom] && !b.containsBlocks(c)) {
			inline.WriteString(textOf(c))
			inline.WriteString(" ")
			continue
		}

		b.text(collapse(inline.String()))
		inline.Reset()

		b.walk(c)
	}

	b.text(collapse(inline.String()))
}

func (b *treeBuilder) containsBlocks(n *html.Node) bool {
	if v, ok := b.hasBlocks[n]; ok {
		return v
	}

	found := false
	for c := n.FirstChild; c != nil && !found; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}

		found = blockAtoms[c.DataAtom] || b.containsBlocks(c)
	}

	b.hasBlocks[n] = found
	return found
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	default:
		return 6
	}
}

// captionLevel recognises the PART and Item captions of periodic reports.
func captionLevel(t string) int {
	if len(t) > maxHeadingLen {
		return 0
	}

	switch {
	case partHeading.MatchString(t):
		return 1
	case itemHeading.MatchString(t):
		return 2
	default:
		return 0
	}
}

func hidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "style" {
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") {
				return true
			}
		}
	}

	return false
}

func parseTable(n *html.Node) *segment.Table {
	t := &segment.Table{}

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}

			switch c.DataAtom {
			case atom.Caption:
				t.Title = collapse(textOf(c))

			case atom.Tr:
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}

					if cell.DataAtom != atom.Td && cell.DataAtom != atom.Th {
						continue
					}

					if text := collapse(textOf(cell)); text != "" {
						row = append(row, text)
					}
				}

				if len(row) > 0 {
					t.Rows = append(t.Rows, row)
				}

			default:
				visit(c)
			}
		}
	}

	visit(n)

	if len(t.Rows) == 0 {
		return nil
	}

	return t
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	if n.Type == html.ElementNode && (skipAtoms[n.DataAtom] || hidden(n)) {
		return ""
	}

	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))

		if c.Type == html.ElementNode && (c.DataAtom == atom.Br || blockAtoms[c.DataAtom]) {
			b.WriteString(" ")
		}
	}

	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
