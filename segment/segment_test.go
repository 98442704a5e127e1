package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	assert := assert.New(t)

	nodes := []Node{
		{Text: "Cover page."},
		{
			Title: "Part I",
			Contents: []Node{
				{
					Title:     "Item 1A. Risk Factors",
					Text:      "  Competition is intense.  ",
					TextSmall: "Forward looking statements.",
				},
				{
					Title: "Item 7. MD&A",
					Table: &Table{
						Title: "Revenue",
						Rows: [][]string{
							{"Segment", "2024"},
							{"Cloud", "100"},
						},
						Footnotes: []string{"(1) Unaudited."},
					},
				},
			},
		},
		{Title: "Empty", Text: "   "},
	}

	sections, err := Segment("0000320193-24-000123", nodes)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(sections, 4)

	assert.Equal("(root)", sections[0].PathString())
	assert.Equal(ContentTypeText, sections[0].ContentType)

	assert.Equal("Part I > Item 1A. Risk Factors", sections[1].PathString())
	assert.Equal("Competition is intense.", sections[1].Text)

	assert.Equal(ContentTypeTextSmall, sections[2].ContentType)
	assert.Equal("Part I > Item 1A. Risk Factors", sections[2].PathString())

	assert.Equal(ContentTypeTable, sections[3].ContentType)
	assert.Equal("Revenue\nSegment | 2024\nCloud | 100\n(1) Unaudited.", sections[3].Text)

	for i, s := range sections {
		assert.Equal(i, s.OrderIndex)
		assert.Equal("0000320193-24-000123", s.DocumentID)
	}
}

func TestSegmentEmpty(t *testing.T) {
	assert := assert.New(t)

	_, err := Segment("doc", nil)
	assert.ErrorIs(err, ErrParse)
	assert.ErrorIs(err, ErrEmptyDocument)

	_, err = Segment("doc", []Node{{Title: "Only a heading"}})
	assert.ErrorIs(err, ErrParse)
	assert.ErrorIs(err, ErrNoSections)
}

func TestSplitPath(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"(root)"}, SplitPath(""))
	assert.Equal([]string{"Part I", "Item 1"}, SplitPath("Part I > Item 1"))
	assert.Equal("Part I > Item 1", JoinPath(SplitPath("Part I > Item 1")))
}
