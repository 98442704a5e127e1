package edgar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/secsearch/segment"
)

const sampleFiling = `<!DOCTYPE html>
<html>
<head><title>aapl-20240928</title><style>p { margin: 0 }</style></head>
<body>
<div style="display:none"><span>hidden xbrl header</span></div>
<p>Apple Inc. annual report.</p>
<div><span style="font-weight:bold">PART I</span></div>
<div><span style="font-weight:bold">Item 1A.</span> <span>Risk Factors</span></div>
<p>The Company's operations are subject to <b>global</b> supply chain risk.</p>
<p>Competition is intense.</p>
<h3>Macroeconomic conditions</h3>
<div><p>Inflation may&nbsp;affect demand.</p></div>
<div><span>Item 7.</span> <span>Management's Discussion and Analysis</span></div>
<table>
  <tr><th>Segment</th><th>2024</th><th></th></tr>
  <tr><td>Americas</td><td>$ 167,045</td></tr>
</table>
<div><span>PART II</span></div>
<p>Other information.</p>
</body>
</html>`

func TestParseHTML(t *testing.T) {
	assert := assert.New(t)

	nodes, err := ParseHTML(strings.NewReader(sampleFiling))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	sections, err := segment.Segment("doc", nodes)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	byPath := make(map[string][]segment.Section)
	for _, s := range sections {
		byPath[s.PathString()] = append(byPath[s.PathString()], s)
	}

	root := byPath["(root)"]
	if assert.Len(root, 1) {
		assert.Equal("Apple Inc. annual report.", root[0].Text)
	}

	risk := byPath["PART I > Item 1A. Risk Factors"]
	if assert.Len(risk, 1) {
		assert.Contains(risk[0].Text, "subject to global supply chain risk.")
		assert.Contains(risk[0].Text, "Competition is intense.")
	}

	macro := byPath["PART I > Item 1A. Risk Factors > Macroeconomic conditions"]
	if assert.Len(macro, 1) {
		assert.Equal("Inflation may affect demand.", macro[0].Text)
	}

	mdna := byPath["PART I > Item 7. Management's Discussion and Analysis"]
	if assert.Len(mdna, 1) {
		assert.Equal(segment.ContentTypeTable, mdna[0].ContentType)
		assert.Equal("Segment | 2024\nAmericas | $ 167,045", mdna[0].Text)
	}

	other := byPath["PART II"]
	if assert.Len(other, 1) {
		assert.Equal("Other information.", other[0].Text)
	}

	for _, s := range sections {
		assert.NotContains(s.Text, "hidden xbrl header")
		assert.NotContains(s.Text, "margin")
	}
}

func TestCaptionLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1, captionLevel("PART II"))
	assert.Equal(1, captionLevel("Part I - Financial Information"))
	assert.Equal(2, captionLevel("Item 1A. Risk Factors"))
	assert.Equal(2, captionLevel("ITEM 7: MD&A"))
	assert.Equal(0, captionLevel("Items discussed below."))
	assert.Equal(0, captionLevel("Partnerships are important."))
	assert.Equal(0, captionLevel("Item 1. "+strings.Repeat("long ", 50)))
}
