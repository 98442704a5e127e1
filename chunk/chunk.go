// Package chunk splits sections into token bounded chunks.
//
// Tokens are whitespace separated words. Sentence boundaries are preferred
// and a sentence longer than the limit is hard split at word boundaries, so
// every chunk stays within the limit and the chunks of a section,
// concatenated in order, reproduce the section text exactly.
package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/flarexio/secsearch/segment"
)

const DefaultTokenLimit = 500

var (
	ErrInvalidTokenLimit = errors.New("token limit must be positive")
	ErrNoSections        = errors.New("no sections to chunk")
)

type Chunk struct {
	ID          string              `json:"id"`
	DocumentID  string              `json:"document_id"`
	SectionPath string              `json:"section_path"`
	ContentType segment.ContentType `json:"content_type"`
	Index       int                 `json:"index"`
	Text        string              `json:"text"`
	TokenCount  int                 `json:"token_count"`
}

// MakeID derives the stable chunk identifier from the document and the
// chunk's position within it.
func MakeID(documentID string, index int) string {
	return fmt.Sprintf("%s_%04d", documentID, index)
}

// CountTokens reports the number of whitespace separated words in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

type Chunker struct {
	tokenLimit int
}

func NewChunker(tokenLimit int) (*Chunker, error) {
	if tokenLimit <= 0 {
		return nil, ErrInvalidTokenLimit
	}

	return &Chunker{tokenLimit}, nil
}

func (c *Chunker) TokenLimit() int {
	return c.tokenLimit
}

// Chunk splits the sections of one document. Chunk indices run across the
// whole document in section order.
func (c *Chunker) Chunk(sections []segment.Section) ([]Chunk, error) {
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	var chunks []Chunk
	for _, section := range sections {
		for _, text := range c.split(section.Text) {
			index := len(chunks)

			chunks = append(chunks, Chunk{
				ID:          MakeID(section.DocumentID, index),
				DocumentID:  section.DocumentID,
				SectionPath: section.PathString(),
				ContentType: section.ContentType,
				Index:       index,
				Text:        text,
				TokenCount:  CountTokens(text),
			})
		}
	}

	if len(chunks) == 0 {
		return nil, ErrNoSections
	}

	return chunks, nil
}

func (c *Chunker) split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if CountTokens(text) <= c.tokenLimit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		tokens  int
	)

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
			tokens = 0
		}
	}

	for _, unit := range c.units(text) {
		n := CountTokens(unit)

		if tokens > 0 && tokens+n > c.tokenLimit {
			flush()
		}

		current.WriteString(unit)
		tokens += n
	}

	flush()

	return parts
}

// units breaks text into sentences, each keeping its trailing whitespace,
// and hard splits any sentence that exceeds the token limit.
func (c *Chunker) units(text string) []string {
	var sentences []string

	start := 0
	for _, end := range sentenceEnds(text) {
		sentences = append(sentences, text[start:end])
		start = end
	}

	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	units := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		if CountTokens(sentence) <= c.tokenLimit {
			units = append(units, sentence)
			continue
		}

		units = append(units, c.hardSplit(sentence)...)
	}

	return units
}

func (c *Chunker) hardSplit(sentence string) []string {
	words := wordStarts(sentence)

	var pieces []string

	start := 0
	for i := c.tokenLimit; i < len(words); i += c.tokenLimit {
		end := words[i]
		pieces = append(pieces, sentence[start:end])
		start = end
	}

	return append(pieces, sentence[start:])
}

// wordStarts returns the byte offset of every word, using the same notion
// of whitespace as strings.Fields.
func wordStarts(text string) []int {
	var starts []int

	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			starts = append(starts, i)
		}

		inWord = !space
	}

	return starts
}

// sentenceEnds returns the byte offsets just past each run of terminal
// punctuation and the whitespace that follows it.
func sentenceEnds(text string) []int {
	var ends []int

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !isTerminal(r) {
				break
			}
			i += size
		}

		spaced := false
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
			spaced = true
		}

		if spaced {
			ends = append(ends, i)
		}
	}

	return ends
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
