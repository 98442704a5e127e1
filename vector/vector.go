package vector

import (
	"context"
	"errors"
)

var (
	ErrIndex       = errors.New("vector index failure")
	ErrEmptyVector = errors.New("empty vector")
	ErrInvalidTopK = errors.New("top_k must be positive")
)

const DefaultCollection = "sec_filings"

// Attribute keys stored alongside every chunk vector.
const (
	AttrDocumentID  = "document_id"
	AttrTicker      = "ticker"
	AttrFormType    = "form_type"
	AttrFilingDate  = "filing_date"
	AttrSectionPath = "section_path"
	AttrContentType = "content_type"
	AttrChunkIndex  = "chunk_index"
	AttrTokenCount  = "token_count"
)

type Config struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

type VectorDB interface {
	Index(name string) (Index, error)
}

// Index stores embedded chunks and answers nearest neighbour queries by
// cosine similarity.
type Index interface {
	// Upsert writes items, replacing any existing item with the same ID.
	Upsert(ctx context.Context, items []Item) error

	// Query returns at most topK hits ordered by similarity descending, ties
	// broken by insertion order. Every filter entry must equal the item's
	// attribute of the same key.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Hit, error)

	// DeleteByDocument removes every item of the document and reports how
	// many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	Count(ctx context.Context) (int, error)
}

type Item struct {
	ID         string            `json:"id"`
	Vector     []float32         `json:"vector"`
	Content    string            `json:"content"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Hit struct {
	ID         string            `json:"id"`
	Similarity float64           `json:"similarity"`
	Content    string            `json:"content"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
