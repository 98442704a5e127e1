package secsearch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/persistence/chromem"
	"github.com/flarexio/secsearch/persistence/sqlite"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/segment"
	"github.com/flarexio/secsearch/source"
	"github.com/flarexio/secsearch/vector"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig()

	cfg.Embedding = embedding.Config{
		Provider:    embedding.ProviderHash,
		Model:       "hash",
		Device:      embedding.DeviceCPU,
		BatchSize:   8,
		Concurrency: 2,
		Dimension:   512,
	}

	cfg.Vector.Path = filepath.Join(dir, "chroma_db")
	cfg.Registry.Path = filepath.Join(dir, "metadata.sqlite")
	cfg.Registry.MaxFilings = 3

	return cfg
}

type testDeps struct {
	embedder embedding.Embedder
	db       vector.VectorDB
	index    vector.Index
	registry registry.Registry
}

func newTestDeps(t *testing.T, cfg Config) testDeps {
	t.Helper()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		t.Fatal(err)
	}

	db, err := chromem.NewChromemVectorDB(cfg.Vector)
	if err != nil {
		t.Fatal(err)
	}

	index, err := db.Index(cfg.Vector.Collection)
	if err != nil {
		t.Fatal(err)
	}

	reg, err := sqlite.NewRegistry(cfg.Registry)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })

	return testDeps{embedder, db, index, reg}
}

// words builds n sentences of ten distinct words each.
func words(prefix string, sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		if i > 0 {
			b.WriteString(" ")
		}

		for j := 0; j < 10; j++ {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s%d", prefix, i*10+j)
		}
		b.WriteString(".")
	}
	return b.String()
}

// liquidity is a section of about a hundred tokens on one topic.
func liquidity() string {
	sentence := "Liquidity and capital resources remain strong with ample cash reserves today."
	return strings.TrimSpace(strings.Repeat(sentence+" ", 9) + "Liquidity capital resources cash reserves remain strong overall at year end.")
}

func testDocument(key, ticker, form, date string) source.Document {
	return source.Document{
		FilingKey:  key,
		Ticker:     ticker,
		FormType:   form,
		FilingDate: date,
		Content: []segment.Node{
			{
				Title: "Item 1A. Risk Factors",
				Text:  words(strings.ToLower(ticker)+"risk", 60),
			},
			{
				Title: "Item 7. Liquidity",
				Text:  liquidity(),
			},
		},
	}
}

// fakeSource serves docs as the latest filing per ticker and form, with
// older filings in history.
type fakeSource struct {
	docs    map[string]source.Document
	history []source.Document
}

func (s *fakeSource) all(req source.Request) []source.Document {
	var docs []source.Document
	if doc, ok := s.docs[req.Ticker+"/"+req.FormType]; ok {
		docs = append(docs, doc)
	}

	for _, doc := range s.history {
		if doc.Ticker == req.Ticker && doc.FormType == req.FormType {
			docs = append(docs, doc)
		}
	}

	return docs
}

func (s *fakeSource) Fetch(ctx context.Context, req source.Request) (source.Document, error) {
	req = req.Normalize()

	if req.FilingKey == "" {
		doc, ok := s.docs[req.Ticker+"/"+req.FormType]
		if !ok {
			return source.Document{}, fmt.Errorf("%w: %w", source.ErrFetch, source.ErrNotFound)
		}

		return doc, nil
	}

	for _, doc := range s.all(req) {
		if doc.FilingKey == req.FilingKey {
			return doc, nil
		}
	}

	return source.Document{}, fmt.Errorf("%w: %w: %s", source.ErrFetch, source.ErrNotFound, req.FilingKey)
}

func (s *fakeSource) List(ctx context.Context, req source.Request) ([]source.Filing, error) {
	req = req.Normalize()

	var filings []source.Filing
	for _, doc := range s.all(req) {
		filings = append(filings, source.Filing{
			FilingKey:  doc.FilingKey,
			Ticker:     doc.Ticker,
			FormType:   doc.FormType,
			FilingDate: doc.FilingDate,
		})
	}

	return req.Select(filings), nil
}

// failingRegistry wraps a registry and fails every registration.
type failingRegistry struct {
	registry.Registry
}

var errRegistryDown = errors.New("registry unavailable")

func (r *failingRegistry) Register(ctx context.Context, record registry.Record) error {
	return fmt.Errorf("%w: %w", registry.ErrRegistry, errRegistryDown)
}

type failingEmbedder struct {
	embedding.Embedder
}

func (e *failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: model server unreachable", embedding.ErrEmbedding)
}
