package secsearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/segment"
	"github.com/flarexio/secsearch/vector"
)

// SearchEngine answers natural language queries over registered filings.
type SearchEngine struct {
	log      *zap.Logger
	cfg      SearchConfig
	embedder embedding.Embedder
	index    vector.Index
	registry registry.Registry
}

func NewSearchEngine(cfg SearchConfig, embedder embedding.Embedder, index vector.Index, reg registry.Registry) *SearchEngine {
	return &SearchEngine{
		log:      zap.L().With(zap.String("component", "search")),
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		registry: reg,
	}
}

// Search returns at most TopK results by descending similarity. Hits below
// the minimum similarity and hits whose filing is not registered are dropped
// without backfilling.
func (e *SearchEngine) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	topK := q.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	minSimilarity := e.cfg.MinSimilarity
	if q.MinSimilarity != nil {
		minSimilarity = *q.MinSimilarity
	}

	filter := make(map[string]string)

	if q.Ticker != "" {
		filter[vector.AttrTicker] = strings.ToUpper(strings.TrimSpace(q.Ticker))
	}

	if q.FormType != "" {
		form, err := ParseFormType(q.FormType)
		if err != nil {
			return nil, err
		}

		filter[vector.AttrFormType] = string(form)
	}

	if q.FilingKey != "" {
		filter[vector.AttrDocumentID] = q.FilingKey
	}

	vectors, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Query(ctx, vectors[0], topK, filter)
	if err != nil {
		return nil, err
	}

	filings := make(map[string]*registry.Record)

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < minSimilarity {
			continue
		}

		key := hit.Attributes[vector.AttrDocumentID]

		filing, ok := filings[key]
		if !ok {
			record, err := e.registry.Get(ctx, key)
			switch {
			case err == nil:
				filing = &record

			case errors.Is(err, ErrFilingNotFound):
				e.log.Debug("dropped orphan hit", zap.String("chunk_id", hit.ID), zap.String("filing_key", key))

			default:
				return nil, fmt.Errorf("resolving filing %s: %w", key, err)
			}

			filings[key] = filing
		}

		if filing == nil {
			continue
		}

		// -1 marks a chunk whose stored index is unreadable
		index, err := strconv.Atoi(hit.Attributes[vector.AttrChunkIndex])
		if err != nil {
			e.log.Debug("invalid chunk index",
				zap.String("chunk_id", hit.ID),
				zap.String("value", hit.Attributes[vector.AttrChunkIndex]),
			)

			index = -1
		}

		results = append(results, SearchResult{
			ChunkID:     hit.ID,
			Text:        hit.Content,
			Similarity:  hit.Similarity,
			FilingKey:   filing.FilingKey,
			Ticker:      filing.Ticker,
			FormType:    filing.FormType,
			FilingDate:  filing.FilingDate,
			SectionPath: hit.Attributes[vector.AttrSectionPath],
			ContentType: segment.ContentType(hit.Attributes[vector.AttrContentType]),
			ChunkIndex:  index,
		})

		if len(results) == topK {
			break
		}
	}

	return results, nil
}
