package chromem

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/secsearch/vector"
)

// attrSeq records when an ID was first written, used to break similarity ties.
const attrSeq = "_seq"

var errQueryByText = errors.New("text queries are not supported, embed the query first")

func NewChromemVectorDB(cfg vector.Config) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", vector.ErrIndex, err)
		}

		db = d
	}

	return &chromemVectorDB{db}, nil
}

type chromemVectorDB struct {
	db *chromem.DB
}

func (v *chromemVectorDB) Index(name string) (vector.Index, error) {
	if name == "" {
		name = vector.DefaultCollection
	}

	// Vectors are always supplied by the caller.
	noEmbedding := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errQueryByText
	}

	c, err := v.db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndex, err)
	}

	return &index{collection: c}, nil
}

type index struct {
	collection *chromem.Collection

	// mu serialises writes so that counts observed around a delete are exact.
	mu      sync.RWMutex
	lastSeq atomic.Int64
}

func (idx *index) Upsert(ctx context.Context, items []vector.Item) error {
	if len(items) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	docs := make([]chromem.Document, len(items))
	for i, item := range items {
		if len(item.Vector) == 0 {
			return fmt.Errorf("%w: %w: %s", vector.ErrIndex, vector.ErrEmptyVector, item.ID)
		}

		metadata := make(map[string]string, len(item.Attributes)+1)
		maps.Copy(metadata, item.Attributes)
		metadata[attrSeq] = idx.seqFor(ctx, item.ID)

		docs[i] = chromem.Document{
			ID:        item.ID,
			Metadata:  metadata,
			Embedding: item.Vector,
			Content:   item.Content,
		}
	}

	if err := idx.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndex, err)
	}

	return nil
}

// seqFor keeps the sequence of an existing ID so that re-upserting does not
// move it behind items written after it.
func (idx *index) seqFor(ctx context.Context, id string) string {
	if existing, err := idx.collection.GetByID(ctx, id); err == nil {
		if seq, ok := existing.Metadata[attrSeq]; ok {
			return seq
		}
	}

	for {
		last := idx.lastSeq.Load()

		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}

		if idx.lastSeq.CompareAndSwap(last, next) {
			return fmt.Sprintf("%020d", next)
		}
	}
}

func (idx *index) Query(ctx context.Context, v []float32, topK int, filter map[string]string) ([]vector.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndex, vector.ErrInvalidTopK)
	}

	if len(v) == 0 {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndex, vector.ErrEmptyVector)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := idx.collection.Count()
	if count == 0 {
		return []vector.Hit{}, nil
	}

	var where map[string]string
	for key, value := range filter {
		if value == "" {
			continue
		}

		if where == nil {
			where = make(map[string]string)
		}
		where[key] = value
	}

	// chromem picks arbitrarily among equal similarities at its cutoff, so
	// rank every candidate and truncate after the sequence tie-break.
	results, err := idx.collection.QueryEmbedding(ctx, v, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndex, err)
	}

	ranked := make([]rankedHit, len(results))
	for i, result := range results {
		attributes := make(map[string]string, len(result.Metadata))
		for key, value := range result.Metadata {
			if key == attrSeq {
				ranked[i].seq, _ = strconv.ParseInt(value, 10, 64)
				continue
			}

			attributes[key] = value
		}

		ranked[i].hit = vector.Hit{
			ID:         result.ID,
			Similarity: float64(result.Similarity),
			Content:    result.Content,
			Attributes: attributes,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].hit.Similarity != ranked[j].hit.Similarity {
			return ranked[i].hit.Similarity > ranked[j].hit.Similarity
		}

		return ranked[i].seq < ranked[j].seq
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	hits := make([]vector.Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = r.hit
	}

	return hits, nil
}

type rankedHit struct {
	hit vector.Hit
	seq int64
}

func (idx *index) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	before := idx.collection.Count()
	if before == 0 {
		return 0, nil
	}

	where := map[string]string{
		vector.AttrDocumentID: documentID,
	}

	if err := idx.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("%w: %w", vector.ErrIndex, err)
	}

	return before - idx.collection.Count(), nil
}

func (idx *index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.collection.Count(), nil
}
