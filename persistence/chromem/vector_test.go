package chromem

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/secsearch/vector"
)

func newTestIndex(t *testing.T, persistent bool) vector.Index {
	cfg := vector.Config{
		Persistent: persistent,
		Collection: "test_filings",
	}

	if persistent {
		cfg.Path = t.TempDir()
	}

	db, err := NewChromemVectorDB(cfg)
	if err != nil {
		t.Fatal(err)
	}

	idx, err := db.Index(cfg.Collection)
	if err != nil {
		t.Fatal(err)
	}

	return idx
}

func item(id, doc, ticker string, v ...float32) vector.Item {
	return vector.Item{
		ID:      id,
		Vector:  v,
		Content: "content of " + id,
		Attributes: map[string]string{
			vector.AttrDocumentID: doc,
			vector.AttrTicker:     ticker,
		},
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, true)

	items := []vector.Item{
		item("a_0000", "a", "AAPL", 1, 0, 0),
		item("a_0001", "a", "AAPL", 0, 1, 0),
	}

	assert.NoError(idx.Upsert(ctx, items))
	assert.NoError(idx.Upsert(ctx, items))

	count, err := idx.Count(ctx)
	assert.NoError(err)
	assert.Equal(2, count)
}

func TestQueryOrderingAndFilter(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, false)

	err := idx.Upsert(ctx, []vector.Item{
		item("a_0000", "a", "AAPL", 1, 0, 0),
		item("a_0001", "a", "AAPL", 1, 1, 0),
		item("m_0000", "m", "MSFT", 1, 0, 0),
		item("m_0001", "m", "MSFT", 0, 0, 1),
	})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(hits, 4)

	// equal similarity keeps insertion order
	assert.Equal("a_0000", hits[0].ID)
	assert.Equal("m_0000", hits[1].ID)
	assert.Equal("a_0001", hits[2].ID)
	assert.Equal("m_0001", hits[3].ID)

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(hits[i-1].Similarity, hits[i].Similarity)
	}

	assert.InDelta(1.0, hits[0].Similarity, 1e-5)
	assert.NotContains(hits[0].Attributes, attrSeq)
	assert.Equal("AAPL", hits[0].Attributes[vector.AttrTicker])

	filtered, err := idx.Query(ctx, []float32{1, 0, 0}, 10, map[string]string{
		vector.AttrTicker: "MSFT",
	})
	assert.NoError(err)
	assert.Len(filtered, 2)
	for _, hit := range filtered {
		assert.Equal("MSFT", hit.Attributes[vector.AttrTicker])
	}

	top, err := idx.Query(ctx, []float32{1, 0, 0}, 1, nil)
	assert.NoError(err)
	assert.Len(top, 1)
}

func TestReupsertKeepsOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, false)

	assert.NoError(idx.Upsert(ctx, []vector.Item{item("first", "a", "AAPL", 1, 0)}))
	assert.NoError(idx.Upsert(ctx, []vector.Item{item("second", "a", "AAPL", 1, 0)}))
	assert.NoError(idx.Upsert(ctx, []vector.Item{item("first", "a", "AAPL", 1, 0)}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 2, nil)
	assert.NoError(err)
	assert.Equal("first", hits[0].ID)
	assert.Equal("second", hits[1].ID)
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, false)

	items := make([]vector.Item, 50)
	for i := range items {
		items[i] = item(fmt.Sprintf("a_%04d", i), "a", "AAPL", 1, 0)
	}

	assert.NoError(idx.Upsert(ctx, items))

	for i := 0; i < 10; i++ {
		hits, err := idx.Query(ctx, []float32{1, 0}, 3, nil)
		assert.NoError(err)

		if assert.Len(hits, 3) {
			assert.Equal("a_0000", hits[0].ID)
			assert.Equal("a_0001", hits[1].ID)
			assert.Equal("a_0002", hits[2].ID)
		}
	}

	hits, err := idx.Query(ctx, []float32{1, 0}, 3, map[string]string{vector.AttrTicker: "AAPL"})
	assert.NoError(err)
	if assert.Len(hits, 3) {
		assert.Equal("a_0000", hits[0].ID)
	}
}

func TestDeleteByDocument(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, false)

	n, err := idx.DeleteByDocument(ctx, "missing")
	assert.NoError(err)
	assert.Equal(0, n)

	err = idx.Upsert(ctx, []vector.Item{
		item("a_0000", "a", "AAPL", 1, 0),
		item("a_0001", "a", "AAPL", 0, 1),
		item("m_0000", "m", "MSFT", 1, 1),
	})
	assert.NoError(err)

	n, err = idx.DeleteByDocument(ctx, "a")
	assert.NoError(err)
	assert.Equal(2, n)

	n, err = idx.DeleteByDocument(ctx, "a")
	assert.NoError(err)
	assert.Equal(0, n)

	count, _ := idx.Count(ctx)
	assert.Equal(1, count)
}

func TestQueryEmptyIndex(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	idx := newTestIndex(t, false)

	hits, err := idx.Query(ctx, []float32{1, 0}, 5, nil)
	assert.NoError(err)
	assert.Empty(hits)

	_, err = idx.Query(ctx, []float32{1, 0}, 0, nil)
	assert.ErrorIs(err, vector.ErrIndex)

	err = idx.Upsert(ctx, []vector.Item{{ID: "x"}})
	assert.ErrorIs(err, vector.ErrEmptyVector)
}
