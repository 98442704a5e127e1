package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type batchEmbedder struct {
	log       *zap.Logger
	fn        Func
	cfg       Config
	dimension atomic.Int64
}

// NewBatchEmbedder embeds texts in batches of cfg.BatchSize, running up to
// cfg.Concurrency batches at once. Every vector is L2 normalised and checked
// against the expected dimension.
func NewBatchEmbedder(fn Func, cfg Config) Embedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	e := &batchEmbedder{
		log: zap.L().With(
			zap.String("component", "embedder"),
			zap.String("provider", string(cfg.Provider)),
			zap.String("model", cfg.Model),
		),
		fn:  fn,
		cfg: cfg,
	}

	if cfg.Dimension > 0 {
		e.dimension.Store(int64(cfg.Dimension))
	}

	return e
}

func (e *batchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, ErrNoInput)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				vector, err := e.fn(ctx, e.prepare(texts[i]))
				if err != nil {
					return err
				}

				vector, err = e.finish(vector)
				if err != nil {
					return err
				}

				vectors[i] = vector
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.log.Error(err.Error(), zap.Int("texts", len(texts)))
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	return vectors, nil
}

func (e *batchEmbedder) prepare(text string) string {
	text = strings.TrimSpace(text)

	limit := e.cfg.MaxInputChars
	if limit <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit])
}

func (e *batchEmbedder) finish(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, ErrZeroVector
	}

	expected := e.dimension.Load()
	if expected == 0 {
		e.dimension.CompareAndSwap(0, int64(len(vector)))
		expected = e.dimension.Load()
	}

	if int64(len(vector)) != expected {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), expected)
	}

	return Normalize(vector)
}

func (e *batchEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *batchEmbedder) Model() string {
	return e.cfg.Model
}

// Normalize returns a unit length copy of vector.
func Normalize(vector []float32) ([]float32, error) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrZeroVector
	}

	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}

	return out, nil
}
