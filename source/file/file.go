// Package file serves filings from a directory of JSON documents laid out as
// <dir>/<TICKER>/<FORM>/*.json.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flarexio/secsearch/source"
)

func NewSource(dir string) source.Source {
	return &fileSource{dir}
}

type fileSource struct {
	dir string
}

// documents loads every document of the ticker and form type.
func (s *fileSource) documents(ctx context.Context, req source.Request) ([]source.Document, error) {
	pattern := filepath.Join(s.dir, req.Ticker, formDir(req.FormType), "*.json")

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	docs := make([]source.Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := readDocument(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if doc.Ticker == "" {
			doc.Ticker = req.Ticker
		}

		if doc.FormType == "" {
			doc.FormType = req.FormType
		}

		if doc.FilingKey == "" {
			doc.FilingKey = strings.TrimSuffix(filepath.Base(path), ".json")
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Fetch returns the named document, or the one with the latest filing date.
func (s *fileSource) Fetch(ctx context.Context, req source.Request) (source.Document, error) {
	req = req.Normalize()

	docs, err := s.documents(ctx, req)
	if err != nil {
		return source.Document{}, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}

	var (
		latest source.Document
		found  bool
	)

	for _, doc := range docs {
		if req.FilingKey != "" {
			if doc.FilingKey == req.FilingKey {
				return doc, nil
			}
			continue
		}

		if !found || doc.FilingDate > latest.FilingDate {
			latest = doc
			found = true
		}
	}

	if !found {
		return source.Document{}, fmt.Errorf("%w: %w: %s %s %s", source.ErrFetch, source.ErrNotFound,
			req.Ticker, req.FormType, req.FilingKey)
	}

	return latest, nil
}

func (s *fileSource) List(ctx context.Context, req source.Request) ([]source.Filing, error) {
	req = req.Normalize()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	docs, err := s.documents(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}

	filings := make([]source.Filing, len(docs))
	for i, doc := range docs {
		filings[i] = source.Filing{
			FilingKey:  doc.FilingKey,
			Ticker:     doc.Ticker,
			FormType:   doc.FormType,
			FilingDate: doc.FilingDate,
		}
	}

	return req.Select(filings), nil
}

func readDocument(path string) (source.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return source.Document{}, err
	}
	defer f.Close()

	var doc source.Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return source.Document{}, err
	}

	return doc, nil
}

// formDir maps a form type to its directory name; "10-K/A" becomes "10-K_A".
func formDir(formType string) string {
	return strings.ReplaceAll(formType, "/", "_")
}
