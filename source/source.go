package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flarexio/secsearch/segment"
)

var (
	ErrFetch          = errors.New("fetch failure")
	ErrNotFound       = errors.New("no matching filing found")
	ErrInvalidRequest = errors.New("invalid filing selection")
)

const DateLayout = "2006-01-02"

// Request selects filings of one form type for a ticker. FilingKey names a
// single filing. Count, Year and the inclusive StartDate/EndDate range
// narrow a listing; a zero Count lists every match.
type Request struct {
	Ticker    string `json:"ticker"`
	FormType  string `json:"form_type"`
	FilingKey string `json:"filing_key,omitempty"`
	Count     int    `json:"count,omitempty"`
	Year      int    `json:"year,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func (r Request) Normalize() Request {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	r.FormType = strings.ToUpper(strings.TrimSpace(r.FormType))
	r.FilingKey = strings.TrimSpace(r.FilingKey)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	return r
}

// Selective reports whether the request asks for more than the latest
// filing.
func (r Request) Selective() bool {
	return r.Count > 0 || r.Year != 0 || r.StartDate != "" || r.EndDate != ""
}

func (r Request) Validate() error {
	if r.Count < 0 {
		return fmt.Errorf("%w: count %d must not be negative", ErrInvalidRequest, r.Count)
	}

	if r.Year < 0 || r.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidRequest, r.Year)
	}

	var start, end time.Time
	if r.StartDate != "" {
		t, err := time.Parse(DateLayout, r.StartDate)
		if err != nil {
			return fmt.Errorf("%w: start date %q: %w", ErrInvalidRequest, r.StartDate, err)
		}
		start = t
	}

	if r.EndDate != "" {
		t, err := time.Parse(DateLayout, r.EndDate)
		if err != nil {
			return fmt.Errorf("%w: end date %q: %w", ErrInvalidRequest, r.EndDate, err)
		}
		end = t
	}

	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest, r.EndDate, r.StartDate)
	}

	return nil
}

// Matches reports whether a filing date satisfies the year and date range.
// Dates are ISO formatted, so they compare as strings.
func (r Request) Matches(filingDate string) bool {
	if r.Year != 0 && !strings.HasPrefix(filingDate, strconv.Itoa(r.Year)+"-") {
		return false
	}

	if r.StartDate != "" && filingDate < r.StartDate {
		return false
	}

	if r.EndDate != "" && filingDate > r.EndDate {
		return false
	}

	return true
}

// Select filters filings by the request, newest first, capped at Count.
func (r Request) Select(filings []Filing) []Filing {
	selected := make([]Filing, 0, len(filings))
	for _, f := range filings {
		if r.Matches(f.FilingDate) {
			selected = append(selected, f)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].FilingDate > selected[j].FilingDate
	})

	if r.Count > 0 && len(selected) > r.Count {
		selected = selected[:r.Count]
	}

	return selected
}

// Filing identifies a filing available from a source.
type Filing struct {
	FilingKey  string `json:"filing_key"`
	Ticker     string `json:"ticker"`
	FormType   string `json:"form_type"`
	FilingDate string `json:"filing_date"`
}

// Document is a raw filing: its identity plus the nested content tree.
type Document struct {
	FilingKey  string         `json:"filing_key"`
	Ticker     string         `json:"ticker"`
	FormType   string         `json:"form_type"`
	FilingDate string         `json:"filing_date"`
	Content    []segment.Node `json:"content"`
}

type Source interface {
	// Fetch returns the filing named by FilingKey, or the latest filing of
	// the form type for the ticker.
	Fetch(ctx context.Context, req Request) (Document, error)

	// List returns the filings matching the request, newest first.
	List(ctx context.Context, req Request) ([]Filing, error)
}
