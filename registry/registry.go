package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRegistry         = errors.New("registry failure")
	ErrDuplicateFiling  = errors.New("filing already registered")
	ErrCapacityExceeded = errors.New("filing capacity exceeded")
	ErrFilingNotFound   = errors.New("filing not found")
)

const DefaultMaxFilings = 20

type Config struct {
	Path       string `yaml:"path"`
	MaxFilings int    `yaml:"max_filings"`
}

// CapacityError reports a registration refused because the registry is full.
type CapacityError struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d/%d filings", ErrCapacityExceeded.Error(), e.Current, e.Max)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

type Record struct {
	FilingKey  string    `json:"filing_key"`
	Ticker     string    `json:"ticker"`
	FormType   string    `json:"form_type"`
	FilingDate string    `json:"filing_date"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

type Filter struct {
	Ticker   string `json:"ticker,omitempty" form:"ticker"`
	FormType string `json:"form_type,omitempty" form:"form_type"`
}

func (f Filter) Normalize() Filter {
	return Filter{
		Ticker:   strings.ToUpper(strings.TrimSpace(f.Ticker)),
		FormType: strings.ToUpper(strings.TrimSpace(f.FormType)),
	}
}

// Registry is the system of record for ingested filings.
type Registry interface {
	// Register inserts the record. It fails with ErrDuplicateFiling when the
	// key or the (ticker, form type, filing date) triple is already present,
	// and with a *CapacityError when the registry is full.
	Register(ctx context.Context, record Record) error

	// Remove reports whether a record was deleted.
	Remove(ctx context.Context, filingKey string) (bool, error)

	Get(ctx context.Context, filingKey string) (Record, error)
	Exists(ctx context.Context, filingKey string) (bool, error)

	// List returns matching records ordered by ingestion time, oldest first.
	List(ctx context.Context, filter Filter) ([]Record, error)

	Count(ctx context.Context, filter Filter) (int, error)
	MaxFilings() int
	Close() error
}
