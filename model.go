package secsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/segment"
	"github.com/flarexio/secsearch/source"
	"github.com/flarexio/secsearch/vector"
)

var (
	ErrFetch            = source.ErrFetch
	ErrParse            = segment.ErrParse
	ErrEmbedding        = embedding.ErrEmbedding
	ErrIndex            = vector.ErrIndex
	ErrRegistry         = registry.ErrRegistry
	ErrDuplicateFiling  = registry.ErrDuplicateFiling
	ErrCapacityExceeded = registry.ErrCapacityExceeded
	ErrFilingNotFound   = registry.ErrFilingNotFound
	ErrInvalidSelection = source.ErrInvalidRequest

	ErrEmptyQuery      = errors.New("search query must not be empty")
	ErrInvalidTicker   = errors.New("invalid ticker")
	ErrInvalidFormType = errors.New("unsupported form type")
	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrSourceNotSet    = errors.New("filing source not set")

	// ErrBadRequest marks an input error reported by a remote service.
	ErrBadRequest = errors.New("bad request")
)

type CapacityError = registry.CapacityError

type FormType string

const (
	FormType10K FormType = "10-K"
	FormType10Q FormType = "10-Q"
)

var SupportedForms = []FormType{FormType10K, FormType10Q}

func ParseFormType(s string) (FormType, error) {
	form := FormType(strings.ToUpper(strings.TrimSpace(s)))

	for _, supported := range SupportedForms {
		if form == supported {
			return form, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidFormType, s)
}

// ParseFormTypes accepts a comma separated list such as "10-K,10-q" and
// returns the distinct forms in the given order.
func ParseFormTypes(s string) ([]FormType, error) {
	var forms []FormType

	seen := make(map[FormType]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}

		form, err := ParseFormType(part)
		if err != nil {
			return nil, err
		}

		if !seen[form] {
			seen[form] = true
			forms = append(forms, form)
		}
	}

	if len(forms) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormType, s)
	}

	return forms, nil
}

func NormalizeTicker(s string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(s))
	if ticker == "" || strings.ContainsAny(ticker, " \t\n/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, s)
	}

	return ticker, nil
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// State is a step of the ingestion pipeline. A filing moves through the
// states in order and is only visible to search once registered.
type State string

const (
	StatePending    State = "pending"
	StateFetched    State = "fetched"
	StateSegmented  State = "segmented"
	StateChunked    State = "chunked"
	StateEmbedded   State = "embedded"
	StateIndexed    State = "indexed"
	StateRegistered State = "registered"
)

// IngestError reports the last state an ingestion reached before failing.
type IngestError struct {
	FilingKey string
	State     State
	Err       error
}

func (e *IngestError) Error() string {
	if e.FilingKey == "" {
		return fmt.Sprintf("ingest failed after %s: %s", e.State, e.Err.Error())
	}

	return fmt.Sprintf("ingest %s failed after %s: %s", e.FilingKey, e.State, e.Err.Error())
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IngestRequest names one filing by FilingKey, or selects by the optional
// count, year and inclusive date range. Without any selector it means the
// latest filing of the form type.
type IngestRequest struct {
	Ticker    string `json:"ticker"`
	FormType  string `json:"form_type"`
	FilingKey string `json:"filing_key,omitempty"`
	Count     int    `json:"count,omitempty"`
	Year      int    `json:"year,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func (req IngestRequest) sourceRequest() source.Request {
	return source.Request{
		Ticker:    req.Ticker,
		FormType:  req.FormType,
		FilingKey: req.FilingKey,
		Count:     req.Count,
		Year:      req.Year,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
}

type IngestResult struct {
	FilingKey  string   `json:"filing_key"`
	Ticker     string   `json:"ticker"`
	FormType   string   `json:"form_type"`
	FilingDate string   `json:"filing_date"`
	Sections   int      `json:"sections"`
	ChunkCount int      `json:"chunk_count"`
	Duration   Duration `json:"duration"`
}

type Query struct {
	Text          string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	Ticker        string   `json:"ticker,omitempty"`
	FormType      string   `json:"form_type,omitempty"`
	FilingKey     string   `json:"filing_key,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

type SearchResult struct {
	ChunkID     string              `json:"chunk_id"`
	Text        string              `json:"text"`
	Similarity  float64             `json:"similarity"`
	FilingKey   string              `json:"filing_key"`
	Ticker      string              `json:"ticker"`
	FormType    string              `json:"form_type"`
	FilingDate  string              `json:"filing_date"`
	SectionPath string              `json:"section_path"`
	ContentType segment.ContentType `json:"content_type"`
	ChunkIndex  int                 `json:"chunk_index"`
}

type RemoveResult struct {
	FilingKey     string `json:"filing_key"`
	Removed       bool   `json:"removed"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

type Status struct {
	FilingCount     int            `json:"filing_count"`
	MaxFilings      int            `json:"max_filings"`
	ChunkCount      int            `json:"chunk_count"`
	DistinctTickers []string       `json:"distinct_tickers"`
	FormBreakdown   map[string]int `json:"form_breakdown"`
}

type Filing = registry.Record

type ListFilingsRequest = registry.Filter
