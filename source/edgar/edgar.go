// Package edgar fetches filings from the SEC EDGAR archive.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flarexio/secsearch/source"
)

const (
	DefaultBaseURL = "https://www.sec.gov"
	DefaultDataURL = "https://data.sec.gov"

	// EDGAR allows at most ten requests per second per client.
	DefaultRateLimit = 10.0
)

var ErrIdentityRequired = errors.New("edgar identity name and email are required")

type Config struct {
	IdentityName  string        `yaml:"identity_name"`
	IdentityEmail string        `yaml:"identity_email"`
	BaseURL       string        `yaml:"base_url"`
	DataURL       string        `yaml:"data_url"`
	RateLimit     float64       `yaml:"rate_limit"`
	Timeout       time.Duration `yaml:"timeout"`
}

func (cfg Config) UserAgent() string {
	return strings.TrimSpace(cfg.IdentityName + " " + cfg.IdentityEmail)
}

func NewSource(cfg Config) (source.Source, error) {
	if cfg.IdentityName == "" || cfg.IdentityEmail == "" {
		return nil, ErrIdentityRequired
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.DataURL == "" {
		cfg.DataURL = DefaultDataURL
	}

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &edgarSource{
		log:     zap.L().With(zap.String("source", "edgar")),
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}, nil
}

type edgarSource struct {
	log     *zap.Logger
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	tickers map[string]int64
}

type companyTicker struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// entry is one row of the recent filings table.
type entry struct {
	accession       string
	filingDate      string
	form            string
	primaryDocument string
}

// entries returns the filings of the form type, in the newest first order
// EDGAR reports them.
func (s *edgarSource) entries(ctx context.Context, req source.Request) (int64, []entry, error) {
	cik, err := s.lookupCIK(ctx, req.Ticker)
	if err != nil {
		return 0, nil, err
	}

	var sub submissions
	subURL := fmt.Sprintf("%s/submissions/CIK%010d.json", s.cfg.DataURL, cik)
	if err := s.getJSON(ctx, subURL, &sub); err != nil {
		return 0, nil, err
	}

	recent := sub.Filings.Recent

	n := min(len(recent.Form), len(recent.AccessionNumber),
		len(recent.FilingDate), len(recent.PrimaryDocument))

	var entries []entry
	for i := 0; i < n; i++ {
		if !strings.EqualFold(recent.Form[i], req.FormType) {
			continue
		}

		entries = append(entries, entry{
			accession:       recent.AccessionNumber[i],
			filingDate:      recent.FilingDate[i],
			form:            req.FormType,
			primaryDocument: recent.PrimaryDocument[i],
		})
	}

	return cik, entries, nil
}

func (s *edgarSource) List(ctx context.Context, req source.Request) ([]source.Filing, error) {
	req = req.Normalize()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	_, entries, err := s.entries(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}

	filings := make([]source.Filing, len(entries))
	for i, e := range entries {
		filings[i] = source.Filing{
			FilingKey:  e.accession,
			Ticker:     req.Ticker,
			FormType:   req.FormType,
			FilingDate: e.filingDate,
		}
	}

	selected := req.Select(filings)

	s.log.Debug("filings listed",
		zap.String("action", "list"),
		zap.String("ticker", req.Ticker),
		zap.String("form_type", req.FormType),
		zap.Int("available", len(filings)),
		zap.Int("selected", len(selected)),
	)

	return selected, nil
}

func (s *edgarSource) Fetch(ctx context.Context, req source.Request) (source.Document, error) {
	req = req.Normalize()

	log := s.log.With(
		zap.String("action", "fetch"),
		zap.String("ticker", req.Ticker),
		zap.String("form_type", req.FormType),
	)

	cik, entries, err := s.entries(ctx, req)
	if err != nil {
		return source.Document{}, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}

	index := -1
	for i, e := range entries {
		if req.FilingKey == "" || e.accession == req.FilingKey {
			index = i
			break
		}
	}

	if index < 0 {
		return source.Document{}, fmt.Errorf("%w: %w: %s %s %s", source.ErrFetch, source.ErrNotFound,
			req.Ticker, req.FormType, req.FilingKey)
	}

	e := entries[index]
	docURL := fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s",
		s.cfg.BaseURL, cik, strings.ReplaceAll(e.accession, "-", ""), e.primaryDocument)

	log = log.With(zap.String("accession", e.accession))

	body, err := s.get(ctx, docURL)
	if err != nil {
		return source.Document{}, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}
	defer body.Close()

	content, err := ParseHTML(body)
	if err != nil {
		return source.Document{}, fmt.Errorf("%w: %w", source.ErrFetch, err)
	}

	log.Info("filing fetched", zap.Int("nodes", len(content)))

	return source.Document{
		FilingKey:  e.accession,
		Ticker:     req.Ticker,
		FormType:   req.FormType,
		FilingDate: e.filingDate,
		Content:    content,
	}, nil
}

func (s *edgarSource) lookupCIK(ctx context.Context, ticker string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tickers == nil {
		var companies map[string]companyTicker
		if err := s.getJSON(ctx, s.cfg.BaseURL+"/files/company_tickers.json", &companies); err != nil {
			return 0, err
		}

		tickers := make(map[string]int64, len(companies))
		for _, c := range companies {
			tickers[strings.ToUpper(c.Ticker)] = c.CIK
		}

		s.tickers = tickers
	}

	cik, ok := s.tickers[ticker]
	if !ok {
		return 0, fmt.Errorf("%w: unknown ticker %s", source.ErrNotFound, ticker)
	}

	return cik, nil
}

func (s *edgarSource) getJSON(ctx context.Context, url string, v any) error {
	body, err := s.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	return json.NewDecoder(body).Decode(v)
}

func (s *edgarSource) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.cfg.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, url)

	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, errors.New("unexpected status " + strconv.Itoa(resp.StatusCode) + " from " + url)
	}

	return resp.Body, nil
}
