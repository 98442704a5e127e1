package secsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/flarexio/secsearch/source"
)

type secSearchTestSuite struct {
	suite.Suite
	ctx  context.Context
	deps testDeps
	src  *fakeSource
	svc  Service
}

func (suite *secSearchTestSuite) SetupTest() {
	suite.ctx = context.Background()

	cfg := testConfig(suite.T().TempDir())
	suite.deps = newTestDeps(suite.T(), cfg)

	src := &fakeSource{docs: map[string]source.Document{
		"AAPL/10-K": testDocument("0000320193-24-000123", "AAPL", "10-K", "2024-11-01"),
		"AAPL/10-Q": testDocument("0000320193-24-000081", "AAPL", "10-Q", "2024-08-02"),
		"MSFT/10-K": testDocument("0000950170-24-087843", "MSFT", "10-K", "2024-07-30"),
		"NVDA/10-K": testDocument("0001045810-24-000029", "NVDA", "10-K", "2024-02-21"),
	}, history: []source.Document{
		testDocument("0000320193-23-000106", "AAPL", "10-K", "2023-11-03"),
		testDocument("0000320193-22-000108", "AAPL", "10-K", "2022-10-28"),
		testDocument("0000320193-21-000105", "AAPL", "10-K", "2021-10-29"),
	}}
	suite.src = src

	svc, err := NewService(suite.ctx, cfg, src, suite.deps.embedder, suite.deps.db, suite.deps.registry)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	svc = LoggingMiddleware(zap.NewNop())(svc)

	suite.svc = svc
}

func (suite *secSearchTestSuite) TestIngestAndSearch() {
	result, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "aapl", FormType: "10-K"})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("0000320193-24-000123", result.FilingKey)
	suite.Equal(3, result.ChunkCount)

	results, err := suite.svc.Search(suite.ctx, Query{Text: "cash reserves liquidity", TopK: 2})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.NotEmpty(results) {
		suite.Equal("AAPL", results[0].Ticker)
		suite.Equal("Item 7. Liquidity", results[0].SectionPath)
	}
}

func (suite *secSearchTestSuite) TestIngestDuplicate() {
	_, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "MSFT", FormType: "10-K"})
	suite.NoError(err)

	_, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "MSFT", FormType: "10-K"})
	suite.ErrorIs(err, ErrDuplicateFiling)
}

func (suite *secSearchTestSuite) TestListAndGet() {
	for _, req := range []IngestRequest{
		{Ticker: "AAPL", FormType: "10-K"},
		{Ticker: "AAPL", FormType: "10-Q"},
		{Ticker: "MSFT", FormType: "10-K"},
	} {
		if _, err := suite.svc.Ingest(suite.ctx, req); err != nil {
			suite.Fail(err.Error())
			return
		}
	}

	filings, err := suite.svc.ListFilings(suite.ctx, ListFilingsRequest{})
	suite.NoError(err)
	suite.Len(filings, 3)

	filings, err = suite.svc.ListFilings(suite.ctx, ListFilingsRequest{Ticker: "aapl"})
	suite.NoError(err)
	suite.Len(filings, 2)

	filings, err = suite.svc.ListFilings(suite.ctx, ListFilingsRequest{FormType: "10-K"})
	suite.NoError(err)
	suite.Len(filings, 2)

	filing, err := suite.svc.GetFiling(suite.ctx, "0000320193-24-000081")
	suite.NoError(err)
	suite.Equal("10-Q", filing.FormType)
	suite.Equal("2024-08-02", filing.FilingDate)

	_, err = suite.svc.GetFiling(suite.ctx, "missing")
	suite.ErrorIs(err, ErrFilingNotFound)
}

func (suite *secSearchTestSuite) TestRemoveFiling() {
	_, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K"})
	suite.NoError(err)

	result, err := suite.svc.RemoveFiling(suite.ctx, "0000320193-24-000123")
	suite.NoError(err)
	suite.True(result.Removed)
	suite.Equal(3, result.ChunksDeleted)

	count, _ := suite.deps.index.Count(suite.ctx)
	suite.Equal(0, count)

	results, err := suite.svc.Search(suite.ctx, Query{Text: "liquidity"})
	suite.NoError(err)
	suite.Empty(results)

	// a removed filing can be ingested again
	_, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K"})
	suite.NoError(err)
}

func (suite *secSearchTestSuite) TestRemoveUnknownFiling() {
	result, err := suite.svc.RemoveFiling(suite.ctx, "never-ingested")
	suite.NoError(err)
	suite.False(result.Removed)
	suite.Equal(0, result.ChunksDeleted)
}

func (suite *secSearchTestSuite) TestStatus() {
	_, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "MSFT", FormType: "10-K"})
	suite.NoError(err)

	_, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-Q"})
	suite.NoError(err)

	status, err := suite.svc.Status(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(2, status.FilingCount)
	suite.Equal(3, status.MaxFilings)
	suite.Equal(6, status.ChunkCount)
	suite.Equal([]string{"AAPL", "MSFT"}, status.DistinctTickers)
	suite.Equal(map[string]int{"10-K": 1, "10-Q": 1}, status.FormBreakdown)
}

func (suite *secSearchTestSuite) TestIngestBatch() {
	_, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "MSFT", FormType: "10-K"})
	suite.NoError(err)

	outcomes := IngestBatch(suite.ctx, suite.svc, []IngestRequest{
		{Ticker: "MSFT", FormType: "10-K"},
		{Ticker: "AAPL", FormType: "10-K"},
		{Ticker: "TSLA", FormType: "10-K"},
		{Ticker: "AAPL", FormType: "10-Q"},
		{Ticker: "NVDA", FormType: "10-K"},
		{Ticker: "AAPL", FormType: "10-K"},
	})

	// the fifth request hits capacity and the batch stops there
	suite.Len(outcomes, 5)

	suite.True(outcomes[0].Skipped)
	suite.NotNil(outcomes[1].Result)
	suite.NotEmpty(outcomes[2].Error)
	suite.False(outcomes[2].Skipped)
	suite.NotNil(outcomes[3].Result)
	suite.Contains(outcomes[4].Error, "capacity")
	suite.Nil(outcomes[4].Result)
}

func (suite *secSearchTestSuite) TestSelectFilings() {
	reqs, err := SelectFilings(suite.ctx, suite.src, []IngestRequest{
		{Ticker: "aapl", FormType: "10-K", Count: 3},
		{Ticker: "MSFT", FormType: "10-K"},
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	if suite.Len(reqs, 4) {
		suite.Equal("0000320193-24-000123", reqs[0].FilingKey)
		suite.Equal("0000320193-23-000106", reqs[1].FilingKey)
		suite.Equal("0000320193-22-000108", reqs[2].FilingKey)
		suite.Equal("AAPL", reqs[0].Ticker)
		suite.Empty(reqs[3].FilingKey)
	}

	reqs, err = SelectFilings(suite.ctx, suite.src, []IngestRequest{
		{Ticker: "AAPL", FormType: "10-K", StartDate: "2022-01-01", EndDate: "2023-12-31"},
		{Ticker: "AAPL", FormType: "10-K", Year: 2021},
	})
	suite.NoError(err)
	suite.Len(reqs, 3)

	_, err = SelectFilings(suite.ctx, suite.src, []IngestRequest{
		{Ticker: "AAPL", FormType: "10-K", StartDate: "2024-01-01", EndDate: "2023-01-01"},
	})
	suite.ErrorIs(err, ErrInvalidSelection)

	_, err = SelectFilings(suite.ctx, nil, []IngestRequest{{Ticker: "AAPL", FormType: "10-K", Year: 2023}})
	suite.ErrorIs(err, ErrSourceNotSet)

	// selected requests run through the batch like any other
	outcomes := IngestBatch(suite.ctx, suite.svc, reqs[:2])
	if suite.Len(outcomes, 2) {
		suite.Equal("2023-11-03", outcomes[0].Result.FilingDate)
		suite.Equal("2022-10-28", outcomes[1].Result.FilingDate)
	}
}

func (suite *secSearchTestSuite) TestIngestByYearAndKey() {
	result, err := suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K", Year: 2022})
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("0000320193-22-000108", result.FilingKey)

	result, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K", FilingKey: "0000320193-21-000105"})
	suite.NoError(err)
	suite.Equal("2021-10-29", result.FilingDate)

	_, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K", Year: 2019})
	suite.ErrorIs(err, ErrFetch)

	_, err = suite.svc.Ingest(suite.ctx, IngestRequest{Ticker: "AAPL", FormType: "10-K", StartDate: "yesterday"})
	suite.ErrorIs(err, ErrInvalidSelection)
}

func (suite *secSearchTestSuite) TearDownTest() {
	if suite.svc != nil {
		suite.svc.Close()
	}
}

func TestSecSearchTestSuite(t *testing.T) {
	suite.Run(t, new(secSearchTestSuite))
}
