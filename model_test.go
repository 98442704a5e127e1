package secsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIngestResultJSONDuration(t *testing.T) {
	assert := assert.New(t)

	result := IngestResult{
		FilingKey: "0000320193-24-000123",
		Duration:  Duration(1500 * time.Millisecond),
	}

	bs, err := json.Marshal(result)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Contains(string(bs), `"duration":"1.5s"`)

	var decoded IngestResult
	if err := json.Unmarshal(bs, &decoded); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(1500*time.Millisecond, decoded.Duration.Duration())
}

func TestParseFormTypes(t *testing.T) {
	assert := assert.New(t)

	forms, err := ParseFormTypes(" 10-k, 10-Q,10-K ")
	assert.NoError(err)
	assert.Equal([]FormType{FormType10K, FormType10Q}, forms)

	_, err = ParseFormTypes("10-K,8-K")
	assert.ErrorIs(err, ErrInvalidFormType)

	_, err = ParseFormTypes(" , ")
	assert.ErrorIs(err, ErrInvalidFormType)
}

func TestNormalizeTicker(t *testing.T) {
	assert := assert.New(t)

	ticker, err := NormalizeTicker(" aapl ")
	assert.NoError(err)
	assert.Equal("AAPL", ticker)

	_, err = NormalizeTicker("")
	assert.ErrorIs(err, ErrInvalidTicker)

	_, err = NormalizeTicker("AA PL")
	assert.ErrorIs(err, ErrInvalidTicker)
}

func TestIngestErrorUnwrap(t *testing.T) {
	assert := assert.New(t)

	var err error = &IngestError{
		FilingKey: "k1",
		State:     StateChunked,
		Err:       fmt.Errorf("%w: model unavailable", ErrEmbedding),
	}

	assert.ErrorIs(err, ErrEmbedding)

	var ingestErr *IngestError
	if assert.ErrorAs(err, &ingestErr) {
		assert.Equal(StateChunked, ingestErr.State)
	}

	assert.Equal("ingest k1 failed after chunked: embedding failure: model unavailable", err.Error())
}

func TestStatusCode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(http.StatusBadRequest, StatusCode(ErrEmptyQuery))
	assert.Equal(http.StatusBadRequest, StatusCode(fmt.Errorf("%w: year -1", ErrInvalidSelection)))
	assert.Equal(http.StatusNotFound, StatusCode(fmt.Errorf("%w: k1", ErrFilingNotFound)))
	assert.Equal(http.StatusConflict, StatusCode(&IngestError{Err: ErrDuplicateFiling}))
	assert.Equal(http.StatusInsufficientStorage, StatusCode(&CapacityError{Current: 20, Max: 20}))
	assert.Equal(http.StatusExpectationFailed, StatusCode(errors.New("boom")))

	for _, code := range []int{400, 404, 409, 507} {
		err := ErrorFromStatus(code, "remote failure")
		assert.Equal(code, StatusCode(err))
		assert.Equal("remote failure", err.Error())
	}

	assert.ErrorIs(ErrorFromStatus(400, "bad year"), ErrBadRequest)
}
