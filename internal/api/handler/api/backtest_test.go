// internal/api/handler/api/backtest_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strataquant/strata/internal/api/job"
	"github.com/strataquant/strata/internal/backtest"
	"github.com/strataquant/strata/internal/collector"
	"github.com/strataquant/strata/internal/core"
	"github.com/strataquant/strata/internal/strategy"
)

func testProvider() *collector.Static {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, 40)
	for i := range bars {
		bars[i] = core.Bar{
			Symbol: "AAPL",
			Date:   base.AddDate(0, 0, i),
			Open:   100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	return collector.NewStatic(map[string][]core.Bar{"AAPL": bars})
}

func newTestHandler(t *testing.T) (*BacktestHandler, *job.Store) {
	t.Helper()
	jobStore := job.NewStore(100, time.Hour)
	engine := backtest.New(testProvider(), zap.NewNop())
	h := NewBacktestHandler(jobStore, engine, strategy.DefaultParams(), 1_000_000, zap.NewNop())
	return h, jobStore
}

func postBacktest(t *testing.T, h *BacktestHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/backtest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	return w
}

func TestBacktestHandler_Create(t *testing.T) {
	h, jobStore := newTestHandler(t)

	w := postBacktest(t, h, `{
		"symbols": ["AAPL"],
		"start": "2023-01-01",
		"end": "2023-03-01"
	}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.JobID)

	// The run is async; wait for the job to complete.
	require.Eventually(t, func() bool {
		j, err := jobStore.Get(resp.Data.JobID)
		return err == nil && j.Status == job.StatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	j, err := jobStore.Get(resp.Data.JobID)
	require.NoError(t, err)
	require.Equal(t, 100, j.Progress)
	result, ok := j.Result.(*backtest.Result)
	require.True(t, ok, "job result must be the backtest result")
	require.Equal(t, 1_000_000.0, result.InitialCapital)
}

func TestBacktestHandler_Create_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := map[string]string{
		"not json":         `{`,
		"missing symbols":  `{"start": "2023-01-01", "end": "2023-03-01"}`,
		"bad start date":   `{"symbols": ["AAPL"], "start": "01/01/2023", "end": "2023-03-01"}`,
		"bad end date":     `{"symbols": ["AAPL"], "start": "2023-01-01", "end": "soon"}`,
		"end before start": `{"symbols": ["AAPL"], "start": "2023-03-01", "end": "2023-01-01"}`,
		"bad params":       `{"symbols": ["AAPL"], "start": "2023-01-01", "end": "2023-03-01", "params": 42}`,
		"negative capital": `{"symbols": ["AAPL"], "start": "2023-01-01", "end": "2023-03-01", "initial_capital": -5}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postBacktest(t, h, body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBacktestHandler_FailedRun(t *testing.T) {
	jobStore := job.NewStore(100, time.Hour)
	engine := backtest.New(collector.NewStatic(nil), zap.NewNop()) // no data at all
	h := NewBacktestHandler(jobStore, engine, strategy.DefaultParams(), 1_000_000, zap.NewNop())

	w := postBacktest(t, h, `{"symbols": ["GONE"], "start": "2023-01-01", "end": "2023-03-01"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		j, err := jobStore.Get(resp.Data.JobID)
		return err == nil && j.Status == job.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	j, _ := jobStore.Get(resp.Data.JobID)
	require.NotNil(t, j.Error)
	require.Equal(t, core.ErrBacktestFailed.Code, j.Error.Code)
}

func TestBacktestHandler_GetStatus_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/backtest/nope", nil)
	w := httptest.NewRecorder()
	h.GetStatus(w, req, "nope")

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestParamsOverlay(t *testing.T) {
	defaults := strategy.DefaultParams()
	pj := paramsJSONFrom(defaults)

	// Only the keys present in the patch change.
	patch := []byte(`{"strict_scoring": true, "confidence_threshold": 0.8}`)
	require.NoError(t, json.Unmarshal(patch, &pj))

	p := pj.toParams()
	require.True(t, p.StrictScoring)
	require.Equal(t, 0.8, p.ConfidenceThreshold)
	require.Equal(t, defaults.RSIPeriod, p.RSIPeriod)
	require.Equal(t, defaults.StopLoss, p.StopLoss)
	require.Equal(t, defaults.DynamicPositionSize, p.DynamicPositionSize)
}
