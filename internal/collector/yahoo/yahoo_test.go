package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/strataquant/strata/internal/collector"
	"github.com/strataquant/strata/internal/core"
)

func TestClient_ImplementsBarProvider(t *testing.T) {
	var _ collector.BarProvider = (*Client)(nil)
}

func TestToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	for _, tc := range tests {
		got := toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"AAPL", "600519.SH", "0700.HK", "BRK"}
	for _, s := range valid {
		if err := validateSymbol(s); err != nil {
			t.Errorf("validateSymbol(%s) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "no spaces", "toolongsymbolname.XXXXX", "a;rm -rf"}
	for _, s := range invalid {
		if err := validateSymbol(s); err == nil {
			t.Errorf("validateSymbol(%q) = nil, want error", s)
		}
	}
}

const chartBody = `{
  "chart": {
    "result": [{
      "timestamp": [1704153600, 1704240000, 1704326400],
      "indicators": {
        "quote": [{
          "open":   [100.0, null, 102.0],
          "high":   [105.0, null, 107.0],
          "low":    [99.0,  null, 101.0],
          "close":  [104.0, null, 106.0],
          "volume": [50000, null, 60000]
        }]
      }
    }],
    "error": null
  }
}`

func TestClient_FetchBars(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	bars, err := c.FetchBars(context.Background(), "600519.SH",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}

	if gotPath != "/600519.SS" {
		t.Errorf("requested path %s, want the Yahoo-form symbol /600519.SS", gotPath)
	}

	// The middle row is null and must be dropped.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (null row dropped), got %d", len(bars))
	}
	if bars[0].Open != 100 || bars[0].Close != 104 || bars[0].Volume != 50000 {
		t.Errorf("first bar wrong: %+v", bars[0])
	}
	if bars[1].Close != 106 {
		t.Errorf("second bar wrong: %+v", bars[1])
	}
	if bars[0].Symbol != "600519.SH" {
		t.Errorf("bars must carry the requested symbol, got %s", bars[0].Symbol)
	}
	if !bars[1].Date.After(bars[0].Date) {
		t.Error("bars must be ascending by date")
	}
}

func TestClient_FetchBars_InvalidSymbol(t *testing.T) {
	c := New()
	_, err := c.FetchBars(context.Background(), "bad symbol", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("err = %v, want ErrSymbolNotFound", err)
	}
}

func TestClient_FetchBars_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.FetchBars(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, core.ErrProviderFailed) {
		t.Errorf("err = %v, want ErrProviderFailed", err)
	}
}

func TestClient_FetchBars_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.FetchBars(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, core.ErrProviderFailed) {
		t.Errorf("err = %v, want ErrProviderFailed", err)
	}
}

func TestClient_Universe(t *testing.T) {
	c := New(WithUniverse([]string{"AAPL", "MSFT"}))
	got, err := c.Universe(context.Background())
	if err != nil {
		t.Fatalf("Universe: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("universe = %v, want configured list", got)
	}
}
