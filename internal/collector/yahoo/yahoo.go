// Package yahoo implements a BarProvider backed by the Yahoo Finance
// chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/strataquant/strata/internal/core"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Client fetches daily bars from Yahoo Finance.
type Client struct {
	baseURL  string
	client   *http.Client
	universe []string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithUniverse sets the symbols Universe reports. Yahoo itself has no
// listing endpoint, so the universe is configured, not discovered.
func WithUniverse(symbols []string) Option {
	return func(c *Client) { c.universe = symbols }
}

// New creates a Yahoo client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Universe returns the configured symbol list.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	out := make([]string, len(c.universe))
	copy(out, c.universe)
	return out, nil
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchBars fetches daily OHLCV bars for [start, end]. Rows Yahoo
// returns with null or non-positive prices are dropped, not errors.
func (c *Client) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, err)
	}

	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL, toYahooSymbol(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.WrapError(core.ErrProviderTimeout, err)
		}
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol %s", symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("symbol %s", symbol))
	}

	r := result.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("symbol %s", symbol))
	}
	quotes := r.Indicators.Quote[0]

	bars := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Open) || quotes.Open[i] == nil || quotes.High[i] == nil ||
			quotes.Low[i] == nil || quotes.Close[i] == nil || quotes.Volume[i] == nil {
			continue // Skip missing data
		}
		b := core.Bar{
			Symbol: symbol,
			Date:   time.Unix(int64(ts), 0).UTC(),
			Open:   *quotes.Open[i],
			High:   *quotes.High[i],
			Low:    *quotes.Low[i],
			Close:  *quotes.Close[i],
			Volume: float64(*quotes.Volume[i]),
		}
		if !b.IsValid() {
			continue
		}
		bars = append(bars, b)
	}

	return bars, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int     `json:"volume"`
}
