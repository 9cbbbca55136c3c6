package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/Backtester/internal/platform/http"
	"github.com/Alias1177/Backtester/models"
)

const (
	defaultBaseURL = "https://api.twelvedata.com"
	maxOutputSize  = 5000
)

// ErrNoData is returned when the API answers with an empty series
var ErrNoData = errors.New("empty data returned")

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	interval   string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	Interval        string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// timeSeriesResponse is the /time_series payload. Numbers arrive as strings.
type timeSeriesResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DatedBar is a daily bar together with its ISO date
type DatedBar struct {
	Date string
	models.Bar
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	interval := options.Interval
	if interval == "" {
		interval = "1day"
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		interval:   interval,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// GetDailyBars fetches bars for symbol between start and end (inclusive, either
// may be empty) and returns one bar per date, oldest first. Intraday intervals
// are folded into daily bars.
func (c *Client) GetDailyBars(ctx context.Context, symbol, start, end string) ([]DatedBar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", c.interval)
	params.Set("outputsize", strconv.Itoa(maxOutputSize))
	params.Set("apikey", c.apiKey)
	if start != "" {
		params.Set("start_date", start)
	}
	if end != "" {
		// end_date is exclusive for daily series
		params.Set("end_date", end+" 23:59:59")
	}

	c.logger.Debug().Str("symbol", symbol).Str("interval", c.interval).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time_series?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if data.Status == "error" {
		c.logger.Error().Int("code", data.Code).Str("message", data.Message).Msg("Twelve Data API error")
		return nil, fmt.Errorf("Twelve Data API error %d: %s", data.Code, data.Message)
	}

	if len(data.Values) == 0 {
		c.logger.Warn().Str("symbol", symbol).Msg("No candles in response")
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	// Sort candles by datetime (oldest first)
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	var bars []DatedBar
	for _, v := range data.Values {
		date, bar, err := parseValue(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}

		last := len(bars) - 1
		if last >= 0 && bars[last].Date == date {
			bars[last].Bar = merge(bars[last].Bar, bar)
			continue
		}
		bars = append(bars, DatedBar{Date: date, Bar: bar})
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(bars)).Msg("Fetched candles")
	return bars, nil
}

// LoadHistoricalData fetches every symbol and assembles the per-date table the
// engine replays. A symbol that fails aborts the load.
func (c *Client) LoadHistoricalData(ctx context.Context, symbols []string, start, end string) (models.HistoricalData, error) {
	data := make(models.HistoricalData)
	for _, symbol := range symbols {
		bars, err := c.GetDailyBars(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		for _, b := range bars {
			day, ok := data[b.Date]
			if !ok {
				day = make(map[string]models.Bar)
				data[b.Date] = day
			}
			day[symbol] = b.Bar
		}
	}
	return data, nil
}

func parseValue(datetime, open, high, low, close, volume string) (string, models.Bar, error) {
	if len(datetime) < len(models.DateLayout) {
		return "", models.Bar{}, fmt.Errorf("bad datetime %q", datetime)
	}
	date := datetime[:len(models.DateLayout)]
	if _, err := models.ParseDate(date); err != nil {
		return "", models.Bar{}, err
	}

	var bar models.Bar
	prices := []struct {
		dst *float64
		raw string
	}{{&bar.Open, open}, {&bar.High, high}, {&bar.Low, low}, {&bar.Close, close}}
	for _, p := range prices {
		v, err := strconv.ParseFloat(p.raw, 64)
		if err != nil {
			return "", models.Bar{}, fmt.Errorf("bad price %q on %s: %w", p.raw, datetime, err)
		}
		*p.dst = v
	}

	// forex series carry no volume
	if volume != "" {
		v, err := strconv.ParseFloat(volume, 64)
		if err != nil {
			return "", models.Bar{}, fmt.Errorf("bad volume %q on %s: %w", volume, datetime, err)
		}
		bar.Volume = int64(v)
	}
	return date, bar, nil
}

// merge folds a later intraday bar into the day's running bar
func merge(day, next models.Bar) models.Bar {
	if next.High > day.High {
		day.High = next.High
	}
	if next.Low < day.Low {
		day.Low = next.Low
	}
	day.Close = next.Close
	day.Volume += next.Volume
	return day
}
