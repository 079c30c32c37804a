package connectors

// Daily EOD quotes client over the Yahoo Finance chart endpoint.
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

const (
	defaultQuotesBaseURL = "https://query1.finance.yahoo.com"
	chartPathFmt         = "/v8/finance/chart/%s"

	defaultRetryAttempts   = 4
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type QuotesClient struct {
	baseURL string
	http    *resty.Client
}

func NewQuotesClient(baseURL string) *QuotesClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultQuotesBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		SetHeader("User-Agent", "historical-stocks/1.0")

	return &QuotesClient{
		baseURL: baseURL,
		http:    httpClient,
	}
}

func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == 429 || code >= 500
}

// DailyBars fetches daily bars for one ticker over [start, end]. The
// adjusted close is preferred; plain close fills the gap when the feed
// omits adjustments.
func (c *QuotesClient) DailyBars(
	ctx context.Context,
	ticker string,
	start, end time.Time,
) ([]model.StockPrice, error) {

	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":  fmt.Sprintf("%d", start.Unix()),
			"period2":  fmt.Sprintf("%d", end.Unix()),
			"interval": "1d",
			"events":   "div,splits",
		}).
		SetResult(&out).
		Get(fmt.Sprintf(chartPathFmt, ticker))
	if err != nil {
		return nil, fmt.Errorf("quotes request for %s failed: %w", ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quotes request for %s: status %d", ticker, resp.StatusCode())
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("quotes feed error for %s: %s (%s)",
			ticker, out.Chart.Error.Description, out.Chart.Error.Code)
	}
	if len(out.Chart.Result) == 0 {
		logger.WithField("ticker", ticker).Warn("quotes feed returned no result")
		return nil, nil
	}

	result := out.Chart.Result[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	var closes []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	rows := make([]model.StockPrice, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		price := pick(adj, i)
		if price == nil {
			price = pick(closes, i)
		}
		day := time.Unix(ts, 0).UTC()
		rows = append(rows, model.StockPrice{
			Ticker:    ticker,
			TradeDate: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			AdjClose:  price,
		})
	}
	return rows, nil
}

func pick(xs []*float64, i int) *float64 {
	if i < 0 || i >= len(xs) {
		return nil
	}
	return xs[i]
}
