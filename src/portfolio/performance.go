package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

const tradingDaysPerYear = 252.0

type SeriesPoint struct {
	Date           string   `json:"date"`
	PortfolioValue float64  `json:"portfolio_value"`
	BenchmarkPrice *float64 `json:"benchmark_price"`
	PortfolioIndex float64  `json:"portfolio_index"`
	BenchmarkIndex *float64 `json:"benchmark_index"`
}

type Metrics struct {
	TotalReturn float64  `json:"total_return"`
	VolAnnual   *float64 `json:"vol_annual"`
	Sharpe      *float64 `json:"sharpe"`
	MaxDrawdown *float64 `json:"max_drawdown"`
}

type PerformanceMetrics struct {
	Portfolio         Metrics  `json:"portfolio"`
	Benchmark         *Metrics `json:"benchmark"`
	ExcessTotalReturn *float64 `json:"excess_total_return"`
}

type PerformanceResult struct {
	PortfolioID     uint               `json:"portfolio_id"`
	BenchmarkTicker string             `json:"benchmark_ticker"`
	Start           string             `json:"start"`
	End             string             `json:"end"`
	Series          []SeriesPoint      `json:"series"`
	Metrics         PerformanceMetrics `json:"metrics"`
}

// Performance replays the ledger day by day over [start, end] against the
// benchmark index and derives risk metrics. Results are memoized under the
// portfolio's current version token, so any ledger or cash mutation makes
// the cached entry unreachable without explicit invalidation.
//
// The simulation deliberately starts the window with zero positions and
// the portfolio's contributed cash: transactions before start are not
// replayed, so the curve shows within-window activity only, not true
// point-in-time state. Downstream callers depend on this behavior.
func (s *Service) Performance(ctx context.Context, userID, portfolioID uint, start, end time.Time, benchmarkTicker string) (*PerformanceResult, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	start, end = dayKey(start), dayKey(end)

	ver := s.cache.Version(portfolioID)
	cacheKey := fmt.Sprintf("perf:v1:user=%d:pid=%d:ver=%d:start=%s:end=%s:bench=%s",
		userID, portfolioID, ver, formatDate(start), formatDate(end), benchmarkTicker)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*PerformanceResult), nil
	}

	p, ledger, err := s.fetchLedger(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	benchSeries, err := s.benchmark.IndexSeries(ctx, start, end)
	if err != nil {
		return nil, err
	}

	touched := touchedTickers(ledger)
	pricesByTicker, err := s.loadTickerSeries(ctx, touched, start, end)
	if err != nil {
		return nil, err
	}

	txByDay := make(map[time.Time][]model.Transaction)
	for _, tx := range ledger {
		day := dayKey(tx.TradeDate)
		if !day.Before(start) && !day.After(end) {
			txByDay[day] = append(txByDay[day], tx)
		}
	}

	shares := make(map[string]float64)
	cash := p.CashBalance

	series := make([]SeriesPoint, 0, len(benchSeries))
	for i, bench := range benchSeries {
		day := bench.Date

		// Apply the day's trades at their recorded ledger prices.
		for _, tx := range txByDay[day] {
			ticker, err := NormalizeTicker(tx.Ticker)
			if err != nil {
				return nil, err
			}
			if tx.Side == model.SideBuy {
				cash -= tx.Shares * tx.Price
				shares[ticker] += tx.Shares
			} else {
				cash += tx.Shares * tx.Price
				shares[ticker] -= tx.Shares
				if shares[ticker] < sharesEpsilon {
					delete(shares, ticker)
				}
			}
		}

		// Value holdings at the day's forward-filled prices; a missing
		// price contributes 0 rather than failing the range.
		holdingsValue := 0.0
		for ticker, sh := range shares {
			if daily, ok := pricesByTicker[ticker]; ok {
				if px := daily[i].Price; px != nil {
					holdingsValue += sh * *px
				}
			}
		}

		series = append(series, SeriesPoint{
			Date:           formatDate(day),
			PortfolioValue: cash + holdingsValue,
			BenchmarkPrice: bench.Price,
		})
	}

	normalizeSeries(series)

	portVals := make([]float64, len(series))
	benchVals := make([]float64, 0, len(series))
	for i, pt := range series {
		portVals[i] = pt.PortfolioValue
		if pt.BenchmarkPrice != nil {
			benchVals = append(benchVals, *pt.BenchmarkPrice)
		}
	}

	portfolioMetrics := metricsFromValues(portVals)
	var benchmarkMetrics *Metrics
	if len(benchVals) == len(series) && len(series) > 0 {
		m := metricsFromValues(benchVals)
		benchmarkMetrics = &m
	}

	var excess *float64
	if len(series) > 0 && series[0].BenchmarkIndex != nil && series[len(series)-1].BenchmarkIndex != nil {
		b0 := *series[0].BenchmarkIndex
		b1 := *series[len(series)-1].BenchmarkIndex
		if b0 > 0 {
			e := portfolioMetrics.TotalReturn - (b1/b0 - 1)
			excess = &e
		}
	}

	result := &PerformanceResult{
		PortfolioID:     portfolioID,
		BenchmarkTicker: benchmarkTicker,
		Start:           formatDate(start),
		End:             formatDate(end),
		Series:          series,
		Metrics: PerformanceMetrics{
			Portfolio:         portfolioMetrics,
			Benchmark:         benchmarkMetrics,
			ExcessTotalReturn: excess,
		},
	}

	s.cache.Set(cacheKey, result, s.perfTTL)
	return result, nil
}

func touchedTickers(ledger []model.Transaction) []string {
	seen := make(map[string]struct{})
	for _, tx := range ledger {
		t, err := NormalizeTicker(tx.Ticker)
		if err != nil {
			continue
		}
		seen[t] = struct{}{}
	}
	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// loadTickerSeries fetches the forward-filled daily series for every
// touched ticker. The reads are independent, so they are dispatched in
// parallel and joined before the day walk begins.
func (s *Service) loadTickerSeries(ctx context.Context, tickers []string, start, end time.Time) (map[string][]DailyPrice, error) {
	out := make(map[string][]DailyPrice, len(tickers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, ticker := range tickers {
		g.Go(func() error {
			daily, err := s.prices.DailySeries(gctx, ticker, start, end)
			if err != nil {
				return err
			}
			mu.Lock()
			out[ticker] = daily
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeSeries rebases both curves to 100 at their own first usable
// value. The anchors are found independently, so the portfolio and the
// benchmark may start on different days.
func normalizeSeries(series []SeriesPoint) {
	firstPort := 0.0
	havePort := false
	var firstBench *float64
	for _, pt := range series {
		if !havePort {
			firstPort = pt.PortfolioValue
			havePort = true
		}
		if firstBench == nil && pt.BenchmarkPrice != nil {
			firstBench = pt.BenchmarkPrice
		}
		if havePort && firstBench != nil {
			break
		}
	}

	for i := range series {
		if havePort && firstPort > 0 {
			series[i].PortfolioIndex = series[i].PortfolioValue / firstPort * 100
		} else {
			series[i].PortfolioIndex = 100.0
		}
		if bp := series[i].BenchmarkPrice; bp != nil && firstBench != nil && *firstBench > 0 {
			idx := *bp / *firstBench * 100
			series[i].BenchmarkIndex = &idx
		}
	}
}

// metricsFromValues derives summary risk metrics from a value sequence:
// total return, annualized volatility of daily returns (sample stddev,
// n-1 denominator, scaled by sqrt(252)), a Sharpe-like ratio of annualized
// return over annualized volatility, and the forward-only running-peak
// max drawdown. A non-positive previous value counts as a 0 daily return
// rather than failing.
func metricsFromValues(values []float64) Metrics {
	if len(values) < 2 {
		return Metrics{TotalReturn: 0}
	}

	rets := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			rets = append(rets, 0)
		} else {
			rets = append(rets, values[i]/prev-1)
		}
	}

	totalReturn := 0.0
	if values[0] > 0 {
		totalReturn = values[len(values)-1]/values[0] - 1
	}

	var volAnnual *float64
	if len(rets) >= 2 {
		mean := 0.0
		for _, r := range rets {
			mean += r
		}
		mean /= float64(len(rets))

		variance := 0.0
		for _, r := range rets {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(rets) - 1)

		v := math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
		volAnnual = &v
	}

	var sharpe *float64
	if volAnnual != nil && *volAnnual > 0 {
		annRet := math.Pow(1+totalReturn, tradingDaysPerYear/float64(len(rets))) - 1
		sh := annRet / *volAnnual
		sharpe = &sh
	}

	peak := values[0]
	mdd := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < mdd {
				mdd = dd
			}
		}
	}

	return Metrics{
		TotalReturn: totalReturn,
		VolAnnual:   volAnnual,
		Sharpe:      sharpe,
		MaxDrawdown: &mdd,
	}
}
