package portfolio

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

// BenchmarkService derives a single synthetic equal-weight index from the
// daily returns of every tracked instrument. The series is built lazily
// exactly once, persisted, and never rebuilt; the build cost is amortized
// across all users and portfolios.
type BenchmarkService struct {
	prices PriceProvider
	store  BenchmarkStore

	// buildMu serializes the first build so concurrent callers cannot
	// double-insert the series.
	buildMu sync.Mutex
}

func NewBenchmarkService(prices PriceProvider, store BenchmarkStore) *BenchmarkService {
	return &BenchmarkService{prices: prices, store: store}
}

// EnsureIndex builds and persists the index series if it does not exist
// yet. Idempotent; safe for concurrent callers.
func (b *BenchmarkService) EnsureIndex(ctx context.Context) error {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	has, err := b.store.HasPoints(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	rows, err := b.prices.CrossSection(ctx)
	if err != nil {
		return err
	}

	points := buildIndexPoints(rows)
	if len(points) == 0 {
		return ErrBenchmarkEmpty
	}

	logger.WithFields(map[string]interface{}{
		"component": "BenchmarkService",
		"points":    len(points),
	}).Info("Building benchmark index series")

	return b.store.InsertPoints(ctx, points)
}

// buildIndexPoints compounds the equal-weight average of per-ticker daily
// simple returns into an index based at 100 on the first day with any
// return. Instruments without a prior price simply drop out of that day's
// average, so the included universe floats day to day.
func buildIndexPoints(rows []CrossSectionRow) []model.BenchmarkIndexPoint {
	byTicker := make(map[string][]CrossSectionRow)
	for _, r := range rows {
		byTicker[r.Ticker] = append(byTicker[r.Ticker], r)
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)

	for _, series := range byTicker {
		sort.Slice(series, func(i, j int) bool {
			return series[i].TradeDate.Before(series[j].TradeDate)
		})
		for i := 1; i < len(series); i++ {
			prev := series[i-1].Price
			if prev == 0 {
				continue
			}
			day := dayKey(series[i].TradeDate)
			sums[day] += series[i].Price/prev - 1
			counts[day]++
		}
	}

	days := make([]time.Time, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]model.BenchmarkIndexPoint, 0, len(days))
	cumLog := 0.0
	for _, day := range days {
		avg := sums[day] / float64(counts[day])
		cumLog += math.Log(1 + avg)
		points = append(points, model.BenchmarkIndexPoint{
			TradeDate:  day,
			IndexValue: 100 * math.Exp(cumLog),
		})
	}
	return points
}

// IndexSeries resamples the persisted index to every calendar day in
// [start, end], carrying the latest on-or-before value forward. Days
// before the first index point yield nil.
func (b *BenchmarkService) IndexSeries(ctx context.Context, start, end time.Time) ([]DailyPrice, error) {
	if err := b.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	points, err := b.store.PointsThrough(ctx, end)
	if err != nil {
		return nil, err
	}

	out := make([]DailyPrice, 0)
	i := 0
	var last *float64
	for _, day := range eachDay(start, end) {
		for i < len(points) && !dayKey(points[i].TradeDate).After(day) {
			v := points[i].IndexValue
			last = &v
			i++
		}
		out = append(out, DailyPrice{Date: day, Price: last})
	}
	return out, nil
}
