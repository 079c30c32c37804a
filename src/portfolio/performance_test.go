package portfolio

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mcosolutions20/historical-stocks/src/cache"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

type testEnv struct {
	svc          *Service
	portfolios   *fakePortfolioStore
	transactions *fakeTransactionStore
	prices       *fakePriceProvider
	cache        *cache.Cache
}

func newTestEnv(closes map[string]map[string]float64) *testEnv {
	portfolios := newFakePortfolioStore()
	transactions := newFakeTransactionStore(portfolios)
	prices := &fakePriceProvider{closes: closes}
	c := cache.New()

	svc := NewService(
		portfolios,
		transactions,
		prices,
		NewBenchmarkService(prices, &fakeBenchmarkStore{}),
		c,
		time.Minute,
	)
	return &testEnv{
		svc:          svc,
		portfolios:   portfolios,
		transactions: transactions,
		prices:       prices,
		cache:        c,
	}
}

func (e *testEnv) addPortfolio(userID uint, name string, cash float64) uint {
	p := &model.Portfolio{UserID: userID, Name: name, CashBalance: cash}
	if err := e.portfolios.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p.ID
}

func (e *testEnv) addTransaction(portfolioID uint, ticker, side string, shares, price float64, date string) {
	tx := model.Transaction{
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Side:        side,
		Shares:      shares,
		Price:       price,
		TradeDate:   mustDate(date),
	}
	if err := e.transactions.CreateValidated(context.Background(), &tx, func([]model.Transaction) error { return nil }); err != nil {
		panic(err)
	}
}

func perfCloses() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"AAPL": {
			"2024-01-02": 100,
			"2024-01-03": 100,
			"2024-01-04": 110,
			"2024-01-05": 120,
		},
	}
}

func TestPerformanceSeriesAndNormalization(t *testing.T) {
	env := newTestEnv(perfCloses())
	pid := env.addPortfolio(1, "Growth", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 10, 100, "2024-01-03")

	result, err := env.svc.Performance(context.Background(), 1, pid, mustDate("2024-01-02"), mustDate("2024-01-05"), "SP500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Series) != 4 {
		t.Fatalf("expected one point per calendar day (4), got %d", len(result.Series))
	}
	if result.Series[0].Date != "2024-01-02" || result.Series[3].Date != "2024-01-05" {
		t.Fatalf("series bounds wrong: %s .. %s", result.Series[0].Date, result.Series[3].Date)
	}

	wantValues := []float64{10000, 10000, 10100, 10200}
	for i, want := range wantValues {
		if math.Abs(result.Series[i].PortfolioValue-want) > 1e-6 {
			t.Fatalf("day %d: expected value %v, got %v", i, want, result.Series[i].PortfolioValue)
		}
	}

	// Rebased to 100 at the first day.
	if math.Abs(result.Series[0].PortfolioIndex-100) > 1e-9 {
		t.Fatalf("expected portfolio index base 100, got %v", result.Series[0].PortfolioIndex)
	}
	if math.Abs(result.Series[3].PortfolioIndex-102) > 1e-6 {
		t.Fatalf("expected final portfolio index 102, got %v", result.Series[3].PortfolioIndex)
	}

	// The benchmark has no point before 2024-01-03, so its curve starts
	// later and rebases at its own anchor.
	if result.Series[0].BenchmarkIndex != nil {
		t.Fatalf("expected nil benchmark before first index point, got %v", *result.Series[0].BenchmarkIndex)
	}
	if result.Series[1].BenchmarkIndex == nil || math.Abs(*result.Series[1].BenchmarkIndex-100) > 1e-9 {
		t.Fatalf("expected benchmark index base 100 on its first day, got %+v", result.Series[1].BenchmarkIndex)
	}
	if result.Series[3].BenchmarkIndex == nil || math.Abs(*result.Series[3].BenchmarkIndex-120) > 1e-6 {
		t.Fatalf("expected final benchmark index 120, got %+v", result.Series[3].BenchmarkIndex)
	}

	if math.Abs(result.Metrics.Portfolio.TotalReturn-0.02) > 1e-9 {
		t.Fatalf("expected total return 0.02, got %v", result.Metrics.Portfolio.TotalReturn)
	}
}

func TestPerformanceWindowStartsFromContributedCash(t *testing.T) {
	env := newTestEnv(perfCloses())
	pid := env.addPortfolio(1, "Growth", 10000)

	// A position opened long before the window is not replayed: the
	// window starts with zero positions and the contributed cash.
	env.addTransaction(pid, "AAPL", model.SideBuy, 50, 80, "2023-06-01")

	result, err := env.svc.Performance(context.Background(), 1, pid, mustDate("2024-01-02"), mustDate("2024-01-05"), "SP500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, pt := range result.Series {
		if math.Abs(pt.PortfolioValue-10000) > 1e-6 {
			t.Fatalf("day %d: expected flat 10000 with no in-window trades, got %v", i, pt.PortfolioValue)
		}
	}
}

func TestPerformanceInvalidRange(t *testing.T) {
	env := newTestEnv(perfCloses())
	pid := env.addPortfolio(1, "Growth", 10000)

	_, err := env.svc.Performance(context.Background(), 1, pid, mustDate("2024-01-05"), mustDate("2024-01-02"), "SP500")
	if err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestPerformanceUnknownPortfolio(t *testing.T) {
	env := newTestEnv(perfCloses())
	pid := env.addPortfolio(1, "Growth", 10000)

	_, err := env.svc.Performance(context.Background(), 2, pid, mustDate("2024-01-02"), mustDate("2024-01-05"), "SP500")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError for another user's portfolio, got %v", err)
	}
}

func TestPerformanceCachedUntilVersionBump(t *testing.T) {
	env := newTestEnv(perfCloses())
	pid := env.addPortfolio(1, "Growth", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 10, 100, "2024-01-03")

	start, end := mustDate("2024-01-02"), mustDate("2024-01-05")

	if _, err := env.svc.Performance(context.Background(), 1, pid, start, end, "SP500"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loadsAfterFirst := env.prices.dailySeriesCalls

	if _, err := env.svc.Performance(context.Background(), 1, pid, start, end, "SP500"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.prices.dailySeriesCalls != loadsAfterFirst {
		t.Fatalf("identical request should be served from cache, loads went %d -> %d",
			loadsAfterFirst, env.prices.dailySeriesCalls)
	}

	// Any mutation bumps the version token, making the old key unreachable.
	env.cache.Bump(pid)
	if _, err := env.svc.Performance(context.Background(), 1, pid, start, end, "SP500"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.prices.dailySeriesCalls == loadsAfterFirst {
		t.Fatal("version bump should force a recompute")
	}
}

func TestMetricsFromValues(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		m := metricsFromValues([]float64{100})
		if m.TotalReturn != 0 || m.VolAnnual != nil || m.Sharpe != nil || m.MaxDrawdown != nil {
			t.Fatalf("expected zeroed metrics for a single value, got %+v", m)
		}
	})

	t.Run("drawdown is forward-only", func(t *testing.T) {
		m := metricsFromValues([]float64{100, 90, 120})
		if m.MaxDrawdown == nil || math.Abs(*m.MaxDrawdown-(-0.1)) > 1e-9 {
			t.Fatalf("expected max drawdown -0.10 against the running peak, got %+v", m.MaxDrawdown)
		}
	})

	t.Run("volatility and sharpe", func(t *testing.T) {
		values := []float64{100, 110, 99, 105}
		m := metricsFromValues(values)

		rets := []float64{0.1, 99.0/110.0 - 1, 105.0/99.0 - 1}
		mean := (rets[0] + rets[1] + rets[2]) / 3
		variance := 0.0
		for _, r := range rets {
			variance += (r - mean) * (r - mean)
		}
		variance /= 2
		wantVol := math.Sqrt(variance) * math.Sqrt(252)

		if m.VolAnnual == nil || math.Abs(*m.VolAnnual-wantVol) > 1e-9 {
			t.Fatalf("expected vol %v, got %+v", wantVol, m.VolAnnual)
		}

		wantSharpe := (math.Pow(1.05, 252.0/3.0) - 1) / wantVol
		if m.Sharpe == nil || math.Abs(*m.Sharpe-wantSharpe) > 1e-9 {
			t.Fatalf("expected sharpe %v, got %+v", wantSharpe, m.Sharpe)
		}
	})

	t.Run("zero value counts as zero return", func(t *testing.T) {
		m := metricsFromValues([]float64{0, 0, 100})
		if m.TotalReturn != 0 {
			t.Fatalf("expected total return 0 from a zero start, got %v", m.TotalReturn)
		}
	})
}
