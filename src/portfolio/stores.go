package portfolio

import (
	"context"
	"time"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

// PricePoint is a resolved price with the trading day it was quoted on.
type PricePoint struct {
	TradeDate time.Time
	Price     float64
}

// DailyPrice is one calendar day of a forward-filled series. Price is nil
// before the ticker's first known quote.
type DailyPrice struct {
	Date  time.Time
	Price *float64
}

// CrossSectionRow is one (ticker, day, close) observation of the whole
// instrument universe, consumed only by the benchmark index builder.
type CrossSectionRow struct {
	Ticker    string
	TradeDate time.Time
	Price     float64
}

// PriceProvider is the read-only time-series price store.
type PriceProvider interface {
	// LatestPrice returns the most recent price on or before the given
	// date, or nil when the ticker has no price at all by then.
	LatestPrice(ctx context.Context, ticker string, onOrBefore time.Time) (*PricePoint, error)
	// DailySeries returns one entry per calendar day in [start, end],
	// forward-filled from the most recent trading day.
	DailySeries(ctx context.Context, ticker string, start, end time.Time) ([]DailyPrice, error)
	// CrossSection returns every (ticker, day, close) with data, ordered
	// by ticker then day.
	CrossSection(ctx context.Context) ([]CrossSectionRow, error)
}

// PortfolioStore owns durable portfolio rows, always scoped by owner.
type PortfolioStore interface {
	ListByUser(ctx context.Context, userID uint) ([]model.Portfolio, error)
	// FindByID returns (nil, nil) when the portfolio does not exist or
	// belongs to another user.
	FindByID(ctx context.Context, userID, portfolioID uint) (*model.Portfolio, error)
	Create(ctx context.Context, p *model.Portfolio) error
	Update(ctx context.Context, p *model.Portfolio) error
	// Delete reports whether a row was actually removed.
	Delete(ctx context.Context, userID, portfolioID uint) (bool, error)
}

// TransactionStore owns durable ledger rows. The *Validated mutations run
// the supplied check against the post-mutation ledger inside the same
// database transaction and roll back when it fails.
type TransactionStore interface {
	// ListByPortfolio returns the ledger in canonical replay order
	// (trade_date ASC, id ASC).
	ListByPortfolio(ctx context.Context, portfolioID uint) ([]model.Transaction, error)
	// FindOwned returns (nil, nil) when the transaction does not exist or
	// its portfolio belongs to another user.
	FindOwned(ctx context.Context, userID, transactionID uint) (*model.Transaction, error)
	CreateValidated(ctx context.Context, tx *model.Transaction, validate func([]model.Transaction) error) error
	CreateBatchValidated(ctx context.Context, txs []model.Transaction, validate func([]model.Transaction) error) error
	UpdateValidated(ctx context.Context, tx *model.Transaction, validate func([]model.Transaction) error) error
	DeleteValidated(ctx context.Context, transactionID, portfolioID uint, validate func([]model.Transaction) error) error
}

// BenchmarkStore persists the synthetic benchmark index series.
type BenchmarkStore interface {
	HasPoints(ctx context.Context) (bool, error)
	InsertPoints(ctx context.Context, points []model.BenchmarkIndexPoint) error
	// PointsThrough returns all index points with trade_date <= end,
	// ordered ascending.
	PointsThrough(ctx context.Context, end time.Time) ([]model.BenchmarkIndexPoint, error)
}
