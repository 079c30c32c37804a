package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/model"
	"github.com/mcosolutions20/historical-stocks/src/portfolio"
)

// PriceRepository implements the read-only price store over the
// sp500_historical table. Forward-filling to calendar days happens here,
// on top of plain trading-day queries, so the SQL stays portable across
// the postgres and sqlite drivers.
type PriceRepository struct {
	db *gorm.DB
}

func NewPriceRepository() *PriceRepository {
	logger.WithField("component", "PriceRepository").
		Info("Creating new PriceRepository with MainDB")

	return &PriceRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PriceRepository) WithDB(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// LatestPrice returns the most recent adjusted close on or before the
// given date, or (nil, nil) when the ticker has no price by then.
func (r *PriceRepository) LatestPrice(
	ctx context.Context,
	ticker string,
	onOrBefore time.Time,
) (*portfolio.PricePoint, error) {

	var row model.StockPrice
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND trade_date <= ? AND adj_close IS NOT NULL", ticker, onOrBefore).
		Order("trade_date DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &portfolio.PricePoint{TradeDate: row.TradeDate, Price: *row.AdjClose}, nil
}

// DailySeries returns one entry per calendar day in [start, end], carrying
// the most recent trading-day close forward. Days before the ticker's
// first close yield a nil price.
func (r *PriceRepository) DailySeries(
	ctx context.Context,
	ticker string,
	start, end time.Time,
) ([]portfolio.DailyPrice, error) {

	// One anchor before the window plus the in-window closes is all the
	// fill needs; full history never leaves the database.
	anchor, err := r.LatestPrice(ctx, ticker, start)
	if err != nil {
		return nil, err
	}

	var rows []model.StockPrice
	err = r.db.WithContext(ctx).
		Where("ticker = ? AND trade_date > ? AND trade_date <= ? AND adj_close IS NOT NULL", ticker, start, end).
		Order("trade_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var last *float64
	if anchor != nil {
		px := anchor.Price
		last = &px
	}

	out := make([]portfolio.DailyPrice, 0)
	i := 0
	for d := dayUTC(start); !d.After(dayUTC(end)); d = d.AddDate(0, 0, 1) {
		for i < len(rows) && !dayUTC(rows[i].TradeDate).After(d) {
			px := *rows[i].AdjClose
			last = &px
			i++
		}
		out = append(out, portfolio.DailyPrice{Date: d, Price: last})
	}
	return out, nil
}

// CrossSection streams every (ticker, day, close) observation, ordered by
// ticker then day. Consumed only by the benchmark index builder.
func (r *PriceRepository) CrossSection(ctx context.Context) ([]portfolio.CrossSectionRow, error) {
	var rows []model.StockPrice
	err := r.db.WithContext(ctx).
		Where("adj_close IS NOT NULL").
		Order("ticker ASC, trade_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]portfolio.CrossSectionRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, portfolio.CrossSectionRow{
			Ticker:    row.Ticker,
			TradeDate: row.TradeDate,
			Price:     *row.AdjClose,
		})
	}
	return out, nil
}

// UpsertPrices writes daily bars, replacing the adjusted close on
// (ticker, trade_date) conflicts. Used by the price-sync job.
func (r *PriceRepository) UpsertPrices(ctx context.Context, rows []model.StockPrice) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "trade_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"adj_close"}),
		}).
		CreateInBatches(rows, 500).Error
}

// DistinctTickers lists every ticker present in the price store.
func (r *PriceRepository) DistinctTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := r.db.WithContext(ctx).
		Model(&model.StockPrice{}).
		Distinct("ticker").
		Order("ticker ASC").
		Pluck("ticker", &tickers).Error
	return tickers, err
}

func dayUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
