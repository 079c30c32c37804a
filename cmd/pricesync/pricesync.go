package pricesync

import (
	"context"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/connectors"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

// priceStore is the slice of the price repository the job needs.
type priceStore interface {
	DistinctTickers(ctx context.Context) ([]string, error)
	UpsertPrices(ctx context.Context, rows []model.StockPrice) error
}

// PriceSync pulls a small rolling window of daily bars for every known
// ticker so weekends and holidays are covered automatically.
type PriceSync struct {
	Log    *logger.Entry
	Store  priceStore
	Config *Config
	quotes *connectors.QuotesClient
}

func (p *PriceSync) Start() error {
	ctx := context.Background()

	if p.Config == nil {
		p.Config = GetConfig()
	}
	p.quotes = connectors.NewQuotesClient(p.Config.QuotesURL)

	tickers, err := p.resolveTickers(ctx)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		p.Log.Warn("no tickers to sync, price store is empty and PRICESYNC_TICKERS is unset")
		return nil
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -p.Config.DaysBack)
	end := now.AddDate(0, 0, 1)

	p.Log.WithFields(logger.Fields{
		"tickers":   len(tickers),
		"days_back": p.Config.DaysBack,
	}).Info("Starting daily price sync")

	pause := time.Duration(p.Config.PauseMillis) * time.Millisecond
	totalRows := 0
	failures := 0

	for _, ticker := range tickers {
		rows, err := p.quotes.DailyBars(ctx, ticker, start, end)
		if err != nil {
			failures++
			p.Log.WithError(err).WithField("ticker", ticker).Warn("ticker sync failed")
			if failures > p.Config.MaxFailures {
				return fmt.Errorf("aborting sync after %d ticker failures", failures)
			}
			continue
		}
		if len(rows) == 0 {
			continue
		}

		if err := p.Store.UpsertPrices(ctx, rows); err != nil {
			return fmt.Errorf("upsert for %s failed: %w", ticker, err)
		}
		totalRows += len(rows)

		time.Sleep(pause)
	}

	p.Log.WithFields(logger.Fields{
		"rows":     totalRows,
		"failures": failures,
	}).Info("Daily price sync done")
	return nil
}

func (p *PriceSync) resolveTickers(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(p.Config.Tickers) != "" {
		parts := strings.Split(p.Config.Tickers, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if t := strings.ToUpper(strings.TrimSpace(part)); t != "" {
				out = append(out, t)
			}
		}
		return out, nil
	}
	return p.Store.DistinctTickers(ctx)
}
