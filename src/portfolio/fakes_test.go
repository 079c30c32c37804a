package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

// fakePriceProvider serves canned trading-day closes and implements the
// same forward-fill contract as the real repository.
type fakePriceProvider struct {
	// closes[ticker] maps "YYYY-MM-DD" to that day's close.
	closes map[string]map[string]float64

	latestCalls       int
	dailySeriesCalls  int
	crossSectionCalls int
}

func (f *fakePriceProvider) sortedDates(ticker string) []time.Time {
	var days []time.Time
	for ds := range f.closes[ticker] {
		d, err := parseDate(ds)
		if err != nil {
			panic(err)
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func (f *fakePriceProvider) LatestPrice(_ context.Context, ticker string, onOrBefore time.Time) (*PricePoint, error) {
	f.latestCalls++
	var best *PricePoint
	for _, d := range f.sortedDates(ticker) {
		if d.After(dayKey(onOrBefore)) {
			break
		}
		px := f.closes[ticker][formatDate(d)]
		best = &PricePoint{TradeDate: d, Price: px}
	}
	return best, nil
}

func (f *fakePriceProvider) DailySeries(ctx context.Context, ticker string, start, end time.Time) ([]DailyPrice, error) {
	f.dailySeriesCalls++
	var out []DailyPrice
	var last *float64
	for _, d := range f.sortedDates(ticker) {
		if d.After(dayKey(start)) {
			break
		}
		px := f.closes[ticker][formatDate(d)]
		last = &px
	}
	for _, d := range eachDay(start, end) {
		if px, ok := f.closes[ticker][formatDate(d)]; ok {
			v := px
			last = &v
		}
		out = append(out, DailyPrice{Date: d, Price: last})
	}
	return out, nil
}

func (f *fakePriceProvider) CrossSection(context.Context) ([]CrossSectionRow, error) {
	f.crossSectionCalls++
	var tickers []string
	for t := range f.closes {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var rows []CrossSectionRow
	for _, ticker := range tickers {
		for _, d := range f.sortedDates(ticker) {
			rows = append(rows, CrossSectionRow{
				Ticker:    ticker,
				TradeDate: d,
				Price:     f.closes[ticker][formatDate(d)],
			})
		}
	}
	return rows, nil
}

type fakePortfolioStore struct {
	portfolios map[uint]*model.Portfolio
	nextID     uint
	createErr  error
	updateErr  error
}

func newFakePortfolioStore() *fakePortfolioStore {
	return &fakePortfolioStore{portfolios: make(map[uint]*model.Portfolio), nextID: 1}
}

func (f *fakePortfolioStore) ListByUser(_ context.Context, userID uint) ([]model.Portfolio, error) {
	var out []model.Portfolio
	for _, p := range f.portfolios {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePortfolioStore) FindByID(_ context.Context, userID, portfolioID uint) (*model.Portfolio, error) {
	p, ok := f.portfolios[portfolioID]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePortfolioStore) Create(_ context.Context, p *model.Portfolio) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = f.nextID
	f.nextID++
	cp := *p
	f.portfolios[p.ID] = &cp
	return nil
}

func (f *fakePortfolioStore) Update(_ context.Context, p *model.Portfolio) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *p
	f.portfolios[p.ID] = &cp
	return nil
}

func (f *fakePortfolioStore) Delete(_ context.Context, userID, portfolioID uint) (bool, error) {
	p, ok := f.portfolios[portfolioID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(f.portfolios, portfolioID)
	return true, nil
}

// fakeTransactionStore keeps an in-memory ledger and honors the validated
// mutation contract: the check runs against the post-mutation ledger and
// a failure leaves the ledger untouched.
type fakeTransactionStore struct {
	portfolios *fakePortfolioStore
	ledgers    map[uint][]model.Transaction
	nextID     uint
}

func newFakeTransactionStore(portfolios *fakePortfolioStore) *fakeTransactionStore {
	return &fakeTransactionStore{
		portfolios: portfolios,
		ledgers:    make(map[uint][]model.Transaction),
		nextID:     1,
	}
}

func (f *fakeTransactionStore) sortedLedger(portfolioID uint) []model.Transaction {
	ledger := append([]model.Transaction(nil), f.ledgers[portfolioID]...)
	sort.Slice(ledger, func(i, j int) bool {
		di, dj := dayKey(ledger[i].TradeDate), dayKey(ledger[j].TradeDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ledger[i].ID < ledger[j].ID
	})
	return ledger
}

func (f *fakeTransactionStore) ListByPortfolio(_ context.Context, portfolioID uint) ([]model.Transaction, error) {
	return f.sortedLedger(portfolioID), nil
}

func (f *fakeTransactionStore) FindOwned(_ context.Context, userID, transactionID uint) (*model.Transaction, error) {
	for pid, ledger := range f.ledgers {
		owner, ok := f.portfolios.portfolios[pid]
		for _, tx := range ledger {
			if tx.ID == transactionID {
				if !ok || owner.UserID != userID {
					return nil, nil
				}
				cp := tx
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeTransactionStore) CreateValidated(ctx context.Context, tx *model.Transaction, validate func([]model.Transaction) error) error {
	return f.CreateBatchValidated(ctx, []model.Transaction{*tx}, validate)
}

func (f *fakeTransactionStore) CreateBatchValidated(_ context.Context, txs []model.Transaction, validate func([]model.Transaction) error) error {
	pid := txs[0].PortfolioID
	before := append([]model.Transaction(nil), f.ledgers[pid]...)
	id := f.nextID
	for i := range txs {
		txs[i].ID = id
		id++
		f.ledgers[pid] = append(f.ledgers[pid], txs[i])
	}
	if err := validate(f.sortedLedger(pid)); err != nil {
		f.ledgers[pid] = before
		return err
	}
	f.nextID = id
	return nil
}

func (f *fakeTransactionStore) UpdateValidated(_ context.Context, tx *model.Transaction, validate func([]model.Transaction) error) error {
	pid := tx.PortfolioID
	before := append([]model.Transaction(nil), f.ledgers[pid]...)
	for i := range f.ledgers[pid] {
		if f.ledgers[pid][i].ID == tx.ID {
			f.ledgers[pid][i] = *tx
		}
	}
	if err := validate(f.sortedLedger(pid)); err != nil {
		f.ledgers[pid] = before
		return err
	}
	return nil
}

func (f *fakeTransactionStore) DeleteValidated(_ context.Context, transactionID, portfolioID uint, validate func([]model.Transaction) error) error {
	before := append([]model.Transaction(nil), f.ledgers[portfolioID]...)
	kept := f.ledgers[portfolioID][:0]
	for _, tx := range f.ledgers[portfolioID] {
		if tx.ID != transactionID {
			kept = append(kept, tx)
		}
	}
	f.ledgers[portfolioID] = kept
	if err := validate(f.sortedLedger(portfolioID)); err != nil {
		f.ledgers[portfolioID] = before
		return err
	}
	return nil
}

type fakeBenchmarkStore struct {
	points      []model.BenchmarkIndexPoint
	insertCalls int
}

func (f *fakeBenchmarkStore) HasPoints(context.Context) (bool, error) {
	return len(f.points) > 0, nil
}

func (f *fakeBenchmarkStore) InsertPoints(_ context.Context, points []model.BenchmarkIndexPoint) error {
	f.insertCalls++
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeBenchmarkStore) PointsThrough(_ context.Context, end time.Time) ([]model.BenchmarkIndexPoint, error) {
	var out []model.BenchmarkIndexPoint
	for _, pt := range f.points {
		if !dayKey(pt.TradeDate).After(dayKey(end)) {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func mustDate(t string) time.Time {
	d, err := parseDate(t)
	if err != nil {
		panic(err)
	}
	return d
}

func ptrFloat(v float64) *float64 { return &v }
