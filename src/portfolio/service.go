package portfolio

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/cache"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

const minPortfolioNameLen = 2

// Service is the portfolio accounting engine: ledger CRUD with invariant
// checks, valuation, benchmark-relative performance simulation and the
// rebalance helper. All collaborators are injected so the engine is
// instantiable per test case; nothing in here is a process-wide singleton.
type Service struct {
	portfolios   PortfolioStore
	transactions TransactionStore
	prices       PriceProvider
	benchmark    *BenchmarkService
	cache        *cache.Cache
	perfTTL      time.Duration
	now          func() time.Time
}

func NewService(
	portfolios PortfolioStore,
	transactions TransactionStore,
	prices PriceProvider,
	benchmark *BenchmarkService,
	c *cache.Cache,
	perfTTL time.Duration,
) *Service {
	logger.WithField("component", "PortfolioService").
		Info("Creating new PortfolioService")

	return &Service{
		portfolios:   portfolios,
		transactions: transactions,
		prices:       prices,
		benchmark:    benchmark,
		cache:        c,
		perfTTL:      perfTTL,
		now:          time.Now,
	}
}

// ---------------------------------------------------
// Portfolio CRUD
// ---------------------------------------------------

func (s *Service) ListPortfolios(ctx context.Context, userID uint) ([]model.Portfolio, error) {
	return s.portfolios.ListByUser(ctx, userID)
}

func (s *Service) CreatePortfolio(ctx context.Context, userID uint, payload model.PortfolioCreatePayload) (*model.Portfolio, error) {
	name := strings.TrimSpace(payload.Name)
	if len(name) < minPortfolioNameLen {
		return nil, validationErrorf("portfolio name must be at least %d characters", minPortfolioNameLen)
	}
	if payload.CashBalance < 0 {
		return nil, validationErrorf("cash_balance cannot be negative")
	}

	p := &model.Portfolio{
		UserID:      userID,
		Name:        name,
		CashBalance: payload.CashBalance,
	}
	if err := s.portfolios.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validationErrorf("portfolio name already exists")
		}
		return nil, err
	}
	return p, nil
}

// UpdatePortfolio changes the name and/or the contributed cash balance.
// Any successful update bumps the version token: a cash change alters
// every simulation result, and bumping on rename as well is safe.
func (s *Service) UpdatePortfolio(ctx context.Context, userID, portfolioID uint, payload model.PortfolioUpdatePayload) (*model.Portfolio, error) {
	if payload.Name == nil && payload.CashBalance == nil {
		return nil, validationErrorf("no fields provided to update")
	}

	p, err := s.portfolios.FindByID(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Resource: "portfolio"}
	}

	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		if len(name) < minPortfolioNameLen {
			return nil, validationErrorf("portfolio name must be at least %d characters", minPortfolioNameLen)
		}
		p.Name = name
	}
	if payload.CashBalance != nil {
		if *payload.CashBalance < 0 {
			return nil, validationErrorf("cash_balance cannot be negative")
		}
		p.CashBalance = *payload.CashBalance
	}

	if err := s.portfolios.Update(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validationErrorf("portfolio name already exists")
		}
		return nil, err
	}

	s.cache.Bump(portfolioID)
	return p, nil
}

func (s *Service) DeletePortfolio(ctx context.Context, userID, portfolioID uint) error {
	deleted, err := s.portfolios.Delete(ctx, userID, portfolioID)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{Resource: "portfolio"}
	}
	return nil
}

// ---------------------------------------------------
// Ledger reads
// ---------------------------------------------------

// fetchLedger loads the owned portfolio and its ledger in canonical
// replay order.
func (s *Service) fetchLedger(ctx context.Context, userID, portfolioID uint) (*model.Portfolio, []model.Transaction, error) {
	p, err := s.portfolios.FindByID(ctx, userID, portfolioID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, &NotFoundError{Resource: "portfolio"}
	}

	ledger, err := s.transactions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, nil, err
	}
	return p, ledger, nil
}

type DetailResult struct {
	Portfolio    PortfolioSummary    `json:"portfolio"`
	Holdings     []Position          `json:"holdings"`
	Transactions []model.Transaction `json:"transactions"`
}

func (s *Service) Detail(ctx context.Context, userID, portfolioID uint) (*DetailResult, error) {
	p, ledger, err := s.fetchLedger(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	positions, err := ComputePositions(ledger)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	holdings := make([]Position, 0, len(tickers))
	for _, t := range tickers {
		holdings = append(holdings, positions[t])
	}

	return &DetailResult{
		Portfolio:    PortfolioSummary{ID: p.ID, Name: p.Name, CashBalance: p.CashBalance},
		Holdings:     holdings,
		Transactions: ledger,
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID, portfolioID uint) (*DetailResult, error) {
	return s.Detail(ctx, userID, portfolioID)
}

func (s *Service) Valuation(ctx context.Context, userID, portfolioID uint) (*ValuationResult, error) {
	p, ledger, err := s.fetchLedger(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	return s.valuate(ctx, p, ledger)
}

// ---------------------------------------------------
// Ledger mutations
// ---------------------------------------------------

// resolvePrice auto-fills a missing transaction price from the latest
// close on or before the trade date.
func (s *Service) resolvePrice(ctx context.Context, ticker string, price *float64, tradeDate time.Time) (float64, error) {
	if price == nil {
		latest, err := s.prices.LatestPrice(ctx, ticker, tradeDate)
		if err != nil {
			return 0, err
		}
		if latest == nil {
			return 0, &PriceUnavailableError{Ticker: ticker, OnOrBefore: tradeDate}
		}
		return latest.Price, nil
	}
	if *price <= 0 {
		return 0, validationErrorf("price must be > 0")
	}
	return *price, nil
}

func normalizeSide(raw string) (string, error) {
	side := strings.ToUpper(strings.TrimSpace(raw))
	if side != model.SideBuy && side != model.SideSell {
		return "", validationErrorf("side must be BUY or SELL")
	}
	return side, nil
}

// CreateTransaction validates, durably applies, re-validates the whole
// post-mutation ledger (inside the same DB transaction, rolled back on
// failure), then bumps the portfolio's version token.
func (s *Service) CreateTransaction(ctx context.Context, userID, portfolioID uint, payload model.TransactionCreatePayload) (*model.Transaction, error) {
	ticker, err := NormalizeTicker(payload.Ticker)
	if err != nil {
		return nil, err
	}
	side, err := normalizeSide(payload.Side)
	if err != nil {
		return nil, err
	}
	if payload.Shares <= 0 {
		return nil, validationErrorf("shares must be > 0")
	}
	tradeDate, err := parseDate(payload.TradeDate)
	if err != nil {
		return nil, validationErrorf("trade_date must be YYYY-MM-DD")
	}

	p, err := s.portfolios.FindByID(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Resource: "portfolio"}
	}

	price, err := s.resolvePrice(ctx, ticker, payload.Price, tradeDate)
	if err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Side:        side,
		Shares:      payload.Shares,
		Price:       price,
		TradeDate:   tradeDate,
		Notes:       payload.Notes,
	}
	if err := s.transactions.CreateValidated(ctx, tx, validateLedger); err != nil {
		return nil, err
	}

	s.cache.Bump(portfolioID)
	return tx, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, userID, transactionID uint, payload model.TransactionUpdatePayload) (*model.Transaction, error) {
	side, err := normalizeSide(payload.Side)
	if err != nil {
		return nil, err
	}
	if payload.Shares <= 0 {
		return nil, validationErrorf("shares must be > 0")
	}
	tradeDate, err := parseDate(payload.TradeDate)
	if err != nil {
		return nil, validationErrorf("trade_date must be YYYY-MM-DD")
	}

	tx, err := s.transactions.FindOwned(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &NotFoundError{Resource: "transaction"}
	}

	price, err := s.resolvePrice(ctx, tx.Ticker, payload.Price, tradeDate)
	if err != nil {
		return nil, err
	}

	tx.Side = side
	tx.Shares = payload.Shares
	tx.Price = price
	tx.TradeDate = tradeDate
	tx.Notes = payload.Notes

	if err := s.transactions.UpdateValidated(ctx, tx, validateLedger); err != nil {
		return nil, err
	}

	s.cache.Bump(tx.PortfolioID)
	return tx, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, userID, transactionID uint) error {
	tx, err := s.transactions.FindOwned(ctx, userID, transactionID)
	if err != nil {
		return err
	}
	if tx == nil {
		return &NotFoundError{Resource: "transaction"}
	}

	if err := s.transactions.DeleteValidated(ctx, transactionID, tx.PortfolioID, validateLedger); err != nil {
		return err
	}

	s.cache.Bump(tx.PortfolioID)
	return nil
}
