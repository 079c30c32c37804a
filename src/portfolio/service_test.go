package portfolio

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

func TestCreatePortfolioValidation(t *testing.T) {
	env := newTestEnv(nil)

	if _, err := env.svc.CreatePortfolio(context.Background(), 1, model.PortfolioCreatePayload{Name: " x "}); err == nil {
		t.Fatal("expected error for a too-short name")
	}
	if _, err := env.svc.CreatePortfolio(context.Background(), 1, model.PortfolioCreatePayload{Name: "Core", CashBalance: -1}); err == nil {
		t.Fatal("expected error for negative cash")
	}

	p, err := env.svc.CreatePortfolio(context.Background(), 1, model.PortfolioCreatePayload{Name: "  Core  ", CashBalance: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Core" {
		t.Fatalf("expected trimmed name, got %q", p.Name)
	}
}

func TestCreatePortfolioDuplicateName(t *testing.T) {
	env := newTestEnv(nil)
	env.portfolios.createErr = gorm.ErrDuplicatedKey

	_, err := env.svc.CreatePortfolio(context.Background(), 1, model.PortfolioCreatePayload{Name: "Core"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate name, got %v", err)
	}
}

func TestUpdatePortfolioBumpsVersion(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 100)

	before := env.cache.Version(pid)

	newCash := 500.0
	p, err := env.svc.UpdatePortfolio(context.Background(), 1, pid, model.PortfolioUpdatePayload{CashBalance: &newCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CashBalance != 500 {
		t.Fatalf("expected cash 500, got %v", p.CashBalance)
	}
	if env.cache.Version(pid) <= before {
		t.Fatal("cash update must bump the version token")
	}
}

func TestUpdatePortfolioNoFields(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 100)

	if _, err := env.svc.UpdatePortfolio(context.Background(), 1, pid, model.PortfolioUpdatePayload{}); err == nil {
		t.Fatal("expected error when no fields are provided")
	}
}

func TestDeletePortfolioNotFound(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 100)

	if err := env.svc.DeletePortfolio(context.Background(), 2, pid); err == nil {
		t.Fatal("expected NotFoundError for another user's portfolio")
	}
	if err := env.svc.DeletePortfolio(context.Background(), 1, pid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.DeletePortfolio(context.Background(), 1, pid); err == nil {
		t.Fatal("expected NotFoundError on second delete")
	}
}

func TestCreateTransactionAutoFillsPrice(t *testing.T) {
	env := newTestEnv(map[string]map[string]float64{
		"AAPL": {"2024-01-02": 100, "2024-01-04": 110},
	})
	pid := env.addPortfolio(1, "Core", 10000)

	// Trade dated on a non-trading day resolves to the latest prior close.
	tx, err := env.svc.CreateTransaction(context.Background(), 1, pid, model.TransactionCreatePayload{
		Ticker:    "aapl",
		Side:      "buy",
		Shares:    5,
		TradeDate: "2024-01-03",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Ticker != "AAPL" || tx.Side != model.SideBuy {
		t.Fatalf("expected normalized ticker and side, got %+v", tx)
	}
	if tx.Price != 100 {
		t.Fatalf("expected auto-filled price 100, got %v", tx.Price)
	}
}

func TestCreateTransactionPriceUnavailable(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 10000)

	_, err := env.svc.CreateTransaction(context.Background(), 1, pid, model.TransactionCreatePayload{
		Ticker:    "AAPL",
		Side:      "BUY",
		Shares:    5,
		TradeDate: "2024-01-03",
	})
	var unavailable *PriceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected PriceUnavailableError, got %v", err)
	}
}

func TestCreateTransactionOversellRolledBack(t *testing.T) {
	env := newTestEnv(map[string]map[string]float64{
		"AAPL": {"2024-01-02": 100},
	})
	pid := env.addPortfolio(1, "Core", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 5, 100, "2024-01-02")

	versionBefore := env.cache.Version(pid)

	_, err := env.svc.CreateTransaction(context.Background(), 1, pid, model.TransactionCreatePayload{
		Ticker:    "AAPL",
		Side:      "SELL",
		Shares:    10,
		Price:     ptrFloat(100),
		TradeDate: "2024-01-03",
	})
	var insufficient *InsufficientSharesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientSharesError, got %v", err)
	}

	// The rejected row must not be durable and must not bump the version.
	ledger, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	if len(ledger) != 1 {
		t.Fatalf("rejected transaction leaked into the ledger: %+v", ledger)
	}
	if env.cache.Version(pid) != versionBefore {
		t.Fatal("rejected mutation must not bump the version token")
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 10000)

	cases := []model.TransactionCreatePayload{
		{Ticker: "", Side: "BUY", Shares: 1, Price: ptrFloat(1), TradeDate: "2024-01-02"},
		{Ticker: "AAPL", Side: "HOLD", Shares: 1, Price: ptrFloat(1), TradeDate: "2024-01-02"},
		{Ticker: "AAPL", Side: "BUY", Shares: 0, Price: ptrFloat(1), TradeDate: "2024-01-02"},
		{Ticker: "AAPL", Side: "BUY", Shares: 1, Price: ptrFloat(-5), TradeDate: "2024-01-02"},
		{Ticker: "AAPL", Side: "BUY", Shares: 1, Price: ptrFloat(1), TradeDate: "02/01/2024"},
	}
	for i, payload := range cases {
		if _, err := env.svc.CreateTransaction(context.Background(), 1, pid, payload); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, payload)
		}
	}
}

func TestUpdateTransactionRevalidatesDownstream(t *testing.T) {
	env := newTestEnv(map[string]map[string]float64{
		"AAPL": {"2024-01-02": 100},
	})
	pid := env.addPortfolio(1, "Core", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 10, 100, "2024-01-02")
	env.addTransaction(pid, "AAPL", model.SideSell, 8, 100, "2024-01-03")

	ledger, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	buyID := ledger[0].ID

	// Shrinking the BUY makes the later SELL an oversell; the whole
	// edit must be rejected.
	_, err := env.svc.UpdateTransaction(context.Background(), 1, buyID, model.TransactionUpdatePayload{
		Side:      "BUY",
		Shares:    5,
		Price:     ptrFloat(100),
		TradeDate: "2024-01-02",
	})
	var insufficient *InsufficientSharesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientSharesError, got %v", err)
	}

	after, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	if after[0].Shares != 10 {
		t.Fatalf("rejected edit must roll back, shares became %v", after[0].Shares)
	}
}

func TestDeleteTransactionRevalidatesDownstream(t *testing.T) {
	env := newTestEnv(map[string]map[string]float64{
		"AAPL": {"2024-01-02": 100},
	})
	pid := env.addPortfolio(1, "Core", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 10, 100, "2024-01-02")
	env.addTransaction(pid, "AAPL", model.SideSell, 8, 100, "2024-01-03")

	ledger, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	buyID := ledger[0].ID

	var insufficient *InsufficientSharesError
	if err := env.svc.DeleteTransaction(context.Background(), 1, buyID); !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientSharesError deleting the funding BUY, got %v", err)
	}

	after, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	if len(after) != 2 {
		t.Fatalf("rejected delete must roll back, ledger has %d rows", len(after))
	}
}

func TestTransactionOwnershipHidden(t *testing.T) {
	env := newTestEnv(map[string]map[string]float64{
		"AAPL": {"2024-01-02": 100},
	})
	pid := env.addPortfolio(1, "Core", 10000)
	env.addTransaction(pid, "AAPL", model.SideBuy, 10, 100, "2024-01-02")

	ledger, _ := env.transactions.ListByPortfolio(context.Background(), pid)
	txID := ledger[0].ID

	if err := env.svc.DeleteTransaction(context.Background(), 2, txID); err == nil {
		t.Fatal("expected NotFoundError for another user's transaction")
	}
	var notFound *NotFoundError
	_, err := env.svc.UpdateTransaction(context.Background(), 2, txID, model.TransactionUpdatePayload{
		Side: "BUY", Shares: 1, Price: ptrFloat(1), TradeDate: "2024-01-02",
	})
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDetailSortsHoldings(t *testing.T) {
	env := newTestEnv(nil)
	pid := env.addPortfolio(1, "Core", 10000)
	env.addTransaction(pid, "MSFT", model.SideBuy, 1, 300, "2024-01-02")
	env.addTransaction(pid, "AAPL", model.SideBuy, 1, 100, "2024-01-02")

	detail, err := env.svc.Detail(context.Background(), 1, pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Holdings) != 2 || detail.Holdings[0].Ticker != "AAPL" || detail.Holdings[1].Ticker != "MSFT" {
		t.Fatalf("holdings not sorted by ticker: %+v", detail.Holdings)
	}
	if len(detail.Transactions) != 2 {
		t.Fatalf("expected full ledger in detail, got %d rows", len(detail.Transactions))
	}
}
