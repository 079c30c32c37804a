package portfolio

import (
	"strings"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

// sharesEpsilon is the threshold below which a share count is treated as
// zero. Share counts are sums of repeated fractional trades, so exact
// equality would misclassify fully-closed positions.
const sharesEpsilon = 1e-9

const maxTickerLen = 12

// Position is the derived current holding for one ticker. It is never
// stored; it is recomputed from the full ledger on every read.
type Position struct {
	Ticker    string  `json:"ticker"`
	Shares    float64 `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
	AvgCost   float64 `json:"avg_cost"`
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", validationErrorf("ticker is required")
	}
	if len(t) > maxTickerLen {
		return "", validationErrorf("ticker too long")
	}
	return t, nil
}

// ComputePositions replays the ledger in its given order into per-ticker
// positions. SELLs remove cost at the average cost held at the time of the
// sale (average-cost accounting, not FIFO/LIFO lot matching). A SELL whose
// shares exceed the running count by more than sharesEpsilon fails with
// InsufficientSharesError; the check runs at every prefix of the ledger,
// not just at the end. Tickers whose shares decay to ~0 are dropped as
// closed positions.
//
// The function is pure: the same ledger always yields the same map.
func ComputePositions(ledger []model.Transaction) (map[string]Position, error) {
	pos := make(map[string]Position)

	for _, tx := range ledger {
		ticker, err := NormalizeTicker(tx.Ticker)
		if err != nil {
			return nil, err
		}

		p := pos[ticker]
		p.Ticker = ticker

		avgBefore := 0.0
		if p.Shares > 0 {
			avgBefore = p.CostBasis / p.Shares
		}

		switch tx.Side {
		case model.SideBuy:
			p.Shares += tx.Shares
			p.CostBasis += tx.Shares * tx.Price
		case model.SideSell:
			if tx.Shares > p.Shares+sharesEpsilon {
				return nil, &InsufficientSharesError{Ticker: ticker}
			}
			p.Shares -= tx.Shares
			p.CostBasis -= tx.Shares * avgBefore
			if p.Shares < sharesEpsilon {
				p.Shares = 0
				p.CostBasis = 0
			}
		default:
			return nil, validationErrorf("side must be BUY or SELL")
		}

		if p.Shares > 0 {
			p.AvgCost = p.CostBasis / p.Shares
		} else {
			p.AvgCost = 0
		}
		pos[ticker] = p
	}

	for ticker, p := range pos {
		if p.Shares <= 0 {
			delete(pos, ticker)
		}
	}
	return pos, nil
}

// ComputeCashCurrent derives the current cash balance: the contributed
// cash adjusted by every BUY/SELL cash flow in the ledger.
func ComputeCashCurrent(startingCash float64, ledger []model.Transaction) float64 {
	cash := startingCash
	for _, tx := range ledger {
		if tx.Side == model.SideBuy {
			cash -= tx.Shares * tx.Price
		} else {
			cash += tx.Shares * tx.Price
		}
	}
	return cash
}

// validateLedger is the post-mutation invariant check run inside the same
// storage transaction as the mutation itself, so a ledger that would go
// negative is rolled back rather than durably recorded.
func validateLedger(ledger []model.Transaction) error {
	_, err := ComputePositions(ledger)
	return err
}
