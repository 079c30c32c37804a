package portfolio

import (
	"context"
	"sort"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

type PositionValuation struct {
	Ticker          string   `json:"ticker"`
	Shares          float64  `json:"shares"`
	AvgCost         float64  `json:"avg_cost"`
	CostBasis       float64  `json:"cost_basis"`
	PriceDate       *string  `json:"price_date"`
	LastPrice       *float64 `json:"last_price"`
	MarketValue     float64  `json:"market_value"`
	UnrealizedPL    *float64 `json:"unrealized_pl"`
	UnrealizedPLPct *float64 `json:"unrealized_pl_pct"`
	Weight          float64  `json:"weight"`
}

type ValuationTotals struct {
	HoldingsValue         float64  `json:"holdings_value"`
	CashCurrent           float64  `json:"cash_current"`
	TotalValue            float64  `json:"total_value"`
	CostBasisTotal        *float64 `json:"cost_basis_total"`
	UnrealizedPLTotal     *float64 `json:"unrealized_pl_total"`
	UnrealizedPLPctOnCost *float64 `json:"unrealized_pl_pct_on_cost"`
}

type PortfolioSummary struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	CashBalance float64 `json:"cash_balance"`
}

type ValuationResult struct {
	Portfolio PortfolioSummary    `json:"portfolio"`
	Totals    ValuationTotals     `json:"totals"`
	Positions []PositionValuation `json:"positions"`
}

// valuate combines derived positions, derived cash and the latest known
// prices into a market valuation. A missing price is not an error: the
// position is reported with a nil price, zero market value and nil
// unrealized P&L.
func (s *Service) valuate(ctx context.Context, p *model.Portfolio, ledger []model.Transaction) (*ValuationResult, error) {
	positions, err := ComputePositions(ledger)
	if err != nil {
		return nil, err
	}
	cashCurrent := ComputeCashCurrent(p.CashBalance, ledger)

	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	now := s.now()

	out := make([]PositionValuation, 0, len(tickers))
	holdingsValue := 0.0
	costBasisTotal := 0.0
	unrealizedTotal := 0.0

	for _, ticker := range tickers {
		pos := positions[ticker]
		costBasisTotal += pos.CostBasis

		pv := PositionValuation{
			Ticker:    ticker,
			Shares:    pos.Shares,
			AvgCost:   pos.AvgCost,
			CostBasis: pos.CostBasis,
		}

		latest, err := s.prices.LatestPrice(ctx, ticker, now)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			d := formatDate(latest.TradeDate)
			px := latest.Price
			pv.PriceDate = &d
			pv.LastPrice = &px
			pv.MarketValue = pos.Shares * px

			unreal := pv.MarketValue - pos.CostBasis
			pv.UnrealizedPL = &unreal
			unrealizedTotal += unreal
			if pos.CostBasis > 0 {
				pct := unreal / pos.CostBasis
				pv.UnrealizedPLPct = &pct
			}
		}
		holdingsValue += pv.MarketValue

		out = append(out, pv)
	}

	totalValue := cashCurrent + holdingsValue
	for i := range out {
		if totalValue > 0 {
			out[i].Weight = out[i].MarketValue / totalValue
		}
	}

	totals := ValuationTotals{
		HoldingsValue: holdingsValue,
		CashCurrent:   cashCurrent,
		TotalValue:    totalValue,
	}
	if costBasisTotal > 0 {
		cb := costBasisTotal
		up := unrealizedTotal
		pct := unrealizedTotal / costBasisTotal
		totals.CostBasisTotal = &cb
		totals.UnrealizedPLTotal = &up
		totals.UnrealizedPLPctOnCost = &pct
	}

	return &ValuationResult{
		Portfolio: PortfolioSummary{ID: p.ID, Name: p.Name, CashBalance: p.CashBalance},
		Totals:    totals,
		Positions: out,
	}, nil
}
