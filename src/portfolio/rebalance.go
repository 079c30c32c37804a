package portfolio

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

const targetWeightSumTolerance = 1e-6

const deltaSharesPrecision = 6

type RebalanceTarget struct {
	Ticker string   `json:"ticker"`
	Weight *float64 `json:"weight"`
}

type RebalanceSuggestion struct {
	Ticker        string   `json:"ticker"`
	CurrentValue  float64  `json:"current_value"`
	CurrentWeight float64  `json:"current_weight"`
	TargetWeight  float64  `json:"target_weight"`
	TargetValue   float64  `json:"target_value"`
	DeltaValue    float64  `json:"delta_value"`
	LastPrice     *float64 `json:"last_price"`
	DeltaShares   *float64 `json:"delta_shares"`
}

type RebalanceResult struct {
	PortfolioID        uint                  `json:"portfolio_id"`
	IncludeCashInTotal bool                  `json:"include_cash_in_total"`
	DenominatorValue   float64               `json:"denominator_value"`
	CashBefore         float64               `json:"cash_before"`
	CashAfterEst       float64               `json:"cash_after_est"`
	TargetsSum         float64               `json:"targets_sum"`
	Suggestions        []RebalanceSuggestion `json:"suggestions"`
	Note               string                `json:"note"`
}

// Rebalance computes the trades that would move the portfolio towards the
// target weights. Advisory arithmetic over a fresh valuation only; no
// orders are placed. Targets are validated before any computation.
func (s *Service) Rebalance(ctx context.Context, userID, portfolioID uint, targets []RebalanceTarget, includeCashInTotal bool) (*RebalanceResult, error) {
	targetMap := make(map[string]float64, len(targets))
	sumW := 0.0
	for _, t := range targets {
		ticker, err := NormalizeTicker(t.Ticker)
		if err != nil {
			return nil, err
		}
		if t.Weight == nil {
			return nil, validationErrorf("missing weight for %s", ticker)
		}
		if *t.Weight < 0 {
			return nil, validationErrorf("weight cannot be negative for %s", ticker)
		}
		targetMap[ticker] = *t.Weight
		sumW += *t.Weight
	}
	if sumW > 1+targetWeightSumTolerance {
		return nil, validationErrorf("target weights must sum to <= 1.0")
	}

	val, err := s.Valuation(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	cash := val.Totals.CashCurrent
	holdingsValue := val.Totals.HoldingsValue
	totalValue := val.Totals.TotalValue

	denom := totalValue
	if !includeCashInTotal && holdingsValue > 0 {
		denom = holdingsValue
	}
	if denom <= 0 {
		denom = 1
	}

	current := make(map[string]PositionValuation, len(val.Positions))
	universe := make([]string, 0, len(targetMap)+len(val.Positions))
	for _, p := range val.Positions {
		current[p.Ticker] = p
		universe = append(universe, p.Ticker)
	}
	for ticker := range targetMap {
		if _, ok := current[ticker]; !ok {
			universe = append(universe, ticker)
		}
	}
	sort.Strings(universe)

	suggestions := make([]RebalanceSuggestion, 0, len(universe))
	netTradeValue := 0.0

	for _, ticker := range universe {
		cur, held := current[ticker]

		currentValue := 0.0
		var lastPrice *float64
		if held {
			currentValue = cur.MarketValue
			lastPrice = cur.LastPrice
		}

		targetWeight := targetMap[ticker]
		targetValue := targetWeight * denom
		deltaValue := targetValue - currentValue

		var deltaShares *float64
		if lastPrice != nil && *lastPrice != 0 {
			ds := decimal.NewFromFloat(deltaValue).
				Div(decimal.NewFromFloat(*lastPrice)).
				Round(deltaSharesPrecision).
				InexactFloat64()
			deltaShares = &ds
		}

		netTradeValue += deltaValue

		suggestions = append(suggestions, RebalanceSuggestion{
			Ticker:        ticker,
			CurrentValue:  currentValue,
			CurrentWeight: currentValue / denom,
			TargetWeight:  targetWeight,
			TargetValue:   targetValue,
			DeltaValue:    deltaValue,
			LastPrice:     lastPrice,
			DeltaShares:   deltaShares,
		})
	}

	return &RebalanceResult{
		PortfolioID:        portfolioID,
		IncludeCashInTotal: includeCashInTotal,
		DenominatorValue:   denom,
		CashBefore:         cash,
		CashAfterEst:       cash - netTradeValue,
		TargetsSum:         sumW,
		Suggestions:        suggestions,
		Note:               "Math-only rebalance helper. Not financial advice.",
	}, nil
}
