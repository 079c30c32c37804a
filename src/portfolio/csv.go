package portfolio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

const maxImportErrors = 25

type CSVExport struct {
	Filename string `json:"filename"`
	CSV      string `json:"csv"`
}

type ImportRowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportError aggregates per-row failures; nothing is inserted when it is
// returned.
type ImportError struct {
	Errors []ImportRowError
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("CSV validation failed (%d row errors)", len(e.Errors))
}

// ExportTransactionsCSV renders the ledger as CSV for download.
func (s *Service) ExportTransactionsCSV(ctx context.Context, userID, portfolioID uint) (*CSVExport, error) {
	_, ledger, err := s.fetchLedger(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ticker", "side", "shares", "price", "trade_date", "notes"})
	for _, tx := range ledger {
		notes := ""
		if tx.Notes != nil {
			notes = *tx.Notes
		}
		_ = w.Write([]string{
			tx.Ticker,
			tx.Side,
			strconv.FormatFloat(tx.Shares, 'f', -1, 64),
			strconv.FormatFloat(tx.Price, 'f', -1, 64),
			formatDate(tx.TradeDate),
			notes,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &CSVExport{
		Filename: fmt.Sprintf("portfolio_%d_transactions.csv", portfolioID),
		CSV:      buf.String(),
	}, nil
}

// Common brokerage / app export header aliases, matched after lower-casing
// and collapsing separators to underscores.
var csvHeaderAliases = map[string][]string{
	"ticker":     {"ticker", "symbol", "security", "instrument", "underlying", "asset"},
	"side":       {"side", "action", "type", "transaction_type", "buy_sell", "order_side"},
	"shares":     {"shares", "qty", "quantity", "units", "shares_quantity"},
	"price":      {"price", "fill_price", "avg_price", "execution_price", "trade_price"},
	"trade_date": {"trade_date", "date", "trade_date_utc", "filled_at", "execution_date"},
	"notes":      {"notes", "note", "description", "memo"},
}

func canonHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	for _, sep := range []string{" ", "-", "."} {
		h = strings.ReplaceAll(h, sep, "_")
	}
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return h
}

// ImportTransactionsCSV parses a brokerage-style export, auto-fills blank
// prices from the price store, and inserts all rows atomically with the
// usual post-mutation ledger re-validation and a single version bump.
// Rows with problems are collected (up to maxImportErrors) and reported
// without inserting anything.
func (s *Service) ImportTransactionsCSV(ctx context.Context, userID, portfolioID uint, csvText string) (int, error) {
	if strings.TrimSpace(csvText) == "" {
		return 0, validationErrorf("empty CSV")
	}

	p, err := s.portfolios.FindByID(ctx, userID, portfolioID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, &NotFoundError{Resource: "portfolio"}
	}

	r := csv.NewReader(strings.NewReader(csvText))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, validationErrorf("CSV missing headers")
	}

	colIdx := make(map[string]int)
	for i, h := range header {
		if h != "" {
			colIdx[canonHeader(h)] = i
		}
	}
	findCol := func(key string) int {
		for _, alias := range csvHeaderAliases[key] {
			if i, ok := colIdx[alias]; ok {
				return i
			}
		}
		return -1
	}

	colTicker := findCol("ticker")
	colSide := findCol("side")
	colShares := findCol("shares")
	colPrice := findCol("price")
	colDate := findCol("trade_date")
	colNotes := findCol("notes")

	var missing []string
	if colTicker < 0 {
		missing = append(missing, "ticker")
	}
	if colShares < 0 {
		missing = append(missing, "shares")
	}
	if colDate < 0 {
		missing = append(missing, "trade_date")
	}
	// side may be inferred from a signed quantity, so it is not required.
	if len(missing) > 0 {
		return 0, validationErrorf("CSV missing required column(s): %s", strings.Join(missing, ", "))
	}

	field := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []model.Transaction
	var rowErrors []ImportRowError

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrors = append(rowErrors, ImportRowError{Line: line, Error: err.Error()})
			if len(rowErrors) >= maxImportErrors {
				break
			}
			continue
		}

		tx, err := s.parseImportRow(ctx, portfolioID, record, colTicker, colSide, colShares, colPrice, colDate, colNotes, field)
		if err != nil {
			rowErrors = append(rowErrors, ImportRowError{Line: line, Error: err.Error()})
			if len(rowErrors) >= maxImportErrors {
				break
			}
			continue
		}
		rows = append(rows, *tx)
	}

	if len(rowErrors) > 0 {
		return 0, &ImportError{Errors: rowErrors}
	}

	if err := s.transactions.CreateBatchValidated(ctx, rows, validateLedger); err != nil {
		return 0, err
	}

	s.cache.Bump(portfolioID)
	return len(rows), nil
}

func (s *Service) parseImportRow(
	ctx context.Context,
	portfolioID uint,
	record []string,
	colTicker, colSide, colShares, colPrice, colDate, colNotes int,
	field func([]string, int) string,
) (*model.Transaction, error) {
	ticker, err := NormalizeTicker(field(record, colTicker))
	if err != nil {
		return nil, err
	}

	sharesRaw := strings.ReplaceAll(field(record, colShares), ",", "")
	if sharesRaw == "" {
		return nil, fmt.Errorf("shares is required")
	}
	sharesDec, err := decimal.NewFromString(sharesRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid shares %q", sharesRaw)
	}
	sharesSigned := sharesDec.InexactFloat64()
	if sharesSigned == 0 {
		return nil, fmt.Errorf("shares must be non-zero")
	}

	tradeDate, err := parseImportDate(field(record, colDate))
	if err != nil {
		return nil, err
	}

	side, err := parseImportSide(field(record, colSide), sharesSigned)
	if err != nil {
		return nil, err
	}
	shares := sharesSigned
	if shares < 0 {
		shares = -shares
	}

	var price *float64
	if raw := strings.ReplaceAll(field(record, colPrice), ",", ""); raw != "" {
		dec, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", raw)
		}
		px := dec.InexactFloat64()
		if px <= 0 {
			return nil, fmt.Errorf("price must be > 0")
		}
		price = &px
	}

	resolved, err := s.resolvePrice(ctx, ticker, price, tradeDate)
	if err != nil {
		return nil, err
	}

	var notes *string
	if n := field(record, colNotes); n != "" {
		notes = &n
	}

	return &model.Transaction{
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Side:        side,
		Shares:      shares,
		Price:       resolved,
		TradeDate:   tradeDate,
		Notes:       notes,
	}, nil
}

func parseImportDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("trade_date is required")
	}
	if len(raw) >= len(dateLayout) {
		if d, err := parseDate(raw[:len(dateLayout)]); err == nil {
			return d, nil
		}
	}
	if d, err := time.ParseInLocation("1/2/2006", raw, time.UTC); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("trade_date must be YYYY-MM-DD or MM/DD/YYYY")
}

func parseImportSide(raw string, sharesSigned float64) (string, error) {
	side := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case side == "BUY" || side == "B" || strings.Contains(side, "BUY"):
		return model.SideBuy, nil
	case side == "SELL" || side == "S" || strings.Contains(side, "SELL"):
		return model.SideSell, nil
	case side == "PURCHASE" || side == "OPEN":
		return model.SideBuy, nil
	case side == "CLOSE" || side == "REDEMPTION":
		return model.SideSell, nil
	case sharesSigned < 0:
		return model.SideSell, nil
	case sharesSigned > 0:
		return model.SideBuy, nil
	}
	return "", fmt.Errorf("side must be BUY or SELL")
}

// ExportPerformanceCSV renders the performance series with derived daily
// and cumulative return and drawdown columns, one row per day.
func (s *Service) ExportPerformanceCSV(ctx context.Context, userID, portfolioID uint, start, end time.Time, benchmarkTicker string) (*CSVExport, error) {
	perf, err := s.Performance(ctx, userID, portfolioID, start, end, benchmarkTicker)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"date",
		"portfolio_value",
		"portfolio_index",
		"benchmark_price",
		"benchmark_index",
		"portfolio_daily_return",
		"benchmark_daily_return",
		"portfolio_cum_return",
		"benchmark_cum_return",
		"portfolio_drawdown",
		"benchmark_drawdown",
	})

	fmtFloat := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fmtPtr := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmtFloat(*v)
	}
	ratio := func(base *float64, cur *float64) *float64 {
		if base == nil || cur == nil || *base == 0 {
			return nil
		}
		r := *cur / *base
		r--
		return &r
	}

	var firstPV, firstBI, prevPV, prevBI, peakPV, peakBI *float64

	for _, pt := range perf.Series {
		pv := pt.PortfolioValue
		bi := pt.BenchmarkIndex

		if firstPV == nil {
			v := pv
			firstPV = &v
		}
		if firstBI == nil && bi != nil {
			firstBI = bi
		}

		if peakPV == nil || pv > *peakPV {
			v := pv
			peakPV = &v
		}
		if bi != nil && (peakBI == nil || *bi > *peakBI) {
			peakBI = bi
		}

		pvPtr := &pv

		_ = w.Write([]string{
			pt.Date,
			fmtFloat(pv),
			fmtFloat(pt.PortfolioIndex),
			fmtPtr(pt.BenchmarkPrice),
			fmtPtr(bi),
			fmtPtr(ratio(prevPV, pvPtr)),
			fmtPtr(ratio(prevBI, bi)),
			fmtPtr(ratio(firstPV, pvPtr)),
			fmtPtr(ratio(firstBI, bi)),
			fmtPtr(ratio(peakPV, pvPtr)),
			fmtPtr(ratio(peakBI, bi)),
		})

		prevPV = pvPtr
		if bi != nil {
			prevBI = bi
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	safeBench := strings.ReplaceAll(perf.BenchmarkTicker, "/", "_")
	return &CSVExport{
		Filename: fmt.Sprintf("portfolio_%d_performance_%s_%s_%s.csv", portfolioID, perf.Start, perf.End, safeBench),
		CSV:      buf.String(),
	}, nil
}
