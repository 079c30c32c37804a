package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/auth"
	"github.com/mcosolutions20/historical-stocks/src/model"
	"github.com/mcosolutions20/historical-stocks/src/portfolio"
)

type portfolioService interface {
	ListPortfolios(ctx context.Context, userID uint) ([]model.Portfolio, error)
	CreatePortfolio(ctx context.Context, userID uint, payload model.PortfolioCreatePayload) (*model.Portfolio, error)
	UpdatePortfolio(ctx context.Context, userID, portfolioID uint, payload model.PortfolioUpdatePayload) (*model.Portfolio, error)
	DeletePortfolio(ctx context.Context, userID, portfolioID uint) error
	Detail(ctx context.Context, userID, portfolioID uint) (*portfolio.DetailResult, error)
	Valuation(ctx context.Context, userID, portfolioID uint) (*portfolio.ValuationResult, error)
	Rebalance(ctx context.Context, userID, portfolioID uint, targets []portfolio.RebalanceTarget, includeCash bool) (*portfolio.RebalanceResult, error)
}

func ListPortfoliosHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		portfolios, err := svc.ListPortfolios(r.Context(), user.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, portfolios)
	}
}

func CreatePortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload model.PortfolioCreatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid portfolio create payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		p, err := svc.CreatePortfolio(r.Context(), user.ID, payload)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func PortfolioDetailHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}

		detail, err := svc.Detail(r.Context(), user.ID, portfolioID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func UpdatePortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}

		var payload model.PortfolioUpdatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid portfolio update payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		p, err := svc.UpdatePortfolio(r.Context(), user.ID, portfolioID, payload)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func DeletePortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}

		if err := svc.DeletePortfolio(r.Context(), user.ID, portfolioID); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func ValuationHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}

		valuation, err := svc.Valuation(r.Context(), user.ID, portfolioID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, valuation)
	}
}

type rebalancePayload struct {
	Targets            []portfolio.RebalanceTarget `json:"targets"`
	IncludeCashInTotal *bool                       `json:"include_cash_in_total"`
}

func RebalanceHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}

		var payload rebalancePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid rebalance payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		includeCash := true
		if payload.IncludeCashInTotal != nil {
			includeCash = *payload.IncludeCashInTotal
		}

		result, err := svc.Rebalance(r.Context(), user.ID, portfolioID, payload.Targets, includeCash)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type performanceService interface {
	Performance(ctx context.Context, userID, portfolioID uint, start, end time.Time, benchmark string) (*portfolio.PerformanceResult, error)
	ExportPerformanceCSV(ctx context.Context, userID, portfolioID uint, start, end time.Time, benchmark string) (*portfolio.CSVExport, error)
}

func parseRange(r *http.Request) (start, end time.Time, benchmark string, ok bool) {
	var err error
	start, err = time.ParseInLocation("2006-01-02", r.URL.Query().Get("start"), time.UTC)
	if err != nil {
		return start, end, "", false
	}
	end, err = time.ParseInLocation("2006-01-02", r.URL.Query().Get("end"), time.UTC)
	if err != nil {
		return start, end, "", false
	}
	benchmark = r.URL.Query().Get("benchmark")
	if benchmark == "" {
		benchmark = "SP500"
	}
	return start, end, benchmark, true
}

func PerformanceHandler(svc performanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}
		start, end, benchmark, ok := parseRange(r)
		if !ok {
			http.Error(w, "start and end must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		result, err := svc.Performance(r.Context(), user.ID, portfolioID, start, end, benchmark)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func PerformanceExportHandler(svc performanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		portfolioID, ok := uintParam(r, "portfolioID")
		if !ok {
			http.Error(w, "invalid portfolio id", http.StatusBadRequest)
			return
		}
		start, end, benchmark, ok := parseRange(r)
		if !ok {
			http.Error(w, "start and end must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		export, err := svc.ExportPerformanceCSV(r.Context(), user.ID, portfolioID, start, end, benchmark)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeCSV(w, export)
	}
}

func writeCSV(w http.ResponseWriter, export *portfolio.CSVExport) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	if _, err := w.Write([]byte(export.CSV)); err != nil {
		logger.WithError(err).Error("failed to write CSV response")
	}
}
