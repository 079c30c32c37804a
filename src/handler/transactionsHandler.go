package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/auth"
	"github.com/mcosolutions20/historical-stocks/src/model"
	"github.com/mcosolutions20/historical-stocks/src/portfolio"
)

const maxImportBodyBytes = 5 << 20 // 5 MiB

type transactionService interface {
	ListTransactions(ctx context.Context, userID, portfolioID uint) (*portfolio.DetailResult, error)
	CreateTransaction(ctx context.Context, userID, portfolioID uint, payload model.TransactionCreatePayload) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID uint, payload model.TransactionUpdatePayload) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID uint) error
	ExportTransactionsCSV(ctx context.Context, userID, portfolioID uint) (*portfolio.CSVExport, error)
	ImportTransactionsCSV(ctx context.Context, userID, portfolioID uint, csvText string) (int, error)
}

func ListTransactionsHandler(svc transactionService) http.HandlerFunc {
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

		result, err := svc.ListTransactions(r.Context(), user.ID, portfolioID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"portfolio":    result.Portfolio,
			"transactions": result.Transactions,
		})
	}
}

func CreateTransactionHandler(svc transactionService) http.HandlerFunc {
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

		var payload model.TransactionCreatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid transaction create payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		tx, err := svc.CreateTransaction(r.Context(), user.ID, portfolioID, payload)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func UpdateTransactionHandler(svc transactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		transactionID, ok := uintParam(r, "transactionID")
		if !ok {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		var payload model.TransactionUpdatePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid transaction update payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		tx, err := svc.UpdateTransaction(r.Context(), user.ID, transactionID, payload)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func DeleteTransactionHandler(svc transactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		transactionID, ok := uintParam(r, "transactionID")
		if !ok {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		if err := svc.DeleteTransaction(r.Context(), user.ID, transactionID); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func TransactionsExportHandler(svc transactionService) http.HandlerFunc {
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

		export, err := svc.ExportTransactionsCSV(r.Context(), user.ID, portfolioID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeCSV(w, export)
	}
}

// TransactionsImportHandler accepts either a multipart upload under the
// "file" field or a raw CSV body.
func TransactionsImportHandler(svc transactionService) http.HandlerFunc {
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

		csvText, err := readImportBody(r)
		if err != nil {
			http.Error(w, "unable to read CSV upload", http.StatusBadRequest)
			return
		}

		imported, err := svc.ImportTransactionsCSV(r.Context(), user.ID, portfolioID, csvText)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
	}
}

func readImportBody(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportBodyBytes)

	if err := r.ParseMultipartForm(maxImportBodyBytes); err == nil {
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return "", err
			}
			return string(data), nil
		}
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
