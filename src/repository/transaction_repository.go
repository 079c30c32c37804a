package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

// TransactionRepository handles read/write operations for ledger rows.
// Mutations run the caller-supplied ledger validation inside the same
// database transaction, so a ledger that would violate an invariant is
// rolled back rather than durably recorded.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new repository instance using the
// main read/write database.
func NewTransactionRepository() *TransactionRepository {
	logger.WithField("component", "TransactionRepository").
		Info("Creating new TransactionRepository with MainDB")

	return &TransactionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TransactionRepository) WithDB(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByPortfolio returns the full ledger in canonical replay order.
func (r *TransactionRepository) ListByPortfolio(
	ctx context.Context,
	portfolioID uint,
) ([]model.Transaction, error) {
	return listLedger(r.db.WithContext(ctx), portfolioID)
}

func listLedger(db *gorm.DB, portfolioID uint) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := db.
		Where("portfolio_id = ?", portfolioID).
		Order("trade_date ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// FindOwned fetches a transaction whose portfolio belongs to the given
// user. Returns (nil, nil) when absent or owned by someone else.
func (r *TransactionRepository) FindOwned(
	ctx context.Context,
	userID, transactionID uint,
) (*model.Transaction, error) {

	var tx model.Transaction
	err := r.db.WithContext(ctx).
		Joins("JOIN portfolios ON portfolios.id = transactions.portfolio_id").
		Where("transactions.id = ? AND portfolios.user_id = ?", transactionID, userID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithError(err).Error("Failed to fetch transaction")
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) CreateValidated(
	ctx context.Context,
	tx *model.Transaction,
	validate func([]model.Transaction) error,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TransactionRepository",
		"op":     "CreateValidated",
		"ticker": tx.Ticker,
		"side":   tx.Side,
		"shares": tx.Shares,
	}).Debug("Creating new transaction")

	return r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return err
		}
		return revalidate(dbtx, tx.PortfolioID, validate)
	})
}

func (r *TransactionRepository) CreateBatchValidated(
	ctx context.Context,
	txs []model.Transaction,
	validate func([]model.Transaction) error,
) error {
	if len(txs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(&txs).Error; err != nil {
			return err
		}
		return revalidate(dbtx, txs[0].PortfolioID, validate)
	})
}

func (r *TransactionRepository) UpdateValidated(
	ctx context.Context,
	tx *model.Transaction,
	validate func([]model.Transaction) error,
) error {

	return r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Save(tx).Error; err != nil {
			return err
		}
		return revalidate(dbtx, tx.PortfolioID, validate)
	})
}

func (r *TransactionRepository) DeleteValidated(
	ctx context.Context,
	transactionID, portfolioID uint,
	validate func([]model.Transaction) error,
) error {

	return r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		res := dbtx.Where("id = ? AND portfolio_id = ?", transactionID, portfolioID).
			Delete(&model.Transaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return revalidate(dbtx, portfolioID, validate)
	})
}

// revalidate reloads the post-mutation ledger and runs the invariant
// check; a non-nil error aborts the surrounding transaction.
func revalidate(dbtx *gorm.DB, portfolioID uint, validate func([]model.Transaction) error) error {
	if validate == nil {
		return nil
	}
	ledger, err := listLedger(dbtx, portfolioID)
	if err != nil {
		return err
	}
	return validate(ledger)
}
