package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

// PortfolioRepository handles read/write operations for portfolios.
// Every query is scoped by the owning user.
type PortfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new repository instance using the main
// read/write database.
func NewPortfolioRepository() *PortfolioRepository {
	logger.WithField("component", "PortfolioRepository").
		Info("Creating new PortfolioRepository with MainDB")

	return &PortfolioRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PortfolioRepository) WithDB(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) ListByUser(
	ctx context.Context,
	userID uint,
) ([]model.Portfolio, error) {

	var portfolios []model.Portfolio
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&portfolios).Error
	if err != nil {
		logger.WithError(err).Error("Failed to list portfolios")
		return nil, err
	}
	return portfolios, nil
}

// FindByID fetches a portfolio owned by the given user.
// Returns (nil, nil) when it does not exist or belongs to someone else.
func (r *PortfolioRepository) FindByID(
	ctx context.Context,
	userID, portfolioID uint,
) (*model.Portfolio, error) {

	var p model.Portfolio
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", portfolioID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithError(err).Error("Failed to fetch portfolio")
		return nil, err
	}
	return &p, nil
}

func (r *PortfolioRepository) Create(
	ctx context.Context,
	p *model.Portfolio,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PortfolioRepository",
		"op":      "Create",
		"user_id": p.UserID,
		"name":    p.Name,
	}).Debug("Creating new portfolio")

	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PortfolioRepository) Update(
	ctx context.Context,
	p *model.Portfolio,
) error {

	return r.db.WithContext(ctx).Save(p).Error
}

// Delete removes a portfolio and reports whether a row was removed.
// Ledger rows are removed in the same transaction; there is no soft delete.
func (r *PortfolioRepository) Delete(
	ctx context.Context,
	userID, portfolioID uint,
) (bool, error) {

	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", portfolioID, userID).
			Delete(&model.Portfolio{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("portfolio_id = ?", portfolioID).
			Delete(&model.Transaction{}).Error
	})
	if err != nil {
		logger.WithError(err).Error("Failed to delete portfolio")
		return false, err
	}
	return deleted, nil
}
