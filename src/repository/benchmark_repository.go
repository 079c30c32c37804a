package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

const benchmarkInsertBatchSize = 500

// BenchmarkRepository persists the synthetic benchmark index series.
// The table is written once by the lazy build and read-only afterwards.
type BenchmarkRepository struct {
	db *gorm.DB
}

func NewBenchmarkRepository() *BenchmarkRepository {
	logger.WithField("component", "BenchmarkRepository").
		Info("Creating new BenchmarkRepository with MainDB")

	return &BenchmarkRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BenchmarkRepository) WithDB(db *gorm.DB) *BenchmarkRepository {
	return &BenchmarkRepository{db: db}
}

func (r *BenchmarkRepository) HasPoints(ctx context.Context) (bool, error) {
	var point model.BenchmarkIndexPoint
	err := r.db.WithContext(ctx).
		Limit(1).
		First(&point).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *BenchmarkRepository) InsertPoints(ctx context.Context, points []model.BenchmarkIndexPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		CreateInBatches(points, benchmarkInsertBatchSize).Error
}

// PointsThrough returns all index points with trade_date <= end, ascending.
func (r *BenchmarkRepository) PointsThrough(ctx context.Context, end time.Time) ([]model.BenchmarkIndexPoint, error) {
	var points []model.BenchmarkIndexPoint
	err := r.db.WithContext(ctx).
		Where("trade_date <= ?", end).
		Order("trade_date ASC").
		Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}
