package model

import "time"

// BenchmarkIndexPoint is one trading day of the synthetic equal-weight
// benchmark. The table is built lazily exactly once and treated as
// immutable afterwards, even if the underlying price history is corrected.
type BenchmarkIndexPoint struct {
	TradeDate  time.Time `gorm:"type:date;primaryKey" json:"trade_date"`
	IndexValue float64   `gorm:"not null" json:"index_value"`
}

func (BenchmarkIndexPoint) TableName() string {
	return "sp500_index_daily"
}
