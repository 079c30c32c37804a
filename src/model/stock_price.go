package model

import "time"

// StockPrice is one daily bar of the historical price store. Only the
// adjusted close matters to the portfolio engine; AdjClose is nullable
// because the upstream feed has gaps.
type StockPrice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Ticker    string    `gorm:"size:12;uniqueIndex:idx_sp500_ticker_date;not null" json:"ticker"`
	TradeDate time.Time `gorm:"type:date;uniqueIndex:idx_sp500_ticker_date" json:"trade_date"`
	AdjClose  *float64  `json:"adj_close"`
}

func (StockPrice) TableName() string {
	return "sp500_historical"
}
