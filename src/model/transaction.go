package model

import "time"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction is one row of a portfolio's append-only trade ledger.
// Canonical replay order is (trade_date ASC, id ASC); every derivation of
// positions or cash must load the ledger in that order.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PortfolioID uint      `gorm:"index:idx_transactions_portfolio;index:idx_transactions_portfolio_date;not null" json:"portfolio_id"`
	Ticker      string    `gorm:"size:12;not null" json:"ticker"`
	Side        string    `gorm:"size:4;not null" json:"side"`
	Shares      float64   `gorm:"not null" json:"shares"`
	Price       float64   `gorm:"not null" json:"price"`
	TradeDate   time.Time `gorm:"type:date;index:idx_transactions_portfolio_date" json:"trade_date"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

type TransactionCreatePayload struct {
	Ticker    string   `json:"ticker"`
	Side      string   `json:"side"`
	Shares    float64  `json:"shares"`
	Price     *float64 `json:"price"`
	TradeDate string   `json:"trade_date"`
	Notes     *string  `json:"notes"`
}

type TransactionUpdatePayload struct {
	Side      string   `json:"side"`
	Shares    float64  `json:"shares"`
	Price     *float64 `json:"price"`
	TradeDate string   `json:"trade_date"`
	Notes     *string  `json:"notes"`
}
