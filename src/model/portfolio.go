package model

import "time"

// Portfolio holds the starting (contributed) cash balance, not the current
// cash. Current cash is always derived from the transaction ledger.
type Portfolio struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;uniqueIndex:idx_portfolios_user_name;not null" json:"user_id"`
	Name        string    `gorm:"size:120;uniqueIndex:idx_portfolios_user_name;not null" json:"name"`
	CashBalance float64   `gorm:"not null;default:0" json:"cash_balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

type PortfolioCreatePayload struct {
	Name        string  `json:"name"`
	CashBalance float64 `json:"cash_balance"`
}

type PortfolioUpdatePayload struct {
	Name        *string  `json:"name"`
	CashBalance *float64 `json:"cash_balance"`
}
