package models

import (
	"encoding/json"
	"time"
)

// Backtest lifecycle statuses.
const (
	BacktestStatusQueued    = "QUEUED"
	BacktestStatusRunning   = "RUNNING"
	BacktestStatusCompleted = "COMPLETED"
	BacktestStatusFailed    = "FAILED"
)

type Backtest struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	RunID          string          `gorm:"size:64;uniqueIndex;not null" json:"run_id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	StrategyID     uint            `gorm:"not null;index" json:"strategy_id"`
	Symbol         string          `gorm:"size:20;not null" json:"symbol"`
	Timeframe      string          `gorm:"size:10;not null" json:"timeframe"`
	Exchange       string          `gorm:"size:20;default:binance" json:"exchange"`
	InitialBalance float64         `gorm:"not null" json:"initial_balance"`
	FeeRate        float64         `gorm:"default:0.001" json:"fee_rate"`
	StartDate      string          `gorm:"size:32;not null" json:"start_date"`
	EndDate        string          `gorm:"size:32;not null" json:"end_date"`
	Status         string          `gorm:"size:20;not null;default:QUEUED" json:"status"`
	FinalBalance   float64         `json:"final_balance"`
	TotalReturnPct float64         `json:"total_return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	WinRatePct     float64         `json:"win_rate_pct"`
	TotalTrades    int             `json:"total_trades"`
	Metrics        json.RawMessage `gorm:"type:jsonb" json:"metrics"`
	EquityCurve    json.RawMessage `gorm:"type:jsonb" json:"equity_curve"`
	Error          string          `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Backtest) TableName() string {
	return "backtest"
}
