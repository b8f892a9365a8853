package models

import (
	"time"
)

const (
	RunTypePaper    = "PAPER"
	RunTypeBacktest = "BACKTEST"

	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade is one execution record, shared by backtest and paper runs.
// Rows are append-only in the paper path: every trade event from the
// engine inserts a new row, never updates one. The side CHECK mirrors
// the normalizer's guarantee at the storage layer.
type Trade struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	RunID      string     `gorm:"size:64;not null;index" json:"run_id"`
	RunType    string     `gorm:"size:10;not null" json:"run_type"`
	Side       string     `gorm:"size:4;not null;check:side IN ('BUY','SELL')" json:"side"`
	EntryPrice float64    `gorm:"not null" json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	Quantity   float64    `gorm:"not null" json:"quantity"`
	Pnl        float64    `json:"pnl"`
	PnlPercent float64    `json:"pnl_percent"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at"`
	Forced     bool       `gorm:"default:false" json:"forced"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Trade) TableName() string {
	return "trade"
}
