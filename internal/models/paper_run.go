package models

import (
	"encoding/json"
	"time"
)

// Paper run lifecycle statuses. The engine reports status strings
// verbatim through the event route, so the column is not constrained
// to this set.
const (
	RunStatusActive  = "ACTIVE"
	RunStatusStopped = "STOPPED"
	RunStatusFailed  = "FAILED"
)

// PaperRun is the mutable snapshot of one live paper-trading session.
// Exactly one row per run; balance/status/position events from the
// engine overwrite fields last-write-wins.
type PaperRun struct {
	RunID          string          `gorm:"primarykey;size:64" json:"run_id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	StrategyID     uint            `gorm:"not null;index" json:"strategy_id"`
	Symbol         string          `gorm:"size:20;not null" json:"symbol"`
	Timeframe      string          `gorm:"size:10;not null" json:"timeframe"`
	Exchange       string          `gorm:"size:20;default:binance" json:"exchange"`
	Status         string          `gorm:"size:20;not null;default:ACTIVE" json:"status"`
	FeeRate        float64         `gorm:"default:0.001" json:"fee_rate"`
	InitialBalance float64         `gorm:"not null" json:"initial_balance"`
	QuoteBalance   float64         `json:"quote_balance"`
	BaseBalance    float64         `json:"base_balance"`
	Equity         float64         `json:"equity"`
	LastPrice      *float64        `json:"last_price"`
	Position       json.RawMessage `gorm:"type:jsonb" json:"position"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PaperRun) TableName() string {
	return "paper_run"
}
