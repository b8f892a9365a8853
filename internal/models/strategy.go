package models

import (
	"time"
)

type Strategy struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Code        string    `gorm:"type:text;not null" json:"code"`
	Symbol      string    `gorm:"size:20" json:"symbol"`
	Timeframe   string    `gorm:"size:10" json:"timeframe"`
	Exchange    string    `gorm:"size:20;default:binance" json:"exchange"`
	Enabled     bool      `gorm:"default:true" json:"enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategy"
}
