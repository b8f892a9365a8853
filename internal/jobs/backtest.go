package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quantlab/internal/models"
	"quantlab/internal/relay"
	"quantlab/pkg/engine"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Backtests over long windows can take minutes on the engine side.
const backtestTimeout = 30 * time.Minute

// BacktestJob is the queue message for one backtest. The strategy
// source is captured at submit time so a later edit does not change a
// queued run.
type BacktestJob struct {
	BacktestID uint   `json:"backtest_id"`
	Code       string `json:"code"`
}

// backtestTrade is one trade from the engine's backtest report. The
// engine has emitted both "pnl" and "net_pnl" across versions.
type backtestTrade struct {
	relay.TradePayload
	NetPnl *float64 `json:"net_pnl"`
}

// RunBacktest executes one backtest job end to end: mark the row
// RUNNING, call the engine, persist metrics and trade rows, mark
// COMPLETED. Engine failures mark the row FAILED and are swallowed so
// the message is acked rather than requeued forever; only storage
// errors propagate for a requeue.
func RunBacktest(db *gorm.DB, ec *engine.Client, job BacktestJob) error {
	var bt models.Backtest
	if err := db.First(&bt, job.BacktestID).Error; err != nil {
		return fmt.Errorf("load backtest %d: %w", job.BacktestID, err)
	}

	if bt.Status == models.BacktestStatusCompleted {
		log.WithFields(log.Fields{
			"backtest_id": bt.ID,
			"run_id":      bt.RunID,
		}).Warn("Backtest already completed, skipping")
		return nil
	}

	if err := db.Model(&bt).Update("status", models.BacktestStatusRunning).Error; err != nil {
		return fmt.Errorf("mark backtest running: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	result, err := ec.RunBacktest(ctx, engine.BacktestRequest{
		Code:           job.Code,
		Exchange:       bt.Exchange,
		Symbol:         bt.Symbol,
		Timeframe:      bt.Timeframe,
		InitialBalance: bt.InitialBalance,
		StartDate:      bt.StartDate,
		EndDate:        bt.EndDate,
		FeeRate:        bt.FeeRate,
		RunID:          bt.RunID,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"backtest_id": bt.ID,
			"run_id":      bt.RunID,
			"error":       err.Error(),
		}).Error("Backtest failed on engine")
		return db.Model(&bt).Updates(map[string]interface{}{
			"status": models.BacktestStatusFailed,
			"error":  err.Error(),
		}).Error
	}

	metrics, err := json.Marshal(map[string]float64{
		"total_return_usdt":    result.TotalReturnUSDT,
		"total_return_percent": result.TotalReturnPercent,
		"max_drawdown_percent": result.MaxDrawdownPercent,
		"win_rate_percent":     result.WinRatePercent,
		"profit_factor":        result.ProfitFactor,
	})
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	trades := make([]models.Trade, 0, len(result.Trades))
	for _, raw := range result.Trades {
		var p backtestTrade
		if err := json.Unmarshal(raw, &p); err != nil {
			log.WithFields(log.Fields{
				"backtest_id": bt.ID,
				"error":       err.Error(),
			}).Warn("Skipping undecodable backtest trade")
			continue
		}
		trades = append(trades, tradeRow(bt.RunID, p))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(trades) > 0 {
			if err := tx.Create(&trades).Error; err != nil {
				return err
			}
		}
		return tx.Model(&bt).Updates(map[string]interface{}{
			"status":           models.BacktestStatusCompleted,
			"final_balance":    result.FinalBalance,
			"total_return_pct": result.TotalReturnPercent,
			"max_drawdown_pct": result.MaxDrawdownPercent,
			"win_rate_pct":     result.WinRatePercent,
			"total_trades":     result.TotalTrades,
			"metrics":          json.RawMessage(metrics),
			"equity_curve":     result.EquityCurve,
			"error":            "",
		}).Error
	})
	if err != nil {
		return fmt.Errorf("persist backtest result: %w", err)
	}

	log.WithFields(log.Fields{
		"backtest_id":  bt.ID,
		"run_id":       bt.RunID,
		"total_trades": result.TotalTrades,
	}).Info("Backtest completed")
	return nil
}

// tradeRow normalizes one engine trade into a storable row, with the
// same side/timestamp normalization the paper path uses.
func tradeRow(runID string, p backtestTrade) models.Trade {
	var entryPrice float64
	if p.EntryPrice != nil {
		entryPrice = *p.EntryPrice
	}

	var pnl float64
	switch {
	case p.Pnl != nil:
		pnl = *p.Pnl
	case p.NetPnl != nil:
		pnl = *p.NetPnl
	}

	pnlPercent := 0.0
	if p.PnlPercent != nil {
		pnlPercent = *p.PnlPercent
	} else if denom := entryPrice * p.Quantity; denom != 0 {
		pnlPercent = pnl / denom * 100
	}

	var closedAt *time.Time
	if p.ClosedAt != nil {
		t := relay.NormalizeTimestamp(p.ClosedAt)
		closedAt = &t
	}

	return models.Trade{
		RunID:      runID,
		RunType:    models.RunTypeBacktest,
		Side:       relay.NormalizeSide(p.TradePayload),
		EntryPrice: entryPrice,
		ExitPrice:  p.ExitPrice,
		Quantity:   p.Quantity,
		Pnl:        pnl,
		PnlPercent: pnlPercent,
		OpenedAt:   relay.NormalizeTimestamp(p.OpenedAt),
		ClosedAt:   closedAt,
		Forced:     p.Forced,
	}
}
