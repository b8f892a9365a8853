package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"quantlab/internal/models"

	"gorm.io/gorm"
)

// Coordinator applies engine events to persistent run/trade state and
// fans them out to subscribed browser clients. Every persisting
// handler follows the same shape: begin transaction, normalize and
// compute, write, commit, then publish. Publish never runs unless the
// commit succeeded, so clients only ever see committed state. Events
// are handled independently and concurrently; there is no per-run
// ordering beyond the database's own isolation (snapshots are
// last-commit-wins, trades are append-only).
type Coordinator struct {
	db       *gorm.DB
	registry *Registry
}

func NewCoordinator(db *gorm.DB, registry *Registry) *Coordinator {
	return &Coordinator{db: db, registry: registry}
}

// Handle validates and dispatches one event envelope. Validation
// failures and unsupported event types are reported via
// IsValidationError; everything else is a processing error the engine
// retries on its side.
func (co *Coordinator) Handle(env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	switch env.EventType {
	case EventTrade:
		return co.handleTrade(env)
	case EventBalance:
		return co.handleBalance(env)
	case EventPosition:
		return co.fanout(env, "position", false)
	case EventStatus:
		return co.handleStatus(env)
	case EventError:
		return co.fanout(env, "error", false)
	case EventCandle:
		return co.fanout(env, "candle", true)
	default:
		return &UnsupportedEventTypeError{EventType: env.EventType}
	}
}

// handleTrade inserts one append-only trade row and republishes the
// original payload (plus run_id) to the run's channel.
func (co *Coordinator) handleTrade(env Envelope) error {
	var p TradePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("decode trade payload: %w", err)
	}

	side := NormalizeSide(p)
	openedAt := NormalizeTimestamp(p.OpenedAt)

	var closedAt *time.Time
	if p.ClosedAt != nil {
		t := NormalizeTimestamp(p.ClosedAt)
		closedAt = &t
	}

	var entryPrice float64
	if p.EntryPrice != nil {
		entryPrice = *p.EntryPrice
	}

	var pnl float64
	if p.Pnl != nil {
		pnl = *p.Pnl
	}

	pnlPercent := 0.0
	if p.PnlPercent != nil {
		pnlPercent = *p.PnlPercent
	} else if denom := entryPrice * p.Quantity; denom != 0 {
		pnlPercent = pnl / denom * 100
	}

	trade := models.Trade{
		RunID:      env.RunID,
		RunType:    models.RunTypePaper,
		Side:       side,
		EntryPrice: entryPrice,
		ExitPrice:  p.ExitPrice,
		Quantity:   p.Quantity,
		Pnl:        pnl,
		PnlPercent: pnlPercent,
		OpenedAt:   openedAt,
		ClosedAt:   closedAt,
		Forced:     p.Forced,
	}

	tx := co.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin trade tx: %w", tx.Error)
	}
	if err := tx.Create(&trade).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("insert trade: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit trade: %w", err)
	}

	co.registry.Publish(env.RunID, "trade", co.rawWithRunID(env))
	return nil
}

// handleBalance overwrites the run's account snapshot and publishes
// the computed fields, not the raw payload. Two concurrent balance
// events race at the database's isolation level; the last commit wins,
// which is acceptable for an idempotent snapshot.
func (co *Coordinator) handleBalance(env Envelope) error {
	var p BalancePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("decode balance payload: %w", err)
	}

	equity := p.QuoteBalance
	if p.Equity != nil {
		equity = *p.Equity
	}

	tx := co.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin balance tx: %w", tx.Error)
	}
	err := tx.Model(&models.PaperRun{}).
		Where("run_id = ?", env.RunID).
		Updates(map[string]interface{}{
			"quote_balance": p.QuoteBalance,
			"base_balance":  p.BaseBalance,
			"equity":        equity,
			"last_price":    p.LastPrice,
			"position":      p.Position,
		}).Error
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update run snapshot: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit balance: %w", err)
	}

	co.registry.Publish(env.RunID, "update", map[string]interface{}{
		"run_id":        env.RunID,
		"quote_balance": p.QuoteBalance,
		"base_balance":  p.BaseBalance,
		"equity":        equity,
		"last_price":    p.LastPrice,
		"position":      p.Position,
	})
	return nil
}

// handleStatus stores the engine-supplied status verbatim. The engine
// owns the status vocabulary; this layer does not second-guess it.
func (co *Coordinator) handleStatus(env Envelope) error {
	var p StatusPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("decode status payload: %w", err)
	}

	tx := co.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin status tx: %w", tx.Error)
	}
	err := tx.Model(&models.PaperRun{}).
		Where("run_id = ?", env.RunID).
		Update("status", p.Status).Error
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update run status: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit status: %w", err)
	}

	co.registry.Publish(env.RunID, "status", co.rawPayload(env))
	return nil
}

// fanout republishes the payload without touching storage. Candle data
// in particular is never retained: a client that was not subscribed
// when a candle was emitted has missed it for good.
func (co *Coordinator) fanout(env Envelope, event string, mergeRunID bool) error {
	if mergeRunID {
		co.registry.Publish(env.RunID, event, co.rawWithRunID(env))
	} else {
		co.registry.Publish(env.RunID, event, co.rawPayload(env))
	}
	return nil
}

func (co *Coordinator) rawPayload(env Envelope) map[string]interface{} {
	payload := make(map[string]interface{})
	if len(env.Payload) > 0 {
		// Best effort: a non-object payload fans out as an empty one.
		_ = json.Unmarshal(env.Payload, &payload)
	}
	return payload
}

func (co *Coordinator) rawWithRunID(env Envelope) map[string]interface{} {
	payload := co.rawPayload(env)
	payload["run_id"] = env.RunID
	return payload
}
