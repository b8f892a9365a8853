package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event types pushed by the engine. Anything else is rejected at the
// JSON boundary with an UnsupportedEventTypeError.
const (
	EventTrade    = "trade"
	EventBalance  = "balance"
	EventPosition = "position"
	EventStatus   = "status"
	EventError    = "error"
	EventCandle   = "candle"
)

var (
	ErrMissingRunID     = errors.New("missing run_id")
	ErrMissingEventType = errors.New("missing event_type")
)

// UnsupportedEventTypeError names the received value so the engine can
// see what it sent.
type UnsupportedEventTypeError struct {
	EventType string
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("unsupported event type: %s", e.EventType)
}

// Envelope is the engine->backend callback message. It lives only for
// the duration of one dispatch; there is no queueing or retry on this
// side.
type Envelope struct {
	RunID     string          `json:"run_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func (e *Envelope) Validate() error {
	if e.RunID == "" {
		return ErrMissingRunID
	}
	if e.EventType == "" {
		return ErrMissingEventType
	}
	return nil
}

// IsValidationError reports whether err should surface to the engine
// as a 4xx rejection rather than a processing failure.
func IsValidationError(err error) bool {
	var unsupported *UnsupportedEventTypeError
	return errors.Is(err, ErrMissingRunID) ||
		errors.Is(err, ErrMissingEventType) ||
		errors.As(err, &unsupported)
}

// TradePayload is the engine's trade event. Timestamps are left
// untyped because the engine has emitted epoch seconds, epoch millis
// and date strings at different times; NormalizeTimestamp resolves
// them.
type TradePayload struct {
	Side       string      `json:"side"`
	EntryPrice *float64    `json:"entry_price"`
	ExitPrice  *float64    `json:"exit_price"`
	Quantity   float64     `json:"quantity"`
	Pnl        *float64    `json:"pnl"`
	PnlPercent *float64    `json:"pnl_percent"`
	OpenedAt   interface{} `json:"opened_at"`
	ClosedAt   interface{} `json:"closed_at"`
	Forced     bool        `json:"forced"`
}

// BalancePayload is the engine's per-candle account snapshot.
type BalancePayload struct {
	QuoteBalance float64         `json:"quote_balance"`
	BaseBalance  float64         `json:"base_balance"`
	Equity       *float64        `json:"equity"`
	LastPrice    *float64        `json:"last_price"`
	Position     json.RawMessage `json:"position"`
}

type StatusPayload struct {
	Status string `json:"status"`
}
