package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const defaultBaseURL = "http://localhost:8000"

// Client talks to the external execution engine. The engine performs
// all simulation and strategy evaluation; this client only starts and
// stops work and reads progress.
type Client struct {
	client *resty.Client
}

// NewClient creates an engine client. The base URL comes from
// ENGINE_URL when not given explicitly.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ENGINE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")

	return &Client{client: client}
}

// doRequest executes the request with retry on 429 and server errors.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	req.SetContext(ctx)

	for i := 0; i < maxRetries; i++ {
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, aerr := strconv.Atoi(resp.Header().Get("Retry-After")); aerr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("engine request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		log.WithFields(log.Fields{
			"method":      method,
			"url":         url,
			"attempt":     i + 1,
			"retry_after": retryAfter.String(),
		}).Warn("Engine request failed, retrying")

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("engine request failed after %d attempts: %w", maxRetries, err)
}

// Health checks engine availability.
func (c *Client) Health(ctx context.Context) error {
	req := c.client.R()
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", req); err != nil {
		return fmt.Errorf("engine health check failed: %w", err)
	}
	return nil
}

// ValidationResult is the engine's verdict on a strategy's source.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Errors   []string        `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Validate submits strategy source for static validation.
func (c *Client) Validate(ctx context.Context, code string) (*ValidationResult, error) {
	var result ValidationResult

	req := c.client.R().
		SetBody(map[string]string{"code": code}).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPost, "/validate", req); err != nil {
		return nil, fmt.Errorf("validate strategy: %w", err)
	}
	return &result, nil
}

// BacktestRequest mirrors the engine's /backtests body.
type BacktestRequest struct {
	Code           string  `json:"code"`
	Exchange       string  `json:"exchange"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	InitialBalance float64 `json:"initial_balance"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	FeeRate        float64 `json:"fee_rate"`
	RunID          string  `json:"run_id,omitempty"`
}

// BacktestResult is the engine's completed-backtest report. Trades and
// the equity curve are kept raw; the job layer normalizes trades into
// rows and stores the rest as-is.
type BacktestResult struct {
	InitialBalance     float64           `json:"initial_balance"`
	FinalBalance       float64           `json:"final_balance"`
	TotalReturnUSDT    float64           `json:"total_return_usdt"`
	TotalReturnPercent float64           `json:"total_return_percent"`
	MaxDrawdownPercent float64           `json:"max_drawdown_percent"`
	WinRatePercent     float64           `json:"win_rate_percent"`
	ProfitFactor       float64           `json:"profit_factor"`
	TotalTrades        int               `json:"total_trades"`
	EquityCurve        json.RawMessage   `json:"equity_curve"`
	Trades             []json.RawMessage `json:"trades"`
}

type backtestResponse struct {
	Success bool            `json:"success"`
	Data    *BacktestResult `json:"data"`
}

// RunBacktest runs a backtest to completion. Backtests over long
// windows can take minutes; the caller bounds it via ctx.
func (c *Client) RunBacktest(ctx context.Context, breq BacktestRequest) (*BacktestResult, error) {
	var result backtestResponse

	req := c.client.R().
		SetBody(breq).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPost, "/backtests", req); err != nil {
		return nil, fmt.Errorf("run backtest: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("engine returned no backtest data")
	}
	return result.Data, nil
}

// BacktestProgress reads the engine's progress counter for a run.
func (c *Client) BacktestProgress(ctx context.Context, runID string) (int, error) {
	var result struct {
		Progress int `json:"progress"`
	}

	req := c.client.R().SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodGet, "/backtest-progress/"+runID, req); err != nil {
		return 0, fmt.Errorf("backtest progress: %w", err)
	}
	return result.Progress, nil
}

// PaperStartRequest mirrors the engine's /paper/start body.
type PaperStartRequest struct {
	RunID          string  `json:"run_id"`
	Code           string  `json:"code"`
	Exchange       string  `json:"exchange"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	InitialBalance float64 `json:"initial_balance"`
	FeeRate        float64 `json:"fee_rate"`
}

// StartPaper launches a live paper-trading session on the engine. The
// engine calls back into the event route with trade/balance/candle
// events from then on.
func (c *Client) StartPaper(ctx context.Context, preq PaperStartRequest) error {
	req := c.client.R().SetBody(preq)

	if _, err := c.doRequest(ctx, http.MethodPost, "/paper/start", req); err != nil {
		return fmt.Errorf("start paper session: %w", err)
	}
	return nil
}

// StopPaper stops a paper session. The engine treats stopping an
// already-stopped session as success.
func (c *Client) StopPaper(ctx context.Context, runID string) error {
	req := c.client.R()

	if _, err := c.doRequest(ctx, http.MethodPost, "/paper/stop/"+runID, req); err != nil {
		return fmt.Errorf("stop paper session: %w", err)
	}
	return nil
}

// PaperStatus is the engine's in-memory view of a session.
type PaperStatus struct {
	Active       bool            `json:"active"`
	QuoteBalance float64         `json:"quote_balance"`
	BaseBalance  float64         `json:"base_balance"`
	Equity       float64         `json:"equity"`
	Position     json.RawMessage `json:"position"`
}

// GetPaperStatus reads the engine's live view of a session.
func (c *Client) GetPaperStatus(ctx context.Context, runID string) (*PaperStatus, error) {
	var result PaperStatus

	req := c.client.R().SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodGet, "/paper/status/"+runID, req); err != nil {
		return nil, fmt.Errorf("paper status: %w", err)
	}
	return &result, nil
}
