package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validate", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "class Strategy: pass", body["code"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":  false,
			"errors": []string{"missing on_candle"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.Validate(context.Background(), "class Strategy: pass")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"missing on_candle"}, result.Errors)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.Health(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetPaperStatus(context.Background(), "run-1")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRunBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/backtests", r.URL.Path)

		var req BacktestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BTC/USDT", req.Symbol)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"initial_balance":      1000.0,
				"final_balance":        1100.0,
				"total_return_percent": 10.0,
				"total_trades":         3,
				"equity_curve":         []float64{1000, 1050, 1100},
				"trades":               []map[string]interface{}{{"side": "BUY"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.RunBacktest(context.Background(), BacktestRequest{
		Code:           "class Strategy: pass",
		Symbol:         "BTC/USDT",
		Timeframe:      "1h",
		InitialBalance: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1100.0, result.FinalBalance)
	assert.Equal(t, 10.0, result.TotalReturnPercent)
	assert.Equal(t, 3, result.TotalTrades)
	assert.Len(t, result.Trades, 1)
}

func TestRunBacktestNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.RunBacktest(context.Background(), BacktestRequest{})
	require.Error(t, err)
}

func TestStartAndStopPaper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper/start":
			var req PaperStartRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "run-1", req.RunID)
			w.Write([]byte(`{"success": true}`))
		case "/paper/stop/run-1":
			w.Write([]byte(`{"success": true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.StartPaper(context.Background(), PaperStartRequest{RunID: "run-1"}))
	require.NoError(t, c.StopPaper(context.Background(), "run-1"))
}

func TestGetPaperStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/paper/status/run-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"active":        true,
			"quote_balance": 950.0,
			"equity":        1010.0,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	status, err := c.GetPaperStatus(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, 950.0, status.QuoteBalance)
	assert.Equal(t, 1010.0, status.Equity)
}
