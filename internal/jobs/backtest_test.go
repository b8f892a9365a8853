package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"quantlab/internal/models"
	"quantlab/pkg/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupJobDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Backtest{}, &models.Trade{}))
	return db
}

func seedBacktest(t *testing.T, db *gorm.DB) models.Backtest {
	t.Helper()

	bt := models.Backtest{
		RunID:          "bt-run-1",
		UserID:         1,
		StrategyID:     1,
		Symbol:         "BTC/USDT",
		Timeframe:      "1h",
		Exchange:       "binance",
		InitialBalance: 1000,
		FeeRate:        0.001,
		StartDate:      "2024-01-01",
		EndDate:        "2024-02-01",
		Status:         models.BacktestStatusQueued,
	}
	require.NoError(t, db.Create(&bt).Error)
	return bt
}

func TestRunBacktestSuccess(t *testing.T) {
	db := setupJobDB(t)
	bt := seedBacktest(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/backtests", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"initial_balance": 1000,
				"final_balance": 1150,
				"total_return_usdt": 150,
				"total_return_percent": 15,
				"max_drawdown_percent": 4.2,
				"win_rate_percent": 60,
				"profit_factor": 1.8,
				"total_trades": 2,
				"equity_curve": [1000, 1080, 1150],
				"trades": [
					{"side": "LONG", "entry_price": 100, "exit_price": 110, "quantity": 1, "pnl": 10, "opened_at": 1700000000, "closed_at": 1700003600},
					{"side": "SHORT", "entry_price": 110, "exit_price": 105, "quantity": 1, "net_pnl": 5, "opened_at": 1700007200}
				]
			}
		}`))
	}))
	defer srv.Close()

	err := RunBacktest(db, engine.NewClient(srv.URL), BacktestJob{BacktestID: bt.ID, Code: "class Strategy: pass"})
	require.NoError(t, err)

	var got models.Backtest
	require.NoError(t, db.First(&got, bt.ID).Error)
	assert.Equal(t, models.BacktestStatusCompleted, got.Status)
	assert.Equal(t, 1150.0, got.FinalBalance)
	assert.Equal(t, 15.0, got.TotalReturnPct)
	assert.Equal(t, 2, got.TotalTrades)
	assert.NotEmpty(t, got.Metrics)
	assert.NotEmpty(t, got.EquityCurve)

	var trades []models.Trade
	require.NoError(t, db.Where("run_id = ?", bt.RunID).Order("id").Find(&trades).Error)
	require.Len(t, trades, 2)
	assert.Equal(t, models.RunTypeBacktest, trades[0].RunType)
	assert.Equal(t, models.SideBuy, trades[0].Side)
	assert.Equal(t, 10.0, trades[0].Pnl)
	// net_pnl is accepted as a pnl alias
	assert.Equal(t, models.SideSell, trades[1].Side)
	assert.Equal(t, 5.0, trades[1].Pnl)
	assert.Nil(t, trades[1].ClosedAt)
}

func TestRunBacktestEngineFailure(t *testing.T) {
	db := setupJobDB(t)
	bt := seedBacktest(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "invalid strategy"}`))
	}))
	defer srv.Close()

	// Engine rejection marks the row FAILED but acks the message.
	err := RunBacktest(db, engine.NewClient(srv.URL), BacktestJob{BacktestID: bt.ID, Code: "broken"})
	require.NoError(t, err)

	var got models.Backtest
	require.NoError(t, db.First(&got, bt.ID).Error)
	assert.Equal(t, models.BacktestStatusFailed, got.Status)
	assert.Contains(t, got.Error, "invalid strategy")
}

func TestRunBacktestAlreadyCompleted(t *testing.T) {
	db := setupJobDB(t)
	bt := seedBacktest(t, db)
	require.NoError(t, db.Model(&bt).Update("status", models.BacktestStatusCompleted).Error)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	// Redelivered messages for a completed run must not rerun anything.
	err := RunBacktest(db, engine.NewClient(srv.URL), BacktestJob{BacktestID: bt.ID})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestRunBacktestUnknownID(t *testing.T) {
	db := setupJobDB(t)

	err := RunBacktest(db, engine.NewClient("http://localhost:1"), BacktestJob{BacktestID: 999})
	require.Error(t, err)
}
