package handlers

import (
	"net/http"
	"strconv"

	"quantlab/internal/jobs"
	"quantlab/internal/models"
	dbconfig "quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BacktestRequest represents the request body for launching a backtest
type BacktestRequest struct {
	UserID         uint    `json:"user_id" binding:"required"`
	StrategyID     uint    `json:"strategy_id" binding:"required"`
	Symbol         string  `json:"symbol" binding:"required"`
	Timeframe      string  `json:"timeframe" binding:"required"`
	Exchange       string  `json:"exchange"`
	InitialBalance float64 `json:"initial_balance" binding:"required,gt=0"`
	FeeRate        *float64 `json:"fee_rate"`
	StartDate      string  `json:"start_date" binding:"required"`
	EndDate        string  `json:"end_date" binding:"required"`
}

// BacktestHandler dispatches backtest jobs. With RabbitMQ configured,
// jobs go to the worker queue; otherwise they run inline in a
// goroutine so a single-process deployment still works.
type BacktestHandler struct {
	Engine *engine.Client
	Jobs   *dbconfig.Publisher
}

func NewBacktestHandler(ec *engine.Client, jobsPub *dbconfig.Publisher) *BacktestHandler {
	return &BacktestHandler{Engine: ec, Jobs: jobsPub}
}

// CreateBacktest persists the run and dispatches the job
func (h *BacktestHandler) CreateBacktest(c *gin.Context) {
	var request BacktestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, request.StrategyID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Strategy not found"})
		return
	}

	exchange := request.Exchange
	if exchange == "" {
		exchange = "binance"
	}
	feeRate := 0.001
	if request.FeeRate != nil {
		feeRate = *request.FeeRate
	}

	backtest := models.Backtest{
		RunID:          uuid.NewString(),
		UserID:         request.UserID,
		StrategyID:     request.StrategyID,
		Symbol:         request.Symbol,
		Timeframe:      request.Timeframe,
		Exchange:       exchange,
		InitialBalance: request.InitialBalance,
		FeeRate:        feeRate,
		StartDate:      request.StartDate,
		EndDate:        request.EndDate,
		Status:         models.BacktestStatusQueued,
	}

	if err := dbconfig.DB.Create(&backtest).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job := jobs.BacktestJob{BacktestID: backtest.ID, Code: strategy.Code}

	if h.Jobs != nil {
		if err := h.Jobs.Publish(dbconfig.BacktestJobsQueue, job); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else {
		go func() {
			if err := jobs.RunBacktest(dbconfig.DB, h.Engine, job); err != nil {
				log.WithFields(log.Fields{
					"backtest_id": job.BacktestID,
					"error":       err.Error(),
				}).Error("Inline backtest job failed")
			}
		}()
	}

	c.JSON(http.StatusCreated, backtest)
}

// ListBacktests returns backtests, optionally filtered by user or strategy
func ListBacktests(c *gin.Context) {
	query := dbconfig.DB.Order("created_at DESC")
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if strategyID := c.Query("strategy_id"); strategyID != "" {
		query = query.Where("strategy_id = ?", strategyID)
	}

	var backtests []models.Backtest
	if err := query.Find(&backtests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, backtests)
}

// GetBacktest returns one backtest with its trades
func GetBacktest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var backtest models.Backtest
	if err := dbconfig.DB.First(&backtest, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	var trades []models.Trade
	if err := dbconfig.DB.
		Where("run_id = ? AND run_type = ?", backtest.RunID, models.RunTypeBacktest).
		Order("opened_at").
		Find(&trades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"backtest": backtest, "trades": trades})
}

// GetBacktestProgress proxies the engine's progress counter. Progress
// polling is a client-driven timer, not a server loop.
func (h *BacktestHandler) GetBacktestProgress(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var backtest models.Backtest
	if err := dbconfig.DB.First(&backtest, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	progress, err := h.Engine.BacktestProgress(c.Request.Context(), backtest.RunID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress, "status": backtest.Status})
}

// DeleteBacktest deletes a backtest and its trades
func DeleteBacktest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var backtest models.Backtest
	if err := dbconfig.DB.First(&backtest, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	if err := dbconfig.DB.
		Where("run_id = ? AND run_type = ?", backtest.RunID, models.RunTypeBacktest).
		Delete(&models.Trade{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := dbconfig.DB.Delete(&backtest).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}
