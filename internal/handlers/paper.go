package handlers

import (
	"net/http"

	"quantlab/internal/models"
	dbconfig "quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// PaperStartRequest represents the request body for starting a paper run
type PaperStartRequest struct {
	UserID         uint     `json:"user_id" binding:"required"`
	StrategyID     uint     `json:"strategy_id" binding:"required"`
	Symbol         string   `json:"symbol" binding:"required"`
	Timeframe      string   `json:"timeframe" binding:"required"`
	Exchange       string   `json:"exchange"`
	InitialBalance float64  `json:"initial_balance" binding:"required,gt=0"`
	FeeRate        *float64 `json:"fee_rate"`
}

// PaperHandler starts and stops paper sessions on the engine.
type PaperHandler struct {
	Engine *engine.Client
}

func NewPaperHandler(ec *engine.Client) *PaperHandler {
	return &PaperHandler{Engine: ec}
}

// StartPaperRun creates the run row and launches the engine session.
// The run is created ACTIVE before the engine call so the engine's
// first status callback has a row to hit; a failed launch flips it to
// STOPPED.
func (h *PaperHandler) StartPaperRun(c *gin.Context) {
	var request PaperStartRequest
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

	run := models.PaperRun{
		RunID:          uuid.NewString(),
		UserID:         request.UserID,
		StrategyID:     request.StrategyID,
		Symbol:         request.Symbol,
		Timeframe:      request.Timeframe,
		Exchange:       exchange,
		Status:         models.RunStatusActive,
		FeeRate:        feeRate,
		InitialBalance: request.InitialBalance,
		QuoteBalance:   request.InitialBalance,
		Equity:         request.InitialBalance,
	}

	if err := dbconfig.DB.Create(&run).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	err := h.Engine.StartPaper(c.Request.Context(), engine.PaperStartRequest{
		RunID:          run.RunID,
		Code:           strategy.Code,
		Exchange:       run.Exchange,
		Symbol:         run.Symbol,
		Timeframe:      run.Timeframe,
		InitialBalance: run.InitialBalance,
		FeeRate:        run.FeeRate,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"run_id": run.RunID,
			"error":  err.Error(),
		}).Error("Failed to start paper session on engine")

		if derr := dbconfig.DB.Model(&run).Update("status", models.RunStatusStopped).Error; derr != nil {
			log.WithFields(log.Fields{
				"run_id": run.RunID,
				"error":  derr.Error(),
			}).Error("Failed to mark run stopped after launch failure")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "run_id": run.RunID})
		return
	}

	c.JSON(http.StatusCreated, run)
}

// StopPaperRun stops the engine session and marks the run STOPPED
func (h *PaperHandler) StopPaperRun(c *gin.Context) {
	runID := c.Param("run_id")

	var run models.PaperRun
	if err := dbconfig.DB.First(&run, "run_id = ?", runID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	if err := h.Engine.StopPaper(c.Request.Context(), runID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := dbconfig.DB.Model(&run).Update("status", models.RunStatusStopped).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	run.Status = models.RunStatusStopped
	c.JSON(http.StatusOK, run)
}

// ListPaperRuns returns paper runs, optionally filtered by user or status
func ListPaperRuns(c *gin.Context) {
	query := dbconfig.DB.Order("created_at DESC")
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var runs []models.PaperRun
	if err := query.Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetPaperRun returns one run snapshot with its trades
func GetPaperRun(c *gin.Context) {
	runID := c.Param("run_id")

	var run models.PaperRun
	if err := dbconfig.DB.First(&run, "run_id = ?", runID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	var trades []models.Trade
	if err := dbconfig.DB.
		Where("run_id = ? AND run_type = ?", runID, models.RunTypePaper).
		Order("created_at").
		Find(&trades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run, "trades": trades})
}

// GetPaperEngineStatus proxies the engine's in-memory session view,
// useful for spotting runs the engine no longer knows about.
func (h *PaperHandler) GetPaperEngineStatus(c *gin.Context) {
	runID := c.Param("run_id")

	var run models.PaperRun
	if err := dbconfig.DB.First(&run, "run_id = ?", runID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	status, err := h.Engine.GetPaperStatus(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
