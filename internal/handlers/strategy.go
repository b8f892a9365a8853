package handlers

import (
	"net/http"
	"strconv"

	"quantlab/internal/models"
	dbconfig "quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/gin-gonic/gin"
)

// StrategyRequest represents the request body for creating/updating a strategy
type StrategyRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Code        string `json:"code" binding:"required"`
	Symbol      string `json:"symbol"`
	Timeframe   string `json:"timeframe"`
	Exchange    string `json:"exchange"`
	Enabled     *bool  `json:"enabled"`
}

// StrategyHandler carries the engine client for validation proxying.
type StrategyHandler struct {
	Engine *engine.Client
}

func NewStrategyHandler(ec *engine.Client) *StrategyHandler {
	return &StrategyHandler{Engine: ec}
}

// ListStrategies returns a list of all strategies
func ListStrategies(c *gin.Context) {
	var strategies []models.Strategy
	query := dbconfig.DB
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Find(&strategies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategies)
}

// GetStrategy returns a specific strategy by ID
func GetStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// CreateStrategy creates a new strategy
func CreateStrategy(c *gin.Context) {
	var request StrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strategy := models.Strategy{
		UserID:      request.UserID,
		Name:        request.Name,
		Description: request.Description,
		Code:        request.Code,
		Symbol:      request.Symbol,
		Timeframe:   request.Timeframe,
		Exchange:    request.Exchange,
		Enabled:     true,
	}
	if request.Enabled != nil {
		strategy.Enabled = *request.Enabled
	}

	if err := dbconfig.DB.Create(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, strategy)
}

// UpdateStrategy updates an existing strategy
func UpdateStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var request StrategyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	strategy.UserID = request.UserID
	strategy.Name = request.Name
	strategy.Description = request.Description
	strategy.Code = request.Code
	strategy.Symbol = request.Symbol
	strategy.Timeframe = request.Timeframe
	strategy.Exchange = request.Exchange
	if request.Enabled != nil {
		strategy.Enabled = *request.Enabled
	}

	if err := dbconfig.DB.Save(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// DeleteStrategy deletes a strategy
func DeleteStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	if err := dbconfig.DB.Delete(&models.Strategy{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

// ToggleStrategy flips the enabled flag
func ToggleStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Strategy not found"})
		return
	}

	strategy.Enabled = !strategy.Enabled

	if err := dbconfig.DB.Save(&strategy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update strategy"})
		return
	}

	message := "Strategy disabled successfully"
	if strategy.Enabled {
		message = "Strategy enabled successfully"
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      strategy.ID,
		"enabled": strategy.Enabled,
		"message": message,
	})
}

// ValidateStrategy proxies the strategy source to the engine's static
// validator and returns the verdict unchanged.
func (h *StrategyHandler) ValidateStrategy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var strategy models.Strategy
	if err := dbconfig.DB.First(&strategy, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	result, err := h.Engine.Validate(c.Request.Context(), strategy.Code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
