package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quantlab/internal/models"
	"quantlab/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupEventRouter(t *testing.T) (*gin.Engine, *gorm.DB, *relay.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaperRun{}, &models.Trade{}))

	require.NoError(t, db.Create(&models.PaperRun{
		RunID:          "run-1",
		UserID:         1,
		StrategyID:     1,
		Symbol:         "BTC/USDT",
		Timeframe:      "1h",
		Status:         models.RunStatusActive,
		InitialBalance: 1000,
	}).Error)

	registry := relay.NewRegistry()
	h := NewPaperEventHandler(relay.NewCoordinator(db, registry))

	r := gin.New()
	r.POST("/api/paper/internal/event", h.HandleEngineEvent)
	return r, db, registry
}

func postEvent(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/paper/internal/event", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleEngineEventSuccess(t *testing.T) {
	r, db, _ := setupEventRouter(t)

	w := postEvent(r, `{
		"run_id": "run-1",
		"event_type": "trade",
		"payload": {"side": "LONG", "entry_price": 100, "quantity": 1, "pnl": 10}
	}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	var count int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleEngineEventMissingRunID(t *testing.T) {
	r, db, _ := setupEventRouter(t)

	w := postEvent(r, `{"event_type": "trade", "payload": {}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleEngineEventMissingEventType(t *testing.T) {
	r, _, _ := setupEventRouter(t)

	w := postEvent(r, `{"run_id": "run-1", "payload": {}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEngineEventUnsupportedType(t *testing.T) {
	r, _, _ := setupEventRouter(t)

	w := postEvent(r, `{"run_id": "run-1", "event_type": "margin_call", "payload": {}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "margin_call")
}

func TestHandleEngineEventMalformedBody(t *testing.T) {
	r, _, _ := setupEventRouter(t)

	w := postEvent(r, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEngineEventSharedSecret(t *testing.T) {
	r, _, _ := setupEventRouter(t)
	t.Setenv("ENGINE_SHARED_SECRET", "s3cret")

	body := `{"run_id": "run-1", "event_type": "status", "payload": {"status": "ACTIVE"}}`

	w := postEvent(r, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postEvent(r, body, map[string]string{"X-Engine-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postEvent(r, body, map[string]string{"X-Engine-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleEngineEventStorageFailure(t *testing.T) {
	r, db, _ := setupEventRouter(t)

	require.NoError(t, db.Migrator().DropTable(&models.Trade{}))

	w := postEvent(r, `{
		"run_id": "run-1",
		"event_type": "trade",
		"payload": {"side": "BUY", "entry_price": 100, "quantity": 1}
	}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
