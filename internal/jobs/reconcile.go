package jobs

import (
	"context"
	"time"

	"quantlab/internal/models"
	"quantlab/pkg/engine"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const reconcileTimeout = 30 * time.Second

// ReconcilePaperRuns marks runs STOPPED when the engine no longer has
// a live session for them. This catches engine restarts, where the
// engine's in-memory sessions vanish but the rows stay ACTIVE.
func ReconcilePaperRuns(db *gorm.DB, ec *engine.Client) error {
	var runs []models.PaperRun
	if err := db.Where("status = ?", models.RunStatusActive).Find(&runs).Error; err != nil {
		return err
	}

	for _, run := range runs {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		status, err := ec.GetPaperStatus(ctx, run.RunID)
		cancel()

		if err != nil {
			// Engine unreachable or run unknown; the unknown case is a
			// 404 the client surfaces as an error. Leave the row alone
			// and let the next pass retry.
			log.WithFields(log.Fields{
				"run_id": run.RunID,
				"error":  err.Error(),
			}).Warn("Engine status check failed")
			continue
		}

		if status.Active {
			continue
		}

		if err := db.Model(&run).Update("status", models.RunStatusStopped).Error; err != nil {
			log.WithFields(log.Fields{
				"run_id": run.RunID,
				"error":  err.Error(),
			}).Error("Failed to mark run stopped")
			continue
		}
		log.WithFields(log.Fields{"run_id": run.RunID}).Info("Marked orphaned run as STOPPED")
	}

	return nil
}
