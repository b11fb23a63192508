package cleanup

import (
	"time"

	"gcdbackend/internal/config"
	"gcdbackend/internal/data"
	"gcdbackend/internal/logger"
	"gcdbackend/internal/selection"
)

const (
	cleanupHour       = 2  // 2 AM
	retentionHours    = 48 // 48 hours
	maxDeletionPerRun = 25 // Maximum records to delete per run

	selectionSweepInterval = 5 * time.Minute
)

var repo = data.NewDonationRepository()

// StartCleanupRoutine starts the daily cleanup job plus the stale-selection
// sweeper.
func StartCleanupRoutine(store *selection.Store) {
	go func() {
		logger.LogInfo("Cleanup routine started - will run daily at %d:00 AM", cleanupHour)

		for {
			// Calculate next 2 AM
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), cleanupHour, 0, 0, 0, now.Location())

			// If it's past 2 AM today, schedule for tomorrow
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			sleepDuration := next.Sub(now)
			logger.LogInfo("Next cleanup scheduled for %v (in %v)", next.Format("2006-01-02 15:04:05"), sleepDuration)

			time.Sleep(sleepDuration)

			runCleanup()
		}
	}()

	go sweepStaleSelections(store)
}

// runCleanup deletes abandoned donation attempts: pending records nobody
// ever completed and failed records nobody retried.
func runCleanup() {
	logger.LogInfo("Starting daily cleanup of abandoned donations")

	cutoffTime := time.Now().Add(-retentionHours * time.Hour)
	logger.LogInfo("Cleaning records older than %v (before %v)",
		time.Duration(retentionHours)*time.Hour, cutoffTime.Format("2006-01-02 15:04:05"))

	cleaned, err := repo.DeleteAbandoned(cutoffTime, maxDeletionPerRun)
	if err != nil {
		logger.LogError("Failed to cleanup abandoned donations: %v", err)
		return
	}

	if cleaned == 0 {
		logger.LogInfo("Cleanup completed - no abandoned records found")
	} else {
		logger.LogInfo("Cleanup completed - %d abandoned records removed", cleaned)
	}
}

// sweepStaleSelections clears a selection the donor walked away from, so it
// cannot leak into a later visit to the donation form.
func sweepStaleSelections(store *selection.Store) {
	ticker := time.NewTicker(selectionSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		if store.ClearIfStale(config.SelectionTTL()) {
			logger.LogInfo("Cleared stale gift card selection")
		}
	}
}
