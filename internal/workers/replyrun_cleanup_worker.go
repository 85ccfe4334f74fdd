package workers

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// ReplyRunCleanupWorker removes reply-run summaries older than the configured
// retention period so the history table does not grow unbounded.
type ReplyRunCleanupWorker struct {
	DB            *sql.DB
	RetentionDays int           // How long to keep run summaries (default: 90)
	CheckInterval time.Duration // How often to run cleanup (default: 24h)
}

// Start begins the cleanup worker loop.
func (w *ReplyRunCleanupWorker) Start(ctx context.Context) {
	if w.RetentionDays <= 0 {
		w.RetentionDays = 90
	}
	if w.CheckInterval <= 0 {
		w.CheckInterval = 24 * time.Hour
	}

	ticker := time.NewTicker(w.CheckInterval)
	defer ticker.Stop()

	log.Printf("[ReplyRunCleanup] started (retention=%dd, interval=%s)", w.RetentionDays, w.CheckInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ReplyRunCleanup] stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *ReplyRunCleanupWorker) cleanup(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.RetentionDays)

	result, err := w.DB.ExecContext(ctx, `
		DELETE FROM public.reply_runs
		WHERE created_at < $1
	`, cutoff)

	if err != nil {
		log.Printf("[ReplyRunCleanup] error: %v", err)
		return
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		log.Printf("[ReplyRunCleanup] error getting rows affected: %v", err)
		return
	}

	if deleted > 0 {
		log.Printf("[ReplyRunCleanup] deleted %d old reply runs", deleted)
	}
}
