package db

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes stale enrichment-cache rows (lyrics, links) on a schedule.
// Stored playlists, favorites, and settings are never pruned.
type Pruner struct {
	pair          *DBPair
	retentionDays int
	cron          *cron.Cron
}

// NewPruner creates a pruner with the given retention in days.
func NewPruner(pair *DBPair, retentionDays int) *Pruner {
	return &Pruner{
		pair:          pair,
		retentionDays: retentionDays,
		cron:          cron.New(),
	}
}

// Start schedules the nightly prune and runs one prune immediately.
func (p *Pruner) Start() error {
	if count, err := p.Prune(); err != nil {
		log.Printf("DB: prune on start failed: %v", err)
	} else if count > 0 {
		log.Printf("DB: pruned %d cache rows on startup", count)
	}

	if _, err := p.cron.AddFunc("0 3 * * *", func() {
		count, err := p.Prune()
		if err != nil {
			log.Printf("DB: scheduled prune failed: %v", err)
			return
		}
		if count > 0 {
			log.Printf("DB: pruned %d cache rows", count)
		}
	}); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}

	p.cron.Start()
	return nil
}

// Stop cancels the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// Prune deletes lyrics and links rows older than the retention window.
func (p *Pruner) Prune() (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -p.retentionDays).Format("2006-01-02 15:04:05")

	var total int64
	for _, table := range []string{"lyrics", "links"} {
		result, err := p.pair.Writer().Exec("DELETE FROM "+table+" WHERE created_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
