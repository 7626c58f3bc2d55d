package godb

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// StatsScheduler recomputes TableStats for every cataloged table on a cron
// schedule, the auto-ANALYZE job a real query planner needs so histograms
// don't go stale as tables grow.
type StatsScheduler struct {
	db   *Database
	cron *cron.Cron

	mu    sync.RWMutex
	stats map[string]*TableStats
}

// NewStatsScheduler builds a scheduler over db's catalog. expr is a standard
// five-field cron expression (e.g. "*/5 * * * *" for every five minutes).
func NewStatsScheduler(db *Database, expr string) (*StatsScheduler, error) {
	s := &StatsScheduler{
		db:    db,
		cron:  cron.New(),
		stats: make(map[string]*TableStats),
	}
	if _, err := s.cron.AddFunc(expr, s.analyzeAll); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *StatsScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for any in-flight run to finish.
func (s *StatsScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Analyze recomputes and stores TableStats for a single table, invoked
// directly for an explicit ANALYZE as well as by the scheduled sweep.
func (s *StatsScheduler) Analyze(name string) error {
	file, err := s.db.Catalog.TableByName(name)
	if err != nil {
		return err
	}
	stats, err := ComputeTableStats(s.db.BufferPool, file, s.db.Config.CostPerPageOrDefault())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stats[name] = stats
	s.mu.Unlock()
	return nil
}

// Stats returns the most recently computed TableStats for name, if any.
func (s *StatsScheduler) Stats(name string) (*TableStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[name]
	return st, ok
}

func (s *StatsScheduler) analyzeAll() {
	for _, name := range s.db.Catalog.Names() {
		if err := s.Analyze(name); err != nil {
			log.Printf("classdb %s: ANALYZE %q failed: %v", s.db.InstanceID, name, err)
		}
	}
}
