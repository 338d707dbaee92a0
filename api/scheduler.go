/*
scheduler.go - Automated ingestion scheduler

PURPOSE:
  Periodically runs the ingestion orchestrator so the store keeps up with
  the feed without anybody touching the dashboard. Each tick is an
  unforced run: the refresh trigger inside the orchestrator decides
  whether anything is actually fetched.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Invalidates the handler's response cache when a run appended rows

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewIngestScheduler(orch, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunIngestion endpoint (manual trigger)
  - ingest/: the orchestrator driven here
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/schulwerk/vplan-engine/ingest"
)

// IngestScheduler runs periodic unforced ingestion passes.
type IngestScheduler struct {
	Orchestrator  *ingest.Orchestrator
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIngestScheduler creates a new scheduler.
func NewIngestScheduler(orch *ingest.Orchestrator, handler *Handler) *IngestScheduler {
	return &IngestScheduler{
		Orchestrator:  orch,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (s *IngestScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *IngestScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *IngestScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndIngest()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndIngest()
		case <-s.stop:
			return
		}
	}
}

func (s *IngestScheduler) checkAndIngest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := s.Orchestrator.Run(ctx, false)
	if err != nil {
		log.Printf("[Scheduler] Ingestion run failed: %v", err)
		return
	}
	if !report.Triggered {
		return
	}
	if report.Appended > 0 && s.Handler != nil {
		s.Handler.cache.invalidate()
	}
	log.Printf("[Scheduler] Run %s appended %d records", report.RunID, report.Appended)
}
