package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/betty-pap/BookTracker-app-backend/internal/models"
)

// Off disables the schedule.
const Off = "off"

// MissingPageCountLister finds books whose length is still unknown.
type MissingPageCountLister interface {
	ListMissingPageCount(ctx context.Context) ([]models.Book, error)
}

// PageCountEnqueuer queues enrichment of a single book.
type PageCountEnqueuer interface {
	EnqueuePageCount(externalID string) error
}

// EnrichmentScheduler periodically queues page-count enrichment for every
// book that does not know its length yet.
type EnrichmentScheduler struct {
	lister   MissingPageCountLister
	enqueuer PageCountEnqueuer
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewEnrichmentScheduler(lister MissingPageCountLister, enqueuer PageCountEnqueuer, schedule string) *EnrichmentScheduler {
	return &EnrichmentScheduler{
		lister:   lister,
		enqueuer: enqueuer,
		schedule: strings.TrimSpace(schedule),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule accepts a standard five-field cron expression, or an
// empty or "off" value meaning disabled.
func ValidateSchedule(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" || strings.EqualFold(schedule, Off) {
		return nil
	}
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start registers the sweep and starts cron. It stops on its own when ctx is
// cancelled.
func (s *EnrichmentScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if s.schedule == "" || strings.EqualFold(s.schedule, Off) {
		log.Printf("[INFO] Enrichment scheduler: disabled")
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	cancelCtx, cancel := context.WithCancel(ctx)

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow(cancelCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule enrichment sweep: %w", err)
	}
	s.entryID = entryID
	s.cancelFunc = cancel

	s.cron.Start()
	s.isRunning = true
	log.Printf("[INFO] Enrichment scheduler: started with schedule %q, next run %v", s.schedule, s.cron.Entry(entryID).Next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *EnrichmentScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Cancel first so an in-flight sweep gives up before cron waits on it.
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.isRunning = false
	log.Printf("[INFO] Enrichment scheduler: stopped")
}

func (s *EnrichmentScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime is nil when the scheduler is not running.
func (s *EnrichmentScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

// RunNow queues enrichment for every book missing a page count and returns
// how many tasks were queued.
func (s *EnrichmentScheduler) RunNow(ctx context.Context) int {
	books, err := s.lister.ListMissingPageCount(ctx)
	if err != nil {
		log.Printf("[ERROR] Enrichment scheduler: failed to list books: %v", err)
		return 0
	}

	queued := 0
	for _, book := range books {
		if ctx.Err() != nil {
			log.Printf("[WARN] Enrichment scheduler: sweep interrupted: %v", ctx.Err())
			break
		}
		if err := s.enqueuer.EnqueuePageCount(book.ExternalID); err != nil {
			log.Printf("[WARN] Enrichment scheduler: %v", err)
			continue
		}
		queued++
	}
	log.Printf("[INFO] Enrichment scheduler: queued %d of %d books", queued, len(books))
	return queued
}
