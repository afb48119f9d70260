package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/betty-pap/BookTracker-app-backend/internal/catalog"
	"github.com/betty-pap/BookTracker-app-backend/internal/models"
	"github.com/betty-pap/BookTracker-app-backend/internal/services"
)

// EnrichPageCountTask fills in the total page count of one book.
type EnrichPageCountTask struct {
	ExternalID string `json:"external_id"`
}

func (t EnrichPageCountTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_page_count",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PageCountEnricher is the part of the book service the task needs.
type PageCountEnricher interface {
	EnrichPageCount(ctx context.Context, externalID string) (*models.Book, error)
}

// EnrichPageCountProcessor returns the queue processor. A book that was
// deleted or a work the catalog does not know is not retried.
func EnrichPageCountProcessor(enricher PageCountEnricher) backlite.QueueProcessor[EnrichPageCountTask] {
	return func(ctx context.Context, task EnrichPageCountTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}

		book, err := enricher.EnrichPageCount(ctx, task.ExternalID)
		switch {
		case errors.Is(err, services.ErrBookNotFound), errors.Is(err, catalog.ErrNotFound):
			log.Printf("[TASK] Page count for %s skipped: %v", task.ExternalID, err)
			return nil
		case err != nil:
			return fmt.Errorf("enrich page count %s: %w", task.ExternalID, err)
		}

		if book.TotalPages > 0 {
			log.Printf("[TASK] %s (%s) has %d pages", task.ExternalID, book.Title, book.TotalPages)
		} else {
			log.Printf("[TASK] %s (%s): page count still unknown", task.ExternalID, book.Title)
		}
		return nil
	}
}

func NewEnrichPageCountQueue(enricher PageCountEnricher) backlite.Queue {
	return backlite.NewQueue(EnrichPageCountProcessor(enricher))
}
