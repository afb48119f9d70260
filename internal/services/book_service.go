package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/betty-pap/BookTracker-app-backend/internal/catalog"
	"github.com/betty-pap/BookTracker-app-backend/internal/models"
	"github.com/betty-pap/BookTracker-app-backend/internal/repositories"
)

// ─── Constants ────────────────────────────────────────────────────────────────

const (
	// MinRating and MaxRating bound the user rating of a book.
	MinRating = 0
	MaxRating = 5
)

// ─── Collaborators ────────────────────────────────────────────────────────────

// Catalog is the external bibliographic catalog. It is used for discovery
// and page-count enrichment only, never for persisted state.
type Catalog interface {
	Search(ctx context.Context, query string) ([]catalog.SearchResult, error)
	WorkDetails(ctx context.Context, workID string) (*catalog.WorkDetails, error)
	PageCount(ctx context.Context, workID string) (int, error)
}

// PageCountEnqueuer schedules asynchronous page-count enrichment.
type PageCountEnqueuer interface {
	EnqueuePageCount(externalID string) error
}

// ─── Inputs ───────────────────────────────────────────────────────────────────

// AddBookInput holds the fields accepted when a catalog work is put on a shelf.
type AddBookInput struct {
	Title        string
	Author       string
	Cover        string
	CoverImageID string
	ExternalID   string
	Status       models.ShelfStatus
	PageRead     int
	TotalPages   int
}

// ProgressUpdate is one progress report for a book. Zero PagesReadDelta logs
// no session; zero TotalPages keeps the stored total.
type ProgressUpdate struct {
	CurrentPage    int
	PagesReadDelta int
	Duration       int
	TotalPages     int
}

func (in ProgressUpdate) validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"currentPage", in.CurrentPage},
		{"pagesRead", in.PagesReadDelta},
		{"duration", in.Duration},
		{"totalPages", in.TotalPages},
	} {
		if f.value < 0 {
			return invalidField(f.name, f.name+" cannot be negative")
		}
	}
	return nil
}

// ─── Service Interface ────────────────────────────────────────────────────────

// BookService owns the lifecycle of tracked books: shelves, progress and
// reading sessions.
type BookService interface {
	AddBook(ctx context.Context, in AddBookInput) (*models.Book, error)
	UpdateProgress(ctx context.Context, externalID string, in ProgressUpdate) (*models.Book, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ShelfStatus) (*models.Book, error)
	SetRating(ctx context.Context, externalID string, rating float64) (*models.Book, error)

	RemoveByExternalID(ctx context.Context, externalID string) error
	RemoveByID(ctx context.Context, id uuid.UUID) error

	FindByExternalID(ctx context.Context, externalID string) (*models.Book, error)
	ListShelf(ctx context.Context, status models.ShelfStatus) ([]models.Book, error)
	ListReadingByLastRead(ctx context.Context) ([]models.Book, error)

	Search(ctx context.Context, query string) ([]catalog.SearchResult, error)
	WorkDetails(ctx context.Context, workID string) (*catalog.WorkDetails, error)

	EnrichPageCount(ctx context.Context, externalID string) (*models.Book, error)
	ListMissingPageCount(ctx context.Context) ([]models.Book, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type bookService struct {
	db       *gorm.DB
	bookRepo repositories.BookRepository
	catalog  Catalog
	enqueuer PageCountEnqueuer

	locks *keyedMutex
	now   func() time.Time
}

// NewBookService wires up all dependencies and returns a BookService.
// enqueuer may be nil, in which case new books are not enriched automatically.
func NewBookService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	catalogClient Catalog,
	enqueuer PageCountEnqueuer,
) BookService {
	return &bookService{
		db:       db,
		bookRepo: bookRepo,
		catalog:  catalogClient,
		enqueuer: enqueuer,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// ─── Shelf Management ─────────────────────────────────────────────────────────

// AddBook creates a book on the requested shelf. Duplicate external ids are
// allowed. When the length of the book is unknown an enrichment task is
// queued for it.
func (s *bookService) AddBook(ctx context.Context, in AddBookInput) (*models.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidField("title", "title is required")
	}
	status := in.Status
	if status == "" {
		status = models.ShelfStatusTBR
	}
	if !status.Valid() {
		return nil, invalidField("status", "status must be one of tbr, reading, finished")
	}
	if in.PageRead < 0 || in.TotalPages < 0 {
		return nil, invalidField("pageRead", "page counts cannot be negative")
	}
	if in.TotalPages > 0 && in.PageRead > in.TotalPages {
		return nil, pageExceedsTotal("pageRead", in.PageRead, in.TotalPages)
	}

	book := &models.Book{
		ExternalID:      strings.TrimSpace(in.ExternalID),
		Title:           title,
		Author:          strings.TrimSpace(in.Author),
		Status:          status,
		PageRead:        in.PageRead,
		TotalPages:      in.TotalPages,
		CurrentProgress: models.Progress(in.PageRead, in.TotalPages),
		Cover:           in.Cover,
		CoverImageID:    in.CoverImageID,
	}
	if book.Author == "" {
		book.Author = models.DefaultAuthor
	}
	if book.Cover == "" {
		book.Cover = models.DefaultCover
	}

	if err := s.bookRepo.Create(s.db.WithContext(ctx), book); err != nil {
		log.Printf("[ERROR] AddBook: failed to create book %q: %v", title, err)
		return nil, err
	}
	book.ReadingSessions = []models.ReadingSession{}
	log.Printf("[INFO] AddBook: added %q (id=%s, externalId=%s) to shelf %s", book.Title, book.ID, book.ExternalID, book.Status)

	if book.TotalPages == 0 && book.ExternalID != "" && s.enqueuer != nil {
		if err := s.enqueuer.EnqueuePageCount(book.ExternalID); err != nil {
			log.Printf("[WARN] AddBook: failed to queue page-count enrichment for %s: %v", book.ExternalID, err)
		}
	}
	return book, nil
}

// SetStatus moves a book to another shelf. This is an explicit override:
// unlike UpdateProgress it does not look at the book's progress at all.
func (s *bookService) SetStatus(ctx context.Context, id uuid.UUID, status models.ShelfStatus) (*models.Book, error) {
	if !status.Valid() {
		return nil, invalidField("status", "status must be one of tbr, reading, finished")
	}

	db := s.db.WithContext(ctx)
	rows, err := s.bookRepo.UpdateStatus(db, id, status)
	if err != nil {
		log.Printf("[ERROR] SetStatus: failed to update book %s: %v", id, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrBookNotFound
	}

	book, err := s.bookRepo.FindByID(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	log.Printf("[INFO] SetStatus: moved book %s to shelf %s (progress=%d%%)", id, status, book.CurrentProgress)
	return book, nil
}

// SetRating stores the user's rating. Progress and status are untouched.
func (s *bookService) SetRating(ctx context.Context, externalID string, rating float64) (*models.Book, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, invalidField("rating", "rating must be between 0 and 5")
	}

	db := s.db.WithContext(ctx)
	rows, err := s.bookRepo.UpdateRating(db, externalID, rating)
	if err != nil {
		log.Printf("[ERROR] SetRating: failed to rate book %s: %v", externalID, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrBookNotFound
	}
	return s.FindByExternalID(ctx, externalID)
}

// ─── Progress ─────────────────────────────────────────────────────────────────

// UpdateProgress records the reader's current page.
//
// Order of operations:
//  1. Load the book by external id (row locked for the transaction).
//  2. Adopt a supplied non-zero total page count.
//  3. Reject a page beyond the known total; nothing is written.
//  4. Store the page and the time of reading.
//  5. Recompute the progress percentage.
//  6. Log a reading session when pages were read.
//  7. Derive the shelf: finished at 100%, tbr becomes reading above 0%.
//  8. Persist the book.
func (s *bookService) UpdateProgress(ctx context.Context, externalID string, in ProgressUpdate) (*models.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(externalID)
	defer unlock()

	var updated *models.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.FindByExternalIDForUpdate(tx, externalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		totalPages := book.TotalPages
		if in.TotalPages > 0 {
			totalPages = in.TotalPages
		}
		if totalPages > 0 && in.CurrentPage > totalPages {
			return pageExceedsTotal("currentPage", in.CurrentPage, totalPages)
		}
		if in.PagesReadDelta > in.CurrentPage {
			return invalidField("pagesRead", "pages read in a session cannot exceed the current page")
		}

		now := s.now().UTC()
		book.TotalPages = totalPages
		book.PageRead = in.CurrentPage
		book.LastRead = &now
		book.RecomputeProgress()

		if session := book.AppendSession(now, in.PagesReadDelta, in.CurrentPage, in.Duration); session != nil {
			if err := s.bookRepo.AppendSession(tx, session); err != nil {
				log.Printf("[ERROR] UpdateProgress: failed to log session for %s: %v", externalID, err)
				return err
			}
		}

		book.DeriveStatus()

		if err := s.bookRepo.Save(tx, book); err != nil {
			log.Printf("[ERROR] UpdateProgress: failed to save book %s: %v", book.ID, err)
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrBookNotFound) && !errors.Is(err, ErrValidation) {
			log.Printf("[ERROR] UpdateProgress: transaction failed for %s: %v", externalID, err)
		}
		return nil, err
	}

	log.Printf("[INFO] UpdateProgress: %s at page %d/%d, progress=%d%%, status=%s, sessions=%d",
		externalID, updated.PageRead, updated.TotalPages, updated.CurrentProgress, updated.Status, len(updated.ReadingSessions))
	return updated, nil
}

// ─── Removal ──────────────────────────────────────────────────────────────────

// RemoveByExternalID hard-deletes every book with the external id along with
// its sessions.
func (s *bookService) RemoveByExternalID(ctx context.Context, externalID string) error {
	unlock := s.locks.Lock(externalID)
	defer unlock()

	var rows int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = s.bookRepo.DeleteByExternalID(tx, externalID)
		return err
	})
	if err != nil {
		log.Printf("[ERROR] RemoveByExternalID: failed to delete %s: %v", externalID, err)
		return err
	}
	if rows == 0 {
		return ErrBookNotFound
	}
	log.Printf("[INFO] RemoveByExternalID: deleted %d book(s) with externalId=%s", rows, externalID)
	return nil
}

// RemoveByID hard-deletes a book by its internal id. Deleting a missing book
// is not an error.
func (s *bookService) RemoveByID(ctx context.Context, id uuid.UUID) error {
	var rows int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = s.bookRepo.DeleteByID(tx, id)
		return err
	})
	if err != nil {
		log.Printf("[ERROR] RemoveByID: failed to delete %s: %v", id, err)
		return err
	}
	if rows == 0 {
		log.Printf("[WARN] RemoveByID: book %s did not exist", id)
		return nil
	}
	log.Printf("[INFO] RemoveByID: deleted book %s", id)
	return nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (s *bookService) FindByExternalID(ctx context.Context, externalID string) (*models.Book, error) {
	book, err := s.bookRepo.FindByExternalID(s.db.WithContext(ctx), externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// ListShelf returns all books on a shelf in no particular order.
func (s *bookService) ListShelf(ctx context.Context, status models.ShelfStatus) ([]models.Book, error) {
	if !status.Valid() {
		return nil, invalidField("status", "status must be one of tbr, reading, finished")
	}
	return s.bookRepo.FindAllByStatus(s.db.WithContext(ctx), status)
}

// ListReadingByLastRead returns the reading shelf, most recently read first.
func (s *bookService) ListReadingByLastRead(ctx context.Context) ([]models.Book, error) {
	return s.bookRepo.FindAllByStatusOrderedByLastReadDesc(s.db.WithContext(ctx), models.ShelfStatusReading)
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func (s *bookService) Search(ctx context.Context, query string) ([]catalog.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidField("query", "search query is required")
	}
	results, err := s.catalog.Search(ctx, query)
	if err != nil {
		log.Printf("[ERROR] Search: catalog search for %q failed: %v", query, err)
		return nil, err
	}
	return results, nil
}

func (s *bookService) WorkDetails(ctx context.Context, workID string) (*catalog.WorkDetails, error) {
	details, err := s.catalog.WorkDetails(ctx, workID)
	if err != nil {
		log.Printf("[ERROR] WorkDetails: catalog lookup for %s failed: %v", workID, err)
		return nil, err
	}
	return details, nil
}

// ─── Enrichment ───────────────────────────────────────────────────────────────

// EnrichPageCount fills in an unknown total page count from the catalog and
// recomputes progress. The shelf is left alone. A count below the pages
// already read is ignored.
func (s *bookService) EnrichPageCount(ctx context.Context, externalID string) (*models.Book, error) {
	book, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if book.TotalPages > 0 {
		return book, nil
	}

	// The catalog call happens outside the lock and the transaction.
	pages, err := s.catalog.PageCount(ctx, externalID)
	if err != nil {
		log.Printf("[ERROR] EnrichPageCount: catalog lookup for %s failed: %v", externalID, err)
		return nil, err
	}
	if pages <= 0 {
		log.Printf("[INFO] EnrichPageCount: catalog has no page count for %s", externalID)
		return book, nil
	}

	unlock := s.locks.Lock(externalID)
	defer unlock()

	var result *models.Book
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.bookRepo.FindByExternalIDForUpdate(tx, externalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		result = current
		if current.TotalPages > 0 {
			return nil
		}
		if pages < current.PageRead {
			log.Printf("[WARN] EnrichPageCount: catalog count %d for %s is below pages read %d, skipping", pages, externalID, current.PageRead)
			return nil
		}
		current.TotalPages = pages
		current.RecomputeProgress()
		return s.bookRepo.Save(tx, current)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] EnrichPageCount: %s now has %d pages, progress=%d%%", externalID, result.TotalPages, result.CurrentProgress)
	return result, nil
}

// ListMissingPageCount returns books with an external id but unknown length.
func (s *bookService) ListMissingPageCount(ctx context.Context) ([]models.Book, error) {
	return s.bookRepo.FindMissingPageCount(s.db.WithContext(ctx))
}
