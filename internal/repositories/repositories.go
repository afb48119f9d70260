package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/betty-pap/BookTracker-app-backend/internal/models"
)

// BookRepository persists books together with their reading sessions.
// Every method accepts an optional *gorm.DB so callers can run it inside a
// transaction; nil falls back to the repository's own handle.
type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	Save(db *gorm.DB, book *models.Book) error
	AppendSession(db *gorm.DB, session *models.ReadingSession) error

	FindByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	FindByExternalID(db *gorm.DB, externalID string) (*models.Book, error)
	FindByExternalIDForUpdate(db *gorm.DB, externalID string) (*models.Book, error)
	FindAllByStatus(db *gorm.DB, status models.ShelfStatus) ([]models.Book, error)
	FindAllByStatusOrderedByLastReadDesc(db *gorm.DB, status models.ShelfStatus) ([]models.Book, error)
	FindMissingPageCount(db *gorm.DB) ([]models.Book, error)

	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.ShelfStatus) (int64, error)
	UpdateRating(db *gorm.DB, externalID string, rating float64) (int64, error)

	DeleteByID(db *gorm.DB, id uuid.UUID) (int64, error)
	DeleteByExternalID(db *gorm.DB, externalID string) (int64, error)
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func preloadSessions(db *gorm.DB) *gorm.DB {
	return db.Preload("ReadingSessions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	return r.conn(db).Create(book).Error
}

// Save writes every column of the book. Sessions are stored separately
// through AppendSession.
func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	return r.conn(db).Omit(clause.Associations).Save(book).Error
}

func (r *bookRepository) AppendSession(db *gorm.DB, session *models.ReadingSession) error {
	return r.conn(db).Create(session).Error
}

func (r *bookRepository) FindByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := preloadSessions(r.conn(db)).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) FindByExternalID(db *gorm.DB, externalID string) (*models.Book, error) {
	var book models.Book
	err := preloadSessions(r.conn(db)).
		Where("external_id = ?", externalID).
		Order("created_at ASC, id ASC").
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByExternalIDForUpdate locks the book row until the surrounding
// transaction ends. SQLite ignores the locking clause.
func (r *bookRepository) FindByExternalIDForUpdate(db *gorm.DB, externalID string) (*models.Book, error) {
	var book models.Book
	err := r.conn(db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ?", externalID).
		Order("created_at ASC, id ASC").
		First(&book).Error
	if err != nil {
		return nil, err
	}
	var sessions []models.ReadingSession
	if err := r.conn(db).Where("book_id = ?", book.ID).Order("position ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	book.ReadingSessions = sessions
	return &book, nil
}

func (r *bookRepository) FindAllByStatus(db *gorm.DB, status models.ShelfStatus) ([]models.Book, error) {
	var books []models.Book
	if err := preloadSessions(r.conn(db)).Where("status = ?", status).Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) FindAllByStatusOrderedByLastReadDesc(db *gorm.DB, status models.ShelfStatus) ([]models.Book, error) {
	var books []models.Book
	err := preloadSessions(r.conn(db)).
		Where("status = ?", status).
		Order("last_read DESC NULLS LAST, id ASC").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) FindMissingPageCount(db *gorm.DB) ([]models.Book, error) {
	var books []models.Book
	err := r.conn(db).
		Where("total_pages = 0 AND external_id <> ''").
		Order("created_at ASC").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.ShelfStatus) (int64, error) {
	res := r.conn(db).Model(&models.Book{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *bookRepository) UpdateRating(db *gorm.DB, externalID string, rating float64) (int64, error) {
	res := r.conn(db).Model(&models.Book{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"rating":     rating,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// DeleteByID removes the book and its sessions. Callers should pass a
// transaction so both deletes commit together.
func (r *bookRepository) DeleteByID(db *gorm.DB, id uuid.UUID) (int64, error) {
	db = r.conn(db)
	if err := db.Where("book_id = ?", id).Delete(&models.ReadingSession{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", id).Delete(&models.Book{})
	return res.RowsAffected, res.Error
}

func (r *bookRepository) DeleteByExternalID(db *gorm.DB, externalID string) (int64, error) {
	db = r.conn(db)
	ids := db.Model(&models.Book{}).Select("id").Where("external_id = ?", externalID)
	if err := db.Where("book_id IN (?)", ids).Delete(&models.ReadingSession{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("external_id = ?", externalID).Delete(&models.Book{})
	return res.RowsAffected, res.Error
}
