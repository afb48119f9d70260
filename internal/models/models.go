package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShelfStatus string

const (
	ShelfStatusTBR      ShelfStatus = "tbr"
	ShelfStatusReading  ShelfStatus = "reading"
	ShelfStatusFinished ShelfStatus = "finished"
)

const (
	DefaultAuthor = "Unknown Author"
	DefaultCover  = "https://placehold.co/100x150?text=No+Cover"
)

// Valid reports whether s is one of the three shelves.
func (s ShelfStatus) Valid() bool {
	switch s {
	case ShelfStatusTBR, ShelfStatusReading, ShelfStatusFinished:
		return true
	}
	return false
}

type Book struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID      string           `gorm:"size:64;index" json:"externalId,omitempty"`
	Title           string           `gorm:"size:512;not null" json:"title"`
	Author          string           `gorm:"size:255;not null" json:"author"`
	Status          ShelfStatus      `gorm:"size:16;not null;index;check:status IN ('tbr','reading','finished')" json:"status"`
	PageRead        int              `gorm:"not null;default:0" json:"pageRead"`
	TotalPages      int              `gorm:"not null;default:0" json:"totalPages"`
	CurrentProgress int              `gorm:"not null;default:0" json:"currentProgress"`
	LastRead        *time.Time       `gorm:"index" json:"lastRead"`
	ReadingSessions []ReadingSession `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"readingSessions"`
	Cover           string           `gorm:"size:1024" json:"cover"`
	CoverImageID    string           `gorm:"size:64" json:"coverImageId,omitempty"`
	Rating          *float64         `json:"rating"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ReadingSession is one logged interval of reading. Sessions are only ever
// appended; Position fixes their order within a book.
type ReadingSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookID    uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Position  int       `gorm:"not null" json:"-"`
	Date      time.Time `gorm:"not null" json:"date"`
	PagesRead int       `gorm:"not null" json:"pagesRead"`
	StartPage int       `gorm:"not null" json:"startPage"`
	EndPage   int       `gorm:"not null" json:"endPage"`
	Duration  int       `gorm:"not null;default:0" json:"duration"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (s *ReadingSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Progress returns round(pageRead / totalPages * 100), or 0 when the length
// of the book is unknown.
func Progress(pageRead, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	return int(math.Round(float64(pageRead) / float64(totalPages) * 100))
}

// RecomputeProgress refreshes CurrentProgress from PageRead and TotalPages.
// With an unknown total the existing value is kept.
func (b *Book) RecomputeProgress() {
	if b.TotalPages > 0 {
		b.CurrentProgress = Progress(b.PageRead, b.TotalPages)
	}
}

// DeriveStatus moves the book forward along tbr -> reading -> finished based
// on CurrentProgress. It never moves a book backwards.
func (b *Book) DeriveStatus() {
	switch {
	case b.CurrentProgress >= 100:
		b.Status = ShelfStatusFinished
	case b.CurrentProgress > 0 && b.Status == ShelfStatusTBR:
		b.Status = ShelfStatusReading
	}
}

// AppendSession records a session ending at endPage. It is a no-op when
// pagesRead is not positive.
func (b *Book) AppendSession(at time.Time, pagesRead, endPage, duration int) *ReadingSession {
	if pagesRead <= 0 {
		return nil
	}
	b.ReadingSessions = append(b.ReadingSessions, ReadingSession{
		BookID:    b.ID,
		Position:  len(b.ReadingSessions),
		Date:      at,
		PagesRead: pagesRead,
		StartPage: endPage - pagesRead,
		EndPage:   endPage,
		Duration:  duration,
	})
	return &b.ReadingSessions[len(b.ReadingSessions)-1]
}
