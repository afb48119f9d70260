package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/betty-pap/BookTracker-app-backend/internal/models"
	"github.com/betty-pap/BookTracker-app-backend/internal/services"
)

type BookHandler struct {
	svc services.BookService
}

func RegisterRoutes(r *gin.Engine, svc services.BookService) {
	h := &BookHandler{svc: svc}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working!"})
	})

	books := r.Group("/api/books")

	// Catalog endpoints
	books.GET("/search/:query", h.search)
	books.GET("/details/:workId", h.workDetails)

	// Shelf endpoints
	books.GET("/shelf/:status", h.listShelf)
	books.GET("/shelf/reading/with-progress", h.listReadingWithProgress)
	books.GET("/find/:externalId", h.findByExternalID)
	books.POST("/shelf/:status", h.addBook)
	books.PUT("/:id/status", h.setStatus)

	// Reading endpoints
	books.PUT("/progress/:externalId", h.updateProgress)
	books.PATCH("/:id/rating", h.setRating)

	// Removal endpoints
	books.DELETE("/work/:externalId", h.removeByExternalID)
	books.DELETE("/:id", h.removeByID)
}

func (h *BookHandler) search(c *gin.Context) {
	results, err := h.svc.Search(c.Request.Context(), c.Param("query"))
	if err != nil {
		respondError(c, "Failed to search the catalog", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *BookHandler) workDetails(c *gin.Context) {
	details, err := h.svc.WorkDetails(c.Request.Context(), c.Param("workId"))
	if err != nil {
		respondError(c, "Failed to fetch book details", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *BookHandler) listShelf(c *gin.Context) {
	books, err := h.svc.ListShelf(c.Request.Context(), models.ShelfStatus(c.Param("status")))
	if err != nil {
		respondError(c, "Failed to list shelf", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *BookHandler) listReadingWithProgress(c *gin.Context) {
	books, err := h.svc.ListReadingByLastRead(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list books in progress", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *BookHandler) findByExternalID(c *gin.Context) {
	book, err := h.svc.FindByExternalID(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		respondError(c, "Failed to find book", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type addBookRequest struct {
	Title        string `json:"title" binding:"required"`
	Author       string `json:"author"`
	Cover        string `json:"cover"`
	CoverImageID string `json:"coverImageId"`
	ExternalID   string `json:"externalId"`
	WorkID       string `json:"workId"` // older clients send the work key here
	PageRead     int    `json:"pageRead" binding:"min=0"`
	TotalPages   int    `json:"totalPages" binding:"min=0"`
}

func (h *BookHandler) addBook(c *gin.Context) {
	var req addBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = strings.TrimPrefix(req.WorkID, "/works/")
	}

	book, err := h.svc.AddBook(c.Request.Context(), services.AddBookInput{
		Title:        req.Title,
		Author:       req.Author,
		Cover:        req.Cover,
		CoverImageID: req.CoverImageID,
		ExternalID:   externalID,
		Status:       models.ShelfStatus(c.Param("status")),
		PageRead:     req.PageRead,
		TotalPages:   req.TotalPages,
	})
	if err != nil {
		respondError(c, "Failed to add book", err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=tbr reading finished"`
}

func (h *BookHandler) setStatus(c *gin.Context) {
	bookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.SetStatus(c.Request.Context(), bookID, models.ShelfStatus(req.Status))
	if err != nil {
		respondError(c, "Failed to update status", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type progressRequest struct {
	CurrentPage *int `json:"currentPage" binding:"required,min=0"`
	PagesRead   int  `json:"pagesRead" binding:"min=0"`
	Duration    int  `json:"duration" binding:"min=0"`
	TotalPages  int  `json:"totalPages" binding:"min=0"`
}

func (h *BookHandler) updateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.UpdateProgress(c.Request.Context(), c.Param("externalId"), services.ProgressUpdate{
		CurrentPage:    *req.CurrentPage,
		PagesReadDelta: req.PagesRead,
		Duration:       req.Duration,
		TotalPages:     req.TotalPages,
	})
	if err != nil {
		respondError(c, "Failed to update progress", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type ratingRequest struct {
	Rating *float64 `json:"rating" binding:"required"`
}

// setRating is addressed by external id even though the route says :id.
func (h *BookHandler) setRating(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.SetRating(c.Request.Context(), c.Param("id"), *req.Rating)
	if err != nil {
		respondError(c, "Failed to update rating", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) removeByExternalID(c *gin.Context) {
	if err := h.svc.RemoveByExternalID(c.Request.Context(), c.Param("externalId")); err != nil {
		respondError(c, "Failed to delete book", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted"})
}

func (h *BookHandler) removeByID(c *gin.Context) {
	bookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	if err := h.svc.RemoveByID(c.Request.Context(), bookID); err != nil {
		respondError(c, "Failed to delete book", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted"})
}
