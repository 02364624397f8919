package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

type BooksController struct {
	store   BookStore
	auditor AdminAuditor
}

func NewBooksController(store BookStore, auditor AdminAuditor) *BooksController {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &BooksController{
		store:   store,
		auditor: auditor,
	}
}

type CreateBookRequest struct {
	Title       string `json:"title" binding:"required,max=512"`
	Author      string `json:"author" binding:"max=256"`
	ISBN        string `json:"isbn" binding:"max=20"`
	Category    string `json:"category" binding:"max=100"`
	TotalCopies int    `json:"total_copies" binding:"min=0"`
}

type SetCopiesRequest struct {
	TotalCopies *int `json:"total_copies" binding:"required,min=0"`
}

type SetBookStatusRequest struct {
	Status entities.BookStatus `json:"status" binding:"required"`
}

// Create handles POST /api/books (admin)
func (bc *BooksController) Create(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	book := &entities.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Category:    req.Category,
		TotalCopies: req.TotalCopies,
	}
	err := bc.store.CreateBook(c.Request.Context(), book)
	bc.auditor.LogAdmin(auth.GetUserID(c), "book_create", "book", book.ID, "Added \""+req.Title+"\"", err)
	if err != nil {
		if errors.Is(err, books.ErrTitleRequired) || errors.Is(err, books.ErrInvalidCopyCount) {
			respondBadRequest(c, err.Error())
			return
		}
		respondInternalError(c, err, "create book")
		return
	}
	respondCreated(c, book)
}

// List handles GET /api/books
// Query parameters: q, category, status, available, limit, offset.
func (bc *BooksController) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	filter := books.ListFilter{
		Query:         c.Query("q"),
		Category:      c.Query("category"),
		AvailableOnly: c.Query("available") == "true",
		Limit:         limit,
		Offset:        offset,
	}
	if s := c.Query("status"); s != "" {
		status := entities.BookStatus(s)
		if !entities.ValidBookStatus(status) {
			respondBadRequest(c, "invalid status")
			return
		}
		filter.Status = status
	}

	list, total, err := bc.store.ListBooks(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	if list == nil {
		list = []entities.Book{}
	}
	c.JSON(http.StatusOK, newPaginatedResponse(list, total, limit, offset))
}

// Get handles GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetBook(c.Request.Context(), id)
	if err != nil {
		bc.respondStoreError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// SetCopies handles PATCH /api/books/:id/copies (admin)
func (bc *BooksController) SetCopies(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	book, err := bc.store.SetTotalCopies(c.Request.Context(), id, *req.TotalCopies)
	bc.auditor.LogAdmin(auth.GetUserID(c), "book_set_copies", "book", id, "Set total copies", err)
	if err != nil {
		bc.respondStoreError(c, err, "set copies")
		return
	}
	c.JSON(http.StatusOK, book)
}

// SetStatus handles PATCH /api/books/:id/status (admin)
func (bc *BooksController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetBookStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	book, err := bc.store.SetStatus(c.Request.Context(), id, req.Status)
	bc.auditor.LogAdmin(auth.GetUserID(c), "book_set_status", "book", id, "Set status "+string(req.Status), err)
	if err != nil {
		bc.respondStoreError(c, err, "set book status")
		return
	}
	c.JSON(http.StatusOK, book)
}

func (bc *BooksController) respondStoreError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, lending.ErrNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, books.ErrInvalidStatus), errors.Is(err, books.ErrInvalidCopyCount):
		respondBadRequest(c, err.Error())
	case errors.Is(err, books.ErrTotalBelowBorrowed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "TOTAL_BELOW_BORROWED"})
	default:
		respondInternalError(c, err, context)
	}
}
