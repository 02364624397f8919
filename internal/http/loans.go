package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/scheduler"
)

// LoansController exposes borrow, return and renew plus loan listings.
type LoansController struct {
	lender   Lender
	reader   LoanReader
	sweeper  SweepTrigger
	enforced bool
	now      func() time.Time
}

func NewLoansController(lender Lender, reader LoanReader, sweeper SweepTrigger, authEnforced bool) *LoansController {
	return &LoansController{
		lender:   lender,
		reader:   reader,
		sweeper:  sweeper,
		enforced: authEnforced,
		now:      time.Now,
	}
}

type BorrowRequest struct {
	BookID uint `json:"book_id" binding:"required,min=1"`
	// UserID names the borrower. Required without authentication; with
	// authentication only admins may borrow on behalf of someone else.
	UserID uint `json:"user_id"`
}

// CallerRequest optionally names the acting user when authentication is off.
type CallerRequest struct {
	UserID uint `json:"user_id"`
}

// borrower resolves whose account a borrow is charged to.
func (lc *LoansController) borrower(c *gin.Context, requested uint) (uint, bool) {
	if !lc.enforced {
		if requested == 0 {
			respondBadRequest(c, "user_id is required")
			return 0, false
		}
		return requested, true
	}

	self := auth.GetUserID(c)
	if requested == 0 || requested == self {
		return self, true
	}
	if !auth.IsAdmin(c) {
		respondForbidden(c, "cannot borrow on behalf of another user")
		return 0, false
	}
	return requested, true
}

// caller returns the identity to check ownership against, or nil for no
// check. A body that is present but malformed is answered with 400.
func (lc *LoansController) caller(c *gin.Context) (*uint, bool) {
	if lc.enforced {
		if auth.IsAdmin(c) {
			return nil, true
		}
		id := auth.GetUserID(c)
		return &id, true
	}

	var req CallerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBadRequest(c, "invalid request: "+err.Error())
			return nil, false
		}
	}
	if req.UserID == 0 {
		return nil, true
	}
	return &req.UserID, true
}

// Return handles POST /api/loans/:id/return
func (lc *LoansController) Return(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	caller, ok := lc.caller(c)
	if !ok {
		return
	}

	record, err := lc.lender.Return(c.Request.Context(), id, caller)
	if err != nil {
		respondLendingError(c, err, "return")
		return
	}
	c.JSON(http.StatusOK, record)
}

// Renew handles POST /api/loans/:id/renew
func (lc *LoansController) Renew(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	caller, ok := lc.caller(c)
	if !ok {
		return
	}

	record, err := lc.lender.Renew(c.Request.Context(), id, caller)
	if err != nil {
		respondLendingError(c, err, "renew")
		return
	}
	c.JSON(http.StatusOK, record)
}

// Mine handles GET /api/loans/mine
// Without authentication the user is given by the user_id query parameter.
func (lc *LoansController) Mine(c *gin.Context) {
	userID := auth.GetUserID(c)
	if !lc.enforced {
		id, ok := parseOptionalQueryID(c, "user_id")
		if !ok {
			return
		}
		if id == 0 {
			respondBadRequest(c, "user_id is required")
			return
		}
		userID = id
	}

	filter, ok := lc.listFilter(c)
	if !ok {
		return
	}
	filter.UserID = userID
	lc.respondList(c, filter)
}

// List handles GET /api/loans (admin)
func (lc *LoansController) List(c *gin.Context) {
	filter, ok := lc.listFilter(c)
	if !ok {
		return
	}
	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}
	bookID, ok := parseOptionalQueryID(c, "book_id")
	if !ok {
		return
	}
	filter.UserID = userID
	filter.BookID = bookID
	lc.respondList(c, filter)
}

func (lc *LoansController) listFilter(c *gin.Context) (loans.ListFilter, bool) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return loans.ListFilter{}, false
	}
	filter := loans.ListFilter{Limit: limit, Offset: offset}
	if s := c.Query("status"); s != "" {
		status, err := entities.ParseBorrowStatus(s)
		if err != nil {
			respondBadRequest(c, err.Error())
			return loans.ListFilter{}, false
		}
		filter.Status = status
	}
	return filter, true
}

func (lc *LoansController) respondList(c *gin.Context, filter loans.ListFilter) {
	records, total, err := lc.reader.ListRecords(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "list loans")
		return
	}
	if records == nil {
		records = []entities.BorrowRecord{}
	}
	c.JSON(http.StatusOK, newPaginatedResponse(records, total, filter.Limit, filter.Offset))
}

// Overdue handles GET /api/loans/overdue (admin)
// Lists loans that are overdue now, whether or not a sweep has marked them.
func (lc *LoansController) Overdue(c *gin.Context) {
	records, err := lc.reader.ListOverdue(c.Request.Context(), lc.now().UTC())
	if err != nil {
		respondInternalError(c, err, "list overdue loans")
		return
	}
	if records == nil {
		records = []entities.BorrowRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"loans": records, "count": len(records)})
}

// Sweep handles POST /api/loans/sweep (admin)
func (lc *LoansController) Sweep(c *gin.Context) {
	if lc.sweeper == nil {
		respondError(c, http.StatusServiceUnavailable, "overdue sweep not configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	taskID, result, err := lc.sweeper.RunSweepNow(ctx)
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondLendingError(c, err, "sweep")
		return
	}
	if result == nil {
		respondAccepted(c, "overdue sweep enqueued", gin.H{"task_id": taskID})
		return
	}
	c.JSON(http.StatusOK, result)
}
