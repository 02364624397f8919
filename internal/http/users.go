package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

// AccountService registers users. Implemented by auth.Service.
type AccountService interface {
	CreateUser(ctx context.Context, username, email, password string, role entities.UserRole) (*entities.User, error)
}

type UsersController struct {
	accounts AccountService
	store    UserStore
	auditor  AdminAuditor
}

func NewUsersController(accounts AccountService, store UserStore, auditor AdminAuditor) *UsersController {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &UsersController{
		accounts: accounts,
		store:    store,
		auditor:  auditor,
	}
}

type CreateUserRequest struct {
	Username string            `json:"username" binding:"required"`
	Email    string            `json:"email" binding:"required"`
	Password string            `json:"password" binding:"required"`
	Role     entities.UserRole `json:"role"`
}

type SetUserStatusRequest struct {
	Status entities.UserStatus `json:"status" binding:"required"`
}

// Create handles POST /api/users (admin)
func (uc *UsersController) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := uc.accounts.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, req.Role)
	var userID uint
	if user != nil {
		userID = user.ID
	}
	uc.auditor.LogAdmin(auth.GetUserID(c), "user_create", "user", userID, "Created user "+req.Username, err)

	switch {
	case err == nil:
		respondCreated(c, user)
	case errors.Is(err, auth.ErrUserExists):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUsernameInvalid),
		errors.Is(err, auth.ErrEmailInvalid),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrPasswordRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong):
		respondBadRequest(c, err.Error())
	default:
		respondInternalError(c, err, "create user")
	}
}

// Get handles GET /api/users/:id
// Readers may only look themselves up when authentication is on.
func (uc *UsersController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !auth.IsAdmin(c) && auth.GetUserID(c) != id {
		respondForbidden(c, "insufficient permissions")
		return
	}

	user, err := uc.store.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			respondNotFound(c, "user")
			return
		}
		respondInternalError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetStatus handles PATCH /api/users/:id/status (admin)
// Disabled users can no longer borrow; their outstanding loans stay open.
func (uc *UsersController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !entities.ValidUserStatus(req.Status) {
		respondBadRequest(c, "invalid status")
		return
	}

	user, err := uc.store.SetStatus(c.Request.Context(), id, req.Status)
	uc.auditor.LogAdmin(auth.GetUserID(c), "user_set_status", "user", id, "Set status "+string(req.Status), err)
	if err != nil {
		if errors.Is(err, lending.ErrNotFound) {
			respondNotFound(c, "user")
			return
		}
		respondInternalError(c, err, "set user status")
		return
	}
	c.JSON(http.StatusOK, user)
}
