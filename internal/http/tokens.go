package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/entities"
)

// TokenIssuer exchanges credentials for API tokens. Implemented by auth.Service.
type TokenIssuer interface {
	Authenticate(ctx context.Context, username, password string) (*entities.User, error)
	IssueToken(ctx context.Context, userID uint) (string, *time.Time, error)
	RevokeToken(ctx context.Context, userID uint) error
}

type TokenController struct {
	issuer  TokenIssuer
	limiter *auth.LoginLimiter
	auditor AdminAuditor
}

func NewTokenController(issuer TokenIssuer, limiter *auth.LoginLimiter, auditor AdminAuditor) *TokenController {
	if limiter == nil {
		limiter = auth.NewLoginLimiter(auth.DefaultLimiterConfig())
	}
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &TokenController{
		issuer:  issuer,
		limiter: limiter,
		auditor: auditor,
	}
}

type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string     `json:"token"`
	UserID    uint       `json:"user_id"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Issue handles POST /api/auth/token
// The plaintext token is only ever returned here.
func (tc *TokenController) Issue(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	ip := c.ClientIP()
	if ok, wait := tc.limiter.Allow(ip, req.Username); !ok {
		c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
		respondError(c, http.StatusTooManyRequests, "too many failed attempts, try again later")
		return
	}

	user, err := tc.issuer.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
			tc.limiter.RecordFailure(ip, req.Username)
			tc.auditor.LogAuth(0, "token_issue", ip, false)
			respondError(c, http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, auth.ErrUserDisabled):
			tc.auditor.LogAuth(0, "token_issue", ip, false)
			respondForbidden(c, err.Error())
		default:
			respondInternalError(c, err, "authenticate")
		}
		return
	}
	tc.limiter.RecordSuccess(ip, req.Username)

	token, expiresAt, err := tc.issuer.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		respondInternalError(c, err, "issue token")
		return
	}
	tc.auditor.LogAuth(user.ID, "token_issue", ip, true)

	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		UserID:    user.ID,
		Role:      string(user.Role),
		ExpiresAt: expiresAt,
	})
}

// Revoke handles DELETE /api/auth/token
func (tc *TokenController) Revoke(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == auth.DefaultUserID {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := tc.issuer.RevokeToken(c.Request.Context(), userID); err != nil {
		respondInternalError(c, err, "revoke token")
		return
	}
	tc.auditor.LogAuth(userID, "token_revoke", c.ClientIP(), true)
	c.JSON(http.StatusOK, SuccessResponse{Message: "token revoked"})
}
