// Package auth provides authentication and authorization for the lending API.
//
// It supports two authentication modes:
//   - "none": no authentication (default). Requests carry no identity, the
//     borrower is named in the request body and ownership is not enforced.
//   - "token": every /api request except token issuance needs a bearer token.
//     Return and renew are limited to the loan's owner, and admin routes to
//     users with the admin role.
//
// # Configuration
//
//	AUTH_MODE=none           # Default
//	AUTH_MODE=token          # Bearer tokens
//	AUTH_TOKEN_EXPIRY=720h   # API token lifetime (30 days default)
//	AUTH_BCRYPT_COST=12      # bcrypt cost factor
//
// Only the SHA-256 of a token is stored; the plaintext is shown once, when
// it is issued by POST /api/auth/token.
//
// # Usage
//
//	authService := auth.NewService(usersRepo, cfg.Auth)
//	authMiddleware := auth.NewMiddleware(authService, cfg.Auth)
//	router.Use(authMiddleware.Handler())
//
// Extract the caller in handlers:
//
//	userID := auth.GetUserID(c) // DefaultUserID in "none" mode
package auth
