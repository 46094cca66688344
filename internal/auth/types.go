package auth

// UserClaims is the identity carried inside an access token
type UserClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

// AuthError is a coded authentication error safe to return to clients
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or malformed token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrAccountLocked      = AuthError{Code: "ACCOUNT_LOCKED", Message: "account temporarily locked"}
	ErrEmailTaken         = AuthError{Code: "EMAIL_TAKEN", Message: "email already registered"}
	ErrWeakPassword       = AuthError{Code: "WEAK_PASSWORD", Message: "password does not meet requirements"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "insufficient permissions"}
)

// RegisterRequest is the signup payload
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is the token pair returned on login and refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // Seconds until the access token expires
}
