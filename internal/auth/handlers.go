package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the auth HTTP endpoints
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the auth endpoints on a router group
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
}

// Register handles POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

// Login handles POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func respondAuthError(c *gin.Context, err error) {
	authErr, ok := err.(AuthError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "internal error"})
		return
	}

	status := http.StatusUnauthorized
	switch authErr.Code {
	case ErrEmailTaken.Code:
		status = http.StatusConflict
	case ErrWeakPassword.Code:
		status = http.StatusBadRequest
	case ErrAccountLocked.Code:
		status = http.StatusLocked
	case ErrForbidden.Code:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": authErr.Code, "message": authErr.Message})
}
