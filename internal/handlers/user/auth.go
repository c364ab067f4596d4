package user

import (
	"context"
	"net/http"

	"byteshop/internal/apperrors"
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	FullName string `json:"full_name" binding:"required,min=2,max=100,notblank"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	FullName string `json:"full_name" binding:"required,min=2,max=100,notblank"`
}

type userURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type AuthHandler struct {
	auth *services.AuthService
	// completeAuth is gothic.CompleteUserAuth outside tests.
	completeAuth func(http.ResponseWriter, *http.Request) (goth.User, error)
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, completeAuth: gothic.CompleteUserAuth}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	result, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.Created(c, "User registered successfully", result)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Login successful", result)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.auth.GetUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OK(c, u)
}

// PUT /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req profileRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	u, err := h.auth.UpdateProfile(c.Request.Context(), c.GetString("user_id"), req.FullName)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Profile updated successfully", u)
}

// GET /api/auth/users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	handlers.OK(c, users)
}

// PATCH /api/auth/users/:id/promote
func (h *AuthHandler) Promote(c *gin.Context) {
	var uri userURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	u, err := h.auth.PromoteToAdmin(c.Request.Context(), uri.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "User promoted to admin", u)
}

// withProvider exposes the :provider path segment to gothic, which reads it
// from the query string.
func withProvider(c *gin.Context) bool {
	provider := c.Param("provider")
	if _, err := goth.GetProvider(provider); err != nil {
		_ = c.Error(apperrors.NotFound("OAuth provider " + provider + " is not enabled"))
		return false
	}
	q := c.Request.URL.Query()
	q.Set("provider", provider)
	c.Request.URL.RawQuery = q.Encode()
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), gothic.ProviderParamKey, provider))
	return true
}

// GET /api/auth/oauth/:provider
func (h *AuthHandler) BeginOAuth(c *gin.Context) {
	if !withProvider(c) {
		return
	}
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// GET /api/auth/oauth/:provider/callback
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	if !withProvider(c) {
		return
	}
	gu, err := h.completeAuth(c.Writer, c.Request)
	if err != nil {
		_ = c.Error(apperrors.Wrap(http.StatusUnauthorized, "OAuth authentication failed", err))
		return
	}
	result, err := h.auth.LoginWithProvider(c.Request.Context(), gu.Email, gu.Name, gu.Provider)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Login successful", result)
}
