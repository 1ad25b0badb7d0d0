package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

const tokenTTL = 12 * time.Hour

// adminStore is the slice of the repository the login flow needs.
type adminStore interface {
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)
}

type AuthHandler struct {
	Store     adminStore
	JWTSecret string
}

func NewAuthHandler(store adminStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{Store: store, JWTSecret: jwtSecret}
}

// Login checks admin credentials and issues an HS256 token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ResponseApi{ApiMessage: "Invalid request: " + err.Error()})
		return
	}

	admin, err := h.Store.GetAdminByUsername(c.Request.Context(), req.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, model.ResponseApi{ApiMessage: "Username or password is incorrect"})
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": admin.ID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})

	signed, err := token.SignedString([]byte(h.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ResponseApi{ApiMessage: "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, model.ResponseApi{
		ApiMessage: "Login Successful",
		Data:       model.LoginResponse{Token: signed},
	})
}
