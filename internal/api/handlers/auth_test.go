package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/voicebridge/go-convai-mirror/internal/model"
)

type fakeAdminStore struct {
	admin  *model.Admin
	err    error
	gotCtx context.Context
}

func (f *fakeAdminStore) GetAdminByUsername(ctx context.Context, _ string) (*model.Admin, error) {
	f.gotCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return f.admin, nil
}

type loginCtxKey struct{}

func performLogin(t *testing.T, store *fakeAdminStore, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), loginCtxKey{}, "from-request"))
	c.Request = req

	NewAuthHandler(store, "test-secret").Login(c)
	return w
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &fakeAdminStore{admin: &model.Admin{ID: "admin-1", Username: "admin", PasswordHash: string(hash)}}

	w := performLogin(t, store, `{"username": "admin", "password": "hunter2"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string `json:"message"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)

	token, err := jwt.Parse(resp.Data.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "admin-1", claims["sub"])

	// The lookup must run on the request's context, not a fresh one.
	require.NotNil(t, store.gotCtx)
	assert.Equal(t, "from-request", store.gotCtx.Value(loginCtxKey{}))
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		store := &fakeAdminStore{admin: &model.Admin{ID: "admin-1", PasswordHash: string(hash)}}
		w := performLogin(t, store, `{"username": "admin", "password": "wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		store := &fakeAdminStore{err: sql.ErrNoRows}
		w := performLogin(t, store, `{"username": "ghost", "password": "hunter2"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		store := &fakeAdminStore{}
		w := performLogin(t, store, `{"username": "admin"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
