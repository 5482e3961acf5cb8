package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/models"
	"github.com/campushub/loyalty-be/routes"
	"github.com/campushub/loyalty-be/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Password1!"

// setupRouter gives each test its own in-memory database and a fully wired
// router.
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	config.DB = db

	return routes.SetupRoutes()
}

func createUser(t *testing.T, utorid string, role models.UserRole, opts ...func(*models.User)) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Utorid:   utorid,
		Name:     "Test " + utorid,
		Email:    utorid + "@mail.utoronto.ca",
		Password: string(hash),
		Role:     role,
		Verified: true,
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, config.DB.Create(user).Error)
	return user
}

func withPoints(points int) func(*models.User) {
	return func(u *models.User) { u.Points = points }
}

func unverified() func(*models.User) {
	return func(u *models.User) { u.Verified = false }
}

func flaggedSuspicious() func(*models.User) {
	return func(u *models.User) { u.Suspicious = true }
}

func authToken(t *testing.T, user *models.User) string {
	t.Helper()
	token, _, err := services.NewAuthService().GenerateToken(user)
	require.NoError(t, err)
	return token
}

// do sends a JSON request through the router. token may be empty for public
// endpoints.
func do(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var out []interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func reload(t *testing.T, user *models.User) *models.User {
	t.Helper()
	var fresh models.User
	require.NoError(t, config.DB.First(&fresh, user.ID).Error)
	return &fresh
}
