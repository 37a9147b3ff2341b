package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestRouter(t *testing.T, db *gorm.DB, c catalog.Cache, origins []string, dev bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(Deps{
		DB:             db,
		Logger:         zaptest.NewLogger(t),
		Cache:          c,
		CacheTTL:       time.Minute,
		AllowedOrigins: origins,
		Dev:            dev,
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
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

func TestHealth(t *testing.T) {
	r := newTestRouter(t, setupTestDB(t), nil, nil, true)

	for _, path := range []string{"/health", "/api/health"} {
		w := doJSON(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
	}
}

func TestMemberSubmitsAndEveryoneSeesIt(t *testing.T) {
	db := setupTestDB(t)
	c := &mapCache{data: map[string]string{}}
	r := newTestRouter(t, db, c, nil, true)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "member@example.org",
		"password": "password123",
		"name":     "Member",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var registered auth.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))

	// Prime the snapshot so the submission has something to invalidate.
	w = doJSON(t, r, http.MethodGet, "/api/resources", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, c.data, catalog.SnapshotCacheKey)

	w = doJSON(t, r, http.MethodPost, "/api/resources", "", gin.H{
		"title": "Anonymous", "description": "d", "url": "https://example.org", "type": "article",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/resources", registered.Token, gin.H{
		"title":       "Intro to SQL",
		"description": "Joins explained",
		"url":         "https://example.org/sql",
		"type":        "Tutorial",
		"tags":        []string{"SQL", "Databases"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, c.data, catalog.SnapshotCacheKey)

	w = doJSON(t, r, http.MethodGet, "/api/resources?category=SQL", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Resources []catalog.FlattenedResource `json:"resources"`
		Total     int                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Resources, 1)
	assert.Equal(t, "Intro to SQL", list.Resources[0].Title)
	assert.Equal(t, []string{"SQL", "Databases"}, list.Resources[0].Tags)
	assert.Equal(t, registered.User.ID, list.Resources[0].AuthorID)

	w = doJSON(t, r, http.MethodGet, "/go/"+list.Resources[0].ID, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.org/sql", w.Header().Get("Location"))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(t, db, nil, nil, true)

	member := models.User{Email: "m@example.org", PasswordHash: "x", Name: "M", SystemRole: models.SystemRoleUser}
	admin := models.User{Email: "a@example.org", PasswordHash: "x", Name: "A", SystemRole: models.SystemRoleAdmin}
	require.NoError(t, db.Create(&member).Error)
	require.NoError(t, db.Create(&admin).Error)
	memberToken, err := auth.GenerateToken(member.ID, member.Email, string(member.SystemRole))
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken(admin.ID, admin.Email, string(admin.SystemRole))
	require.NoError(t, err)

	paths := []string{"/api/admin/stats", "/api/admin/users", "/api/admin/export"}
	for _, path := range paths {
		assert.Equal(t, http.StatusUnauthorized, doJSON(t, r, http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusForbidden, doJSON(t, r, http.MethodGet, path, memberToken, nil).Code, path)
		assert.Equal(t, http.StatusOK, doJSON(t, r, http.MethodGet, path, adminToken, nil).Code, path)
	}
}

func TestAdminAPIKeyImport(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(t, db, nil, nil, true)

	admin := models.User{Email: "a@example.org", PasswordHash: "x", Name: "A", SystemRole: models.SystemRoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	adminToken, err := auth.GenerateToken(admin.ID, admin.Email, string(admin.SystemRole))
	require.NoError(t, err)

	newKey := func(scope string) string {
		w := doJSON(t, r, http.MethodPost, "/api/api-keys", adminToken, gin.H{"description": "seed script", "scope": scope})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var created struct {
			Key string `json:"key"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotEmpty(t, created.Key)
		return created.Key
	}

	// A submit key acts as a member even though an admin owns it.
	w := doJSON(t, r, http.MethodPost, "/api/admin/import", newKey("submit"), gin.H{"resources": []gin.H{}})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/admin/import", newKey("admin"), gin.H{
		"resources": []gin.H{{
			"title": "Seaborn gallery", "description": "Plot examples", "category": "Visualization",
			"type": "Website", "url": "https://example.org/seaborn", "tags": []string{"python"},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"imported":1`)

	w = doJSON(t, r, http.MethodGet, "/api/resources?tag=Visualization", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Seaborn gallery")
}

func TestCORS(t *testing.T) {
	db := setupTestDB(t)

	preflight := func(r http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/resources", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("allowed origin in production", func(t *testing.T) {
		r := newTestRouter(t, db, nil, []string{"https://club.example.org"}, false)
		w := preflight(r, "https://club.example.org")
		assert.Equal(t, "https://club.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin in production", func(t *testing.T) {
		r := newTestRouter(t, db, nil, []string{"https://club.example.org"}, false)
		w := preflight(r, "https://evil.example.com")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("any origin in development", func(t *testing.T) {
		r := newTestRouter(t, db, nil, []string{"https://club.example.org"}, true)
		w := preflight(r, "http://localhost:5173")
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
