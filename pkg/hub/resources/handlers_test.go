package resources

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

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

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	writer *catalog.Writer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))

	logger := zaptest.NewLogger(t)
	reader := catalog.NewReader(db, nil, 0, logger)
	writer := catalog.NewWriter(db, nil, logger)
	h := NewHandler(reader, writer, catalog.NewSubmitter(writer, logger), logger)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	h.RegisterRoutes(api.Group("/resources", auth.OptionalAuth()))
	h.RegisterAdminRoutes(api.Group("/admin", auth.AuthMiddleware(), auth.RequireAdmin()))

	return &testEnv{db: db, router: r, writer: writer}
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.SystemRole) models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "hash", Name: "Test User", SystemRole: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	return "Bearer " + token
}

func (e *testEnv) do(method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, author uint, title, typ string, tags ...string) *catalog.FlattenedResource {
	t.Helper()
	created, err := e.writer.Create(t.Context(), catalog.Fields{
		Title: title, Description: "about " + title, URL: "https://example.com/" + url.PathEscape(title), Type: typ, AuthorID: author,
	}, tags)
	require.NoError(t, err)
	return created
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func sqlBasics() catalog.Submission {
	return catalog.Submission{
		Title:       "SQL Basics",
		Description: "intro",
		URL:         "https://x",
		Type:        "article",
		Tags:        []string{"sql", "beginner"},
	}
}

func TestSubmitResource(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)

	w := env.do("POST", "/api/resources", getAuthHeader(user), sqlBasics())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[catalog.FlattenedResource](t, w)
	assert.Equal(t, "sql", res.Category)
	assert.Equal(t, []string{"sql", "beginner"}, res.Tags)
	assert.False(t, res.Featured)
	assert.Equal(t, user.ID, res.AuthorID)
}

func TestSubmitResourceCannotFeature(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)

	body := map[string]interface{}{
		"title": "SQL Basics", "description": "intro", "url": "https://x", "type": "article", "featured": true,
	}
	w := env.do("POST", "/api/resources", getAuthHeader(user), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.False(t, decode[catalog.FlattenedResource](t, w).Featured)
}

func TestSubmitResourceAnonymous(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do("POST", "/api/resources", "", sqlBasics())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var n int64
	env.db.Model(&models.Resource{}).Count(&n)
	assert.Zero(t, n)
	env.db.Model(&models.Category{}).Count(&n)
	assert.Zero(t, n)
	env.db.Model(&models.ResourceType{}).Count(&n)
	assert.Zero(t, n)
}

func TestSubmitResourceValidation(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)

	sub := sqlBasics()
	sub.Type = " "
	w := env.do("POST", "/api/resources", getAuthHeader(user), sub)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "type", decode[map[string]string](t, w)["field"])
}

func TestListResources(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)
	env.seed(t, user.ID, "SQL Basics", "article", "sql", "beginner")
	env.seed(t, user.ID, "Pandas", "video", "python", "pandas")
	env.seed(t, user.ID, "Handbook", "article")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"Handbook", "Pandas", "SQL Basics"}},
		{"search", "?q=panda", []string{"Pandas"}},
		{"type", "?type=article", []string{"Handbook", "SQL Basics"}},
		{"repeated category", "?category=sql&category=python", []string{"Pandas", "SQL Basics"}},
		{"other category", "?category=Other", []string{"Handbook"}},
		{"tag", "?tag=beginner", []string{"SQL Basics"}},
		{"and-ed facets", "?type=video&tag=beginner", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do("GET", "/api/resources"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, w.Code)

			resp := decode[ListResponse](t, w)
			titles := make([]string, 0, len(resp.Resources))
			for _, r := range resp.Resources {
				titles = append(titles, r.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)
			assert.Equal(t, len(tt.want), resp.Total)
		})
	}
}

func TestListResourcesPaging(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)
	for _, title := range []string{"a", "b", "c"} {
		env.seed(t, user.ID, title, "article")
	}

	w := env.do("GET", "/api/resources?limit=2&offset=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ListResponse](t, w)
	assert.Len(t, resp.Resources, 1)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)

	w = env.do("GET", "/api/resources?offset=10", "", nil)
	resp = decode[ListResponse](t, w)
	assert.NotNil(t, resp.Resources)
	assert.Empty(t, resp.Resources)

	w = env.do("GET", "/api/resources?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResource(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)
	created := env.seed(t, user.ID, "SQL Basics", "article", "sql")

	w := env.do("GET", "/api/resources/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[catalog.FlattenedResource](t, w).ID)

	w = env.do("GET", "/api/resources/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFacets(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)
	env.seed(t, user.ID, "SQL Basics", "article", "sql", "beginner")
	gone := env.seed(t, user.ID, "Old talk", "podcast", "archive")
	require.NoError(t, env.writer.Delete(t.Context(), gone.ID))

	w := env.do("GET", "/api/resources/facets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	facets := decode[FacetsResponse](t, w)
	assert.Equal(t, []string{"archive", "beginner", "sql"}, facets.Categories)
	assert.Equal(t, []string{"article", "podcast"}, facets.Types)
	assert.Equal(t, []string{"beginner", "sql"}, facets.Tags)
}

func TestUpdateByAuthor(t *testing.T) {
	env := setupTestEnv(t)
	author := createTestUser(t, env.db, "author@example.com", models.SystemRoleUser)
	created := env.seed(t, author.ID, "SQL Basics", "article", "sql", "beginner")

	body := ResourceRequest{Title: "SQL Basics", Description: "intro", URL: "https://x", Type: "article", Tags: []string{}}
	w := env.do("PUT", "/api/resources/"+created.ID, getAuthHeader(author), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decode[catalog.FlattenedResource](t, w)
	assert.Equal(t, []string{}, updated.Tags)
	assert.Equal(t, catalog.DefaultCategory, updated.Category)
}

func TestUpdateByAuthorCannotFeature(t *testing.T) {
	env := setupTestEnv(t)
	author := createTestUser(t, env.db, "author@example.com", models.SystemRoleUser)
	created := env.seed(t, author.ID, "SQL Basics", "article")

	featured := true
	body := ResourceRequest{Title: "SQL Basics", Description: "intro", URL: "https://x", Type: "article", Featured: &featured}
	w := env.do("PUT", "/api/resources/"+created.ID, getAuthHeader(author), body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[catalog.FlattenedResource](t, w).Featured)
}

func TestUpdateByOtherMember(t *testing.T) {
	env := setupTestEnv(t)
	author := createTestUser(t, env.db, "author@example.com", models.SystemRoleUser)
	other := createTestUser(t, env.db, "other@example.com", models.SystemRoleUser)
	created := env.seed(t, author.ID, "SQL Basics", "article", "sql")

	body := ResourceRequest{Title: "Hijacked", Description: "x", URL: "https://x", Type: "article"}
	assert.Equal(t, http.StatusForbidden, env.do("PUT", "/api/resources/"+created.ID, getAuthHeader(other), body).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("PUT", "/api/resources/"+created.ID, "", body).Code)
	assert.Equal(t, http.StatusNotFound, env.do("PUT", "/api/resources/missing", getAuthHeader(other), body).Code)
}

func TestAdminResourceLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	admin := createTestUser(t, env.db, "admin@example.com", models.SystemRoleAdmin)
	header := getAuthHeader(admin)

	featured := true
	body := ResourceRequest{Title: "Club handbook", Description: "How we work", URL: "https://x", Type: "guide", Tags: []string{"club"}, Featured: &featured}
	w := env.do("POST", "/api/admin/resources", header, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[catalog.FlattenedResource](t, w)
	assert.True(t, created.Featured)
	assert.Equal(t, admin.ID, created.AuthorID)

	body.Featured = nil
	body.Title = "Club handbook v2"
	w = env.do("PUT", "/api/admin/resources/"+created.ID, header, body)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[catalog.FlattenedResource](t, w)
	assert.Equal(t, "Club handbook v2", updated.Title)
	assert.True(t, updated.Featured, "featured is kept when omitted")

	w = env.do("DELETE", "/api/admin/resources/"+created.ID, header, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/api/admin/resources/"+created.ID, header, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := setupTestEnv(t)
	member := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)

	w := env.do("POST", "/api/admin/resources", getAuthHeader(member), ResourceRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do("POST", "/api/admin/resources", "", ResourceRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	env := setupTestEnv(t)
	user := createTestUser(t, env.db, "member@example.com", models.SystemRoleUser)
	require.NoError(t, env.db.Migrator().DropTable(&models.ResourceCategory{}))

	w := env.do("POST", "/api/resources", getAuthHeader(user), sqlBasics())
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to process resource", decode[map[string]string](t, w)["error"])
}
