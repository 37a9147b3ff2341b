package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	created := time.Date(2024, 5, 2, 1, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	r := models.Resource{
		ID:           "r1",
		Title:        "SQL Basics",
		Description:  "intro",
		URL:          "https://x",
		CreatedAt:    created,
		AuthorID:     7,
		Featured:     true,
		ResourceType: models.ResourceType{Name: "article"},
		Categories: []models.ResourceCategory{
			{Position: 1, Category: models.Category{Name: "beginner"}},
			{Position: 0, Category: models.Category{Name: "sql"}},
		},
	}

	flat := Flatten(r)
	assert.Equal(t, "article", flat.Type)
	assert.Equal(t, "sql", flat.Category)
	assert.Equal(t, []string{"sql", "beginner"}, flat.Tags)
	assert.Equal(t, "2024-05-02", flat.DateAdded)
	assert.True(t, flat.Featured)
	assert.Equal(t, uint(7), flat.AuthorID)

	// The input order is left alone.
	assert.Equal(t, "beginner", r.Categories[0].Category.Name)
}

func TestFlattenTiesBrokenByName(t *testing.T) {
	r := models.Resource{
		Categories: []models.ResourceCategory{
			{Category: models.Category{Name: "zeta"}},
			{Category: models.Category{Name: "alpha"}},
		},
	}
	assert.Equal(t, "alpha", Flatten(r).Category)
}

func TestFlattenJSONShape(t *testing.T) {
	raw, err := json.Marshal(Flatten(models.Resource{ID: "r1"}))
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []interface{}{}, out["tags"])
	assert.Equal(t, DefaultCategory, out["category"])
	assert.Equal(t, false, out["featured"])
	assert.NotContains(t, out, "content")
	assert.Contains(t, out, "dateAdded")
	assert.Contains(t, out, "author_id")
}
