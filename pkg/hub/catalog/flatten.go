package catalog

import (
	"slices"
	"strings"

	"github.com/datasociety/hub/pkg/hub/models"
)

// DefaultCategory is shown for resources that carry no categories.
const DefaultCategory = "Other"

const dateLayout = "2006-01-02"

// FlattenedResource is the denormalized, client-facing shape of a resource.
type FlattenedResource struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     *string  `json:"content,omitempty"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	DateAdded   string   `json:"dateAdded"`
	Featured    bool     `json:"featured"`
	AuthorID    uint     `json:"author_id"`
}

// Flatten converts a resource loaded with its type and ordered categories.
// Tags follow link position, ties broken by name; the first tag is promoted
// to the display category.
func Flatten(r models.Resource) FlattenedResource {
	links := slices.Clone(r.Categories)
	slices.SortStableFunc(links, func(a, b models.ResourceCategory) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.Category.Name, b.Category.Name)
	})

	tags := make([]string, 0, len(links))
	for _, rc := range links {
		if rc.Category.Name != "" {
			tags = append(tags, rc.Category.Name)
		}
	}

	category := DefaultCategory
	if len(tags) > 0 {
		category = tags[0]
	}

	return FlattenedResource{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		URL:         r.URL,
		Type:        r.ResourceType.Name,
		Category:    category,
		Tags:        tags,
		DateAdded:   r.CreatedAt.UTC().Format(dateLayout),
		Featured:    r.Featured,
		AuthorID:    r.AuthorID,
	}
}

// FlattenAll flattens a slice, keeping its order.
func FlattenAll(rs []models.Resource) []FlattenedResource {
	out := make([]FlattenedResource, len(rs))
	for i, r := range rs {
		out[i] = Flatten(r)
	}
	return out
}
