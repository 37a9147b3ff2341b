package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/datasociety/hub/pkg/hub/catalog"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// BundleItem is one resource in the seed bundle format
type BundleItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	DateAdded   string   `json:"dateAdded,omitempty"`
	Featured    bool     `json:"featured"`
	Content     *string  `json:"content,omitempty"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// tagNames puts the bundle's category in front so it becomes the display category.
func (b BundleItem) tagNames() []string {
	names := make([]string, 0, len(b.Tags)+1)
	if category := strings.TrimSpace(b.Category); category != "" && category != catalog.DefaultCategory {
		names = append(names, category)
	}
	return append(names, b.Tags...)
}

func (b BundleItem) createdAt() (time.Time, error) {
	if b.DateAdded == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, b.DateAdded)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, b.DateAdded)
	}
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func toBundleItem(r catalog.FlattenedResource) BundleItem {
	tags := r.Tags
	if len(tags) > 0 {
		tags = tags[1:]
	}
	return BundleItem{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Type:        r.Type,
		URL:         r.URL,
		Tags:        tags,
		DateAdded:   r.DateAdded,
		Featured:    r.Featured,
		Content:     r.Content,
	}
}

// ReadBundle decodes a bundle that is either a bare JSON array of items
// or an object with a "resources" array.
func ReadBundle(r io.Reader) ([]BundleItem, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	var items []BundleItem
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode bundle: %w", err)
		}
		return items, nil
	}

	var wrapped struct {
		Resources []BundleItem `json:"resources"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return wrapped.Resources, nil
}

// ImportBundle creates one resource per item, attributed to authorID.
// Items that fail are counted as skipped and described in Errors.
func ImportBundle(ctx context.Context, writer *catalog.Writer, items []BundleItem, authorID uint, logger *zap.Logger) ImportResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := ImportResult{
		Errors: []string{},
	}

	for i, item := range items {
		createdAt, err := item.createdAt()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resource %d: invalid dateAdded", i))
			result.Skipped++
			continue
		}

		fields := catalog.Fields{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Type:        item.Type,
			Content:     item.Content,
			AuthorID:    authorID,
			Featured:    item.Featured,
			CreatedAt:   createdAt,
		}
		if _, err := writer.Create(ctx, fields, item.tagNames()); err != nil {
			msg := "failed to save"
			if catalog.IsValidation(err) {
				msg = err.Error()
			} else {
				logger.Error("import item failed", zap.Int("index", i), zap.Error(err))
			}
			result.Errors = append(result.Errors, fmt.Sprintf("resource %d: %s", i, msg))
			result.Skipped++
			continue
		}

		result.Imported++
	}
	return result
}
