package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fields are the scalar attributes of a resource write.
type Fields struct {
	Title       string
	Description string
	URL         string
	Type        string
	Content     *string
	AuthorID    uint
	Featured    bool

	// CreatedAt backdates a new resource, e.g. on import. Zero means now.
	// Updates ignore it.
	CreatedAt time.Time
}

// Validate trims the text fields in place and rejects blank required ones.
func (f *Fields) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.URL = strings.TrimSpace(f.URL)
	f.Type = strings.TrimSpace(f.Type)

	switch {
	case f.Title == "":
		return &ValidationError{Field: "title"}
	case f.Description == "":
		return &ValidationError{Field: "description"}
	case f.URL == "":
		return &ValidationError{Field: "url"}
	case f.Type == "":
		return &ValidationError{Field: "type"}
	}
	return nil
}

// NormalizeNames trims category names and drops repeats, keeping first occurrence.
func NormalizeNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, &ValidationError{Field: "tags", Message: "tag names must not be blank"}
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// Writer persists resources together with their type and category links.
type Writer struct {
	db     *gorm.DB
	cache  Cache
	logger *zap.Logger
}

// NewWriter creates a writer. cache may be nil.
func NewWriter(db *gorm.DB, cache Cache, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{db: db, cache: cache, logger: logger}
}

// Create inserts a resource and links it to categoryNames, creating lookup rows as needed.
func (w *Writer) Create(ctx context.Context, f Fields, categoryNames []string) (*FlattenedResource, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	names, err := NormalizeNames(categoryNames)
	if err != nil {
		return nil, err
	}

	var written models.Resource
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		typeID, err := NewResolver(tx).Resolve(ctx, KindType, f.Type)
		if err != nil {
			return &WriteError{Phase: PhaseLookup, Err: err}
		}

		resource := models.Resource{
			Title:          f.Title,
			Description:    f.Description,
			Content:        f.Content,
			URL:            f.URL,
			ResourceTypeID: typeID,
			AuthorID:       f.AuthorID,
			Featured:       f.Featured,
			CreatedAt:      f.CreatedAt,
		}
		if err := tx.Omit(clause.Associations).Create(&resource).Error; err != nil {
			return &WriteError{Phase: PhaseScalar, Err: err}
		}

		links, err := linkCategories(ctx, tx, resource.ID, names)
		if err != nil {
			return err
		}
		resource.ResourceType = models.ResourceType{ID: typeID, Name: f.Type}
		resource.Categories = links
		written = resource
		return nil
	})
	if err != nil {
		w.logger.Warn("resource create failed", zap.String("title", f.Title), zap.Error(err))
		return nil, err
	}

	w.logger.Info("resource created",
		zap.String("resource_id", written.ID),
		zap.Uint("author_id", f.AuthorID),
		zap.Int("categories", len(written.Categories)),
	)
	w.invalidate(ctx)
	return w.reload(ctx, written), nil
}

// Update replaces the scalars and the whole category set of resource id.
// The author of a resource never changes.
func (w *Writer) Update(ctx context.Context, id string, f Fields, categoryNames []string) (*FlattenedResource, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	names, err := NormalizeNames(categoryNames)
	if err != nil {
		return nil, err
	}

	var written models.Resource
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := existing(tx, id)
		if err != nil {
			return err
		}

		typeID, err := NewResolver(tx).Resolve(ctx, KindType, f.Type)
		if err != nil {
			return &WriteError{Phase: PhaseLookup, Err: err}
		}

		updates := map[string]interface{}{
			"title":            f.Title,
			"description":      f.Description,
			"content":          f.Content,
			"url":              f.URL,
			"resource_type_id": typeID,
			"featured":         f.Featured,
		}
		if err := tx.Model(&models.Resource{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return &WriteError{Phase: PhaseScalar, Err: err}
		}

		if err := tx.Where("resource_id = ?", id).Delete(&models.ResourceCategory{}).Error; err != nil {
			return &WriteError{Phase: PhaseJoinDelete, Err: err}
		}
		links, err := linkCategories(ctx, tx, id, names)
		if err != nil {
			return err
		}

		written = models.Resource{
			ID:             id,
			Title:          f.Title,
			Description:    f.Description,
			Content:        f.Content,
			URL:            f.URL,
			ResourceTypeID: typeID,
			ResourceType:   models.ResourceType{ID: typeID, Name: f.Type},
			AuthorID:       current.AuthorID,
			Featured:       f.Featured,
			CreatedAt:      current.CreatedAt,
			Categories:     links,
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			w.logger.Warn("resource update failed", zap.String("resource_id", id), zap.Error(err))
		}
		return nil, err
	}

	w.logger.Info("resource updated", zap.String("resource_id", id), zap.Int("categories", len(written.Categories)))
	w.invalidate(ctx)
	return w.reload(ctx, written), nil
}

// Delete removes the category links of resource id and then the resource itself.
func (w *Writer) Delete(ctx context.Context, id string) error {
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := existing(tx, id); err != nil {
			return err
		}
		if err := tx.Where("resource_id = ?", id).Delete(&models.ResourceCategory{}).Error; err != nil {
			return &WriteError{Phase: PhaseJoinDelete, Err: err}
		}
		if err := tx.Where("id = ?", id).Delete(&models.Resource{}).Error; err != nil {
			return &WriteError{Phase: PhaseScalar, Err: err}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			w.logger.Warn("resource delete failed", zap.String("resource_id", id), zap.Error(err))
		}
		return err
	}

	w.logger.Info("resource deleted", zap.String("resource_id", id))
	w.invalidate(ctx)
	return nil
}

// existing returns the immutable columns of resource id, or ErrNotFound.
func existing(tx *gorm.DB, id string) (models.Resource, error) {
	var rows []models.Resource
	res := tx.Select("id", "author_id", "created_at").Where("id = ?", id).Limit(1).Find(&rows)
	if res.Error != nil {
		return models.Resource{}, &WriteError{Phase: PhaseScalar, Err: res.Error}
	}
	if len(rows) == 0 {
		return models.Resource{}, ErrNotFound
	}
	return rows[0], nil
}

// linkCategories resolves names in order and stores their position. Names the
// store considers equal (a case-insensitive collation, say) resolve to one id;
// only the first of them is linked.
func linkCategories(ctx context.Context, tx *gorm.DB, resourceID string, names []string) ([]models.ResourceCategory, error) {
	if len(names) == 0 {
		return nil, nil
	}

	resolver := NewResolver(tx)
	links := make([]models.ResourceCategory, 0, len(names))
	linked := make(map[uint]struct{}, len(names))
	for _, name := range names {
		categoryID, err := resolver.Resolve(ctx, KindCategory, name)
		if err != nil {
			return nil, &WriteError{Phase: PhaseLookup, Err: err}
		}
		if _, ok := linked[categoryID]; ok {
			continue
		}
		linked[categoryID] = struct{}{}
		links = append(links, models.ResourceCategory{
			ResourceID: resourceID,
			CategoryID: categoryID,
			Position:   len(links),
			Category:   models.Category{ID: categoryID, Name: name},
		})
	}

	if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
		return nil, &WriteError{Phase: PhaseJoinInsert, Err: err}
	}
	return links, nil
}

// invalidate bumps the generation before dropping the snapshot, so a load
// that started before the write can no longer be served.
func (w *Writer) invalidate(ctx context.Context) {
	if w.cache == nil {
		return
	}
	if err := w.cache.Set(ctx, GenerationCacheKey, uuid.NewString(), 0); err != nil {
		w.logger.Warn("catalog cache invalidation failed", zap.String("key", GenerationCacheKey), zap.Error(err))
	}
	if err := w.cache.Del(ctx, SnapshotCacheKey); err != nil {
		w.logger.Warn("catalog cache invalidation failed", zap.String("key", SnapshotCacheKey), zap.Error(err))
	}
}

// reload re-reads a committed resource with its stored names. The write has
// already succeeded, so a failed re-read falls back to what was written.
func (w *Writer) reload(ctx context.Context, written models.Resource) *FlattenedResource {
	var resource models.Resource
	err := withRelations(w.db.WithContext(ctx)).Where("id = ?", written.ID).Limit(1).Find(&resource).Error
	if err != nil || resource.ID == "" {
		w.logger.Warn("reload after write failed, returning written values",
			zap.String("resource_id", written.ID),
			zap.Error(err),
		)
		resource = written
	}
	flat := Flatten(resource)
	return &flat
}
