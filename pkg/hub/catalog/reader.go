package catalog

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/datasociety/hub/pkg/hub/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Page bounds a listing. Zero Limit means DefaultPageSize.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and the bounds to p.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Reader loads flattened resources, optionally through a snapshot cache.
type Reader struct {
	db     *gorm.DB
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewReader creates a reader. cache may be nil, in which case every call hits the store.
func NewReader(db *gorm.DB, cache Cache, ttl time.Duration, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{db: db, cache: cache, ttl: ttl, logger: logger}
}

// withRelations preloads the type and the ordered category links.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ResourceType").
		Preload("Categories", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Preload("Categories.Category")
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id ASC")
}

// FetchAll returns every resource, newest first.
//
// With a cache, the snapshot is stamped with the generation read before the
// load began. A write that commits during the load bumps the generation, so
// the late snapshot is never served.
func (r *Reader) FetchAll(ctx context.Context) ([]FlattenedResource, error) {
	if r.cache == nil {
		return r.load(ctx)
	}

	generation, err := r.cache.Get(ctx, GenerationCacheKey)
	if err != nil {
		r.logger.Warn("catalog cache read failed", zap.Error(err))
		return r.load(ctx)
	}

	if raw, err := r.cache.Get(ctx, SnapshotCacheKey); err != nil {
		r.logger.Warn("catalog cache read failed", zap.Error(err))
	} else if raw != "" {
		var cached snapshot
		switch err := json.Unmarshal([]byte(raw), &cached); {
		case err != nil:
			r.logger.Warn("discarding undecodable catalog snapshot")
		case cached.Generation == generation && cached.Resources != nil:
			return cached.Resources, nil
		}
	}

	// Callers in the same generation share one load. It is detached from the
	// first caller's cancellation since the others depend on it too.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(SnapshotCacheKey+":"+generation, func() (interface{}, error) {
		all, err := r.load(loadCtx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(snapshot{Generation: generation, Resources: all}); err == nil {
			if err := r.cache.Set(loadCtx, SnapshotCacheKey, string(raw), r.ttl); err != nil {
				r.logger.Warn("catalog cache write failed", zap.Error(err))
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	// Shared between coalesced callers.
	return slices.Clone(v.([]FlattenedResource)), nil
}

func (r *Reader) load(ctx context.Context) ([]FlattenedResource, error) {
	var resources []models.Resource
	if err := newestFirst(withRelations(r.db.WithContext(ctx))).Find(&resources).Error; err != nil {
		return nil, err
	}
	return FlattenAll(resources), nil
}

// FetchPage returns one page of resources, newest first, and the total count.
func (r *Reader) FetchPage(ctx context.Context, page Page) ([]FlattenedResource, int64, error) {
	page = page.Normalize()
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Resource{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var resources []models.Resource
	err := newestFirst(withRelations(db)).Limit(page.Limit).Offset(page.Offset).Find(&resources).Error
	if err != nil {
		return nil, 0, err
	}
	return FlattenAll(resources), total, nil
}

// Get returns a single resource or ErrNotFound.
func (r *Reader) Get(ctx context.Context, id string) (*FlattenedResource, error) {
	var resource models.Resource
	res := withRelations(r.db.WithContext(ctx)).Where("id = ?", id).Limit(1).Find(&resource)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	flat := Flatten(resource)
	return &flat, nil
}

// DistinctCategories returns every category name, including unused ones, sorted.
func (r *Reader) DistinctCategories(ctx context.Context) ([]string, error) {
	return r.names(ctx, &models.Category{})
}

// DistinctTypes returns every resource type name, including unused ones, sorted.
func (r *Reader) DistinctTypes(ctx context.Context) ([]string, error) {
	return r.names(ctx, &models.ResourceType{})
}

func (r *Reader) names(ctx context.Context, model interface{}) ([]string, error) {
	names := make([]string, 0)
	if err := r.db.WithContext(ctx).Model(model).Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
