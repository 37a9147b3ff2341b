package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/datasociety/hub/pkg/hub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind selects the lookup table a name is resolved against.
type Kind string

const (
	KindType     Kind = "type"
	KindCategory Kind = "category"
)

func (k Kind) model() (interface{}, error) {
	switch k {
	case KindType:
		return &models.ResourceType{}, nil
	case KindCategory:
		return &models.Category{}, nil
	default:
		return nil, fmt.Errorf("unknown lookup kind %q", string(k))
	}
}

// Resolver maps resource type and category names to row ids, creating rows on first use.
// Rows are never renamed or deleted here.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a resolver. Pass a transaction handle to resolve inside a write.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the id of the row named name, inserting it if absent.
// A concurrent insert of the same name is absorbed by the unique index:
// the insert becomes a no-op and the winner's id is read back.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, name string) (uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &ValidationError{Field: string(kind), Message: "name must not be blank"}
	}
	if _, err := kind.model(); err != nil {
		return 0, &LookupError{Kind: kind, Name: name, Err: err}
	}

	id, err := r.find(ctx, kind, name)
	if err != nil {
		return 0, &LookupError{Kind: kind, Name: name, Err: err}
	}
	if id != 0 {
		return id, nil
	}
	return r.insertOrFetch(ctx, kind, name)
}

// find returns 0 with a nil error when no row has that name.
func (r *Resolver) find(ctx context.Context, kind Kind, name string) (uint, error) {
	model, err := kind.model()
	if err != nil {
		return 0, err
	}

	var row struct{ ID uint }
	res := r.db.WithContext(ctx).Model(model).Select("id").Where("name = ?", name).Limit(1).Find(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return row.ID, nil
}

func (r *Resolver) insertOrFetch(ctx context.Context, kind Kind, name string) (uint, error) {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}
	tx := r.db.WithContext(ctx).Clauses(onConflict)

	var (
		id       uint
		inserted int64
		err      error
	)
	switch kind {
	case KindType:
		row := models.ResourceType{Name: name}
		res := tx.Create(&row)
		id, inserted, err = row.ID, res.RowsAffected, res.Error
	case KindCategory:
		row := models.Category{Name: name}
		res := tx.Create(&row)
		id, inserted, err = row.ID, res.RowsAffected, res.Error
	}
	if err != nil {
		return 0, &LookupError{Kind: kind, Name: name, Err: err}
	}
	if inserted == 1 && id != 0 {
		return id, nil
	}

	// Lost the race: somebody else inserted the name first.
	id, err = r.find(ctx, kind, name)
	if err != nil {
		return 0, &LookupError{Kind: kind, Name: name, Err: err}
	}
	if id == 0 {
		return 0, &LookupError{Kind: kind, Name: name, Err: errNoID}
	}
	return id, nil
}
