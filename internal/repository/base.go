package repository

import (
	"context"
	"errors"

	"rendezvous/internal/models"

	"gorm.io/gorm"
)

// Repository is the generic persistence surface shared by the concrete repositories.
type Repository[T any] interface {
	FindAll(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]T, error)
	FindByID(ctx context.Context, id uint) (*T, error)
	FindOne(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (*T, error)
	Add(ctx context.Context, entity *T) error
}

type gormRepository[T any] struct {
	db       *gorm.DB
	resource string
}

// NewRepository returns a gorm-backed Repository. resource names T in NOT_FOUND errors.
func NewRepository[T any](db *gorm.DB, resource string) Repository[T] {
	return &gormRepository[T]{db: db, resource: resource}
}

func (r *gormRepository[T]) FindAll(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]T, error) {
	var out []T
	if err := r.db.WithContext(ctx).Scopes(scopes...).Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *gormRepository[T]) FindByID(ctx context.Context, id uint) (*T, error) {
	var out T
	if err := r.db.WithContext(ctx).First(&out, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(r.resource, id)
		}
		return nil, models.NewInternalError(err)
	}
	return &out, nil
}

// FindOne returns the first row matching scopes, or nil when there is none.
func (r *gormRepository[T]) FindOne(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (*T, error) {
	var out T
	res := r.db.WithContext(ctx).Scopes(scopes...).Limit(1).Find(&out)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &out, nil
}

func (r *gormRepository[T]) Add(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(r.resource + " already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// WithTx returns a copy of the repository bound to tx.
func WithTx[T any](repo Repository[T], tx *gorm.DB) Repository[T] {
	if g, ok := repo.(*gormRepository[T]); ok {
		return &gormRepository[T]{db: tx, resource: g.resource}
	}
	return repo
}
