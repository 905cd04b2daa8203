// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"rendezvous/internal/cache"
	"rendezvous/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserFilter selects users for a listing. Empty fields do not filter.
type UserFilter struct {
	FirstName     string
	LastName      string
	Gender        models.Gender
	SortByRecency bool
	// ExcludeID drops one user, usually the requester.
	ExcludeID uint
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	// LockByID loads a user bypassing the cache and holds a row lock until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, id uint) (*models.User, error)
	// FindByID loads a user bypassing the cache.
	FindByID(ctx context.Context, id uint) (*models.User, error)
	WithTx(tx *gorm.DB) UserRepository
}

type userRepository struct {
	db   *gorm.DB
	base Repository[models.User]
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, base: NewRepository[models.User](db, "User")}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx, base: WithTx(r.base, tx)}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		found, err := r.base.FindByID(ctx, id)
		if err != nil {
			return err
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return r.base.FindByID(ctx, id)
}

func (r *userRepository) LockByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.base.FindOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", email)
	})
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A user with this email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	users, err := r.base.FindAll(ctx, filterScope(filter))
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func filterScope(f UserFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.FirstName != "" {
			db = db.Where("first_name = ?", f.FirstName)
		}
		if f.LastName != "" {
			db = db.Where("last_name = ?", f.LastName)
		}
		if f.Gender != "" {
			db = db.Where("gender = ?", f.Gender)
		}
		if f.ExcludeID != 0 {
			db = db.Where("id <> ?", f.ExcludeID)
		}
		if f.SortByRecency {
			return db.Order("created_at DESC").Order("id DESC")
		}
		return db.Order("id ASC")
	}
}

// isUniqueConstraintError reports a unique violation from PostgreSQL (SQLSTATE 23505) or SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
