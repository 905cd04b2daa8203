package repository

import (
	"context"
	"time"

	"rendezvous/internal/models"

	"gorm.io/gorm"
)

// LikeRepository persists likes. Likes are append-only.
type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) error
	// CountSince counts likes given by likerID at or after since.
	CountSince(ctx context.Context, likerID uint, since time.Time) (int64, error)
	Exists(ctx context.Context, likerID, targetID uint) (bool, error)
	// History returns the likes given by likerID, oldest first.
	History(ctx context.Context, likerID uint) ([]models.Like, error)
	WithTx(tx *gorm.DB) LikeRepository
}

type likeRepository struct {
	db   *gorm.DB
	base Repository[models.Like]
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, base: NewRepository[models.Like](db, "Like")}
}

func (r *likeRepository) WithTx(tx *gorm.DB) LikeRepository {
	return &likeRepository{db: tx, base: WithTx(r.base, tx)}
}

func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	return r.base.Add(ctx, like)
}

func (r *likeRepository) CountSince(ctx context.Context, likerID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("liker_id = ? AND created_at >= ?", likerID, since).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *likeRepository) Exists(ctx context.Context, likerID, targetID uint) (bool, error) {
	like, err := r.base.FindOne(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Select("id").Where("liker_id = ? AND target_id = ?", likerID, targetID)
	})
	if err != nil {
		return false, err
	}
	return like != nil, nil
}

func (r *likeRepository) History(ctx context.Context, likerID uint) ([]models.Like, error) {
	likes, err := r.base.FindAll(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("liker_id = ?", likerID).Order("created_at ASC").Order("id ASC")
	})
	if err != nil {
		return nil, err
	}
	if likes == nil {
		likes = []models.Like{}
	}
	return likes, nil
}
