package service

import (
	"context"
	"log/slog"
	"time"

	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/notifications"
	"rendezvous/internal/observability"
	"rendezvous/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	DefaultDailyLikeLimit = 5
	LikeWindow            = 24 * time.Hour
	DefaultNotifyTimeout  = 10 * time.Second
)

// LikeStatus is the outcome of a successful like.
type LikeStatus string

const (
	StatusLikeRecorded LikeStatus = "like_recorded"
	StatusMutualMatch  LikeStatus = "mutual_match"
)

// LikeResult describes what RegisterLike did.
type LikeResult struct {
	Status LikeStatus `json:"status"`
	// Like is nil when both users had already liked each other.
	Like     *models.Like `json:"like,omitempty"`
	Target   *models.User `json:"target"`
	Notified bool         `json:"notified"`
}

// MatchService records likes and detects mutual matches.
type MatchService struct {
	db            *gorm.DB
	users         repository.UserRepository
	likes         repository.LikeRepository
	notifier      notifications.MatchNotifier
	dailyLimit    int
	notifyTimeout time.Duration
}

// MatchConfig tunes MatchService. Zero values select the defaults.
type MatchConfig struct {
	DailyLikeLimit int
	NotifyTimeout  time.Duration
}

func NewMatchService(
	db *gorm.DB,
	users repository.UserRepository,
	likes repository.LikeRepository,
	notifier notifications.MatchNotifier,
	cfg MatchConfig,
) *MatchService {
	if cfg.DailyLikeLimit <= 0 {
		cfg.DailyLikeLimit = DefaultDailyLikeLimit
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	return &MatchService{
		db:            db,
		users:         users,
		likes:         likes,
		notifier:      notifier,
		dailyLimit:    cfg.DailyLikeLimit,
		notifyTimeout: cfg.NotifyTimeout,
	}
}

// RegisterLike records that likerID likes targetID at now.
//
// The checks and the insert run in one transaction holding a row lock on the
// liker, so concurrent likes from one user cannot overshoot the daily limit.
// When the target already likes the liker the result is a mutual match and
// both users are notified after commit. Notification failures are logged and
// reported through LikeResult.Notified; the like stays recorded.
func (s *MatchService) RegisterLike(ctx context.Context, likerID, targetID uint, now time.Time) (*LikeResult, error) {
	span, ctx := observability.NewSpan(ctx, "match.register_like",
		attribute.Int64("liker.id", int64(likerID)),
		attribute.Int64("target.id", int64(targetID)),
	)
	defer span.End()

	if likerID == targetID {
		observability.LikesTotal.WithLabelValues("self").Inc()
		return nil, models.NewSelfMatchError()
	}

	var (
		liker  *models.User
		target *models.User
		result LikeResult
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		likes := s.likes.WithTx(tx)

		var err error
		if liker, err = users.LockByID(ctx, likerID); err != nil {
			return err
		}
		if target, err = users.FindByID(ctx, targetID); err != nil {
			return err
		}

		recent, err := likes.CountSince(ctx, likerID, now.Add(-LikeWindow))
		if err != nil {
			return err
		}
		if recent+1 > int64(s.dailyLimit) {
			return models.NewRateLimitError(s.dailyLimit)
		}

		likedBefore, err := likes.Exists(ctx, likerID, targetID)
		if err != nil {
			return err
		}
		likedBack, err := likes.Exists(ctx, targetID, likerID)
		if err != nil {
			return err
		}

		if likedBefore && likedBack {
			result.Status = StatusMutualMatch
			return nil
		}

		like := &models.Like{
			LikerID:     likerID,
			TargetID:    targetID,
			TargetEmail: target.Email,
			CreatedAt:   now,
		}
		if err := likes.Create(ctx, like); err != nil {
			return err
		}
		result.Like = like
		result.Status = StatusLikeRecorded
		if likedBack {
			result.Status = StatusMutualMatch
		}
		return nil
	})
	if err != nil {
		observability.LikesTotal.WithLabelValues(likeFailureOutcome(err)).Inc()
		span.SetError(err)
		return nil, err
	}

	result.Target = target
	span.AddAttributes(attribute.String("like.status", string(result.Status)))

	if result.Status != StatusMutualMatch {
		observability.LikesTotal.WithLabelValues("recorded").Inc()
		return &result, nil
	}

	observability.LikesTotal.WithLabelValues("mutual").Inc()
	observability.MatchesTotal.Inc()
	result.Notified = s.notify(ctx, liker, target)
	return &result, nil
}

func (s *MatchService) notify(ctx context.Context, a, b *models.User) bool {
	if s.notifier == nil {
		return false
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyMutualMatch(notifyCtx, a, b); err != nil {
		middleware.Logger.WarnContext(ctx, "match notification failed",
			slog.Uint64("liker_id", uint64(a.ID)),
			slog.Uint64("target_id", uint64(b.ID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// History returns the likes given by userID, oldest first.
func (s *MatchService) History(ctx context.Context, userID uint) ([]models.Like, error) {
	return s.likes.History(ctx, userID)
}

func likeFailureOutcome(err error) string {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return "not_found"
	case models.CodeRateLimitExceeded:
		return "rate_limited"
	default:
		return "error"
	}
}
