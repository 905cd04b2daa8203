package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rendezvous/internal/models"
	"rendezvous/internal/repository"
	"rendezvous/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type matchCall struct {
	a, b *models.User
}

type notifierStub struct {
	mu    sync.Mutex
	calls []matchCall
	err   error
}

func (n *notifierStub) NotifyMutualMatch(ctx context.Context, a, b *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("notification context has no deadline")
	}
	n.calls = append(n.calls, matchCall{a: a, b: b})
	return n.err
}

type matchFixture struct {
	db       *gorm.DB
	svc      *MatchService
	notifier *notifierStub
	anna     *models.User
	boris    *models.User
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	n := &notifierStub{}
	svc := NewMatchService(db, repository.NewUserRepository(db), repository.NewLikeRepository(db), n, MatchConfig{})
	return &matchFixture{
		db:       db,
		svc:      svc,
		notifier: n,
		anna:     testutil.CreateUser(t, db, func(u *models.User) { u.FirstName = "Anna"; u.Email = "anna@example.com" }),
		boris:    testutil.CreateUser(t, db, func(u *models.User) { u.FirstName = "Boris"; u.Email = "boris@example.com" }),
	}
}

func (f *matchFixture) likeCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Like{}).Count(&n).Error)
	return n
}

func TestMatchService_RecordsOneSidedLike(t *testing.T) {
	f := newMatchFixture(t)
	now := time.Now().UTC()

	res, err := f.svc.RegisterLike(context.Background(), f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)
	assert.Equal(t, StatusLikeRecorded, res.Status)
	require.NotNil(t, res.Like)
	assert.Equal(t, f.boris.ID, res.Like.TargetID)
	assert.Equal(t, "boris@example.com", res.Like.TargetEmail)
	assert.Equal(t, f.boris.ID, res.Target.ID)
	assert.False(t, res.Notified)
	assert.Empty(t, f.notifier.calls)
	assert.Equal(t, int64(1), f.likeCount(t))
}

func TestMatchService_SelfLike(t *testing.T) {
	f := newMatchFixture(t)
	_, err := f.svc.RegisterLike(context.Background(), f.anna.ID, f.anna.ID, time.Now().UTC())
	assertAppErrorCode(t, err, models.CodeSelfMatch)
	assert.Zero(t, f.likeCount(t))
}

func TestMatchService_UnknownUsers(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterLike(ctx, f.anna.ID, 9999, time.Now().UTC())
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.RegisterLike(ctx, 9999, f.anna.ID, time.Now().UTC())
	assertAppErrorCode(t, err, models.CodeNotFound)
	assert.Zero(t, f.likeCount(t))
}

func TestMatchService_DailyLimit(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < DefaultDailyLikeLimit; i++ {
		_, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err, "like %d", i+1)
	}

	_, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now.Add(time.Minute))
	assertAppErrorCode(t, err, models.CodeRateLimitExceeded)
	assert.Equal(t, int64(DefaultDailyLikeLimit), f.likeCount(t))

	// Boris has his own budget.
	_, err = f.svc.RegisterLike(ctx, f.boris.ID, f.anna.ID, now.Add(time.Minute))
	require.NoError(t, err)

	// Once the window has passed Anna may like again.
	_, err = f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now.Add(LikeWindow+2*time.Minute))
	require.NoError(t, err)
}

func TestMatchService_OldLikesDoNotCount(t *testing.T) {
	f := newMatchFixture(t)
	now := time.Now().UTC()
	carol := testutil.CreateUser(t, f.db)

	for i := 0; i < DefaultDailyLikeLimit; i++ {
		require.NoError(t, f.db.Create(&models.Like{
			LikerID:     f.anna.ID,
			TargetID:    carol.ID,
			TargetEmail: carol.Email,
			CreatedAt:   now.Add(-25 * time.Hour),
		}).Error)
	}

	res, err := f.svc.RegisterLike(context.Background(), f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)
	assert.Equal(t, StatusLikeRecorded, res.Status)
}

func TestMatchService_CustomLimit(t *testing.T) {
	f := newMatchFixture(t)
	svc := NewMatchService(f.db, repository.NewUserRepository(f.db), repository.NewLikeRepository(f.db), nil, MatchConfig{DailyLikeLimit: 1})
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)
	_, err = svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	assertAppErrorCode(t, err, models.CodeRateLimitExceeded)
}

func TestMatchService_MutualMatchNotifiesBothOnce(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)

	res, err := f.svc.RegisterLike(ctx, f.boris.ID, f.anna.ID, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, StatusMutualMatch, res.Status)
	require.NotNil(t, res.Like)
	assert.True(t, res.Notified)
	assert.Equal(t, int64(2), f.likeCount(t))

	require.Len(t, f.notifier.calls, 1)
	call := f.notifier.calls[0]
	assert.Equal(t, f.boris.ID, call.a.ID)
	assert.Equal(t, f.anna.ID, call.b.ID)
	assert.Equal(t, "anna@example.com", call.b.Email)
}

func TestMatchService_RepeatedMutualLikeIsNotStored(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)
	_, err = f.svc.RegisterLike(ctx, f.boris.ID, f.anna.ID, now)
	require.NoError(t, err)

	res, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, StatusMutualMatch, res.Status)
	assert.Nil(t, res.Like)
	assert.Equal(t, int64(2), f.likeCount(t))
	assert.Len(t, f.notifier.calls, 2)
}

func TestMatchService_NotificationFailureKeepsLike(t *testing.T) {
	f := newMatchFixture(t)
	f.notifier.err = errors.New("smtp unavailable")
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)
	res, err := f.svc.RegisterLike(ctx, f.boris.ID, f.anna.ID, now)
	require.NoError(t, err)

	assert.Equal(t, StatusMutualMatch, res.Status)
	assert.False(t, res.Notified)
	assert.Equal(t, int64(2), f.likeCount(t))
}

func TestMatchService_NotificationSurvivesCanceledRequest(t *testing.T) {
	f := newMatchFixture(t)
	now := time.Now().UTC()
	_, err := f.svc.RegisterLike(context.Background(), f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := f.svc.RegisterLike(ctx, f.boris.ID, f.anna.ID, now)
	cancel()
	require.NoError(t, err)
	assert.True(t, res.Notified)
}

func TestMatchService_ConcurrentLikesStayWithinLimit(t *testing.T) {
	f := newMatchFixture(t)
	now := time.Now().UTC()

	const attempts = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RegisterLike(context.Background(), f.anna.ID, f.boris.ID, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case models.HasCode(err, models.CodeRateLimitExceeded):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultDailyLikeLimit, ok)
	assert.Equal(t, attempts-DefaultDailyLikeLimit, limited)
	assert.Equal(t, int64(DefaultDailyLikeLimit), f.likeCount(t))
}

func TestMatchService_History(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	carol := testutil.CreateUser(t, f.db)

	empty, err := f.svc.History(ctx, f.anna.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.svc.RegisterLike(ctx, f.anna.ID, carol.ID, now.Add(time.Second))
	require.NoError(t, err)
	_, err = f.svc.RegisterLike(ctx, f.anna.ID, f.boris.ID, now)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, f.anna.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, f.boris.ID, history[0].TargetID)
	assert.Equal(t, carol.ID, history[1].TargetID)
}

func TestLikeFailureOutcome(t *testing.T) {
	assert.Equal(t, "not_found", likeFailureOutcome(models.NewNotFoundError("User", 1)))
	assert.Equal(t, "rate_limited", likeFailureOutcome(models.NewRateLimitError(5)))
	assert.Equal(t, "error", likeFailureOutcome(errors.New("boom")))
}
