package seed

import (
	"testing"
	"time"

	"rendezvous/internal/cache"
	"rendezvous/internal/geo"
	"rendezvous/internal/models"
	"rendezvous/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.NumUsers = 12
	opts.SkipBcrypt = true
	opts.Seed = 42
	return opts
}

func TestFactory_BuildUserStaysWithinRadius(t *testing.T) {
	opts := testOptions()
	opts.WithoutPositionRatio = 0
	f := NewFactory(nil, opts)
	center := geo.Point{Latitude: opts.CenterLat, Longitude: opts.CenterLon}

	for i := 0; i < 200; i++ {
		u, err := f.BuildUser()
		require.NoError(t, err)
		require.True(t, u.HasPosition())
		assert.True(t, u.Gender.Valid())

		d, err := geo.Distance(center, geo.Point{Latitude: *u.Latitude, Longitude: *u.Longitude})
		require.NoError(t, err)
		assert.LessOrEqual(t, d, opts.RadiusKm*1000*1.01)
	}
}

func TestFactory_WithoutPositionRatio(t *testing.T) {
	opts := testOptions()
	opts.WithoutPositionRatio = 1
	u, err := NewFactory(nil, opts).BuildUser()
	require.NoError(t, err)
	assert.False(t, u.HasPosition())
}

func TestFactory_DryRunAssignsSyntheticIDs(t *testing.T) {
	opts := testOptions()
	opts.DryRun = true
	f := NewFactory(nil, opts)

	a, err := f.CreateUser()
	require.NoError(t, err)
	b, err := f.CreateUser(func(u *models.User) { u.FirstName = "Override" })
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Override", b.FirstName)

	like, err := f.CreateLike(a, b, time.Now())
	require.NoError(t, err)
	assert.NotZero(t, like.ID)
	assert.Equal(t, b.Email, like.TargetEmail)
}

func TestSeeder_RunRespectsDailyLimit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := testOptions()
	opts.MaxLikesPerUser = 10

	res, err := NewSeeder(db, opts).Run(5)
	require.NoError(t, err)
	require.Len(t, res.Users, opts.NumUsers)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(opts.NumUsers), users)

	var likes []models.Like
	require.NoError(t, db.Find(&likes).Error)
	assert.Len(t, likes, res.Likes)

	perLiker := map[uint]int{}
	for _, l := range likes {
		assert.NotEqual(t, l.LikerID, l.TargetID)
		perLiker[l.LikerID]++
	}
	for liker, n := range perLiker {
		assert.Less(t, n, 5, "liker %d", liker)
	}
}

func TestSeeder_CleanRemovesPreviousData(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.CreateUser(t, db)

	opts := testOptions()
	opts.NumUsers = 3
	opts.MaxLikesPerUser = 0
	_, err := NewSeeder(db, opts).Run(5)
	require.NoError(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(3), users)
}

func TestSeeder_ClearAllDropsCachedProfiles(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	rdb, mr := testutil.NewRedis(t)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	u := testutil.CreateUser(t, db)
	require.NoError(t, mr.Set(cache.UserKey(u.ID), `{"id":1}`))

	require.NoError(t, NewSeeder(db, testOptions()).ClearAll())
	assert.False(t, mr.Exists(cache.UserKey(u.ID)))
}

func TestSeeder_StampsLikesInUTC(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, testOptions())
	assert.Equal(t, time.UTC, s.now().Location())

	_, err := s.Run(5)
	require.NoError(t, err)

	var likes []models.Like
	require.NoError(t, db.Find(&likes).Error)
	require.NotEmpty(t, likes)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	for _, l := range likes {
		assert.True(t, l.CreatedAt.After(cutoff), "like %d at %s", l.ID, l.CreatedAt)
	}
}
