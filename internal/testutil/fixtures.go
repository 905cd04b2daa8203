// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"rendezvous/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// TinyPNG encodes a w×h gradient as PNG.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, solid(w, h)))
	return buf.Bytes()
}

// TinyJPEG encodes a w×h gradient as JPEG.
func TinyJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	require.NoError(t, jpeg.Encode(buf, solid(w, h), nil))
	return buf.Bytes()
}

// NewSQLiteDB returns a migrated single-connection in-memory database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Like{}))
	return db
}

// NewRedis starts a miniredis server and returns a client for it.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

// FakeUser builds an unsaved user with random identity. Overrides run last.
func FakeUser(overrides ...func(*models.User)) *models.User {
	gender := models.GenderWomen
	if gofakeit.Bool() {
		gender = models.GenderMen
	}
	u := &models.User{
		Email:     gofakeit.Email(),
		Password:  "$2a$10$abcdefghijklmnopqrstuu5d3Fv0m7WzVbq0y3m5m2i5c9z7qfKq",
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Gender:    gender,
		Avatar:    "/media/avatars/default_avatar.png",
	}
	for _, o := range overrides {
		o(u)
	}
	return u
}

// CreateUser persists a FakeUser.
func CreateUser(t testing.TB, db *gorm.DB, overrides ...func(*models.User)) *models.User {
	t.Helper()
	u := FakeUser(overrides...)
	require.NoError(t, db.Create(u).Error)
	return u
}

// At places the user at the given coordinates.
func At(lat, lon float64) func(*models.User) {
	return func(u *models.User) { u.SetPosition(lat, lon, true) }
}
