// Package seed creates demo users and likes for development databases.
// It is not meant for production data.
package seed

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"rendezvous/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123"

// Options tunes a seeding run.
type Options struct {
	NumUsers int
	// MaxLikesPerUser caps the likes each user gives.
	MaxLikesPerUser int
	CenterLat       float64
	CenterLon       float64
	// RadiusKm spreads users around the center.
	RadiusKm float64
	// WithoutPositionRatio is the share of users seeded without coordinates.
	WithoutPositionRatio float64
	// SkipBcrypt stores the plain password. Only useful for throwaway tests.
	SkipBcrypt  bool
	DryRun      bool
	ShouldClean bool
	Seed        int64
}

// DefaultOptions seeds 50 users around central Moscow.
func DefaultOptions() Options {
	return Options{
		NumUsers:             50,
		MaxLikesPerUser:      3,
		CenterLat:            55.7558,
		CenterLon:            37.6173,
		RadiusKm:             25,
		WithoutPositionRatio: 0.1,
		ShouldClean:          true,
	}
}

// Factory builds users and likes and persists them.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter for DryRun
	nextID uint
	hash   string
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	// #nosec G404: demo data only
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) password() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.hash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		f.hash = string(h)
	}
	return f.hash, nil
}

// BuildUser returns an unsaved user, usually placed near the configured center.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	pw, err := f.password()
	if err != nil {
		return nil, err
	}
	gender := models.GenderWomen
	if f.rnd.Intn(2) == 0 {
		gender = models.GenderMen
	}
	user := &models.User{
		Email:     fmt.Sprintf("%s.%d@%s", gofakeit.Username(), gofakeit.Number(100, 99999), gofakeit.DomainName()),
		Password:  pw,
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Gender:    gender,
		Avatar:    "/media/avatars/default_avatar.png",
	}
	if f.rnd.Float64() >= f.opts.WithoutPositionRatio {
		lat, lon := f.scatter()
		user.SetPosition(lat, lon, true)
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// scatter picks a uniformly distributed point within RadiusKm of the center.
func (f *Factory) scatter() (float64, float64) {
	const kmPerDegree = 111.32
	r := f.opts.RadiusKm * math.Sqrt(f.rnd.Float64())
	theta := f.rnd.Float64() * 2 * math.Pi
	dLat := r * math.Cos(theta) / kmPerDegree
	dLon := r * math.Sin(theta) / (kmPerDegree * math.Max(math.Cos(f.opts.CenterLat*math.Pi/180), 0.01))

	lat := math.Max(-90, math.Min(90, f.opts.CenterLat+dLat))
	lon := f.opts.CenterLon + dLon
	if lon > 180 {
		lon -= 360
	} else if lon < -180 {
		lon += 360
	}
	return lat, lon
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.Email)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateLike persists a like from liker to target at the given time.
func (f *Factory) CreateLike(liker, target *models.User, at time.Time) (*models.Like, error) {
	like := &models.Like{
		LikerID:     liker.ID,
		TargetID:    target.ID,
		TargetEmail: target.Email,
		CreatedAt:   at.UTC(),
	}
	if f.opts.DryRun {
		f.nextID++
		like.ID = f.nextID
		return like, nil
	}
	if err := f.db.Create(like).Error; err != nil {
		return nil, err
	}
	return like, nil
}
