package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"rendezvous/internal/cache"
	"rendezvous/internal/models"

	"gorm.io/gorm"
)

// Result summarizes a seeding run.
type Result struct {
	Users []*models.User
	Likes int
	// Matches counts distinct pairs that like each other.
	Matches int
}

// Seeder populates a database through a Factory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
	now     func() time.Time
}

// NewSeeder creates a Seeder.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// ClearAll deletes every like and user and drops their cached profiles.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	var ids []uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, m := range []any{&models.Like{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, id := range ids {
		cache.InvalidateUser(ctx, id)
	}
	return nil
}

// Run creates users and spreads likes between them within the last day.
// Likes per user stay below dailyLimit so seeded users can still like.
func (s *Seeder) Run(dailyLimit int) (*Result, error) {
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	res := &Result{}
	for i := 0; i < s.opts.NumUsers; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user %d: %w", i, err)
		}
		res.Users = append(res.Users, u)
	}
	log.Printf("✓ %d users created", len(res.Users))

	perUser := s.opts.MaxLikesPerUser
	if dailyLimit > 0 && perUser >= dailyLimit {
		perUser = dailyLimit - 1
	}
	if perUser <= 0 || len(res.Users) < 2 {
		return res, nil
	}

	liked := make(map[[2]uint]bool)
	now := s.now()
	rnd := s.factory.rnd
	for _, liker := range res.Users {
		n := rnd.Intn(perUser + 1)
		for j := 0; j < n; j++ {
			target := res.Users[rnd.Intn(len(res.Users))]
			if target.ID == liker.ID {
				continue
			}
			at := now.Add(-time.Duration(rnd.Intn(23*60)+1) * time.Minute)
			if _, err := s.factory.CreateLike(liker, target, at); err != nil {
				return nil, fmt.Errorf("create like: %w", err)
			}
			res.Likes++

			key := [2]uint{liker.ID, target.ID}
			if !liked[key] && liked[[2]uint{target.ID, liker.ID}] {
				res.Matches++
			}
			liked[key] = true
		}
	}
	log.Printf("✓ %d likes created (%d mutual pairs)", res.Likes, res.Matches)
	return res, nil
}
