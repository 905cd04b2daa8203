// Command seed fills the database with fake users and likes for local testing.
package main

import (
	"flag"
	"log/slog"
	"os"

	"rendezvous/internal/cache"
	"rendezvous/internal/config"
	"rendezvous/internal/database"
	"rendezvous/internal/middleware"
	"rendezvous/internal/seed"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.NumUsers, "users", opts.NumUsers, "Number of users to create")
	flag.IntVar(&opts.MaxLikesPerUser, "likes", opts.MaxLikesPerUser, "Maximum likes per user")
	flag.Float64Var(&opts.CenterLat, "lat", opts.CenterLat, "Latitude users are scattered around")
	flag.Float64Var(&opts.CenterLon, "lon", opts.CenterLon, "Longitude users are scattered around")
	flag.Float64Var(&opts.RadiusKm, "radius", opts.RadiusKm, "Scatter radius in kilometers")
	flag.Float64Var(&opts.WithoutPositionRatio, "no-position", opts.WithoutPositionRatio, "Share of users without a position")
	flag.BoolVar(&opts.ShouldClean, "clean", opts.ShouldClean, "Delete existing users and likes first")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Build records without writing them")
	flag.Int64Var(&opts.Seed, "seed", 0, "Random seed, 0 for a random run")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("load configuration", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		fatal("connect database", err)
	}

	cache.InitRedis(cfg.RedisURL)

	res, err := seed.NewSeeder(db, opts).Run(cfg.DailyLikeLimit)
	if err != nil {
		fatal("seeding", err)
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", len(res.Users)),
		slog.Int("likes", res.Likes),
		slog.Int("matches", res.Matches),
		slog.String("password", seed.DefaultPassword),
	)
}

func fatal(step string, err error) {
	middleware.Logger.Error(step+" failed", slog.String("error", err.Error()))
	os.Exit(1)
}
