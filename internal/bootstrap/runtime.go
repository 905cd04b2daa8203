// Package bootstrap connects the runtime stores and builds the external
// collaborators shared by the commands.
package bootstrap

import (
	"fmt"
	"log/slog"

	"rendezvous/internal/cache"
	"rendezvous/internal/config"
	"rendezvous/internal/database"
	"rendezvous/internal/geo"
	"rendezvous/internal/middleware"
	"rendezvous/internal/notifications"
	"rendezvous/internal/server"
)

// InitRuntime connects the database and Redis and returns the server
// dependencies. Redis is optional: an unreachable instance yields a nil client.
func InitRuntime(cfg *config.Config) (server.Deps, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return server.Deps{}, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	notifier, err := MatchNotifier(cfg)
	if err != nil {
		return server.Deps{}, err
	}

	return server.Deps{
		DB:            db,
		Redis:         cache.GetClient(),
		Geocoder:      Geocoder(cfg),
		MatchNotifier: notifier,
	}, nil
}

// Geocoder returns the address resolver, or nil when none is configured.
func Geocoder(cfg *config.Config) geo.Geocoder {
	if cfg.GeocoderURL == "" {
		middleware.Logger.Warn("geocoder disabled, registrations will have no position")
		return nil
	}
	return geo.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout)
}

// MatchNotifier mails mutual matches when SMTP is configured and only logs
// them otherwise.
func MatchNotifier(cfg *config.Config) (notifications.MatchNotifier, error) {
	if cfg.SMTPHost == "" {
		middleware.Logger.Warn("SMTP_HOST not set, match emails are logged only")
		return notifications.LogNotifier{}, nil
	}

	client, err := notifications.NewSMTPClient(notifications.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		SSL:      cfg.SMTPSSL,
		Timeout:  cfg.NotifyTimeout,
	})
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("match emails enabled",
		slog.String("smtp_host", cfg.SMTPHost), slog.Int("smtp_port", cfg.SMTPPort))
	return notifications.NewEmailNotifier(client, cfg.SMTPFrom), nil
}
