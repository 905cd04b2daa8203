package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/observability"
)

const (
	// MatchSubject is the subject of match emails.
	MatchSubject = "You have a new match"

	EventMutualMatch = "mutual_match"
)

// MatchNotifier tells both users of a mutual like about each other.
type MatchNotifier interface {
	NotifyMutualMatch(ctx context.Context, a, b *models.User) error
}

// MatchBody is the message text sent to the recipient about other.
func MatchBody(other *models.User) string {
	return fmt.Sprintf("You were liked by %s! Email: %s", other.FirstName, other.Email)
}

// MatchEvent is the realtime payload published to each side of a match.
type MatchEvent struct {
	Type    string       `json:"type"`
	Payload MatchPartner `json:"payload"`
}

// MatchPartner describes the other side of a match.
type MatchPartner struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
	Message   string `json:"message"`
}

func newMatchEvent(other *models.User) MatchEvent {
	return MatchEvent{
		Type: EventMutualMatch,
		Payload: MatchPartner{
			UserID:    other.ID,
			FirstName: other.FirstName,
			Email:     other.Email,
			Avatar:    other.Avatar,
			Message:   MatchBody(other),
		},
	}
}

func recordOutcome(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	observability.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// RealtimeNotifier publishes match events to both users' Redis channels.
type RealtimeNotifier struct {
	notifier *Notifier
}

// NewRealtimeNotifier wraps n. A Notifier without Redis makes every call a no-op.
func NewRealtimeNotifier(n *Notifier) *RealtimeNotifier {
	return &RealtimeNotifier{notifier: n}
}

func (r *RealtimeNotifier) NotifyMutualMatch(ctx context.Context, a, b *models.User) error {
	err := errors.Join(r.publish(ctx, a, b), r.publish(ctx, b, a))
	recordOutcome("realtime", err)
	return err
}

func (r *RealtimeNotifier) publish(ctx context.Context, recipient, other *models.User) error {
	payload, err := json.Marshal(newMatchEvent(other))
	if err != nil {
		return err
	}
	if err := r.notifier.PublishUser(ctx, recipient.ID, string(payload)); err != nil {
		return fmt.Errorf("publish match event to user %d: %w", recipient.ID, err)
	}
	return nil
}

// LogNotifier only logs the messages it would send. It stands in for email when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) NotifyMutualMatch(ctx context.Context, a, b *models.User) error {
	for _, pair := range [][2]*models.User{{a, b}, {b, a}} {
		middleware.Logger.InfoContext(ctx, "match notification",
			slog.String("to", pair[0].Email),
			slog.String("subject", MatchSubject),
			slog.String("body", MatchBody(pair[1])),
		)
	}
	recordOutcome("log", nil)
	return nil
}

// Fanout delivers through every notifier and joins their errors.
type Fanout []MatchNotifier

func (f Fanout) NotifyMutualMatch(ctx context.Context, a, b *models.User) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyMutualMatch(ctx, a, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a secondary notifier whose failures are logged and counted
// but never reported to the caller.
type BestEffort struct {
	Notifier MatchNotifier
}

func (b BestEffort) NotifyMutualMatch(ctx context.Context, x, y *models.User) error {
	if err := b.Notifier.NotifyMutualMatch(ctx, x, y); err != nil {
		middleware.Logger.WarnContext(ctx, "secondary match notification failed",
			slog.Uint64("user_a", uint64(x.ID)),
			slog.Uint64("user_b", uint64(y.ID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
