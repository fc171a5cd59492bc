package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/vinchat/vinchat/internal/store"
)

// ExpiredLister lists suspended sessions whose hold has lapsed.
type ExpiredLister interface {
	ListExpiredSuspended(ctx context.Context, now time.Time) ([]store.Session, error)
}

// Janitor reopens lapsed suspensions on a schedule, so idle sessions return
// to the bot without waiting for the next inbound message.
type Janitor struct {
	logger  *slog.Logger
	gate    *Gate
	expired ExpiredLister
}

func NewJanitor(log *slog.Logger, gate *Gate, expired ExpiredLister) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		logger:  log.With(slog.String("service", "janitor")),
		gate:    gate,
		expired: expired,
	}
}

// Sweep reopens every suspended session whose hold has expired and returns
// how many it flipped.
func (j *Janitor) Sweep(ctx context.Context) int {
	rows, err := j.expired.ListExpiredSuspended(ctx, time.Now())
	if err != nil {
		j.logger.Error("expired session scan failed", slog.Any("error", err))
		return 0
	}

	reopened := 0
	for _, row := range rows {
		snap := snapshotOf(row)
		if err := j.gate.reopen(ctx, &snap); err != nil {
			j.logger.Error("sweep reopen failed",
				slog.Int64("session_id", snap.ID), slog.Any("error", err))
			continue
		}
		reopened++
	}
	if reopened > 0 {
		j.logger.Info("expired sessions reopened", slog.Int("count", reopened))
	}
	return reopened
}
