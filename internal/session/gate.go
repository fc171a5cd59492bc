package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vinchat/vinchat/internal/cache"
)

// Gate decides whether the bot may answer into a session. Verdicts are cached
// briefly to absorb bursty traffic; any explicit status change must clear the
// cached verdict so the next message computes a fresh one.
type Gate struct {
	logger    *slog.Logger
	directory *Directory
	sessions  Storage
	cache     cache.Store
	now       func() time.Time
}

func NewGate(log *slog.Logger, directory *Directory, sessions Storage, cacheStore cache.Store) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		logger:    log.With(slog.String("service", "reply_gate")),
		directory: directory,
		sessions:  sessions,
		cache:     cacheStore,
		now:       time.Now,
	}
}

// Allow reports whether the bot may reply into the session right now. An
// expired suspension flips the session back to open and persists the flip
// before answering.
func (g *Gate) Allow(ctx context.Context, sessionID int64) (bool, error) {
	var cached string
	if g.cache.Get(ctx, cache.VerdictKey(sessionID), &cached) {
		return cached == StatusOpen, nil
	}

	snap, err := g.directory.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, ErrSessionNotFound
	}

	allowed := !snap.Suspended()
	if snap.Suspended() && snap.Time != nil && g.now().After(*snap.Time) {
		if err := g.reopen(ctx, snap); err != nil {
			return false, err
		}
		allowed = true
	}

	verdict := StatusSuspended
	if allowed {
		verdict = StatusOpen
	}
	g.cache.Set(ctx, cache.VerdictKey(sessionID), verdict, cache.VerdictTTL)
	return allowed, nil
}

// Suspend hands the session to a human. The cache is refreshed before the
// durable write so concurrent messages see the hold immediately.
func (g *Gate) Suspend(ctx context.Context, sessionID int64, actor string, until *time.Time) (*Snapshot, error) {
	snap, err := g.directory.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	snap.PreviousReceiver = snap.CurrentReceiver
	snap.CurrentReceiver = actor
	snap.Status = StatusSuspended
	snap.Time = until
	g.directory.Refresh(ctx, *snap)

	if _, err := g.sessions.Update(ctx, sessionRow(*snap)); err != nil {
		return nil, fmt.Errorf("persist suspension for session %d: %w", sessionID, err)
	}
	g.logger.Info("session suspended",
		slog.Int64("session_id", sessionID),
		slog.String("actor", actor))
	return snap, nil
}

// Reopen flips an expired or released session back to the bot.
func (g *Gate) reopen(ctx context.Context, snap *Snapshot) error {
	snap.Status = StatusOpen
	snap.Time = nil
	snap.PreviousReceiver = snap.CurrentReceiver
	snap.CurrentReceiver = ReceiverBot
	if _, err := g.sessions.Update(ctx, sessionRow(*snap)); err != nil {
		return fmt.Errorf("reopen session %d: %w", snap.ID, err)
	}
	g.directory.Refresh(ctx, *snap)
	g.logger.Info("session reopened", slog.Int64("session_id", snap.ID))
	return nil
}
