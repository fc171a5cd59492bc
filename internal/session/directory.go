package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/store"
)

// ErrSessionNotFound is returned when a session id or name resolves to
// nothing.
var ErrSessionNotFound = errors.New("session not found")

// Storage is the durable side of the directory.
type Storage interface {
	GetByID(ctx context.Context, id int64) (store.Session, error)
	GetByName(ctx context.Context, name string) (store.Session, error)
	Create(ctx context.Context, sess store.Session) (store.Session, error)
	Update(ctx context.Context, sess store.Session) (store.Session, error)
	SetStatus(ctx context.Context, id int64, status string, expire *time.Time) error
	DeleteByIDs(ctx context.Context, ids []int64) error
	ListPage(ctx context.Context, limit, offset int) ([]store.Session, error)
}

// MessagePurger removes the messages of deleted sessions.
type MessagePurger interface {
	DeleteBySessionIDs(ctx context.Context, sessionIDs []int64) error
}

// Directory resolves and mutates sessions, keeping the cache snapshot in step
// with the durable record.
type Directory struct {
	logger   *slog.Logger
	sessions Storage
	messages MessagePurger
	cache    cache.Store
}

func NewDirectory(log *slog.Logger, sessions Storage, messages MessagePurger, cacheStore cache.Store) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		logger:   log.With(slog.String("service", "sessions")),
		sessions: sessions,
		messages: messages,
		cache:    cacheStore,
	}
}

// GetByID resolves a session snapshot, cache first. A missing session yields
// (nil, nil); absence is never cached.
func (d *Directory) GetByID(ctx context.Context, id int64) (*Snapshot, error) {
	var snap Snapshot
	if d.cache.Get(ctx, cache.SessionKey(id), &snap) {
		return &snap, nil
	}

	sess, err := d.sessions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}

	snap = snapshotOf(sess)
	d.cacheSnapshot(ctx, snap)
	return &snap, nil
}

// GetOrCreateByName resolves a session by its derived name, creating it on
// first contact. Two first-contact messages racing here can create duplicate
// rows for the same name; the name mapping settles on one id once cached, and
// no uniqueness is enforced at the storage layer.
func (d *Directory) GetOrCreateByName(ctx context.Context, name, channel, pageID string) (*Snapshot, error) {
	var id int64
	if d.cache.Get(ctx, cache.SessionNameKey(name), &id) {
		snap, err := d.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}

	sess, err := d.sessions.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		sess, err = d.sessions.Create(ctx, store.Session{
			Name:            name,
			Channel:         channel,
			PageID:          pageID,
			Status:          StatusOpen,
			CurrentReceiver: ReceiverBot,
		})
		if err != nil {
			return nil, fmt.Errorf("create session %q: %w", name, err)
		}
		d.logger.Info("session created",
			slog.Int64("id", sess.ID),
			slog.String("name", name),
			slog.String("channel", channel))
	} else if err != nil {
		return nil, fmt.Errorf("get session %q: %w", name, err)
	}

	snap := snapshotOf(sess)
	d.cacheSnapshot(ctx, snap)
	d.cache.Set(ctx, cache.SessionNameKey(name), snap.ID, cache.SessionTTL)
	return &snap, nil
}

// CreateWeb starts a fresh web session with a random name.
func (d *Directory) CreateWeb(ctx context.Context) (*Snapshot, error) {
	return d.GetOrCreateByName(ctx, NewWebName(), ChannelWeb, "")
}

// CheckByName looks a session up by name without creating one.
func (d *Directory) CheckByName(ctx context.Context, name string) (*Snapshot, error) {
	var id int64
	if d.cache.Get(ctx, cache.SessionNameKey(name), &id) {
		if snap, err := d.GetByID(ctx, id); err != nil || snap != nil {
			return snap, err
		}
	}
	sess, err := d.sessions.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check session %q: %w", name, err)
	}
	snap := snapshotOf(sess)
	d.cacheSnapshot(ctx, snap)
	d.cache.Set(ctx, cache.SessionNameKey(name), snap.ID, cache.SessionTTL)
	return &snap, nil
}

// UpdateInput carries an administrative status change. Option selects the
// hold duration when suspending; Actor is the human taking over.
type UpdateInput struct {
	Status string
	Option string
	Actor  string
}

// Update applies an administrative status change, persists it, refreshes the
// caches, and returns the new snapshot for broadcast. A missing session
// yields (nil, nil).
func (d *Directory) Update(ctx context.Context, id int64, in UpdateInput) (*Snapshot, error) {
	sess, err := d.sessions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}

	switch in.Status {
	case StatusSuspended:
		sess.Status = StatusSuspended
		sess.Time = HoldUntil(in.Option, time.Now())
		sess.PreviousReceiver = sess.CurrentReceiver
		sess.CurrentReceiver = in.Actor
	case StatusOpen:
		sess.Status = StatusOpen
		sess.Time = nil
		sess.PreviousReceiver = sess.CurrentReceiver
		sess.CurrentReceiver = ReceiverBot
	default:
		return nil, fmt.Errorf("invalid session status %q", in.Status)
	}

	updated, err := d.sessions.Update(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("update session %d: %w", id, err)
	}

	snap := snapshotOf(updated)
	d.cache.Delete(ctx, cache.VerdictKey(id))
	d.cacheSnapshot(ctx, snap)
	return &snap, nil
}

// Refresh overwrites the cached snapshot and clears the verdict entry. Used
// after out-of-band mutations where the caller already holds the new state.
func (d *Directory) Refresh(ctx context.Context, snap Snapshot) {
	d.cache.Delete(ctx, cache.VerdictKey(snap.ID))
	d.cacheSnapshot(ctx, snap)
}

// Invalidate drops the snapshot and verdict entries for a session.
func (d *Directory) Invalidate(ctx context.Context, id int64) {
	d.cache.Delete(ctx, cache.SessionKey(id), cache.VerdictKey(id))
}

// BulkDelete removes sessions, their messages, and every dependent cache
// entry.
func (d *Directory) BulkDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids)*3)
	for _, id := range ids {
		keys = append(keys, cache.SessionKey(id), cache.VerdictKey(id))
		if sess, err := d.sessions.GetByID(ctx, id); err == nil {
			keys = append(keys, cache.SessionNameKey(sess.Name))
		}
	}

	if err := d.messages.DeleteBySessionIDs(ctx, ids); err != nil {
		return err
	}
	if err := d.sessions.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	d.cache.Delete(ctx, keys...)
	return nil
}

// ListPage returns sessions newest-first for the admin views.
func (d *Directory) ListPage(ctx context.Context, limit, offset int) ([]Snapshot, error) {
	rows, err := d.sessions.ListPage(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, len(rows))
	for i, row := range rows {
		snaps[i] = snapshotOf(row)
	}
	return snaps, nil
}

func (d *Directory) cacheSnapshot(ctx context.Context, snap Snapshot) {
	d.cache.Set(ctx, cache.SessionKey(snap.ID), snap, cache.SessionTTL)
}
