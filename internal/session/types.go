package session

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vinchat/vinchat/internal/store"
)

const (
	ChannelWeb      = "web"
	ChannelFacebook = "facebook"
	ChannelTelegram = "telegram"
	ChannelZalo     = "zalo"

	// StatusOpen means the bot may answer; StatusSuspended means a human
	// holds the session. The string values are the durable representation.
	StatusOpen      = "true"
	StatusSuspended = "false"

	ReceiverBot = "Bot"
)

// Hold duration options for an explicit admin suspension.
const (
	HoldShort   = "1h"
	HoldMedium  = "4h"
	HoldMorning = "next_morning"
	HoldForever = "forever"
)

// Snapshot is the cached projection of a session used for routing decisions
// and observer broadcasts.
type Snapshot struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Channel          string     `json:"channel"`
	PageID           string     `json:"page_id,omitempty"`
	Status           string     `json:"status"`
	Time             *time.Time `json:"time,omitempty"`
	CurrentReceiver  string     `json:"current_receiver"`
	PreviousReceiver string     `json:"previous_receiver,omitempty"`
}

func snapshotOf(s store.Session) Snapshot {
	return Snapshot{
		ID:               s.ID,
		Name:             s.Name,
		Channel:          s.Channel,
		PageID:           s.PageID,
		Status:           s.Status,
		Time:             s.Time,
		CurrentReceiver:  s.CurrentReceiver,
		PreviousReceiver: s.PreviousReceiver,
	}
}

func sessionRow(s Snapshot) store.Session {
	return store.Session{
		ID:               s.ID,
		Name:             s.Name,
		Channel:          s.Channel,
		PageID:           s.PageID,
		Status:           s.Status,
		Time:             s.Time,
		CurrentReceiver:  s.CurrentReceiver,
		PreviousReceiver: s.PreviousReceiver,
	}
}

// Suspended reports whether a human currently holds the session.
func (s Snapshot) Suspended() bool {
	return s.Status == StatusSuspended
}

var channelPrefixes = map[string]string{
	ChannelFacebook: "F",
	ChannelTelegram: "T",
	ChannelZalo:     "Z",
}

// NameFor derives the deterministic session name for an external sender.
// Unknown channels fall back to the "U" prefix.
func NameFor(channel, senderID string) string {
	prefix, ok := channelPrefixes[channel]
	if !ok {
		prefix = "U"
	}
	return prefix + "-" + senderID
}

// NewWebName returns a fresh web session name of the form W-<8 digits>.
func NewWebName() string {
	return fmt.Sprintf("W-%08d", rand.IntN(100000000))
}

// HoldUntil resolves a hold option to an expiry instant. A nil result means
// the hold never auto-reopens.
func HoldUntil(option string, now time.Time) *time.Time {
	switch option {
	case HoldShort:
		t := now.Add(time.Hour)
		return &t
	case HoldMedium:
		t := now.Add(4 * time.Hour)
		return &t
	case HoldMorning:
		next := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		return &next
	default:
		return nil
	}
}
