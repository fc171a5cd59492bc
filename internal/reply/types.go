package reply

import (
	"strings"
	"time"

	"github.com/vinchat/vinchat/internal/message"
	"github.com/vinchat/vinchat/internal/session"
)

// Broadcast is the canonical message shape delivered to live observers.
type Broadcast struct {
	ID               int64      `json:"id"`
	SessionID        int64      `json:"chat_session_id"`
	SenderType       string     `json:"sender_type"`
	SenderName       string     `json:"sender_name"`
	Content          string     `json:"content"`
	Images           []string   `json:"image,omitempty"`
	SessionName      string     `json:"session_name"`
	SessionStatus    string     `json:"session_status"`
	CurrentReceiver  string     `json:"current_receiver,omitempty"`
	PreviousReceiver string     `json:"previous_receiver,omitempty"`
	Time             *time.Time `json:"time,omitempty"`
}

func newBroadcast(snap session.Snapshot, senderType, senderName, content string, images []string) Broadcast {
	return Broadcast{
		SessionID:        snap.ID,
		SenderType:       senderType,
		SenderName:       senderName,
		Content:          content,
		Images:           images,
		SessionName:      snap.Name,
		SessionStatus:    snap.Status,
		CurrentReceiver:  snap.CurrentReceiver,
		PreviousReceiver: snap.PreviousReceiver,
		Time:             snap.Time,
	}
}

func broadcastOf(rec message.Record, snap session.Snapshot, senderName string) Broadcast {
	b := newBroadcast(snap, rec.SenderType, senderName, rec.Content, rec.Images)
	b.ID = rec.ID
	return b
}

// recipientOf derives the external recipient id from a derived session name
// ("F-12345" sends to "12345"). Web sessions have no external recipient.
func recipientOf(snap session.Snapshot) string {
	if snap.Channel == session.ChannelWeb {
		return ""
	}
	_, id, found := strings.Cut(snap.Name, "-")
	if !found {
		return ""
	}
	return id
}
