package store

import "time"

// Session is the durable conversation record. Status is the reply-gate flag:
// "true" means the bot may answer, "false" means a human holds the session.
// Time, when set, is the instant the hold expires; nil means no expiry.
type Session struct {
	ID               int64
	Name             string
	Channel          string
	PageID           string
	Status           string
	Time             *time.Time
	CurrentReceiver  string
	PreviousReceiver string
	CreatedAt        time.Time
}

// Message belongs to exactly one session. Image holds a serialized list of
// URLs when present.
type Message struct {
	ID         int64
	SessionID  int64
	SenderType string
	Content    string
	Image      *string
	CreatedAt  time.Time
}

// ProviderKey is a rotation-eligible credential. Keys are only read and
// rotated by the routing engine, never mutated.
type ProviderKey struct {
	ID        int64
	GroupName string
	Type      string
	APIKey    string
	CreatedAt time.Time
}

// Page is an external channel page or bot whose active flag gates automated
// replies for webhook traffic.
type Page struct {
	ID       int64
	Platform string
	PageID   string
	Name     string
	IsActive bool
}

// Rating is a customer review attached to a session. Served to the dashboard
// as-is, hence the tags.
type Rating struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"chat_session_id"`
	Stars     int       `json:"stars"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
