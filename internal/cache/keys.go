package cache

import (
	"fmt"
	"time"
)

// TTLs for the derived cache entries. The cache is never the source of truth;
// expiry just bounds how stale a rebuilt view can be.
const (
	SessionTTL    = 5 * time.Minute
	VerdictTTL    = 5 * time.Minute
	PageActiveTTL = 10 * time.Minute
	KeyListTTL    = time.Hour
	KeyPinTTL     = time.Hour
	CounterTTL    = 24 * time.Hour
)

// SessionKey holds the snapshot for a session id.
func SessionKey(sessionID int64) string {
	return fmt.Sprintf("session:%d", sessionID)
}

// SessionNameKey maps a derived session name to its id.
func SessionNameKey(name string) string {
	return "session_by_name:" + name
}

// VerdictKey holds the cached reply-gate verdict for a session.
func VerdictKey(sessionID int64) string {
	return fmt.Sprintf("check_reply:%d", sessionID)
}

// PageActiveKey holds the cached active flag for a platform page or bot.
func PageActiveKey(platform, pageID string) string {
	return fmt.Sprintf("page_active:%s:%s", platform, pageID)
}

// KeyListKey holds the ordered key list for a credential group.
func KeyListKey(group string) string {
	return "list_keys:" + group
}

// CounterKey holds the global round-robin counter for (group, type).
func CounterKey(group, typ string) string {
	return fmt.Sprintf("key_counter:%s:type_%s", group, typ)
}

// KeyPinKey holds a session's pinned key index for (group, type).
func KeyPinKey(sessionID int64, group, typ string) string {
	return fmt.Sprintf("key_session:session_%d:%s:type_%s", sessionID, group, typ)
}
