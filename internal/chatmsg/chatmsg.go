// Package chatmsg holds the ingest-side value types shared by the spam
// filter, quality scorer, response selector, and ingest pipeline, kept in
// their own package to avoid import cycles between those components.
package chatmsg

import "time"

// ChatMessage is immutable once constructed.
type ChatMessage struct {
	PlatformTag string
	UserID      string
	Username    string
	Text        string
	Timestamp   time.Time
}
