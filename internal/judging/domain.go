package judging

import "time"

// Session is a persisted judge session created by activating a magic token.
// The session token is its own namespace of high-entropy randomness; the
// magic token that opened it is never reused as an identifier.
type Session struct {
	SessionToken string
	RoomName     string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Judge is a roster entry: a person judging in a room, optionally tied to a
// sponsor challenge.
type Judge struct {
	ID          string
	Name        string
	RoomName    string
	ChallengeID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultSessionTTL is how long an activated judge session lives. It is
// independent of the magic token's own TTL: a token that expires in minutes
// still opens a session that lasts the judging day.
const DefaultSessionTTL = 8 * time.Hour

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "judge_session"
