package judging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forge-club/forge/internal/shared"
)

// Service wires the token codec and the session store into the activation
// flow, and manages the judge roster.
type Service struct {
	repo       Repository
	codec      *TokenCodec
	baseURL    string
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceConfig carries the tunables.
type ServiceConfig struct {
	// BaseURL is the public origin activation links point at.
	BaseURL string
	// SessionTTL overrides DefaultSessionTTL when positive.
	SessionTTL time.Duration
}

// NewService constructs a Service.
func NewService(repo Repository, codec *TokenCodec, cfg ServiceConfig) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		repo:       repo,
		codec:      codec,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sessionTTL: ttl,
		now:        time.Now,
	}
}

// IssueLink signs a magic token for a room and wraps it in the public
// activation URL, ready for QR rendering.
func (s *Service) IssueLink(ctx context.Context, roomName string, ttl time.Duration) (string, error) {
	token, err := s.codec.Issue(roomName, ttl)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/judge/activate?token=" + url.QueryEscape(token), nil
}

// Activate verifies a magic token and creates a fresh session. Repeat
// activation of the same still-valid token creates another independent
// session; one printed QR serves every judge in the room.
func (s *Service) Activate(ctx context.Context, token string) (*Session, error) {
	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	sessionToken, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("judging: session token: %w", err)
	}
	session := Session{
		SessionToken: sessionToken,
		RoomName:     payload.RoomName,
		ExpiresAt:    s.now().Add(s.sessionTTL),
	}
	if err := s.repo.InsertSession(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Lookup returns the live session for a cookie-carried token, or
// shared.ErrNotFound for unknown and expired tokens alike.
func (s *Service) Lookup(ctx context.Context, sessionToken string) (*Session, error) {
	if sessionToken == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.FindSession(ctx, sessionToken, s.now())
}

// RevokeRoom deletes every session for a room and reports the count.
func (s *Service) RevokeRoom(ctx context.Context, roomName string) (int64, error) {
	if strings.TrimSpace(roomName) == "" {
		return 0, fmt.Errorf("%w: room name required", shared.ErrInvalidArgument)
	}
	return s.repo.DeleteSessionsByRoom(ctx, roomName)
}

// CountSessionsByRoom aggregates live sessions per room for operator
// visibility.
func (s *Service) CountSessionsByRoom(ctx context.Context) (map[string]int, error) {
	return s.repo.CountSessionsByRoom(ctx, s.now())
}

// PurgeExpired removes expired session rows.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, s.now())
}

// SessionTTL exposes the configured session lifetime for cookie Max-Age.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// CreateJudge adds a roster entry.
func (s *Service) CreateJudge(ctx context.Context, name, roomName, challengeID string) (Judge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Judge{}, fmt.Errorf("%w: judge name required", shared.ErrInvalidArgument)
	}
	if roomName == "" {
		roomName = "Unassigned"
	}
	return s.repo.CreateJudge(ctx, Judge{
		ID:          uuid.NewString(),
		Name:        name,
		RoomName:    roomName,
		ChallengeID: challengeID,
	})
}

// UpdateJudge overwrites a roster entry.
func (s *Service) UpdateJudge(ctx context.Context, id, name, roomName, challengeID string) (Judge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Judge{}, fmt.Errorf("%w: judge name required", shared.ErrInvalidArgument)
	}
	return s.repo.UpdateJudge(ctx, Judge{
		ID:          id,
		Name:        name,
		RoomName:    roomName,
		ChallengeID: challengeID,
	})
}

// DeleteJudge removes a roster entry.
func (s *Service) DeleteJudge(ctx context.Context, id string) error {
	return s.repo.DeleteJudge(ctx, id)
}

// ListJudges returns the roster.
func (s *Service) ListJudges(ctx context.Context) ([]Judge, error) {
	return s.repo.ListJudges(ctx)
}

// ListRoomNames returns the distinct roster rooms.
func (s *Service) ListRoomNames(ctx context.Context) ([]string, error) {
	return s.repo.ListRoomNames(ctx)
}

// newSessionToken draws 32 bytes from crypto/rand, hex encoded.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
