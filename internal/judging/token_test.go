package judging

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forge-club/forge/internal/shared"
	_ "github.com/forge-club/forge/testing"
)

func frozenCodec(secret string, at time.Time) *TokenCodec {
	c := NewTokenCodec(secret)
	c.now = func() time.Time { return at }
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	codec := frozenCodec("topsecret", now)

	token, err := codec.Issue("Room 101", 10*time.Minute)
	require.NoError(t, err)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, TokenSubject, payload.Subject)
	assert.Equal(t, "Room 101", payload.RoomName)
	assert.Equal(t, now.Unix(), payload.IssuedAt)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), payload.ExpiresAt)
}

func TestIssueDefaultsTTL(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	codec := frozenCodec("topsecret", now)

	token, err := codec.Issue("Room 101", 0)
	require.NoError(t, err)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTokenTTL).Unix(), payload.ExpiresAt)
}

func TestIssueRequiresRoom(t *testing.T) {
	codec := NewTokenCodec("topsecret")
	_, err := codec.Issue("", time.Minute)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	codec := frozenCodec("topsecret", time.Now())
	token, err := codec.Issue("Room 101", time.Minute)
	require.NoError(t, err)

	// Flip one character of the signature segment.
	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := token[:len(token)-1] + string(flipped)

	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	codec := frozenCodec("topsecret", time.Now())
	token, err := codec.Issue("Room 101", time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	var payload TokenPayload
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &payload))
	payload.RoomName = "Room 999"
	forged, err := json.Marshal(payload)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = codec.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	issuer := frozenCodec("issuer-secret", now)
	verifier := frozenCodec("other-secret", now)

	token, err := issuer.Issue("Room 101", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyRejectsWrongSubject(t *testing.T) {
	codec := frozenCodec("topsecret", time.Now())

	headerJSON, err := json.Marshal(tokenHeader{Alg: "HS256", Typ: "JWT"})
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(TokenPayload{
		Subject:   "some-other-feature",
		RoomName:  "Room 101",
		IssuedAt:  codec.now().Unix(),
		ExpiresAt: codec.now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	token := signingInput + "." + codec.sign(signingInput)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyMalformedTokens(t *testing.T) {
	codec := NewTokenCodec("topsecret")

	cases := []string{
		"",
		"one",
		"one.two",
		"one.two.three.four",
	}
	for _, token := range cases {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, shared.ErrMalformed, "token %q", token)
	}
}

func TestVerifyMalformedPayloadEncoding(t *testing.T) {
	codec := NewTokenCodec("topsecret")

	// Correctly signed parts whose payload is not base64url JSON still
	// fail, but only after the signature check passes.
	signingInput := "notbase64!!" + "." + "alsonot!!"
	token := signingInput + "." + codec.sign(signingInput)

	_, err := codec.Verify(token)
	assert.ErrorIs(t, err, shared.ErrMalformed)
}

func TestVerifyExpiryRespectsSkew(t *testing.T) {
	issuedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	codec := frozenCodec("topsecret", issuedAt)

	token, err := codec.Issue("Room 101", 15*time.Minute)
	require.NoError(t, err)

	expiry := issuedAt.Add(15 * time.Minute)

	// Inside the skew window verification still succeeds.
	codec.now = func() time.Time { return expiry.Add(ClockSkewAllowance - time.Second) }
	_, err = codec.Verify(token)
	assert.NoError(t, err)

	// One second past the window it fails with the expiry error, which
	// verification reports only after the signature check passed.
	codec.now = func() time.Time { return expiry.Add(ClockSkewAllowance + time.Second) }
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, shared.ErrExpired)
	assert.False(t, errors.Is(err, shared.ErrUnauthorized))
}
