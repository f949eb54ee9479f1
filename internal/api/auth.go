package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	defaultExp       = time.Hour * 24
	sessionCookieKey = "pomochat_session"
)

const (
	roomIdClaim = "room-id"
	senderClaim = "sender"
	expClaim    = "exp"
)

type contextKey string

const sessionKey contextKey = "room-session"

// RoomSession binds a display name to a room. It is minted when a room
// is created or joined and carried in a signed cookie; there are no
// user accounts behind it.
type RoomSession struct {
	RoomId string
	Sender string
}

func Session(ctx context.Context) (RoomSession, bool) {
	sess, ok := ctx.Value(sessionKey).(RoomSession)
	return sess, ok
}

func WithSession(ctx context.Context, sess RoomSession) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func (s *PomochatApp) createSessionToken(sess RoomSession, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		roomIdClaim: sess.RoomId,
		senderClaim: sess.Sender,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *PomochatApp) extractSessionFromToken(tokenString string) (RoomSession, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return RoomSession{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return RoomSession{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return RoomSession{}, fmt.Errorf("invalid token claims")
	}

	roomId, ok := claims[roomIdClaim].(string)
	if !ok || roomId == "" {
		return RoomSession{}, fmt.Errorf("invalid room id claim")
	}

	sender, ok := claims[senderClaim].(string)
	if !ok || sender == "" {
		return RoomSession{}, fmt.Errorf("invalid sender claim")
	}

	return RoomSession{RoomId: roomId, Sender: sender}, nil
}

func createSessionCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// issueSession mints a session cookie for the room. Failures are
// surfaced to the caller so a room response is never sent without a
// usable session.
func (s *PomochatApp) issueSession(w http.ResponseWriter, sess RoomSession) error {
	token, err := s.createSessionToken(sess, defaultExp)
	if err != nil {
		return fmt.Errorf("create session token: %w", err)
	}

	http.SetCookie(w, createSessionCookie(token, defaultExp))
	return nil
}
