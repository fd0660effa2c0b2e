package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/arena/internal/domain/model"
)

// SessionCookie carries the session token when no Authorization header is sent.
const SessionCookie = "arena_session"

var (
	errNoSession       = errors.New("no session token")
	errInvalidSession  = errors.New("invalid session token")
	errSessionDisabled = errors.New("session verification is not configured")
	errOnboarding      = errors.New("onboarding incomplete")
)

// Session is the authenticated viewer handed to the leaderboard engine.
type Session struct {
	UserID             string
	Role               model.Role
	DealershipID       string
	OrganizationID     string
	OnboardingComplete bool
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role               string `json:"role,omitempty"`
	DealershipID       string `json:"dealership_id,omitempty"`
	OrganizationID     string `json:"organization_id,omitempty"`
	OnboardingComplete bool   `json:"onboarding_complete"`
}

// SignSession mints an HS256 session token. Production sessions come from the
// auth service; this exists for tooling and tests.
func SignSession(secret []byte, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:               string(s.Role),
		DealershipID:       s.DealershipID,
		OrganizationID:     s.OrganizationID,
		OnboardingComplete: s.OnboardingComplete,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type sessionVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func newSessionVerifier(secret []byte) sessionVerifier {
	return sessionVerifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// verify authenticates r. It returns ErrUnauthorized for a missing or bad
// token and ErrForbidden for a valid session that cannot see leaderboards.
func (v sessionVerifier) verify(op string, r *http.Request) (Session, error) {
	if len(v.secret) == 0 {
		return Session{}, WrapKind(op, ErrUnauthorized, errSessionDisabled)
	}
	raw := sessionToken(r)
	if raw == "" {
		return Session{}, WrapKind(op, ErrUnauthorized, errNoSession)
	}
	claims := &sessionClaims{}
	tok, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return Session{}, WrapKind(op, ErrUnauthorized, errInvalidSession)
	}
	s := Session{
		UserID:             claims.Subject,
		DealershipID:       claims.DealershipID,
		OrganizationID:     claims.OrganizationID,
		OnboardingComplete: claims.OnboardingComplete,
	}
	if !s.OnboardingComplete || s.DealershipID == "" {
		return s, WrapKind(op, ErrForbidden, errOnboarding)
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return s, WrapKind(op, ErrForbidden, err)
	}
	s.Role = role
	return s, nil
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// writeSessionError maps a verify failure to 401 or 403.
func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}
	writeError(w, http.StatusUnauthorized, "unauthorized", err)
}
