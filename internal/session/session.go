// Package session holds the authenticated rider context that every backend
// call is made with. A session ends at explicit logout or when the access
// token expires, whichever comes first.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

type Role string

const RoleUser Role = "USER"

func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "ROLE_")))
}

// LoginResponse is the auth service's reply to a successful login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	UserID      int64  `json:"userId"`
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenExpiry decodes the exp claim without verifying the signature; the
// auth service is the only party that validates tokens. A token without exp
// yields the zero time.
func TokenExpiry(token string) (time.Time, string, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return time.Time{}, "", errors.Mark(errors.Wrap(err, "decode access token"), domain.ErrUnauthorized)
	}
	if c.ExpiresAt == nil {
		return time.Time{}, c.Role, nil
	}
	return c.ExpiresAt.Time, c.Role, nil
}

type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Device    string    `json:"device,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	token string
	now   func() time.Time

	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	ended  bool
	onEnd  func(*Session)
	reason error
}

func newSession(resp LoginResponse, device string, now func() time.Time) (*Session, error) {
	if resp.AccessToken == "" {
		return nil, errors.Wrap(domain.ErrUnauthorized, "login response without access token")
	}
	exp, tokenRole, err := TokenExpiry(resp.AccessToken)
	if err != nil {
		return nil, err
	}
	role := ParseRole(resp.Role)
	if role == "" {
		role = ParseRole(tokenRole)
	}
	if !exp.IsZero() && !exp.After(now()) {
		return nil, errors.Wrap(domain.ErrSessionExpired, "access token already expired")
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    resp.UserID,
		Email:     resp.Email,
		Role:      role,
		Device:    device,
		ExpiresAt: exp,
		token:     resp.AccessToken,
		now:       now,
		done:      make(chan struct{}),
	}, nil
}

// arm starts the auto-logout timer. Called once, by the registry.
func (s *Session) arm(onEnd func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = onEnd
	if s.ExpiresAt.IsZero() {
		return
	}
	s.timer = time.AfterFunc(s.ExpiresAt.Sub(s.now()), func() {
		s.end(domain.ErrSessionExpired)
	})
}

func (s *Session) end(reason error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.reason = reason
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	onEnd := s.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd(s)
	}
}

// Logout ends the session and cancels the expiry timer.
func (s *Session) Logout() {
	s.end(domain.ErrUnauthorized)
}

// Expired reports whether the session ended because its token ran out
// rather than through Logout.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended && errors.Is(s.reason, domain.ErrSessionExpired)
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	return s.ExpiresAt.IsZero() || s.now().Before(s.ExpiresAt)
}

// Token returns the bearer token for outbound calls.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		if errors.Is(s.reason, domain.ErrSessionExpired) {
			return "", errors.Wrap(domain.ErrSessionExpired, "session ended")
		}
		return "", errors.Wrap(domain.ErrUnauthorized, "logged out")
	}
	if !s.ExpiresAt.IsZero() && !s.now().Before(s.ExpiresAt) {
		return "", errors.Wrap(domain.ErrSessionExpired, "access token expired")
	}
	return s.token, nil
}

func (s *Session) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
