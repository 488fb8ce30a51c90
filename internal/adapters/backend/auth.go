package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
)

type Auth struct {
	c *Client
}

func NewAuth(baseURL string, timeout time.Duration, logger observability.Logger, opts ...Option) *Auth {
	return &Auth{c: newClient("auth", baseURL, timeout, logger, opts...)}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *Auth) Login(ctx context.Context, creds Credentials) (session.LoginResponse, error) {
	var resp session.LoginResponse
	err := a.c.do(ctx, call{op: "login", method: http.MethodPost, path: "/api/v1/auth/login", body: creds, out: &resp})
	if StatusOf(err) == http.StatusBadRequest {
		return resp, errors.Wrapf(domain.ErrUnauthorized, "login: %v", err)
	}
	return resp, err
}
