package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type Trips struct {
	c *Client
}

func NewTrips(baseURL string, timeout time.Duration, logger observability.Logger, opts ...Option) *Trips {
	return &Trips{c: newClient("trips", baseURL, timeout, logger, opts...)}
}

func (t *Trips) List(ctx context.Context, token string) ([]domain.Trip, error) {
	var out []domain.Trip
	err := t.c.do(ctx, call{op: "list_trips", method: http.MethodGet, path: "/api/v1/trips", token: token, out: &out})
	return out, err
}

func (t *Trips) Trip(ctx context.Context, token string, id int64) (domain.Trip, error) {
	var out domain.Trip
	err := t.c.do(ctx, call{op: "get_trip", method: http.MethodGet, path: fmt.Sprintf("/api/v1/trips/%d", id), token: token, out: &out})
	if err == nil && out.ID == 0 {
		out.ID = id
	}
	return out, err
}

func (t *Trips) Search(ctx context.Context, token string, q domain.TripQuery) ([]domain.Trip, error) {
	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	params.Set("date", q.Date)

	var out []domain.Trip
	err := t.c.do(ctx, call{op: "search_trips", method: http.MethodGet, path: "/api/v1/trips/search?" + params.Encode(), token: token, out: &out})
	return out, err
}
