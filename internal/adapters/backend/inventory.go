package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// Inventory resolves bus and route ids to display data.
type Inventory struct {
	c *Client
}

func NewInventory(baseURL string, timeout time.Duration, logger observability.Logger, opts ...Option) *Inventory {
	return &Inventory{c: newClient("inventory", baseURL, timeout, logger, opts...)}
}

func (i *Inventory) Buses(ctx context.Context, token string) ([]domain.Bus, error) {
	var out []domain.Bus
	err := i.c.do(ctx, call{op: "list_buses", method: http.MethodGet, path: "/api/v1/buses", token: token, out: &out})
	return out, err
}

func (i *Inventory) Bus(ctx context.Context, token string, id int64) (domain.Bus, error) {
	var out domain.Bus
	err := i.c.do(ctx, call{op: "get_bus", method: http.MethodGet, path: fmt.Sprintf("/api/v1/buses/%d", id), token: token, out: &out})
	return out, err
}

func (i *Inventory) Routes(ctx context.Context, token string) ([]domain.Route, error) {
	var out []domain.Route
	err := i.c.do(ctx, call{op: "list_routes", method: http.MethodGet, path: "/api/v1/routes", token: token, out: &out})
	return out, err
}

func (i *Inventory) Route(ctx context.Context, token string, id int64) (domain.Route, error) {
	var out domain.Route
	err := i.c.do(ctx, call{op: "get_route", method: http.MethodGet, path: fmt.Sprintf("/api/v1/routes/%d", id), token: token, out: &out})
	return out, err
}
