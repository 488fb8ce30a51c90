package workflow

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type TripSearcher interface {
	Search(ctx context.Context, token string, q domain.TripQuery) ([]domain.Trip, error)
}

type TripView struct {
	domain.Trip
	Bus   string `json:"bus"`
	Route string `json:"route"`
}

// Finder lists bookable trips between two places on a date.
type Finder struct {
	trips   TripSearcher
	catalog *Catalog
	logger  observability.Logger
}

func NewFinder(trips TripSearcher, catalog *Catalog, logger observability.Logger) *Finder {
	return &Finder{trips: trips, catalog: catalog, logger: logger}
}

// Search drops cancelled trips and, when q.BusType is set, trips on other
// bus types.
func (f *Finder) Search(ctx context.Context, r Rider, q domain.TripQuery) ([]TripView, error) {
	q.Origin, q.Destination, q.Date = strings.TrimSpace(q.Origin), strings.TrimSpace(q.Destination), strings.TrimSpace(q.Date)
	verr := &domain.ValidationError{}
	if q.Origin == "" {
		verr.Add("origin", "Required")
	}
	if q.Destination == "" {
		verr.Add("destination", "Required")
	}
	if q.Date == "" {
		verr.Add("date", "Required")
	}
	if !verr.Empty() {
		return nil, verr
	}

	token, err := r.Tokens.Token()
	if err != nil {
		return nil, err
	}
	trips, err := f.trips.Search(ctx, token, q)
	if err != nil {
		return nil, err
	}

	var allowed map[int64]bool
	if q.BusType != "" {
		buses, err := f.catalog.Buses(ctx, token)
		if err != nil {
			return nil, err
		}
		allowed = make(map[int64]bool)
		for _, b := range buses {
			if b.BusType == q.BusType {
				allowed[b.ID] = true
			}
		}
	}

	views := make([]TripView, 0, len(trips))
	for _, t := range trips {
		if t.Cancelled || (allowed != nil && !allowed[t.BusID]) {
			continue
		}
		views = append(views, TripView{Trip: t})
	}

	f.label(ctx, token, views)
	return views, nil
}

func (f *Finder) label(ctx context.Context, token string, views []TripView) {
	busIDs, routeIDs := map[int64]bool{}, map[int64]bool{}
	for _, v := range views {
		busIDs[v.BusID] = true
		routeIDs[v.RouteID] = true
	}

	var (
		mu     sync.Mutex
		buses  = map[int64]*domain.Bus{}
		routes = map[int64]*domain.Route{}
		g      errgroup.Group
	)
	g.SetLimit(8)
	for id := range busIDs {
		g.Go(func() error {
			b, err := f.catalog.Bus(ctx, token, id)
			if err != nil {
				f.logger.WithField("bus_id", id).WithError(err).Warn("bus lookup failed")
				return nil
			}
			mu.Lock()
			buses[id] = &b
			mu.Unlock()
			return nil
		})
	}
	for id := range routeIDs {
		g.Go(func() error {
			rt, err := f.catalog.Route(ctx, token, id)
			if err != nil {
				f.logger.WithField("route_id", id).WithError(err).Warn("route lookup failed")
				return nil
			}
			mu.Lock()
			routes[id] = &rt
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range views {
		views[i].Bus = BusLabel(buses[views[i].BusID])
		views[i].Route = RouteLabel(routes[views[i].RouteID])
	}
}
