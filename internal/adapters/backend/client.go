// Package backend talks to the auth, inventory, trip and booking services.
// Every call carries the rider's bearer token, a client span with W3C trace
// context, and a per-call timeout.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx reply. 401/403 match domain.ErrUnauthorized, 404
// matches domain.ErrNotFound and anything else matches domain.ErrNetwork.
type StatusError struct {
	Service string
	Op      string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == domain.ErrUnauthorized
	case http.StatusNotFound:
		return target == domain.ErrNotFound
	}
	return target == domain.ErrNetwork
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

type Client struct {
	service string
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  observability.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func newClient(service, baseURL string, timeout time.Duration, logger observability.Logger, opts ...Option) *Client {
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type call struct {
	op             string
	method         string
	path           string
	token          string
	idempotencyKey string
	body           any
	out            any
}

func (c *Client) do(ctx context.Context, cl call) error {
	start := time.Now()
	ctx, span := otel.Tracer("bbg/backend").Start(ctx, c.service+"."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("peer.service", c.service),
		))
	defer span.End()

	err := c.roundTrip(ctx, cl)

	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.WithField("service", c.service).WithField("op", cl.op).WithError(err).Warn("backend call failed")
	}
	observability.BackendCallDuration.WithLabelValues(c.service, cl.op, outcome).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return errors.Wrapf(err, "encode %s request", cl.op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s request", cl.op)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", cl.idempotencyKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err, c.service, cl.op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Service: c.service, Op: cl.op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err, c.service, cl.op)
	}
	if cl.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s %s: decode response", c.service, cl.op), domain.ErrNetwork)
	}
	return nil
}

func transportError(ctx context.Context, err error, service, op string) error {
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return errors.Mark(errors.Wrapf(err, "%s %s", service, op), domain.ErrTimeout)
	}
	return errors.Mark(errors.Wrapf(err, "%s %s", service, op), domain.ErrNetwork)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrHoldConflict):
		return "conflict"
	case errors.Is(err, domain.ErrConfirm):
		return "confirm_error"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
