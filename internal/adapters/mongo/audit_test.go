package mongo_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/mongo"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

func TestAuditLogger_RecordIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	endpoint, err := mongoContainer.Endpoint(ctx, "mongodb")
	require.NoError(t, err)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	audit := mongoadapter.NewAuditLogger(client.Database("bbg_test"), observability.NopLogger())
	require.NoError(t, audit.EnsureIndexes(ctx))

	e := events.New(events.Confirmed, 7, 42)
	e.BookingID = "B-42"
	e.Seats = []string{"12", "13"}
	e.Amount = decimal.NewFromInt(1000)

	require.NoError(t, audit.Record(ctx, e))
	require.NoError(t, audit.Publish(ctx, e))

	logs, err := audit.ForBooking(ctx, "B-42")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "booking.confirmed", logs[0].Action)
	assert.Equal(t, "1000.00", logs[0].Amount)
	assert.Equal(t, []string{"12", "13"}, logs[0].Seats)
}
