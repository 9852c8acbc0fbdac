package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

func TestArchive_NilCollection(t *testing.T) {
	a := &Archive{}
	ctx := context.Background()

	assert.Equal(t, errNoCollection, a.ArchiveLocation(ctx, trip.Location{}))
	assert.Equal(t, errNoCollection, a.EnsureIndexes(ctx))
	_, err := a.History(ctx, "t1", 0)
	assert.Equal(t, errNoCollection, err)
}

func TestLocationDoc(t *testing.T) {
	speed := 42.5
	loc := trip.Location{ID: "l1", TripID: "t1", Latitude: -1.29, Longitude: 36.82, Speed: &speed, Timestamp: time.Unix(1700000000, 0).UTC()}

	raw, err := bson.Marshal(toDoc(loc))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "l1", m["_id"])
	assert.Equal(t, "t1", m["tripId"])
	assert.NotContains(t, m, "heading")

	var doc locationDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, loc, doc.location())
}

func TestArchive_Integration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	conf := core.NewTestConfig()
	conf.Mongo.URI = uri
	client, err := Connect(ctx, conf)
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(ctx) }()

	a := NewArchive(client, "shulebus_test")
	require.NoError(t, a.EnsureIndexes(ctx))

	tripID := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		loc := trip.Location{ID: uuid.NewString(), TripID: tripID, Latitude: -1.29, Longitude: 36.82, Timestamp: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, a.ArchiveLocation(ctx, loc))
		require.NoError(t, a.ArchiveLocation(ctx, loc), "replays are idempotent")
	}

	locs, err := a.History(ctx, tripID, 2)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.True(t, locs[0].Timestamp.Equal(base))
}
