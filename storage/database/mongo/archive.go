// Package mongodb keeps a secondary copy of trip GPS samples in MongoDB.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

const (
	collectionName = "trip_locations"
	connectTimeout = 10 * time.Second
)

var errNoCollection = errors.New("mongo collection is nil")

// Connect opens a client and pings the server.
func Connect(ctx context.Context, conf *core.Config) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Mongo.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return client, nil
}

type locationDoc struct {
	ID        string    `bson:"_id"`
	TripID    string    `bson:"tripId"`
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
	Speed     *float64  `bson:"speed,omitempty"`
	Heading   *float64  `bson:"heading,omitempty"`
	Accuracy  *float64  `bson:"accuracy,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

func toDoc(loc trip.Location) locationDoc {
	return locationDoc{
		ID:        loc.ID,
		TripID:    loc.TripID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Accuracy:  loc.Accuracy,
		Timestamp: loc.Timestamp,
	}
}

func (doc locationDoc) location() trip.Location {
	return trip.Location{
		ID:        doc.ID,
		TripID:    doc.TripID,
		Latitude:  doc.Latitude,
		Longitude: doc.Longitude,
		Speed:     doc.Speed,
		Heading:   doc.Heading,
		Accuracy:  doc.Accuracy,
		Timestamp: doc.Timestamp.UTC(),
	}
}

// Archive implements trip.LocationArchive.
type Archive struct {
	coll *mongo.Collection
}

var _ trip.LocationArchive = (*Archive)(nil)

func NewArchive(client *mongo.Client, dbName string) *Archive {
	return &Archive{coll: client.Database(dbName).Collection(collectionName)}
}

// EnsureIndexes creates the (tripId, timestamp) index used by History.
func (a *Archive) EnsureIndexes(ctx context.Context) error {
	if a.coll == nil {
		return errNoCollection
	}
	_, err := a.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tripId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return errors.Wrap(err, "creating location index")
}

// ArchiveLocation upserts loc so that replays of the same sample are idempotent.
func (a *Archive) ArchiveLocation(ctx context.Context, loc trip.Location) error {
	if a.coll == nil {
		return errNoCollection
	}
	_, err := a.coll.ReplaceOne(ctx, bson.M{"_id": loc.ID}, toDoc(loc), options.Replace().SetUpsert(true))
	return errors.Wrap(err, "archiving location")
}

// History returns the archived samples of a trip, oldest first.
func (a *Archive) History(ctx context.Context, tripID string, limit int64) ([]trip.Location, error) {
	if a.coll == nil {
		return nil, errNoCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := a.coll.Find(ctx, bson.M{"tripId": tripID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding locations")
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []locationDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding locations")
	}
	locs := make([]trip.Location, 0, len(docs))
	for _, doc := range docs {
		locs = append(locs, doc.location())
	}
	return locs, nil
}
