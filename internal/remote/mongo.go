package remote

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/repsync/repsync/internal/model"
)

const (
	workoutCollection  = "workouts"
	templateCollection = "templates"

	mongoConnectTimeout = 10 * time.Second
	mongoPingTimeout    = 5 * time.Second
)

// Mongo stores records as documents keyed by their id in two collections.
type Mongo struct {
	client    *mongo.Client
	workouts  *mongo.Collection
	templates *mongo.Collection
}

// OpenMongo connects to uri, verifies the connection with a ping and ensures
// the collection indexes exist.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, mongoPingTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), mongoPingTimeout)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:    client,
		workouts:  db.Collection(workoutCollection),
		templates: db.Collection(templateCollection),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	if _, err := m.workouts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "modifiedAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("creating workout index: %w", err)
	}
	if _, err := m.templates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	}); err != nil {
		return fmt.Errorf("creating template index: %w", err)
	}
	return nil
}

func (m *Mongo) Workouts(ctx context.Context) ([]model.Workout, error) {
	opts := options.Find().SetSort(bson.D{{Key: "modifiedAt", Value: -1}, {Key: "_id", Value: 1}})
	return findAll[model.Workout](ctx, m.workouts, opts)
}

func (m *Mongo) SaveWorkout(ctx context.Context, w model.Workout) error {
	return replaceByID(ctx, m.workouts, w.ID, w)
}

func (m *Mongo) DeleteWorkout(ctx context.Context, id string) error {
	return deleteByID(ctx, m.workouts, id)
}

func (m *Mongo) Templates(ctx context.Context) ([]model.Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[model.Template](ctx, m.templates, opts)
}

func (m *Mongo) SaveTemplate(ctx context.Context, t model.Template) error {
	return replaceByID(ctx, m.templates, t.ID, t)
}

func (m *Mongo) DeleteTemplate(ctx context.Context, id string) error {
	return deleteByID(ctx, m.templates, id)
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", coll.Name(), err)
	}
	return out, nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting %s %q: %w", coll.Name(), id, err)
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting %s %q: %w", coll.Name(), id, err)
	}
	return nil
}
