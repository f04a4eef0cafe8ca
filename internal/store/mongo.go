package store

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo adapts a MongoDB database into the Store contract. Change
// streams drive the same reload-and-deliver loop as the Redis adapter,
// so both backends present identical whole-snapshot semantics.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error) {
	deliver := func() error {
		docs, err := m.load(ctx, q.Collection)
		if err != nil {
			return err
		}
		fn(q.Apply(docs))
		return nil
	}
	if err := deliver(); err != nil {
		return nil, err
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	stream, err := m.db.Collection(q.Collection).Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancelStream()
		return nil, err
	}
	go func() {
		defer func() {
			if err := stream.Close(context.Background()); err != nil {
				log.Printf("store: closing change stream on %s: %v", q.Collection, err)
			}
		}()
		for stream.Next(streamCtx) {
			if err := deliver(); err != nil {
				log.Printf("store: reload of %s failed, mirror unchanged: %v", q.Collection, err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancelStream)
	}, nil
}

func (m *Mongo) GetAll(ctx context.Context, q Query) (Snapshot, error) {
	docs, err := m.load(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M(fields)},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *Mongo) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	result, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M(fields)},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) load(ctx context.Context, collection string) ([]Document, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		id, _ := raw["_id"].(string)
		delete(raw, "_id")
		docs = append(docs, Document{ID: id, Fields: map[string]any(raw)})
	}
	return docs, cursor.Err()
}
