package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis adapts a Redis server into the Store contract. Each collection
// is one hash (field = document id, value = JSON document); every
// write publishes the document id on the collection's change channel,
// and subscribers reload the full collection on each notification.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func collectionKey(name string) string {
	return "col:" + name
}

func changeChannel(name string) string {
	return "colchange:" + name
}

func (r *Redis) Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error) {
	deliver := func() error {
		docs, err := r.load(ctx, q.Collection)
		if err != nil {
			return err
		}
		fn(q.Apply(docs))
		return nil
	}
	if err := deliver(); err != nil {
		return nil, err
	}

	pubsub := r.client.Subscribe(ctx, changeChannel(q.Collection))
	go func() {
		for range pubsub.Channel() {
			if err := deliver(); err != nil {
				// Mirror stays on its last snapshot.
				log.Printf("store: reload of %s failed, mirror unchanged: %v", q.Collection, err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("store: closing subscription on %s: %v", q.Collection, err)
			}
		})
	}, nil
}

func (r *Redis) GetAll(ctx context.Context, q Query) (Snapshot, error) {
	docs, err := r.load(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

func (r *Redis) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	merged := fields
	existing, err := r.client.HGet(ctx, collectionKey(collection), id).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		var current map[string]any
		if err := json.Unmarshal([]byte(existing), &current); err == nil {
			for k, v := range fields {
				current[k] = v
			}
			merged = current
		}
	}
	return r.write(ctx, collection, id, merged)
}

func (r *Redis) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := r.write(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	existing, err := r.client.HGet(ctx, collectionKey(collection), id).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var current map[string]any
	if err := json.Unmarshal([]byte(existing), &current); err != nil {
		current = make(map[string]any)
	}
	for k, v := range fields {
		current[k] = v
	}
	return r.write(ctx, collection, id, current)
}

func (r *Redis) write(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, collectionKey(collection), id, payload).Err(); err != nil {
		return err
	}
	return r.client.Publish(ctx, changeChannel(collection), id).Err()
}

func (r *Redis) load(ctx context.Context, collection string) ([]Document, error) {
	raw, err := r.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(raw))
	for id, payload := range raw {
		var fields map[string]any
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			log.Printf("store: skipping malformed document %s/%s: %v", collection, id, err)
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, nil
}
