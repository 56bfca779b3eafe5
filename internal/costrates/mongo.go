package costrates

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const perCategoryLimit = 10

// MongoSource reads rate records from a collection whose documents carry a
// "category" field naming one of Categories.
type MongoSource struct {
	col     *mongo.Collection
	timeout time.Duration
}

// NewMongoSource wraps an existing collection.
func NewMongoSource(col *mongo.Collection) *MongoSource {
	return &MongoSource{col: col, timeout: 10 * time.Second}
}

// ConnectMongo dials uri and pings it. The caller owns the client.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Card queries up to ten records per category.
func (m *MongoSource) Card(ctx context.Context) (Card, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	card := Card{Source: "mongodb", Rates: make(map[string][]Entry, len(Categories))}
	findOpts := options.Find().
		SetProjection(bson.M{"_id": 0}).
		SetLimit(perCategoryLimit)
	for _, cat := range Categories {
		cursor, err := m.col.Find(ctx, bson.M{"category": cat}, findOpts)
		if err != nil {
			return Card{}, fmt.Errorf("find %s: %w", cat, err)
		}
		var docs []bson.M
		if err := cursor.All(ctx, &docs); err != nil {
			return Card{}, fmt.Errorf("decode %s: %w", cat, err)
		}
		entries := make([]Entry, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, Entry(d))
		}
		card.Rates[cat] = entries
	}
	return card, nil
}
