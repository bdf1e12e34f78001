package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	slotCollection = "slots"
	mongoTimeout   = 10 * time.Second
)

// slotDocument is the single document holding the item collection
type slotDocument struct {
	ID        string    `bson:"_id"`
	Items     []*Item   `bson:"items"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoDB implements the DB interface using a MongoDB collection
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDB connects to MongoDB and verifies the connection
func NewMongoDB(uri, database string) (*MongoDB, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		database = "campusfind"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: client.Database(database).Collection(slotCollection),
	}, nil
}

// LoadItems reads the item slot document
func (m *MongoDB) LoadItems() ([]*Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	var raw bson.Raw
	err := m.collection.FindOne(ctx, bson.D{{Key: "_id", Value: SlotName}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading item slot: %w", err)
	}

	var doc slotDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
	}

	items := make([]*Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it != nil {
			items = append(items, it)
		}
	}
	return items, nil
}

// SaveItems upserts the item slot document
func (m *MongoDB) SaveItems(items []*Item) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	doc := slotDocument{
		ID:        SlotName,
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := m.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: SlotName}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("writing item slot: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
