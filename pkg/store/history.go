package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record is a conversion summary kept for history. Image bytes are
// deliberately not recorded; only the metrics the history endpoint
// reports.
type Record struct {
	ConversionID string    `bson:"conversion_id" json:"conversion_id"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LayerCount   int       `bson:"layer_count" json:"layer_count"`
	FailureCount int       `bson:"failure_count" json:"failure_count"`
	AvgWidthMM   float64   `bson:"avg_width_mm" json:"avg_width_mm"`
	AvgHeightMM  float64   `bson:"avg_height_mm" json:"avg_height_mm"`
}

// History records conversion summaries. The null implementation keeps
// deployments without MongoDB working unchanged.
type History interface {
	Record(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close(ctx context.Context) error
}

// NullHistory discards every record.
type NullHistory struct{}

func (NullHistory) Record(ctx context.Context, rec Record) error { return nil }

func (NullHistory) Recent(ctx context.Context, limit int) ([]Record, error) { return nil, nil }

func (NullHistory) Close(ctx context.Context) error { return nil }

// MongoConfig configures the MongoDB history backend.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoHistory persists conversion summaries to a MongoDB collection.
type MongoHistory struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoHistory connects to MongoDB and verifies the connection.
func NewMongoHistory(ctx context.Context, cfg MongoConfig) (*MongoHistory, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = "pcbpeek"
	}
	coll := cfg.Collection
	if coll == "" {
		coll = "conversions"
	}
	return &MongoHistory{
		client: client,
		coll:   client.Database(db).Collection(coll),
	}, nil
}

func (h *MongoHistory) Record(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if _, err := h.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("record conversion %s: %w", rec.ConversionID, err)
	}
	return nil
}

// Recent returns the newest records first.
func (h *MongoHistory) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := h.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return recs, nil
}

func (h *MongoHistory) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}

var (
	_ History = (*MongoHistory)(nil)
	_ History = NullHistory{}
)
